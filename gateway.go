package docgate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries a fresh id on every outbound request.
	RequestIDHeader = "opc-request-id"

	DefaultBackendTimeout = 30 * time.Second

	sniffLen = 3072
)

// Doer sends outbound HTTP requests. *http.Client satisfies it and is safe
// for concurrent use, so the gateway holds no lock around it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CredentialResolver resolves the credential used to sign a request.
// credential.Chain and credential.CachedResolver implement it.
type CredentialResolver interface {
	Resolve(ctx context.Context) (Credential, error)
}

// TokenSource hands out scoped tokens. tokencache.Cache implements it.
type TokenSource interface {
	Get(ctx context.Context, forceRefresh bool) (ScopedToken, error)
	Invalidate(token ScopedToken)
}

// OperationKind distinguishes the outbound calls the gateway makes.
type OperationKind int

const (
	OpDownload OperationKind = iota
	OpList
)

// Operation is one outbound call to object storage.
type Operation struct {
	Kind    OperationKind
	Key     string
	Options ListOptions
}

func (o Operation) String() string {
	if o.Kind == OpList {
		return "list objects"
	}
	return "download " + o.Key
}

// Prepared is an outbound request ready to send.
type Prepared struct {
	Request *http.Request
	// Report, when set, receives the backend status code.
	Report func(status int)
}

// Strategy turns an Operation into an authenticated outbound request.
type Strategy interface {
	Name() string
	Prepare(ctx context.Context, op Operation) (Prepared, error)
}

// DirectStrategy signs every outbound request with a credential from the chain.
type DirectStrategy struct {
	bucket   Bucket
	resolver CredentialResolver
	signer   Signer
}

func NewDirectStrategy(bucket Bucket, resolver CredentialResolver, signer Signer) (*DirectStrategy, error) {
	if err := bucket.Validate(); err != nil {
		return nil, fmt.Errorf("new direct strategy: %w", err)
	}
	if resolver == nil || signer == nil {
		return nil, fmt.Errorf("new direct strategy: resolver and signer are required: %w", ErrMisconfigured)
	}
	return &DirectStrategy{bucket: bucket, resolver: resolver, signer: signer}, nil
}

func (s *DirectStrategy) Name() string { return "direct" }

func (s *DirectStrategy) Prepare(ctx context.Context, op Operation) (Prepared, error) {
	cred, err := s.resolver.Resolve(ctx)
	if err != nil {
		return Prepared{}, fmt.Errorf("resolve credential: %w", err)
	}

	rawURL := s.bucket.ObjectURL(op.Key)
	if op.Kind == OpList {
		rawURL = s.bucket.ListURL(op.Options)
	}

	desc, err := NewRequestDescriptor(http.MethodGet, rawURL, nil, nil)
	if err != nil {
		return Prepared{}, err
	}

	signed, err := s.signer.Sign(desc, cred)
	if err != nil {
		return Prepared{}, err
	}

	req, err := signed.NewHTTPRequest(ctx)
	if err != nil {
		return Prepared{}, err
	}

	return Prepared{Request: req}, nil
}

// ScopedTokenStrategy addresses objects through a cached pre-authenticated
// request. A stale token is dropped when the backend rejects it; the failed
// request is not retried.
type ScopedTokenStrategy struct {
	bucket Bucket
	tokens TokenSource
}

func NewScopedTokenStrategy(bucket Bucket, tokens TokenSource) (*ScopedTokenStrategy, error) {
	if err := bucket.Validate(); err != nil {
		return nil, fmt.Errorf("new scoped token strategy: %w", err)
	}
	if tokens == nil {
		return nil, fmt.Errorf("new scoped token strategy: token source is required: %w", ErrMisconfigured)
	}
	return &ScopedTokenStrategy{bucket: bucket, tokens: tokens}, nil
}

func (s *ScopedTokenStrategy) Name() string { return "scoped" }

func (s *ScopedTokenStrategy) Prepare(ctx context.Context, op Operation) (Prepared, error) {
	token, err := s.tokens.Get(ctx, false)
	if err != nil {
		return Prepared{}, err
	}

	key := op.Key
	if op.Kind == OpList {
		key = ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.bucket.ScopedURL(token, key, op.Options), http.NoBody)
	if err != nil {
		return Prepared{}, fmt.Errorf("build scoped request: %w", err)
	}

	report := func(status int) {
		if !isStaleTokenStatus(op.Kind, status) {
			return
		}
		slog.Warn("scoped token rejected by backend, invalidating", "status", status, "token_id", token.ID)
		s.tokens.Invalidate(token)
	}

	return Prepared{Request: req, Report: report}, nil
}

// isStaleTokenStatus reports statuses that mean the token no longer grants
// access. A listing under a revoked PAR answers 404, an object may simply
// not exist.
func isStaleTokenStatus(kind OperationKind, status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	case http.StatusNotFound:
		return kind == OpList
	default:
		return false
	}
}

// GatewayConfig holds configuration options for Gateway.
type GatewayConfig struct {
	Timeout time.Duration // Timeout for each outbound call (default: 30s)
}

// Gateway forwards downloads and listings to object storage and streams the
// results back.
type Gateway struct {
	strategy Strategy
	client   Doer
	timeout  time.Duration
}

func NewGateway(strategy Strategy, client Doer, cfg GatewayConfig) (*Gateway, error) {
	if strategy == nil || client == nil {
		return nil, fmt.Errorf("new gateway: strategy and client are required: %w", ErrMisconfigured)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultBackendTimeout
	}
	return &Gateway{strategy: strategy, client: client, timeout: timeout}, nil
}

// Strategy returns the name of the configured strategy.
func (g *Gateway) Strategy() string {
	return g.strategy.Name()
}

// Download fetches the object stored under key.
//
// The content type is taken from the key's extension, then from the
// backend's Content-Type when it is specific, then sniffed from the first
// bytes of the body.
//
// Error types returned:
//   - ErrInvalidInput: key fails IsValidKey
//   - *BackendError: backend answered with a non-success status
//   - ErrNoCredentialFound, ErrProvider: credential resolution failed
//   - ErrSigningFailed, ErrSecretUnavailable: request could not be authenticated
//   - context.DeadlineExceeded: the outbound call timed out
//
// The caller must close the returned Object's Body.
func (g *Gateway) Download(ctx context.Context, key string) (Object, error) {
	if !IsValidKey(key) {
		return Object{}, fmt.Errorf("download %q: %w", key, ErrInvalidInput)
	}

	op := Operation{Kind: OpDownload, Key: key}
	resp, cancel, err := g.do(ctx, op)
	if err != nil {
		return Object{}, err
	}

	br := bufio.NewReaderSize(resp.Body, sniffLen)
	contentType := detectContentType(key, resp.Header.Get("Content-Type"), br)

	return Object{
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		Body:          &cancelOnClose{Reader: br, closer: resp.Body, cancel: cancel},
	}, nil
}

// List forwards a bucket listing. The payload and its content type are
// passed through untouched.
func (g *Gateway) List(ctx context.Context, opts ListOptions) (Object, error) {
	if opts.Limit < 0 {
		return Object{}, fmt.Errorf("list objects: negative limit: %w", ErrInvalidInput)
	}

	resp, cancel, err := g.do(ctx, Operation{Kind: OpList, Options: opts})
	if err != nil {
		return Object{}, err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = DefaultContentType
	}

	return Object{
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		Body:          &cancelOnClose{Reader: resp.Body, closer: resp.Body, cancel: cancel},
	}, nil
}

// do prepares and sends op. The gateway timeout bounds preparation and the
// wait for response headers; the body is bounded only by ctx. On success the
// caller owns resp.Body and must call release once it is done with it.
func (g *Gateway) do(ctx context.Context, op Operation) (*http.Response, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	callCtx, cancel := context.WithCancelCause(ctx)
	timer := time.AfterFunc(g.timeout, func() { cancel(context.DeadlineExceeded) })
	release := func() {
		timer.Stop()
		cancel(nil)
	}

	prepared, err := g.strategy.Prepare(callCtx, op)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("%s: %w", op, timeoutCause(callCtx, err))
	}

	req := prepared.Request
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := g.client.Do(req)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("%s: %w", op, timeoutCause(callCtx, err))
	}

	if prepared.Report != nil {
		prepared.Report(resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBackendErrorBody))
		_ = resp.Body.Close()
		release()
		return nil, nil, fmt.Errorf("%s: %w", op, &BackendError{StatusCode: resp.StatusCode, Body: body})
	}

	if !timer.Stop() {
		// The timer fired while the headers arrived; callCtx is already gone.
		_ = resp.Body.Close()
		release()
		return nil, nil, fmt.Errorf("%s: %w", op, context.DeadlineExceeded)
	}

	return resp, release, nil
}

// timeoutCause reports err as a timeout when callCtx was cancelled by the
// gateway timer rather than by the caller.
func timeoutCause(callCtx context.Context, err error) error {
	if errors.Is(context.Cause(callCtx), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

// IsTimeout reports whether err came from an outbound call running out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func detectContentType(key, backendType string, br *bufio.Reader) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}

	if isSpecificContentType(backendType) {
		return backendType
	}

	head, _ := br.Peek(sniffLen)
	return mimetype.Detect(head).String()
}

func isSpecificContentType(ct string) bool {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType != "application/octet-stream" && !strings.HasPrefix(mediaType, "binary/")
}

// cancelOnClose releases the outbound call when the body is closed.
type cancelOnClose struct {
	io.Reader
	closer io.Closer
	cancel func()
}

func (c *cancelOnClose) Close() error {
	err := c.closer.Close()
	c.cancel()
	return err
}
