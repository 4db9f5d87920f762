package tokencache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sagarc03/docgate"
)

const (
	DefaultTTL          = time.Hour
	DefaultAccessType   = "AnyObjectRead"
	DefaultNamePrefix   = "docgate"
	DefaultFetchTimeout = 30 * time.Second

	listObjects = "ListObjects"
)

// FetcherConfig holds configuration options for PARFetcher.
type FetcherConfig struct {
	Bucket     docgate.Bucket
	Resolver   docgate.CredentialResolver
	Signer     docgate.Signer
	Client     docgate.Doer
	TTL        time.Duration // Lifetime requested for each PAR (default: 1h)
	AccessType string        // PAR access type (default: AnyObjectRead)
	NamePrefix string        // PAR names are <prefix>-<uuid> (default: docgate)
	Timeout    time.Duration // Timeout for the creation request (default: 30s)
	Now        func() time.Time
}

// PARFetcher creates pre-authenticated requests on the bucket.
type PARFetcher struct {
	bucket     docgate.Bucket
	resolver   docgate.CredentialResolver
	signer     docgate.Signer
	client     docgate.Doer
	ttl        time.Duration
	accessType string
	namePrefix string
	timeout    time.Duration
	now        func() time.Time
}

func NewPARFetcher(cfg FetcherConfig) (*PARFetcher, error) {
	if err := cfg.Bucket.Validate(); err != nil {
		return nil, fmt.Errorf("new par fetcher: %w", err)
	}
	if cfg.Resolver == nil || cfg.Signer == nil || cfg.Client == nil {
		return nil, fmt.Errorf("new par fetcher: resolver, signer and client are required: %w", docgate.ErrMisconfigured)
	}

	f := &PARFetcher{
		bucket:     cfg.Bucket,
		resolver:   cfg.Resolver,
		signer:     cfg.Signer,
		client:     cfg.Client,
		ttl:        cfg.TTL,
		accessType: cfg.AccessType,
		namePrefix: cfg.NamePrefix,
		timeout:    cfg.Timeout,
		now:        cfg.Now,
	}
	if f.ttl <= 0 {
		f.ttl = DefaultTTL
	}
	if f.accessType == "" {
		f.accessType = DefaultAccessType
	}
	if f.namePrefix == "" {
		f.namePrefix = DefaultNamePrefix
	}
	if f.timeout <= 0 {
		f.timeout = DefaultFetchTimeout
	}
	if f.now == nil {
		f.now = time.Now
	}

	return f, nil
}

type parRequest struct {
	Name                string    `json:"name"`
	AccessType          string    `json:"accessType"`
	TimeExpires         time.Time `json:"timeExpires"`
	BucketListingAction string    `json:"bucketListingAction,omitempty"`
}

type parResponse struct {
	ID          string    `json:"id"`
	AccessURI   string    `json:"accessUri"`
	TimeCreated time.Time `json:"timeCreated"`
	TimeExpires time.Time `json:"timeExpires"`
}

// Fetch creates a new PAR. Every error wraps docgate.ErrSecretUnavailable.
func (f *PARFetcher) Fetch(ctx context.Context) (docgate.ScopedToken, error) {
	token, err := f.fetch(ctx)
	if err != nil {
		return docgate.ScopedToken{}, fmt.Errorf("%w: %w", docgate.ErrSecretUnavailable, err)
	}
	return token, nil
}

func (f *PARFetcher) fetch(ctx context.Context) (docgate.ScopedToken, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cred, err := f.resolver.Resolve(ctx)
	if err != nil {
		return docgate.ScopedToken{}, fmt.Errorf("resolve credential: %w", err)
	}

	now := f.now().UTC()
	reqBody := parRequest{
		Name:        f.namePrefix + "-" + uuid.NewString(),
		AccessType:  f.accessType,
		TimeExpires: now.Add(f.ttl).Truncate(time.Second),
	}
	if strings.HasPrefix(f.accessType, "AnyObject") {
		reqBody.BucketListingAction = listObjects
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return docgate.ScopedToken{}, fmt.Errorf("marshal par request: %w", err)
	}

	desc, err := docgate.NewRequestDescriptor(http.MethodPost, f.bucket.PARURL(), http.Header{"Content-Type": []string{"application/json"}}, body)
	if err != nil {
		return docgate.ScopedToken{}, err
	}

	signed, err := f.signer.Sign(desc, cred)
	if err != nil {
		return docgate.ScopedToken{}, err
	}

	req, err := signed.NewHTTPRequest(ctx)
	if err != nil {
		return docgate.ScopedToken{}, err
	}
	req.Header.Set(docgate.RequestIDHeader, uuid.NewString())

	resp, err := f.client.Do(req)
	if err != nil {
		return docgate.ScopedToken{}, fmt.Errorf("create par: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return docgate.ScopedToken{}, fmt.Errorf("create par: %w", &docgate.BackendError{StatusCode: resp.StatusCode, Body: errBody})
	}

	var out parResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return docgate.ScopedToken{}, fmt.Errorf("decode par response: %w", err)
	}
	if out.AccessURI == "" {
		return docgate.ScopedToken{}, fmt.Errorf("decode par response: empty access uri: %w", docgate.ErrInternal)
	}

	issued := out.TimeCreated
	if issued.IsZero() {
		issued = now
	}
	expires := out.TimeExpires
	if expires.IsZero() {
		expires = reqBody.TimeExpires
	}

	return docgate.ScopedToken{
		ID:        out.ID,
		AccessURI: out.AccessURI,
		IssuedAt:  issued,
		ExpiresAt: expires,
	}, nil
}
