package docgate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Credential identifies the principal that signs outbound requests.
// It is an immutable value; PrivateKey holds PEM encoded key material.
type Credential struct {
	TenancyID   string
	UserID      string
	Fingerprint string
	PrivateKey  []byte
	Region      string
}

// KeyID returns the key identifier the backend uses to locate the public key.
func (c Credential) KeyID() string {
	return c.TenancyID + "/" + c.UserID + "/" + c.Fingerprint
}

// IsZero reports whether no field of the credential is set.
func (c Credential) IsZero() bool {
	return c.TenancyID == "" && c.UserID == "" && c.Fingerprint == "" &&
		len(c.PrivateKey) == 0 && c.Region == ""
}

// LogValue keeps key material out of logs.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", c.UserID),
		slog.String("fingerprint", c.Fingerprint),
	)
}

// String keeps key material out of fmt output.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{user=%s fingerprint=%s}", c.UserID, c.Fingerprint)
}

// RequestDescriptor is an unsigned outbound request. Construct it with
// NewRequestDescriptor; it is not modified afterwards.
type RequestDescriptor struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// NewRequestDescriptor parses rawURL and copies header and body so the
// descriptor does not alias caller-owned data.
func NewRequestDescriptor(method, rawURL string, header http.Header, body []byte) (RequestDescriptor, error) {
	if method == "" {
		return RequestDescriptor{}, fmt.Errorf("new request descriptor: empty method: %w", ErrInvalidInput)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return RequestDescriptor{}, fmt.Errorf("new request descriptor: parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return RequestDescriptor{}, fmt.Errorf("new request descriptor: url must be absolute: %w", ErrInvalidInput)
	}

	h := http.Header{}
	if header != nil {
		h = header.Clone()
	}

	var b []byte
	if body != nil {
		b = bytes.Clone(body)
	}

	return RequestDescriptor{
		Method: strings.ToUpper(method),
		URL:    u,
		Header: h,
		Body:   b,
	}, nil
}

// SignedRequest is a RequestDescriptor plus the signature headers computed
// for it. Only a Signer produces one.
type SignedRequest struct {
	descriptor RequestDescriptor
	signature  http.Header
}

// Descriptor returns the request that was signed.
func (s SignedRequest) Descriptor() RequestDescriptor {
	return s.descriptor
}

// SignatureHeader returns a copy of the headers added by the signer.
func (s SignedRequest) SignatureHeader() http.Header {
	return s.signature.Clone()
}

// Header returns the descriptor headers merged with the signature headers.
func (s SignedRequest) Header() http.Header {
	h := s.descriptor.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	for k, v := range s.signature {
		h[k] = append([]string(nil), v...)
	}
	return h
}

// NewHTTPRequest builds the outbound *http.Request for the signed request.
func (s SignedRequest) NewHTTPRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if len(s.descriptor.Body) > 0 {
		body = bytes.NewReader(s.descriptor.Body)
	}

	req, err := http.NewRequestWithContext(ctx, s.descriptor.Method, s.descriptor.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build signed request: %w", err)
	}
	req.Header = s.Header()
	req.Header.Del("Host")
	req.Host = s.descriptor.URL.Host
	if len(s.descriptor.Body) > 0 {
		req.ContentLength = int64(len(s.descriptor.Body))
	}

	return req, nil
}

// ScopedToken is a pre-authenticated request issued by the backend.
// AccessURI is the path prefix that grants access without signing.
type ScopedToken struct {
	ID        string
	AccessURI string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsZero reports whether the token is unset.
func (t ScopedToken) IsZero() bool {
	return t.AccessURI == ""
}

// Expired reports whether the token is past its hard expiry at now.
// A token without a known expiry never expires on its own.
func (t ScopedToken) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt)
}

// ValidAt reports whether the token can still be handed out at now, keeping
// a margin before the hard expiry.
func (t ScopedToken) ValidAt(now time.Time, margin time.Duration) bool {
	if t.IsZero() {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(margin).Before(t.ExpiresAt)
}

// Object is a backend response body streamed back to the caller.
// The caller must close Body.
type Object struct {
	ContentType   string
	ContentLength int64
	Body          io.ReadCloser
}

// ListOptions are optional pass-through listing parameters.
type ListOptions struct {
	Prefix string
	Start  string
	Limit  int
}

// Query encodes the options as listing query parameters.
func (o ListOptions) Query() url.Values {
	q := url.Values{}
	if o.Prefix != "" {
		q.Set("prefix", o.Prefix)
	}
	if o.Start != "" {
		q.Set("start", o.Start)
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	return q
}

// Bucket identifies the object storage bucket behind the gateway.
type Bucket struct {
	Endpoint  string
	Namespace string
	Name      string
}

// BucketFromRegion returns a Bucket using the public endpoint of region.
func BucketFromRegion(region, namespace, name string) Bucket {
	return Bucket{
		Endpoint:  fmt.Sprintf("https://objectstorage.%s.oraclecloud.com", region),
		Namespace: namespace,
		Name:      name,
	}
}

// Validate checks that every identifier is set and the endpoint is absolute.
func (b Bucket) Validate() error {
	if b.Namespace == "" || b.Name == "" {
		return fmt.Errorf("validate bucket: namespace and bucket are required: %w", ErrMisconfigured)
	}
	u, err := url.Parse(b.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("validate bucket: invalid endpoint %q: %w", b.Endpoint, ErrMisconfigured)
	}
	return nil
}

func (b Bucket) base() string {
	return strings.TrimSuffix(b.Endpoint, "/")
}

// ObjectURL returns the signed-access URL for key.
func (b Bucket) ObjectURL(key string) string {
	return b.base() + "/n/" + url.PathEscape(b.Namespace) + "/b/" + url.PathEscape(b.Name) + "/o/" + EscapeKey(key)
}

// ListURL returns the signed-access listing URL.
func (b Bucket) ListURL(opts ListOptions) string {
	u := b.base() + "/n/" + url.PathEscape(b.Namespace) + "/b/" + url.PathEscape(b.Name) + "/o"
	if q := opts.Query(); len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// PARURL returns the URL used to create pre-authenticated requests.
func (b Bucket) PARURL() string {
	return b.base() + "/n/" + url.PathEscape(b.Namespace) + "/b/" + url.PathEscape(b.Name) + "/p/"
}

// ScopedURL composes a URL under a scoped token's access URI. An empty key
// addresses the listing.
func (b Bucket) ScopedURL(token ScopedToken, key string, opts ListOptions) string {
	prefix := b.base() + "/" + strings.TrimPrefix(token.AccessURI, "/")
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if key != "" {
		return prefix + EscapeKey(key)
	}
	if q := opts.Query(); len(q) > 0 {
		return prefix + "?" + q.Encode()
	}
	return prefix
}

// String identifies the bucket in logs and cache keys.
func (b Bucket) String() string {
	return b.Namespace + "/" + b.Name
}
