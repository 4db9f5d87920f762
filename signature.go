package docgate

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureVersion   = "1"
	SignatureAlgorithm = "rsa-sha256"
	RequestTarget      = "(request-target)"
	DefaultContentType = "application/json"
	MaxClockSkew       = 5 * time.Minute
)

var (
	// DefaultSignedHeaders are signed on requests without a body.
	DefaultSignedHeaders = []string{"date", RequestTarget, "host"}
	// DefaultBodySignedHeaders are signed on POST, PUT and PATCH requests.
	DefaultBodySignedHeaders = []string{"date", RequestTarget, "host", "content-length", "content-type", "x-content-sha256"}
)

// Signer computes signature headers for outbound requests.
type Signer interface {
	Sign(desc RequestDescriptor, cred Credential) (SignedRequest, error)
}

// SignerConfig configures a RequestSigner. Zero values select the defaults.
type SignerConfig struct {
	Headers     []string
	BodyHeaders []string
	Now         func() time.Time
}

// RequestSigner signs requests with draft-cavage HTTP signatures using
// RSA-SHA256, the scheme used by OCI Object Storage. It is safe for
// concurrent use.
type RequestSigner struct {
	headers     []string
	bodyHeaders []string
	now         func() time.Time
}

// NewRequestSigner creates a signer from cfg.
func NewRequestSigner(cfg SignerConfig) *RequestSigner {
	s := &RequestSigner{
		headers:     normalizeHeaderNames(cfg.Headers),
		bodyHeaders: normalizeHeaderNames(cfg.BodyHeaders),
		now:         cfg.Now,
	}
	if len(s.headers) == 0 {
		s.headers = DefaultSignedHeaders
	}
	if len(s.bodyHeaders) == 0 {
		s.bodyHeaders = DefaultBodySignedHeaders
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Sign signs desc with cred, reading the clock once for the date header.
func (s *RequestSigner) Sign(desc RequestDescriptor, cred Credential) (SignedRequest, error) {
	return s.SignAt(desc, cred, s.now())
}

// SignAt signs desc with cred as of t. The result depends only on its
// inputs. On error desc is left untouched and no SignedRequest is returned.
func (s *RequestSigner) SignAt(desc RequestDescriptor, cred Credential, t time.Time) (SignedRequest, error) {
	if desc.URL == nil {
		return SignedRequest{}, fmt.Errorf("sign: missing url: %w", ErrInvalidInput)
	}

	key, err := parsePrivateKey(cred)
	if err != nil {
		return SignedRequest{}, err
	}

	names := s.headersFor(desc.Method)
	computed := computeHeaders(desc, t)

	values := make([]string, len(names))
	for i, name := range names {
		value, ok := computed[name]
		if !ok {
			value = desc.Header.Get(name)
		}
		if value == "" {
			return SignedRequest{}, fmt.Errorf("sign: header %q has no value: %w", name, ErrUnsupportedHeader)
		}
		if !isSignableValue(value) {
			return SignedRequest{}, fmt.Errorf("sign: header %q cannot be encoded: %w", name, ErrUnsupportedHeader)
		}
		values[i] = value
	}

	signingString := buildSigningString(names, values)
	digest := sha256.Sum256([]byte(signingString))

	sig, err := rsa.SignPKCS1v15(nil, key, crypto.SHA256, digest[:])
	if err != nil {
		return SignedRequest{}, fmt.Errorf("sign: %w: %w", ErrMalformedCredential, err)
	}

	signature := http.Header{}
	signature.Set("Date", computed["date"])
	if hasBody(desc.Method) {
		signature.Set("Content-Length", computed["content-length"])
		signature.Set("Content-Type", computed["content-type"])
		signature.Set("X-Content-Sha256", computed["x-content-sha256"])
	}
	signature.Set("Authorization", formatAuthorization(cred.KeyID(), names, base64.StdEncoding.EncodeToString(sig)))

	return SignedRequest{descriptor: desc, signature: signature}, nil
}

func (s *RequestSigner) headersFor(method string) []string {
	if hasBody(method) {
		return s.bodyHeaders
	}
	return s.headers
}

func hasBody(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

// computeHeaders derives the values the signer owns. Values for other
// signed headers come from the descriptor.
func computeHeaders(desc RequestDescriptor, t time.Time) map[string]string {
	h := map[string]string{
		"date":        t.UTC().Format(http.TimeFormat),
		"host":        desc.URL.Host,
		RequestTarget: requestTarget(desc.Method, desc.URL),
	}

	if hasBody(desc.Method) {
		contentType := desc.Header.Get("Content-Type")
		if contentType == "" {
			contentType = DefaultContentType
		}
		bodyHash := sha256.Sum256(desc.Body)
		h["content-length"] = strconv.Itoa(len(desc.Body))
		h["content-type"] = contentType
		h["x-content-sha256"] = base64.StdEncoding.EncodeToString(bodyHash[:])
	}

	return h
}

func requestTarget(method string, u *url.URL) string {
	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return strings.ToLower(method) + " " + target
}

// buildSigningString joins "name: value" lines in the order the headers are listed.
func buildSigningString(names, values []string) string {
	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(values[i])
	}
	return b.String()
}

func formatAuthorization(keyID string, names []string, signature string) string {
	return fmt.Sprintf(`Signature version="%s",keyId="%s",algorithm="%s",headers="%s",signature="%s"`,
		SignatureVersion, keyID, SignatureAlgorithm, strings.Join(names, " "), signature)
}

// isSignableValue rejects values that would change the meaning of the
// signing string: line breaks, control bytes and non-ASCII.
func isSignableValue(v string) bool {
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c == '\t' {
			continue
		}
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

func normalizeHeaderNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

func parsePrivateKey(cred Credential) (*rsa.PrivateKey, error) {
	if cred.TenancyID == "" || cred.UserID == "" || cred.Fingerprint == "" {
		return nil, fmt.Errorf("parse private key: tenancy, user and fingerprint are required: %w", ErrMalformedCredential)
	}

	block, _ := pem.Decode(cred.PrivateKey)
	if block == nil {
		return nil, fmt.Errorf("parse private key: no PEM block found: %w", ErrMalformedCredential)
	}
	if strings.Contains(block.Headers["Proc-Type"], "ENCRYPTED") {
		return nil, fmt.Errorf("parse private key: encrypted keys are not supported: %w", ErrMalformedCredential)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w: %w", ErrMalformedCredential, err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("parse private key: key is %T, want RSA: %w", parsed, ErrMalformedCredential)
	}

	return key, nil
}

// SignatureVerifier checks signatures produced by RequestSigner. Object
// storage does this on its side; docgate uses it to stand in for the
// backend.
type SignatureVerifier struct {
	// KeyLookup returns the public key registered for a key id.
	KeyLookup func(keyID string) (*rsa.PublicKey, bool)
	// MaxSkew bounds the distance between the date header and Now.
	// Zero selects MaxClockSkew.
	MaxSkew time.Duration
	Now     func() time.Time
}

// Verify verifies the signature carried by r.
//
// The function performs the following validations:
//  1. Authorization header uses the Signature scheme with every parameter present
//  2. Version and algorithm match
//  3. Date header is within MaxSkew of now
//  4. Key id is known (via KeyLookup)
//  5. Body digest matches x-content-sha256 when it is signed
//  6. RSA signature over the rebuilt signing string is valid
//
// Returns an error wrapping ErrUnauthorized if verification fails.
func (v *SignatureVerifier) Verify(r *http.Request, body []byte) error {
	params, err := parseAuthorization(r.Header.Get("Authorization"))
	if err != nil {
		return err
	}

	if params["version"] != SignatureVersion {
		return fmt.Errorf("invalid signature version %q: %w", params["version"], ErrUnauthorized)
	}
	if params["algorithm"] != SignatureAlgorithm {
		return fmt.Errorf("invalid algorithm: expected %s, got %s: %w", SignatureAlgorithm, params["algorithm"], ErrUnauthorized)
	}

	date, err := http.ParseTime(r.Header.Get("Date"))
	if err != nil {
		return fmt.Errorf("invalid date header: %w", ErrUnauthorized)
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	skew := v.MaxSkew
	if skew == 0 {
		skew = MaxClockSkew
	}
	if d := now().Sub(date); d > skew || d < -skew {
		return fmt.Errorf("date outside allowed clock skew: %w", ErrUnauthorized)
	}

	if v.KeyLookup == nil {
		return fmt.Errorf("no key lookup configured: %w", ErrUnauthorized)
	}
	pub, found := v.KeyLookup(params["keyId"])
	if !found || pub == nil {
		return fmt.Errorf("unknown key id: %w", ErrUnauthorized)
	}

	names := strings.Fields(params["headers"])
	values := make([]string, len(names))
	for i, name := range names {
		switch name {
		case RequestTarget:
			values[i] = requestTarget(r.Method, r.URL)
		case "host":
			values[i] = r.Host
		case "x-content-sha256":
			sum := sha256.Sum256(body)
			want := base64.StdEncoding.EncodeToString(sum[:])
			if r.Header.Get("X-Content-Sha256") != want {
				return fmt.Errorf("body digest mismatch: %w", ErrUnauthorized)
			}
			values[i] = want
		case "content-length":
			values[i] = strconv.Itoa(len(body))
		default:
			values[i] = r.Header.Get(name)
		}
	}

	sig, err := base64.StdEncoding.DecodeString(params["signature"])
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", ErrUnauthorized)
	}

	digest := sha256.Sum256([]byte(buildSigningString(names, values)))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return fmt.Errorf("signature mismatch: %w", ErrUnauthorized)
	}

	return nil
}

func parseAuthorization(header string) (map[string]string, error) {
	rest, ok := strings.CutPrefix(header, "Signature ")
	if !ok {
		return nil, fmt.Errorf("missing signature authorization: %w", ErrUnauthorized)
	}

	params := make(map[string]string)
	for _, part := range strings.Split(rest, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("invalid authorization parameter: %w", ErrUnauthorized)
		}
		params[k] = strings.Trim(v, `"`)
	}

	for _, required := range []string{"version", "keyId", "algorithm", "headers", "signature"} {
		if params[required] == "" {
			return nil, fmt.Errorf("missing required signature parameters: %w", ErrUnauthorized)
		}
	}

	return params, nil
}
