// Package docgate provides an authenticated gateway in front of an OCI
// Object Storage bucket.
//
// Inbound callers present a bearer token; docgate resolves a signing
// credential through an ordered provider chain, signs outbound requests
// with draft-cavage HTTP signatures (RSA-SHA256), and streams objects and
// listings back to the caller.
//
// # Key Components
//
//   - Gateway: forwards downloads and listings through a Strategy
//   - DirectStrategy: signs every outbound request with RequestSigner
//   - ScopedTokenStrategy: addresses objects through a cached pre-authenticated request
//   - RequestSigner: computes the Authorization, date and body digest headers
//   - TokenStore: persistence for scoped tokens (PostgreSQL, SQLite)
//
// # Example Usage
//
//	signer := docgate.NewRequestSigner(docgate.SignerConfig{})
//	strategy, err := docgate.NewDirectStrategy(bucket, chain, signer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	gw, err := docgate.NewGateway(strategy, http.DefaultClient, docgate.GatewayConfig{})
//	obj, err := gw.Download(ctx, "reports/2024.pdf")
//	defer obj.Body.Close()
//
// See the credential package for providers, tokencache for scoped token
// caching and the http package for the REST surface.
package docgate
