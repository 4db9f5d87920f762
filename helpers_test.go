package docgate_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"

	"github.com/sagarc03/docgate"
	"github.com/stretchr/testify/require"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
	testKeyErr  error
)

func rsaKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	testKeyOnce.Do(func() {
		testKey, testKeyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	require.NoError(t, testKeyErr)

	return testKey
}

func pkcs1PEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

func testCredential(t *testing.T) docgate.Credential {
	t.Helper()

	return docgate.Credential{
		TenancyID:   "ocid1.tenancy.oc1..aaaa",
		UserID:      "ocid1.user.oc1..bbbb",
		Fingerprint: "20:3b:97:13:55:1c:5b:0d:d3:37:d8:50:4e:c5:3a:34",
		PrivateKey:  pkcs1PEM(rsaKey(t)),
		Region:      "us-ashburn-1",
	}
}

func testVerifier(t *testing.T, cred docgate.Credential) *docgate.SignatureVerifier {
	t.Helper()

	pub := &rsaKey(t).PublicKey
	return &docgate.SignatureVerifier{
		KeyLookup: func(keyID string) (*rsa.PublicKey, bool) {
			if keyID != cred.KeyID() {
				return nil, false
			}
			return pub, true
		},
	}
}
