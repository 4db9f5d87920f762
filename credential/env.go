package credential

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/sagarc03/docgate"
)

// DefaultEnvPrefix is used when EnvProvider.Prefix is empty.
const DefaultEnvPrefix = "OCI_"

// EnvProvider reads a credential from environment variables:
//
//	<prefix>TENANCY, <prefix>USER, <prefix>FINGERPRINT   required
//	<prefix>KEY_FILE or <prefix>KEY                      required, path or inline PEM
//	<prefix>REGION                                       optional
//
// None of them set means absent. Some but not all required variables set is
// an error.
type EnvProvider struct {
	Prefix string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Resolve(ctx context.Context) (docgate.Credential, bool, error) {
	if err := ctx.Err(); err != nil {
		return docgate.Credential{}, false, err
	}

	prefix := p.Prefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	lookup := p.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name string) string {
		v, _ := lookup(prefix + name)
		return strings.TrimSpace(v)
	}

	tenancy := get("TENANCY")
	user := get("USER")
	fingerprint := get("FINGERPRINT")
	keyFile := get("KEY_FILE")
	inlineKey := get("KEY")

	if tenancy == "" && user == "" && fingerprint == "" && keyFile == "" && inlineKey == "" {
		return docgate.Credential{}, false, nil
	}

	var missing []string
	for name, v := range map[string]string{"TENANCY": tenancy, "USER": user, "FINGERPRINT": fingerprint} {
		if v == "" {
			missing = append(missing, prefix+name)
		}
	}
	if keyFile == "" && inlineKey == "" {
		missing = append(missing, prefix+"KEY_FILE")
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return docgate.Credential{}, false, fmt.Errorf("environment credential missing %s: %w", strings.Join(missing, ", "), ErrIncompleteCredential)
	}

	var key []byte
	if inlineKey != "" {
		key = []byte(strings.ReplaceAll(inlineKey, `\n`, "\n"))
	} else {
		data, err := readKeyFile(keyFile, "")
		if err != nil {
			return docgate.Credential{}, false, fmt.Errorf("environment credential: %w", err)
		}
		key = data
	}

	return docgate.Credential{
		TenancyID:   tenancy,
		UserID:      user,
		Fingerprint: fingerprint,
		PrivateKey:  key,
		Region:      get("REGION"),
	}, true, nil
}
