package credential

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sagarc03/docgate"
)

// Provider produces a credential from one source.
//
// Resolve returns found=false with a nil error when the source holds no
// credential. A non-nil error means the source is present but unusable.
type Provider interface {
	Name() string
	Resolve(ctx context.Context) (docgate.Credential, bool, error)
}

// StaticProvider returns a credential fixed at construction. When KeyFile is
// set the private key is read from it on every Resolve.
type StaticProvider struct {
	Credential docgate.Credential
	KeyFile    string
}

func NewStaticProvider(cred docgate.Credential) *StaticProvider {
	return &StaticProvider{Credential: cred}
}

func (p *StaticProvider) Name() string { return "static" }

func (p *StaticProvider) Resolve(ctx context.Context) (docgate.Credential, bool, error) {
	if err := ctx.Err(); err != nil {
		return docgate.Credential{}, false, err
	}

	if p.Credential.IsZero() && p.KeyFile == "" {
		return docgate.Credential{}, false, nil
	}

	cred := p.Credential
	if len(cred.PrivateKey) == 0 {
		if p.KeyFile == "" {
			return docgate.Credential{}, false, fmt.Errorf("static credential: no private key: %w", ErrIncompleteCredential)
		}
		key, err := readKeyFile(p.KeyFile, "")
		if err != nil {
			return docgate.Credential{}, false, fmt.Errorf("static credential: %w", err)
		}
		cred.PrivateKey = key
	}

	return cred, true, nil
}

// readKeyFile reads a PEM key. A leading "~/" is expanded to the home
// directory; other relative paths are resolved against baseDir when set.
func readKeyFile(path, baseDir string) ([]byte, error) {
	resolved, err := expandPath(path, baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyUnreadable, err)
	}

	data, err := os.ReadFile(resolved) //#nosec G304 -- key path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyUnreadable, err)
	}

	return data, nil
}

func expandPath(path, baseDir string) (string, error) {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", path, err)
		}
		return filepath.Join(home, rest), nil
	}

	if !filepath.IsAbs(path) && baseDir != "" {
		return filepath.Join(baseDir, path), nil
	}

	return filepath.Clean(path), nil
}
