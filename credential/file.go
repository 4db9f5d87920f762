package credential

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sagarc03/docgate"
)

// Profile holds one signing identity in a credentials file.
type Profile struct {
	Name        string `yaml:"name"`
	Tenancy     string `yaml:"tenancy"`
	User        string `yaml:"user"`
	Fingerprint string `yaml:"fingerprint"`
	KeyFile     string `yaml:"key_file"`
	Region      string `yaml:"region,omitempty"`
	Default     bool   `yaml:"default,omitempty"`
}

// File holds the full credentials file structure with multiple profiles.
type File struct {
	Profiles []Profile `yaml:"profiles"`
}

// GetProfile returns the profile by name.
// If name is empty, returns the default profile.
func (f *File) GetProfile(name string) (*Profile, error) {
	if len(f.Profiles) == 0 {
		return nil, ErrNoProfiles
	}

	if name == "" {
		return f.GetDefaultProfile()
	}

	for i := range f.Profiles {
		if f.Profiles[i].Name == name {
			return &f.Profiles[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// GetDefaultProfile returns the default profile.
// If no profile is marked as default, returns the first profile.
func (f *File) GetDefaultProfile() (*Profile, error) {
	if len(f.Profiles) == 0 {
		return nil, ErrNoProfiles
	}

	for i := range f.Profiles {
		if f.Profiles[i].Default {
			return &f.Profiles[i], nil
		}
	}

	return &f.Profiles[0], nil
}

// AddProfile adds a new profile. Returns ErrProfileExists if a profile
// with the same name already exists. A profile marked default clears the
// flag on every other profile.
func (f *File) AddProfile(p Profile) error {
	for i := range f.Profiles {
		if f.Profiles[i].Name == p.Name {
			return fmt.Errorf("%w: %s", ErrProfileExists, p.Name)
		}
	}

	if p.Default {
		for i := range f.Profiles {
			f.Profiles[i].Default = false
		}
	}

	f.Profiles = append(f.Profiles, p)
	return nil
}

// ProfileNames returns a list of all profile names.
func (f *File) ProfileNames() []string {
	names := make([]string, len(f.Profiles))
	for i := range f.Profiles {
		names[i] = f.Profiles[i].Name
	}
	return names
}

// Save writes the credentials file to path.
// Creates the parent directory if it doesn't exist.
func (f *File) Save(path string) error {
	cleanPath := filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal credentials file: %w", err)
	}

	if err := os.WriteFile(cleanPath, data, 0o600); err != nil {
		return fmt.Errorf("write credentials file: %w", err)
	}

	return nil
}

// LoadFile loads the credentials file from path.
func LoadFile(path string) (*File, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) //#nosec G304 -- path is operator-provided credentials file
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}

	return &f, nil
}

// DefaultFilePath returns the default credentials file path (~/.docgate/credentials.yaml).
func DefaultFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".docgate", "credentials.yaml")
}

// FileProvider reads a profile from a credentials file. A missing file or
// missing profile is absent; a profile whose key cannot be read is an error.
type FileProvider struct {
	Path    string
	Profile string
}

func NewFileProvider(path, profile string) *FileProvider {
	return &FileProvider{Path: path, Profile: profile}
}

func (p *FileProvider) Name() string {
	if p.Profile == "" {
		return "file"
	}
	return "file:" + p.Profile
}

func (p *FileProvider) Resolve(ctx context.Context) (docgate.Credential, bool, error) {
	if err := ctx.Err(); err != nil {
		return docgate.Credential{}, false, err
	}

	path := p.Path
	if path == "" {
		path = DefaultFilePath()
	}
	path, err := expandPath(path, "")
	if err != nil {
		return docgate.Credential{}, false, err
	}

	f, err := LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return docgate.Credential{}, false, nil
	}
	if err != nil {
		return docgate.Credential{}, false, err
	}

	profile, err := f.GetProfile(p.Profile)
	if errors.Is(err, ErrProfileNotFound) || errors.Is(err, ErrNoProfiles) {
		return docgate.Credential{}, false, nil
	}
	if err != nil {
		return docgate.Credential{}, false, err
	}

	if profile.Tenancy == "" || profile.User == "" || profile.Fingerprint == "" || profile.KeyFile == "" {
		return docgate.Credential{}, false, fmt.Errorf("profile %s: tenancy, user, fingerprint and key_file are required: %w", profile.Name, ErrIncompleteCredential)
	}

	key, err := readKeyFile(profile.KeyFile, filepath.Dir(path))
	if err != nil {
		return docgate.Credential{}, false, fmt.Errorf("profile %s: %w", profile.Name, err)
	}

	return docgate.Credential{
		TenancyID:   profile.Tenancy,
		UserID:      profile.User,
		Fingerprint: profile.Fingerprint,
		PrivateKey:  key,
		Region:      profile.Region,
	}, true, nil
}
