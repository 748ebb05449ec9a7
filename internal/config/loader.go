package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"redis_browser/pkg"
)

// ProfileFile represents the structure of profiles.yaml
type ProfileFile struct {
	DefaultProfile string                          `yaml:"default_profile,omitempty"`
	Theme          pkg.Theme                       `yaml:"theme,omitempty"`
	Profiles       map[string]pkg.ConnectionConfig `yaml:"profiles"`
}

// LoadProfiles reads a profiles file. A missing file yields an empty set.
func LoadProfiles(path string) (*ProfileFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &ProfileFile{Profiles: map[string]pkg.ConnectionConfig{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading profiles file: %w", err)
	}

	var pf ProfileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}
	if pf.Profiles == nil {
		pf.Profiles = map[string]pkg.ConnectionConfig{}
	}
	for name, cfg := range pf.Profiles {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
	}
	return &pf, nil
}

// Save writes the file atomically through a temp file in the same directory
func (pf *ProfileFile) Save(path string) error {
	data, err := yaml.Marshal(pf)
	if err != nil {
		return fmt.Errorf("error encoding YAML: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating profiles directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".profiles-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing profiles: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("error setting profiles permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing profiles: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Profile returns the named profile, or the default profile when name is empty
func (pf *ProfileFile) Profile(name string) (pkg.ConnectionConfig, error) {
	if name == "" {
		name = pf.DefaultProfile
	}
	if name == "" {
		return pkg.ConnectionConfig{}, fmt.Errorf("%w: no profile named and no default set", pkg.ErrNotFound)
	}
	cfg, ok := pf.Profiles[name]
	if !ok {
		return pkg.ConnectionConfig{}, fmt.Errorf("%w: profile %q", pkg.ErrNotFound, name)
	}
	return cfg, nil
}

// Upsert stores cfg under name. The first profile saved becomes the default.
func (pf *ProfileFile) Upsert(name string, cfg pkg.ConnectionConfig) error {
	if name == "" {
		return fmt.Errorf("%w: profile name cannot be empty", pkg.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if pf.Profiles == nil {
		pf.Profiles = map[string]pkg.ConnectionConfig{}
	}
	pf.Profiles[name] = cfg
	if pf.DefaultProfile == "" {
		pf.DefaultProfile = name
	}
	return nil
}

// Names lists profile names in order
func (pf *ProfileFile) Names() []string {
	names := make([]string, 0, len(pf.Profiles))
	for name := range pf.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
