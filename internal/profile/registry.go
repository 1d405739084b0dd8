package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mainite/videoslim/internal/logger"
)

// fileFormat is the on-disk shape of the profile file.
type fileFormat struct {
	Configs []Profile `yaml:"configs" json:"configs"`
}

// Registry resolves profiles by name from a profile file.
// The file is read on first access; a missing or corrupt file is replaced
// by a single default profile and never causes an error.
type Registry struct {
	path string

	once     sync.Once
	mu       sync.RWMutex
	profiles []Profile
}

// NewRegistry creates a registry backed by the file at path.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// Path returns the backing file path.
func (r *Registry) Path() string {
	return r.path
}

// Resolve returns the profile with exactly the given name.
func (r *Registry) Resolve(name string) (Profile, bool) {
	r.once.Do(r.reload)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Names returns profile names in file order.
func (r *Registry) Names() []string {
	r.once.Do(r.reload)

	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.profiles))
	for _, p := range r.profiles {
		names = append(names, p.Name)
	}
	return names
}

// Reload re-reads the profile file and returns the loaded names.
func (r *Registry) Reload() []string {
	r.once.Do(func() {})
	r.reload()
	return r.Names()
}

// Save writes the loaded profiles back to the profile file.
func (r *Registry) Save() error {
	r.once.Do(r.reload)

	r.mu.RLock()
	profiles := append([]Profile(nil), r.profiles...)
	r.mu.RUnlock()

	return writeFile(r.path, profiles)
}

func (r *Registry) reload() {
	profiles, err := readFile(r.path)
	if err != nil {
		profiles = r.recover(err)
	}

	r.mu.Lock()
	r.profiles = profiles
	r.mu.Unlock()

	logger.Info("Profiles loaded", "path", r.path, "count", len(profiles))
}

// recover synthesizes the default profile after a failed load. A file that
// exists but could not be used is moved aside to .corrupt before the default
// is written in its place.
func (r *Registry) recover(loadErr error) []Profile {
	profiles := []Profile{Default()}

	if errors.Is(loadErr, os.ErrNotExist) {
		logger.Warn("Profile file not found, writing default", "path", r.path)
	} else {
		logger.Warn("Profile file unusable, writing default", "path", r.path, "error", loadErr)
		corruptPath := r.path + ".corrupt"
		if err := os.Rename(r.path, corruptPath); err != nil {
			logger.Warn("Failed to move corrupt profile file aside", "path", r.path, "error", err)
		}
	}

	if err := writeFile(r.path, profiles); err != nil {
		logger.Warn("Failed to persist default profile", "path", r.path, "error", err)
	}
	return profiles
}

// readFile loads and validates every profile in the file. The document may be
// either a mapping with a "configs" list or a bare list of profiles.
func readFile(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("parse profiles: empty document")
	}

	var profiles []Profile
	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		err = root.Decode(&profiles)
	} else {
		var ff fileFormat
		err = root.Decode(&ff)
		profiles = ff.Configs
	}
	if err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}

	if len(profiles) == 0 {
		return nil, fmt.Errorf("no profiles defined")
	}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return profiles, nil
}

// writeFile persists profiles as YAML, or JSON when the path ends in .json.
func writeFile(path string, profiles []Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	ff := fileFormat{Configs: profiles}

	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(ff, "", "    ")
	} else {
		data, err = yaml.Marshal(ff)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
