// Package config implements spec.md §6's config persistence hooks
// (load_config/save_config) as a concrete YAML-backed store: the core
// does not dictate the on-disk format, but this daemon build picks one.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/petitboot/petitboot/shared/api"
	"github.com/petitboot/petitboot/shared/ioutil"
)

// Store loads and saves an api.Config; implementations must tolerate a
// missing file by returning NewDefaultConfig.
type Store interface {
	Load() (*api.Config, error)
	Save(c *api.Config) error
}

// YAMLStore persists Config as YAML at Path, following the teacher's
// config-file idiom (lxc/config.LoadConfig/SaveConfig): read-or-default on
// load, atomic temp-file-and-rename on save.
type YAMLStore struct {
	Path string
}

// NewYAMLStore constructs a YAMLStore at path.
func NewYAMLStore(path string) *YAMLStore {
	return &YAMLStore{Path: path}
}

// Load reads Path; a missing file yields api.NewDefaultConfig rather than
// an error, matching spec.md §6's "the core does not dictate the on-disk
// format" — a fresh install has no config file yet.
func (s *YAMLStore) Load() (*api.Config, error) {
	content, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return api.NewDefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", s.Path, err)
	}

	c := api.NewDefaultConfig()
	if err := yaml.Unmarshal(content, c); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", s.Path, err)
	}
	if c.Interfaces == nil {
		c.Interfaces = map[string]api.InterfaceConfig{}
	}

	return c, nil
}

// Save rewrites Path with c's YAML encoding via a temp-file-then-rename,
// so a crash mid-write can't leave a truncated config behind.
func (s *YAMLStore) Save(c *api.Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}

	if err := ioutil.AtomicWriteFile(s.Path, data, 0644); err != nil {
		return fmt.Errorf("config: writing %s: %w", s.Path, err)
	}

	return nil
}
