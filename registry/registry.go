// Package registry loads test-identity manifests. A manifest is the
// caller-side description of the identity tree a run should resolve: labels,
// optional source locations, optional nested children.
package registry

import (
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/testpipe/testpipe/types"
)

// Registry manages the identity manifest for a run target.
type Registry struct {
	config     Config
	identities []*types.Identity
	mu         sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log          log.Logger
	ManifestFile string
}

// Manifest is the on-disk YAML shape.
type Manifest struct {
	Tests []IdentityConfig `yaml:"tests"`
}

// IdentityConfig is one manifest node.
type IdentityConfig struct {
	Label    string           `yaml:"label"`
	Line     *int             `yaml:"line,omitempty"`
	Column   *int             `yaml:"column,omitempty"`
	Children []IdentityConfig `yaml:"children,omitempty"`
}

// NewRegistry creates a registry and loads its manifest.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.ManifestFile == "" {
		return nil, fmt.Errorf("manifest file is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{config: cfg}
	if err := r.loadManifest(cfg.ManifestFile); err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	cfg.Log.Debug("Registry loaded", "len(identities)", len(r.identities))
	return r, nil
}

// GetIdentities returns the manifest's root identities.
func (r *Registry) GetIdentities() []*types.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.identities
}

func (r *Registry) loadManifest(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("parsing manifest: %w", err)
	}
	if len(manifest.Tests) == 0 {
		return fmt.Errorf("manifest %s declares no tests", path)
	}

	identities, err := buildIdentities(manifest.Tests)
	if err != nil {
		return err
	}
	r.identities = identities
	return nil
}

func buildIdentities(configs []IdentityConfig) ([]*types.Identity, error) {
	identities := make([]*types.Identity, 0, len(configs))
	for _, cfg := range configs {
		identity, err := buildIdentity(cfg)
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	return identities, nil
}

func buildIdentity(cfg IdentityConfig) (*types.Identity, error) {
	if cfg.Label == "" {
		return nil, fmt.Errorf("manifest entry missing label")
	}

	var loc *types.Location
	if cfg.Line != nil {
		if *cfg.Line < 1 {
			return nil, fmt.Errorf("identity %q: line must be >= 1", cfg.Label)
		}
		loc = &types.Location{Line: *cfg.Line}
		if cfg.Column != nil && *cfg.Column >= 0 {
			loc.Column = *cfg.Column
		}
	}

	children, err := buildIdentities(cfg.Children)
	if err != nil {
		return nil, fmt.Errorf("identity %q: %w", cfg.Label, err)
	}
	return types.NewIdentity(cfg.Label, loc, children...), nil
}
