package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/zombar/socialpulse/internal/pipeline"
)

// DefaultPath is where Load looks when no config path is given
const DefaultPath = "socialpulse.yaml"

// CompanyProfile describes one company the service tracks. Aliases let
// callers use tickers or short names; feed URLs drive feed collection jobs.
type CompanyProfile struct {
	Name     string   `yaml:"name"`
	Aliases  []string `yaml:"aliases"`
	FeedURLs []string `yaml:"feed_urls"`
}

// Config is the full service configuration: pipeline settings plus the
// registry of known companies.
type Config struct {
	Pipeline  pipeline.Config  `yaml:"pipeline"`
	Companies []CompanyProfile `yaml:"companies"`
}

// Load reads configuration in three layers: pipeline defaults, then the
// yaml file at path (skipped when absent), then environment variables.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{Pipeline: pipeline.DefaultConfig()}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("checking config file %s: %w", path, err)
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("reading config from environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the pipeline settings and the company registry
func (c *Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Companies))
	for i, company := range c.Companies {
		name := strings.TrimSpace(company.Name)
		if name == "" {
			return fmt.Errorf("invalid config: companies[%d] has no name", i)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("invalid config: company %q listed twice", name)
		}
		seen[key] = true
	}
	return nil
}

// Registry builds the lookup structure over the configured companies
func (c *Config) Registry() *Registry {
	return NewRegistry(c.Companies)
}

// Registry resolves company names and aliases to their profiles. A nil
// Registry is valid and resolves nothing.
type Registry struct {
	profiles []CompanyProfile
	byKey    map[string]int
}

func NewRegistry(profiles []CompanyProfile) *Registry {
	r := &Registry{
		profiles: profiles,
		byKey:    make(map[string]int, len(profiles)*2),
	}
	for i, profile := range profiles {
		r.index(profile.Name, i)
		for _, alias := range profile.Aliases {
			r.index(alias, i)
		}
	}
	return r
}

func (r *Registry) index(key string, i int) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return
	}
	if _, taken := r.byKey[key]; !taken {
		r.byKey[key] = i
	}
}

// Profile looks up a company by name or alias, case-insensitively
func (r *Registry) Profile(company string) (CompanyProfile, bool) {
	if r == nil {
		return CompanyProfile{}, false
	}
	i, ok := r.byKey[strings.ToLower(strings.TrimSpace(company))]
	if !ok {
		return CompanyProfile{}, false
	}
	return r.profiles[i], true
}

// Hint returns the canonical company name used as the entity recognition
// context hint, or "" for unknown companies.
func (r *Registry) Hint(company string) string {
	profile, ok := r.Profile(company)
	if !ok {
		return ""
	}
	return profile.Name
}

// FeedURLs returns the configured feeds for a company
func (r *Registry) FeedURLs(company string) []string {
	profile, ok := r.Profile(company)
	if !ok {
		return nil
	}
	return profile.FeedURLs
}

// Companies lists the canonical names in configuration order
func (r *Registry) Companies() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.profiles))
	for _, profile := range r.profiles {
		names = append(names, profile.Name)
	}
	return names
}
