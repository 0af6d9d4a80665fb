package ratelimit

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultKey names the optional catch-all entry under rate_limits.
const DefaultKey = "default"

// SourceConfigs maps a repository name or repository type to its limiter config.
type SourceConfigs struct {
	RateLimits map[string]Config `yaml:"rate_limits" json:"rate_limits"`
}

// LoadSourceConfigs reads the rate_limits section out of a YAML document.
// Other top-level keys are ignored.
func LoadSourceConfigs(data []byte) (SourceConfigs, error) {
	var cfgs SourceConfigs
	if err := yaml.Unmarshal(data, &cfgs); err != nil {
		return SourceConfigs{}, err
	}
	for name, cfg := range cfgs.RateLimits {
		if _, err := ParseStrategy(string(cfg.Strategy)); err != nil {
			return SourceConfigs{}, fmt.Errorf("rate_limits.%s: %w", name, err)
		}
		cfgs.RateLimits[name] = cfg.withDefaults()
	}
	return cfgs, nil
}

// Get returns the config stored under key.
func (s SourceConfigs) Get(key string) (Config, error) {
	cfg, ok := s.RateLimits[key]
	if !ok {
		return DefaultConfig(), fmt.Errorf("rate_limits for %s not found", key)
	}
	return cfg.withDefaults(), nil
}

// For returns the first config found among keys, then the default entry,
// then DefaultConfig. Callers pass the repository name before its type.
func (s SourceConfigs) For(keys ...string) Config {
	for _, k := range append(keys, DefaultKey) {
		if k == "" {
			continue
		}
		if cfg, err := s.Get(k); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}
