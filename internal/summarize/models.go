package summarize

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultModels is the fallback order used when no models file is given.
var DefaultModels = []string{
	"gemini-2.0-flash-lite",
	"gemini-2.0-flash",
	"gemini-flash-lite-latest",
}

// ModelsConfig is the optional YAML file that overrides the chain.
//
//	timeout: 12s
//	models:
//	  - gemini-2.0-flash-lite
//	  - gemini-2.0-flash
type ModelsConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Models  []string      `yaml:"models"`
}

// LoadModels reads a models file. An empty path returns the defaults.
func LoadModels(path string) (ModelsConfig, error) {
	cfg := ModelsConfig{Timeout: DefaultAttemptTimeout, Models: append([]string(nil), DefaultModels...)}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ModelsConfig{}, fmt.Errorf("read models file: %w", err)
	}
	return ParseModels(data)
}

// ParseModels decodes a models document and fills in defaults.
func ParseModels(data []byte) (ModelsConfig, error) {
	var raw ModelsConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return ModelsConfig{}, fmt.Errorf("parse models file: %w", err)
	}

	cfg := ModelsConfig{Timeout: raw.Timeout}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAttemptTimeout
	}
	seen := make(map[string]struct{}, len(raw.Models))
	for _, m := range raw.Models {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		cfg.Models = append(cfg.Models, m)
	}
	if len(cfg.Models) == 0 {
		cfg.Models = append([]string(nil), DefaultModels...)
	}
	return cfg, nil
}
