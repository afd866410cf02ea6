package homepage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoaderLoad(t *testing.T) {
	tmpDir := t.TempDir()
	yamlPath := filepath.Join(tmpDir, "bookmarks.yaml")

	yamlContent := `---
- Developer:
    - Github:
        - abbr: GH
          href: https://github.com/
    - Go:
        - href: https://go.dev
- Reading:
    - Hacker News:
        - href: https://news.ycombinator.com
`

	if err := os.WriteFile(yamlPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to create test YAML file: %v", err)
	}

	loader := NewLoader(yamlPath)
	config, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(config) != 2 {
		t.Fatalf("Load() returned %d categories, want 2", len(config))
	}
	dev := config[0]["Developer"]
	if len(dev) != 2 {
		t.Fatalf("Developer has %d bookmarks, want 2", len(dev))
	}
	if got := dev[0]["Github"][0].Abbr; got != "GH" {
		t.Errorf("Github abbr = %q, want GH", got)
	}
}

func TestLoaderLoadWithTemplateVariables(t *testing.T) {
	config, err := Parse([]byte(`---
- Private:
    - Router:
        - href: {{HOMEPAGE_VAR_ROUTER_URL}}
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := config[0]["Private"][0]["Router"][0].Href; got != "" {
		t.Errorf("templated href = %q, want empty", got)
	}
}

func TestLoaderLoadFileNotFound(t *testing.T) {
	loader := NewLoader("/nonexistent/path/bookmarks.yaml")
	if _, err := loader.Load(); err == nil {
		t.Error("Load() with non-existent file should return error")
	}
}

func TestParseInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("- Developer: [unclosed")); err == nil {
		t.Error("Parse() with invalid yaml should return error")
	}
}

func TestStripTemplateVariablesFunc(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "single template variable",
			input:    []byte("url: {{HOMEPAGE_VAR_URL}}"),
			expected: "url: \"\"",
		},
		{
			name:     "no template variables",
			input:    []byte("plain text"),
			expected: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := stripTemplateVariables(tt.input)
			if string(result) != tt.expected {
				t.Errorf("stripTemplateVariables() = %q, want %q", string(result), tt.expected)
			}
		})
	}
}
