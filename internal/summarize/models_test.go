package summarize

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModels(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		wantTimeout time.Duration
		wantModels  []string
	}{
		{
			name:        "explicit",
			doc:         "timeout: 5s\nmodels:\n  - b\n  - a\n",
			wantTimeout: 5 * time.Second,
			wantModels:  []string{"b", "a"},
		},
		{
			name:        "blank and duplicate entries dropped",
			doc:         "models:\n  - a\n  - ' '\n  - a\n  - c\n",
			wantTimeout: DefaultAttemptTimeout,
			wantModels:  []string{"a", "c"},
		},
		{
			name:        "empty document",
			doc:         "",
			wantTimeout: DefaultAttemptTimeout,
			wantModels:  DefaultModels,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseModels([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.wantTimeout, cfg.Timeout)
			assert.Equal(t, tt.wantModels, cfg.Models)
		})
	}
}

func TestParseModelsRejectsBadYAML(t *testing.T) {
	_, err := ParseModels([]byte("models: [unterminated"))
	assert.Error(t, err)
}

func TestLoadModels(t *testing.T) {
	cfg, err := LoadModels("")
	require.NoError(t, err)
	assert.Equal(t, DefaultModels, cfg.Models)

	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: 3s\nmodels: [x]\n"), 0o600))
	cfg, err = LoadModels(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"x"}, cfg.Models)

	_, err = LoadModels(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
