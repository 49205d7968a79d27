package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigCheck(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		status   CheckStatus
		contains string
	}{
		{
			name:     "valid",
			content:  "version: 1\npoll:\n  interval: 2s\n",
			status:   StatusPass,
			contains: "Config file:",
		},
		{
			name:     "invalid thresholds",
			content:  "backlog:\n  warn: 50\n  critical: 10\n",
			status:   StatusFail,
			contains: "backlog",
		},
		{
			name:     "bad yaml",
			content:  "poll: [unclosed\n",
			status:   StatusFail,
			contains: "Failed to load",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ".teleop.yaml")
			assert.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			result := (&ConfigCheck{ConfigPath: path}).Run(context.Background())

			assert.Equal(t, tt.status, result.Status, result.Message)
			assert.Contains(t, result.Message, tt.contains)
		})
	}
}

func TestConfigCheck_MissingExplicitPath(t *testing.T) {
	result := (&ConfigCheck{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")}).Run(context.Background())

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "not found")
}

func TestConfigCheck_NoFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	work := filepath.Join(home, "work")
	assert.NoError(t, os.MkdirAll(work, 0o755))
	t.Setenv("HOME", home)
	t.Chdir(work)

	result := (&ConfigCheck{}).Run(context.Background())

	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "defaults")
}
