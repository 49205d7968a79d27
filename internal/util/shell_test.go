package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellQuote(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", "'simple'"},
		{"/tmp/with space", "'/tmp/with space'"},
		{"it's", `'it'\''s'`},
		{"", "''"},
		{"$TMPDIR", "'$TMPDIR'"},
		{"$(kill -QUIT 1)", "'$(kill -QUIT 1)'"},
		{"`id`", "'`id`'"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShellQuote(tt.input))
		})
	}
}
