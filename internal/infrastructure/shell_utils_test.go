package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellEscape(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"", "''"},
		{"plain", "plain"},
		{"https://youtu.be/abc", "https://youtu.be/abc"},
		{"has space", "'has space'"},
		{"semi;colon", "'semi;colon'"},
		{"it's", `'it'"'"'s'`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShellEscape(tt.in))
		})
	}
}

func TestShellEscapeCommand(t *testing.T) {
	cmd := ShellEscapeCommand("yt-dlp", "-J", "--no-warnings", "https://www.youtube.com/watch?v=abc&t=1")
	assert.Equal(t, "yt-dlp -J --no-warnings 'https://www.youtube.com/watch?v=abc&t=1'", cmd)
}
