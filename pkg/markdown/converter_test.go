package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToTelegramHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
		{
			name:     "plain text",
			input:    "just an answer",
			expected: "just an answer",
		},
		{
			name:     "bold and italic",
			input:    "**bold** and *italic*",
			expected: "<b>bold</b> and <i>italic</i>",
		},
		{
			name:     "inline code",
			input:    "run `go version` first",
			expected: "run <code>go version</code> first",
		},
		{
			name:     "list becomes bullets",
			input:    "- one\n- two",
			expected: "• one\n\n• two",
		},
		{
			name:     "heading tag stripped",
			input:    "# Title\n\nbody",
			expected: "Title\n\nbody",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToTelegramHTML(tt.input))
		})
	}
}

func TestToTelegramHTMLCodeBlock(t *testing.T) {
	out := ToTelegramHTML("```go\nfmt.Println(1)\n```")
	assert.Contains(t, out, "<pre>")
	assert.Contains(t, out, "fmt.Println(1)")
	assert.NotContains(t, out, "<code class")
}
