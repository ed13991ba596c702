package formatter

import "testing"

func TestFormatValueForDiscord(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		opts     FormatOptions
		expected string
	}{
		{"plain text", "Hello", FormatOptions{}, "Hello"},
		{"entities", "Tom &amp; Jerry", FormatOptions{}, "Tom & Jerry"},
		{"strong", "<strong>Bold</strong>", FormatOptions{}, "**Bold**"},
		{"strong inside paragraph", "<p>Hello <strong>World</strong></p>", FormatOptions{}, "Hello **World**"},
		{"emphasis", "<em>a</em>", FormatOptions{}, "*a*"},
		{"underline", "<u>a</u>", FormatOptions{}, "__a__"},
		{"inline code", "<code>x := 1</code>", FormatOptions{}, "`x := 1`"},
		{"anchor with text", `<a href="https://example.com">Link</a>`, FormatOptions{}, "[Link](https://example.com)"},
		{"anchor matching href", `<a href="https://example.com">https://example.com</a>`, FormatOptions{}, "https://example.com"},
		{"anchor without href", `<a>text</a>`, FormatOptions{}, "text"},
		{"image", `<img src="https://example.com/a.png">`, FormatOptions{}, "https://example.com/a.png"},
		{"image without preview", `<img src="https://example.com/a.png">`, FormatOptions{DisableImageLinkPreviews: true}, "<https://example.com/a.png>"},
		{"stripped image", `<img src="https://example.com/a.png">`, FormatOptions{StripImages: true}, ""},
		{"paragraphs", "<p>First</p><p>Second</p>", FormatOptions{}, "First\n\nSecond"},
		{"line break", "line1<br>line2", FormatOptions{}, "line1\nline2"},
		{"list", "<ul><li>One</li><li>Two</li></ul>", FormatOptions{}, "* One\n* Two"},
		{"newlines kept", "Hello\nWorld", FormatOptions{}, "Hello\nWorld"},
		{"newlines ignored", "Hello\nWorld", FormatOptions{IgnoreNewLines: true}, "Hello World"},
		{"script dropped", "<script>alert(1)</script>ok", FormatOptions{}, "ok"},
		{
			"table",
			"<table><tr><td>a</td><td>bb</td></tr><tr><td>ccc</td><td>d</td></tr></table>",
			FormatOptions{FormatTables: true},
			"```\na     bb\nccc   d\n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatValueForDiscord(tt.input, tt.opts)
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}
