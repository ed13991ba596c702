package feed

import (
	"strings"
	"testing"
)

const articlePage = `<!DOCTYPE html>
<html>
<head><title>Release notes</title></head>
<body>
	<nav>Navigation</nav>
	<main>
		<article>
			<h1>Release notes</h1>
			<p>This is the main content of the article. It contains several paragraphs of meaningful text that should be extracted by the readability algorithm.</p>
			<p>This is another paragraph with more content. The readability algorithm should identify this as the main content area and extract it properly.</p>
			<p>Here is some more substantial content to ensure we meet the character threshold. This paragraph adds more context and information that would be valuable to readers.</p>
		</article>
	</main>
	<footer><p>Copyright 2024</p></footer>
</body>
</html>`

func TestContentExtractor_Run(t *testing.T) {
	extractor := NewContentExtractor()

	result, err := extractor.Run(articlePage, "https://example.com/post")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(result, "main content of the article") {
		t.Errorf("Expected extracted content to contain main article text, got: %s", result)
	}
}

func TestContentExtractor_Run_Empty(t *testing.T) {
	extractor := NewContentExtractor()

	result, err := extractor.Run("   ", "")
	if err == nil {
		t.Errorf("Expected error for empty page")
	}
	if result != "" {
		t.Errorf("Expected empty result, got: %s", result)
	}
}
