package loaders

import (
	"fmt"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// HTMLExtractor implements the Extractor interface for saved web pages.
type HTMLExtractor struct{}

// Extract converts HTML to Markdown, which keeps headings and emphasis as
// useful context for embedding while dropping markup noise.
func (e *HTMLExtractor) Extract(data []byte) (string, error) {
	markdown, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML: %w", err)
	}
	return markdown, nil
}

var _ Extractor = (*HTMLExtractor)(nil)
