package loaders

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/unidoc/unioffice/v2/document"
)

// DocxExtractor implements the Extractor interface for Word (.docx) files.
type DocxExtractor struct{}

// Extract opens a .docx from memory and concatenates the text of every
// paragraph run, one line per paragraph.
func (e *DocxExtractor) Extract(data []byte) (string, error) {
	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}
	defer doc.Close()

	var textBuilder strings.Builder
	for _, p := range doc.Paragraphs() {
		for _, r := range p.Runs() {
			textBuilder.WriteString(r.Text())
		}
		textBuilder.WriteString("\n")
	}
	return textBuilder.String(), nil
}

var _ Extractor = (*DocxExtractor)(nil)
