package loaders

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PdfExtractor implements the Extractor interface for PDF files.
type PdfExtractor struct{}

// Extract reads a PDF from memory and returns its plain text.
func (e *PdfExtractor) Extract(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	body, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(body); err != nil {
		return "", fmt.Errorf("failed to buffer PDF text: %w", err)
	}
	return buf.String(), nil
}

var _ Extractor = (*PdfExtractor)(nil)
