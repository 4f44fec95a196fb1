package loaders

// TxtExtractor implements the Extractor interface for plain text and
// Markdown files, which need no transformation.
type TxtExtractor struct{}

// Extract returns the bytes as-is.
func (e *TxtExtractor) Extract(data []byte) (string, error) {
	return string(data), nil
}

var _ Extractor = (*TxtExtractor)(nil)
