package loaders

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Extractor pulls plain text out of one upload format. Extractors work on raw
// bytes because uploads never touch the local filesystem; the artifact goes
// straight to object storage.
type Extractor interface {
	Extract(data []byte) (string, error)
}

// FileKind buckets uploads for filtering and for the search file-type filter.
const (
	KindPDF         = "pdf"
	KindDocument    = "document"
	KindSpreadsheet = "spreadsheet"
	KindText        = "text"
	KindWeb         = "web"
	KindImage       = "image"
	KindVideo       = "video"
	KindAudio       = "audio"
	KindOther       = "other"
)

// Detect classifies an upload by extension, falling back to content sniffing
// when the extension says nothing.
func Detect(filename string, data []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF
	case ".docx", ".doc", ".rtf", ".odt":
		return KindDocument
	case ".xlsx", ".xls", ".csv":
		return KindSpreadsheet
	case ".txt", ".md", ".markdown", ".log":
		return KindText
	case ".html", ".htm":
		return KindWeb
	}

	mime := mimetype.Detect(data)
	switch {
	case strings.HasPrefix(mime.String(), "image/"):
		return KindImage
	case strings.HasPrefix(mime.String(), "video/"):
		return KindVideo
	case strings.HasPrefix(mime.String(), "audio/"):
		return KindAudio
	case strings.HasPrefix(mime.String(), "text/"):
		return KindText
	}
	return KindOther
}

// ForKind returns the extractor for a file kind, or nil when the kind has no
// extractable text. A nil extractor is not an error: the document is stored
// and its indexing state becomes "skipped".
func ForKind(kind string) Extractor {
	switch kind {
	case KindPDF:
		return &PdfExtractor{}
	case KindDocument:
		return &DocxExtractor{}
	case KindSpreadsheet:
		return &XlsxExtractor{}
	case KindWeb:
		return &HTMLExtractor{}
	case KindText:
		return &TxtExtractor{}
	}
	return nil
}
