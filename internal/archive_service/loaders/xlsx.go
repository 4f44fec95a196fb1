package loaders

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XlsxExtractor implements the Extractor interface for Excel (.xlsx) files.
type XlsxExtractor struct{}

// Extract opens an .xlsx from memory and renders each sheet as a Markdown
// table, which both embeds and previews far better than raw cell dumps.
func (e *XlsxExtractor) Extract(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	var out strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil || len(rows) == 0 {
			continue
		}

		out.WriteString("## " + sheetName + "\n\n")
		out.WriteString("| " + strings.Join(rows[0], " | ") + " |\n")
		out.WriteString("|" + strings.Repeat(" --- |", len(rows[0])) + "\n")
		for _, row := range rows[1:] {
			out.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		out.WriteString("\n")
	}
	return out.String(), nil
}

var _ Extractor = (*XlsxExtractor)(nil)
