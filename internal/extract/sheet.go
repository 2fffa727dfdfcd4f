package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/lu4p/cat"
	"github.com/xuri/excelize/v2"
)

// extractSpreadsheet renders every sheet row as tab separated cells, which
// keeps FAQ style question/answer sheets readable after extraction.
func extractSpreadsheet(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// extractWithCat handles rtf and odt, whose paragraph markup cat parses well.
func extractWithCat(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("cat: %w", err)
	}
	return text, nil
}
