// Package extract turns source files into knowledge document text.
package extract

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/models"
)

// Extracted is the text recovered from one source file.
type Extracted struct {
	Title   string
	Content string
	Format  string
}

type extractFunc func(content []byte) (string, error)

var formats = map[string]extractFunc{
	".txt":  extractPlain,
	".md":   extractPlain,
	".rst":  extractPlain,
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".pptx": extractPPTX,
	".odp":  extractODP,
	".ods":  extractODS,
	".xlsx": extractSpreadsheet,
	".odt":  extractWithCat,
	".rtf":  extractWithCat,
}

// Extractor reads supported document formats into plain text.
type Extractor struct {
	// MaxBytes rejects files larger than this. Zero disables the limit.
	MaxBytes int64
}

// NewExtractor returns an Extractor with a 32 MiB file limit.
func NewExtractor() *Extractor {
	return &Extractor{MaxBytes: 32 << 20}
}

// Supported reports whether files with the given extension can be extracted.
func Supported(path string) bool {
	_, ok := formats[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extract reads the file at path. The title comes from the first markdown
// heading when there is one, otherwise from the file name.
func (e *Extractor) Extract(path string) (*Extracted, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if e.MaxBytes > 0 && info.Size() > e.MaxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", models.ErrValidation, path, info.Size(), e.MaxBytes)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	text, err := e.ExtractBytes(content, ext)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	title := ""
	if ext == ".md" {
		title = markdownTitle(text)
	}
	if title == "" {
		title = titleFromPath(path)
	}
	return &Extracted{Title: title, Content: text, Format: strings.TrimPrefix(ext, ".")}, nil
}

// ExtractBytes extracts text from content in the format named by ext, which
// includes the leading dot.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn, ok := formats[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("%w: unsupported format %q", models.ErrValidation, ext)
	}
	text, err := fn(content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "�"), nil
	}
	return string(content), nil
}

func markdownTitle(text string) string {
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}
