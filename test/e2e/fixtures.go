package e2e

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// FileExtensions are the formats written by WriteFile. PDF, ODT and RTF are
// covered by the extract package tests.
var FileExtensions = []string{
	".txt", ".md", ".rst",
	".docx", ".xlsx", ".pptx", ".odp", ".ods",
}

// WriteFile returns the bytes of a minimal file of the given format holding text.
func WriteFile(ext, text string) ([]byte, error) {
	switch ext {
	case ".txt", ".rst":
		return []byte(text), nil
	case ".md":
		return []byte("# " + text), nil
	case ".docx":
		return zipped("word/document.xml",
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>`+text+`</w:t></w:r></w:p></w:body></w:document>`)
	case ".pptx":
		return zipped("ppt/slides/slide1.xml",
			`<p:sld xmlns:p="p" xmlns:a="a"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>`+text+`</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
	case ".odp":
		return zipped("content.xml",
			`<office:document><office:body><draw:page><draw:text-box><text:p>`+text+`</text:p></draw:text-box></draw:page></office:body></office:document>`)
	case ".ods":
		return zipped("content.xml",
			`<office:document><office:body><table:table><table:table-row><table:table-cell><text:p>`+text+`</text:p></table:table-cell></table:table-row></table:table></office:body></office:document>`)
	case ".xlsx":
		return spreadsheet(text)
	}
	return nil, fmt.Errorf("no fixture writer for %s", ext)
}

func zipped(name, body string) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create(name)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write([]byte(body)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func spreadsheet(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellValue("Sheet1", "A1", text); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
