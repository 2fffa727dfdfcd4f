package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	contentTypesPart = "[Content_Types].xml"
	docxDefaultPart  = "word/document.xml"
	odfContentPart   = "content.xml"
	docxMainType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	wordText  = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	slideText = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	odfPara   = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odfSpan   = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odfHead   = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
	slideNum  = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

	// Override elements may list PartName and ContentType in either order.
	docxPartA = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainType) + `"`)
	docxPartB = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainType) + `"[^>]+PartName="([^"]+)"`)
)

type archive struct {
	format string
	zr     *zip.Reader
}

func openArchive(format string, content []byte) (*archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%s: not a zip archive: %w", format, err)
	}
	return &archive{format: format, zr: zr}, nil
}

// read returns the named part, or nil when the archive has no such part.
func (a *archive) read(name string) ([]byte, error) {
	for _, f := range a.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%s: open %s: %w", a.format, name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%s: read %s: %w", a.format, name, err)
		}
		return data, nil
	}
	return nil, nil
}

func (a *archive) mustRead(name string) ([]byte, error) {
	data, err := a.read(name)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%s: %s not found", a.format, name)
	}
	return data, nil
}

// collect joins the inner text of every match of every pattern with spaces.
func collect(xml []byte, patterns ...*regexp.Regexp) string {
	var parts []string
	for _, re := range patterns {
		for _, m := range re.FindAllSubmatch(xml, -1) {
			if s := strings.TrimSpace(string(m[1])); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, " ")
}

func extractDOCX(content []byte) (string, error) {
	a, err := openArchive("docx", content)
	if err != nil {
		return "", err
	}
	part := docxDefaultPart
	if types, err := a.read(contentTypesPart); err == nil && types != nil {
		for _, re := range []*regexp.Regexp{docxPartA, docxPartB} {
			if m := re.FindSubmatch(types); m != nil {
				part = strings.TrimPrefix(string(m[1]), "/")
				break
			}
		}
	}
	body, err := a.mustRead(part)
	if err != nil {
		return "", err
	}
	return collect(body, wordText), nil
}

// extractPPTX reads slides in slide number order rather than zip order.
func extractPPTX(content []byte) (string, error) {
	a, err := openArchive("pptx", content)
	if err != nil {
		return "", err
	}
	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range a.zr.File {
		if m := slideNum.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{n: n, name: f.Name})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var texts []string
	for _, s := range slides {
		xml, err := a.mustRead(s.name)
		if err != nil {
			return "", err
		}
		if t := collect(xml, slideText); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n"), nil
}

func extractODP(content []byte) (string, error) {
	return extractODF("odp", content, odfPara, odfSpan, odfHead)
}

func extractODS(content []byte) (string, error) {
	return extractODF("ods", content, odfPara, odfSpan)
}

func extractODF(format string, content []byte, patterns ...*regexp.Regexp) (string, error) {
	a, err := openArchive(format, content)
	if err != nil {
		return "", err
	}
	xml, err := a.mustRead(odfContentPart)
	if err != nil {
		return "", err
	}
	return collect(xml, patterns...), nil
}
