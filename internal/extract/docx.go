package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

const (
	docxDefaultDocument = "word/document.xml"
	docxContentTypes    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// <w:p ...>...</w:p>; w:pPr and w:pStyle share the prefix so the
	// trailing [ >] is required.
	docxParagraph = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	docxText      = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	docxTab       = regexp.MustCompile(`<w:tab/>`)
	docxOverride  = regexp.MustCompile(`<Override\s[^>]*/>`)
	docxPartName  = regexp.MustCompile(`PartName="/?([^"]+)"`)
)

// mainDocumentPath resolves the main document part from [Content_Types].xml,
// falling back to word/document.xml.
func mainDocumentPath(zr *zip.Reader) string {
	data, err := readZipFile(zr, docxContentTypes)
	if err != nil {
		return docxDefaultDocument
	}
	for _, override := range docxOverride.FindAllString(string(data), -1) {
		if !strings.Contains(override, `ContentType="`+docxMainContentType+`"`) {
			continue
		}
		if m := docxPartName.FindStringSubmatch(override); m != nil {
			return m[1]
		}
	}
	return docxDefaultDocument
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found", name)
}

// extractDOCX emits one line per paragraph so headings stay on their own
// line for section detection. Runs within a paragraph are concatenated.
func extractDOCX(content []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}
	docXML, err := readZipFile(zr, mainDocumentPath(zr))
	if err != nil {
		return nil, fmt.Errorf("read DOCX: %w", err)
	}

	var lines []string
	for _, para := range docxParagraph.FindAllString(string(docXML), -1) {
		para = docxTab.ReplaceAllString(para, "<w:t>\t</w:t>")
		var b strings.Builder
		for _, m := range docxText.FindAllStringSubmatch(para, -1) {
			b.WriteString(html.UnescapeString(m[1]))
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return &Document{Text: strings.Join(lines, "\n")}, nil
}
