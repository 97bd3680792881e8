package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/kura/internal/models"
	"github.com/xuri/excelize/v2"
)

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	tests := []struct {
		name    string
		ext     string
		content []byte
		want    string
	}{
		{"txt", ".txt", []byte("Hello world\nLine 2"), "Hello world\nLine 2"},
		{"markdown utf8", ".md", []byte("caf\xc3\xa9"), "café"},
		{"invalid utf8", ".rst", []byte("hello\x80world"), "hello\uFFFDworld"},
		{"upper case ext", ".TXT", []byte("shout"), "shout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := e.ExtractBytes(tt.content, tt.ext)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if doc.Text != tt.want {
				t.Errorf("got %q, want %q", doc.Text, tt.want)
			}
			if doc.Pages != nil {
				t.Errorf("plain text should have no pages, got %v", doc.Pages)
			}
		})
	}
}

func TestExtractBytes_unsupported(t *testing.T) {
	e := NewExtractor()
	_, err := e.ExtractBytes([]byte("raw"), ".xyz")
	if !models.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var ve *models.ValidationError
	if !errors.As(err, &ve) || ve.Field != "file" {
		t.Errorf("unexpected error shape: %#v", err)
	}
}

func TestExtract_unsupportedDoesNotReadFile(t *testing.T) {
	_, err := NewExtractor().Extract("/nonexistent/slides.pptx")
	if !models.IsValidation(err) {
		t.Errorf("expected validation error before reading, got %v", err)
	}
}

func TestExtract_nonexistent(t *testing.T) {
	_, err := NewExtractor().Extract("/nonexistent/path/file.txt")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
	if models.IsValidation(err) {
		t.Errorf("missing file should not be a validation error: %v", err)
	}
}

func TestExtract_plainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("# Notes\nbody"), 0600); err != nil {
		t.Fatal(err)
	}
	doc, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.Text != "# Notes\nbody" {
		t.Errorf("got %q", doc.Text)
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	doc, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if doc.Text != "Title\nValue 1\tValue 2" {
		t.Errorf("got %q", doc.Text)
	}
}

func TestExtract_excelMultipleSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.xlsx")
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "alpha")
	if _, err := f.NewSheet("Costs"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Costs", "A1", "beta")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	doc, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.Text != "Sheet1\nalpha\n\nCosts\nbeta" {
		t.Errorf("got %q", doc.Text)
	}
}

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func docxArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractBytes_docxParagraphs(t *testing.T) {
	body := `<w:document ` + wordNS + `><w:body>` +
		`<w:p w:rsidR="00A1"><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>ANNOUNCEMENT</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t xml:space="preserve">Fish &amp; </w:t></w:r><w:r><w:t>chips</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t></w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	content := docxArchive(t, map[string]string{"word/document.xml": body})

	doc, err := NewExtractor().ExtractBytes(content, ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	want := "ANNOUNCEMENT\nFish & chips\na\tb"
	if doc.Text != want {
		t.Errorf("got %q, want %q", doc.Text, want)
	}
}

func TestExtractBytes_docxContentTypes(t *testing.T) {
	for _, override := range []string{
		`<Override PartName="/word/document2.xml" ContentType="` + docxMainContentType + `"/>`,
		`<Override ContentType="` + docxMainContentType + `" PartName="/word/document2.xml"/>`,
	} {
		types := `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Override PartName="/word/styles.xml" ContentType="application/xml"/>` + override + `</Types>`
		content := docxArchive(t, map[string]string{
			docxContentTypes:     types,
			"word/document2.xml": `<w:document ` + wordNS + `><w:body><w:p><w:r><w:t>from part two</w:t></w:r></w:p></w:body></w:document>`,
		})
		doc, err := NewExtractor().ExtractBytes(content, ".docx")
		if err != nil {
			t.Fatalf("ExtractBytes: %v", err)
		}
		if doc.Text != "from part two" {
			t.Errorf("got %q", doc.Text)
		}
	}
}

func TestExtractBytes_docxErrors(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("not a zip"), ".docx"); err == nil {
		t.Error("expected error for non-zip input")
	}
	content := docxArchive(t, map[string]string{"word/other.xml": "<x/>"})
	if _, err := e.ExtractBytes(content, ".docx"); err == nil {
		t.Error("expected error when the main document is missing")
	}
}

func TestSupportedAndExtensions(t *testing.T) {
	if !Supported(".PDF") || !Supported(".docx") {
		t.Error("pdf and docx should be supported")
	}
	if Supported(".pptx") || Supported("") {
		t.Error("pptx and empty extension should not be supported")
	}
	want := []string{".docx", ".md", ".pdf", ".rst", ".txt", ".xlsx"}
	if got := Extensions(); !reflect.DeepEqual(got, want) {
		t.Errorf("Extensions() = %v, want %v", got, want)
	}
}

func TestExtractBytes_pdfInvalid(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("%PDF-garbage"), ".pdf"); err == nil {
		t.Error("expected error for malformed PDF")
	}
}
