package parser

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// fakeOCR returns canned text per page segmentation mode.
type fakeOCR struct {
	byPSM      map[int]string
	errPSM     map[int]error
	pages      int
	recognized []string
	rasterized int
}

func (f *fakeOCR) Recognize(_ context.Context, path string, psm int) (string, error) {
	f.recognized = append(f.recognized, fmt.Sprintf("%s@%d", filepath.Base(path), psm))
	if err := f.errPSM[psm]; err != nil {
		return "", err
	}
	return f.byPSM[psm], nil
}

func (f *fakeOCR) Rasterize(_ context.Context, _, dir string, _ int) ([]string, error) {
	f.rasterized++
	var out []string
	for i := 1; i <= f.pages; i++ {
		out = append(out, filepath.Join(dir, fmt.Sprintf("page-%02d.png", i)))
	}
	return out, nil
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestResolve(t *testing.T) {
	cases := map[string]Format{
		"scan.PNG":     FormatImage,
		"a.jpeg":       FormatImage,
		"x.tiff":       FormatImage,
		"report.pdf":   FormatPDF,
		"letter.DOCX":  FormatWord,
		"old.doc":      FormatWord,
		"sheet.xls":    FormatTabular,
		"data.csv":     FormatTabular,
		"bundle.zip":   FormatArchive,
		"notes.txt":    FormatUnsupported,
		"noext":        FormatUnsupported,
		"archive.tar":  FormatUnsupported,
		"dir/file.Gif": FormatImage,
	}
	for name, want := range cases {
		if got := Resolve(name); got != want {
			t.Errorf("Resolve(%q): expected %q, got %q", name, want, got)
		}
	}
}

func TestExtensions(t *testing.T) {
	exts := Extensions()
	if len(exts) != 13 {
		t.Fatalf("expected 13 extensions, got %d", len(exts))
	}
	for i := 1; i < len(exts); i++ {
		if exts[i-1] > exts[i] {
			t.Fatalf("extensions not sorted: %v", exts)
		}
	}
	if !IsSupportedExtension("A.ZIP") || IsSupportedExtension("a.md") {
		t.Error("IsSupportedExtension mismatch")
	}
}

func TestExtract_Unsupported(t *testing.T) {
	p := writeFile(t, t.TempDir(), "notes.txt", "hello")
	res := NewExtractor(Options{}).Extract(context.Background(), p)
	if res.Status != StatusUnsupported {
		t.Fatalf("expected unsupported, got %q", res.Status)
	}
	if !errors.Is(res.Err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", res.Err)
	}
	if got := res.Message(); got != "Error: Unsupported file format '.txt'" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestExtract_NotFound(t *testing.T) {
	p := filepath.Join(t.TempDir(), "missing.pdf")
	res := NewExtractor(Options{}).Extract(context.Background(), p)
	if res.Status != StatusFailed || !res.Failed() {
		t.Fatalf("expected failed, got %q", res.Status)
	}
	if want := fmt.Sprintf("Error: File '%s' not found", p); res.Message() != want {
		t.Errorf("expected %q, got %q", want, res.Message())
	}
}

func TestExtract_StatErrorIsNotNotFound(t *testing.T) {
	// A regular file used as a directory fails with ENOTDIR, not ENOENT.
	parent := writeFile(t, t.TempDir(), "notes.txt", "x")
	p := filepath.Join(parent, "scan.pdf")
	res := NewExtractor(Options{}).Extract(context.Background(), p)
	if res.Status != StatusFailed {
		t.Fatalf("expected failed, got %q", res.Status)
	}
	if errors.Is(res.Err, ErrNotFound) {
		t.Errorf("expected the underlying stat error, got %v", res.Err)
	}
	if strings.Contains(res.Message(), "not found") {
		t.Errorf("expected no not-found message, got %q", res.Message())
	}
}

func TestImage_LongestVariantWins(t *testing.T) {
	p := writeFile(t, t.TempDir(), "scan.png", "png")
	ocr := &fakeOCR{byPSM: map[int]string{
		6: "short",
		3: "  Patient: John  \n\n\n  Ward 4 \n",
		1: "mid length",
	}}
	res := NewExtractor(Options{OCR: ocr}).Extract(context.Background(), p)
	if !res.OK() {
		t.Fatalf("expected ok, got %q (%v)", res.Status, res.Err)
	}
	if res.Text != "Patient: John\nWard 4" {
		t.Errorf("expected cleaned text, got %q", res.Text)
	}
	if len(ocr.recognized) != 3 {
		t.Errorf("expected 3 OCR passes, got %d", len(ocr.recognized))
	}
}

func TestImage_NoText(t *testing.T) {
	p := writeFile(t, t.TempDir(), "blank.jpg", "jpg")
	ocr := &fakeOCR{byPSM: map[int]string{6: "  \n", 3: ""}, errPSM: map[int]error{1: errors.New("bad")}}
	res := NewExtractor(Options{OCR: ocr}).Extract(context.Background(), p)
	if res.Status != StatusNoText {
		t.Fatalf("expected no_text, got %q", res.Status)
	}
	if res.Message() != "No text found in image" {
		t.Errorf("unexpected message %q", res.Message())
	}
}

func TestImage_AllVariantsFail(t *testing.T) {
	p := writeFile(t, t.TempDir(), "scan.bmp", "bmp")
	boom := errors.New("tesseract missing")
	ocr := &fakeOCR{errPSM: map[int]error{6: boom, 3: boom, 1: boom}}
	res := NewExtractor(Options{OCR: ocr}).Extract(context.Background(), p)
	if res.Status != StatusFailed {
		t.Fatalf("expected failed, got %q", res.Status)
	}
	if !strings.HasPrefix(res.Message(), "Error: OCR Error:") {
		t.Errorf("unexpected message %q", res.Message())
	}
}

func TestPDF_TextLayerSkipsOCR(t *testing.T) {
	p := writeFile(t, t.TempDir(), "doc.pdf", "%PDF")
	ocr := &fakeOCR{pages: 3}
	ex := NewExtractor(Options{OCR: ocr})
	ex.pdfPages = func(string) ([]string, error) {
		return []string{"", "  page two  ", "page three"}, nil
	}
	res := ex.Extract(context.Background(), p)
	if !res.OK() {
		t.Fatalf("expected ok, got %q", res.Status)
	}
	if res.Text != "page two\n\npage three" {
		t.Errorf("unexpected text %q", res.Text)
	}
	if ocr.rasterized != 0 || len(ocr.recognized) != 0 {
		t.Errorf("OCR must not run when a text layer exists")
	}
}

func TestPDF_OCRFallbackCapsPages(t *testing.T) {
	p := writeFile(t, t.TempDir(), "scan.pdf", "%PDF")
	ocr := &fakeOCR{pages: 8, byPSM: map[int]string{6: "line", 3: "longer line"}}
	ex := NewExtractor(Options{OCR: ocr})
	ex.pdfPages = func(string) ([]string, error) { return []string{"", " "}, nil }

	res := ex.Extract(context.Background(), p)
	if !res.OK() {
		t.Fatalf("expected ok, got %q (%v)", res.Status, res.Err)
	}
	if got := strings.Count(res.Text, "longer line"); got != 5 {
		t.Errorf("expected 5 OCR pages, got %d", got)
	}
	if len(ocr.recognized) != 10 {
		t.Errorf("expected 2 passes on 5 pages, got %d", len(ocr.recognized))
	}
}

func TestPDF_NoText(t *testing.T) {
	p := writeFile(t, t.TempDir(), "blank.pdf", "%PDF")
	ex := NewExtractor(Options{OCR: &fakeOCR{pages: 2}})
	ex.pdfPages = func(string) ([]string, error) { return nil, nil }
	res := ex.Extract(context.Background(), p)
	if res.Status != StatusNoText {
		t.Fatalf("expected no_text, got %q", res.Status)
	}
	if res.Message() != "No text could be extracted from this PDF" {
		t.Errorf("unexpected message %q", res.Message())
	}
}

func TestPDF_Corrupt(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bad.pdf", "not a pdf at all")
	res := NewExtractor(Options{}).Extract(context.Background(), p)
	if res.Status != StatusFailed {
		t.Fatalf("expected failed, got %q", res.Status)
	}
	if !strings.HasPrefix(res.Message(), "Error: ") {
		t.Errorf("expected error prefix, got %q", res.Message())
	}
}

func TestCSV_SkipsBlankRows(t *testing.T) {
	body := "Name,Phone,Notes\nJohn Doe,555-1234,\n,,\nJane Roe,,allergic\n"
	p := writeFile(t, t.TempDir(), "people.csv", body)
	res := NewExtractor(Options{}).Extract(context.Background(), p)
	if !res.OK() {
		t.Fatalf("expected ok, got %q (%v)", res.Status, res.Err)
	}
	want := "=== SHEET: Sheet1 ===\n[HEADERS] Name | Phone | Notes\nJohn Doe | 555-1234\nJane Roe | allergic\n"
	if res.Text != want {
		t.Errorf("expected %q, got %q", want, res.Text)
	}
}

func TestWorkbook_AllSheets(t *testing.T) {
	p := filepath.Join(t.TempDir(), "book.xlsx")
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Patient")
	f.SetCellValue("Sheet1", "B1", "MRN")
	f.SetCellValue("Sheet1", "A2", "John Doe")
	f.SetCellValue("Sheet1", "B2", "MRN123")
	f.SetCellValue("Sheet1", "A4", "Jane Roe")
	if _, err := f.NewSheet("Visits"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Visits", "A1", "Date")
	f.SetCellValue("Visits", "A2", "2024-01-02")
	if err := f.SaveAs(p); err != nil {
		t.Fatal(err)
	}
	f.Close()

	res := NewExtractor(Options{}).Extract(context.Background(), p)
	if !res.OK() {
		t.Fatalf("expected ok, got %q (%v)", res.Status, res.Err)
	}
	want := strings.Join([]string{
		"=== SHEET: Sheet1 ===",
		"[HEADERS] Patient | MRN",
		"John Doe | MRN123",
		"Jane Roe",
		"",
		"=== SHEET: Visits ===",
		"[HEADERS] Date",
		"2024-01-02",
		"",
	}, "\n")
	if res.Text != want {
		t.Errorf("expected %q, got %q", want, res.Text)
	}
}

func TestLegacyWorkbook_CorruptFails(t *testing.T) {
	p := writeFile(t, t.TempDir(), "old.xls", "definitely not a BIFF workbook")
	res := NewExtractor(Options{}).Extract(context.Background(), p)
	if res.Status != StatusFailed {
		t.Fatalf("expected failed, got %q", res.Status)
	}
	if res.Format != FormatTabular {
		t.Errorf("expected tabular format, got %q", res.Format)
	}
	if !strings.HasPrefix(res.Message(), "Error: ") {
		t.Errorf("expected error message, got %q", res.Message())
	}
}

func TestLegacyWorkbook_OOXMLUnderXLSName(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "export.xlsx")
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Patient")
	f.SetCellValue("Sheet1", "A2", "John Doe")
	if err := f.SaveAs(src); err != nil {
		t.Fatal(err)
	}
	f.Close()
	p := filepath.Join(dir, "export.xls")
	if err := os.Rename(src, p); err != nil {
		t.Fatal(err)
	}

	res := NewExtractor(Options{}).Extract(context.Background(), p)
	if !res.OK() {
		t.Fatalf("expected ok, got %q (%v)", res.Status, res.Err)
	}
	want := "=== SHEET: Sheet1 ===\n[HEADERS] Patient\nJohn Doe\n"
	if res.Text != want {
		t.Errorf("expected %q, got %q", want, res.Text)
	}
}

func TestOOXMLParagraphs(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:p><w:r><w:t>City</w:t></w:r><w:r><w:t xml:space="preserve"> Hospital</w:t></w:r></w:p>
<w:p><w:r><w:t>  </w:t></w:r></w:p>
<w:p><w:r><w:t>Ward 7</w:t></w:r></w:p>
</w:hdr>`
	paras, err := ooxmlParagraphs(strings.NewReader(xml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paras) != 2 || paras[0] != "City Hospital" || paras[1] != "Ward 7" {
		t.Errorf("unexpected paragraphs %q", paras)
	}
}

func TestDOCX_CorruptFails(t *testing.T) {
	p := writeFile(t, t.TempDir(), "legacy.doc", "\xd0\xcf\x11\xe0 binary word")
	res := NewExtractor(Options{}).Extract(context.Background(), p)
	if res.Status != StatusFailed {
		t.Fatalf("expected failed, got %q", res.Status)
	}
}

func buildZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()
}

func TestArchive_CapAndNestedExclusion(t *testing.T) {
	dir := t.TempDir()
	inner := filepath.Join(dir, "inner.zip")
	buildZip(t, inner, map[string]string{"secret.csv": "h\nnested\n"})
	innerBytes, err := os.ReadFile(inner)
	if err != nil {
		t.Fatal(err)
	}

	members := map[string]string{
		"000-nested.zip": string(innerBytes),
		"readme.txt":     "ignored",
		"../evil.csv":    "h\nescaped\n",
	}
	for i := 1; i <= 12; i++ {
		members[fmt.Sprintf("docs/f%02d.csv", i)] = fmt.Sprintf("h\nrow%02d\n", i)
	}
	p := filepath.Join(dir, "bundle.zip")
	buildZip(t, p, members)

	t.Setenv("TMPDIR", t.TempDir())
	res := NewExtractor(Options{}).Extract(context.Background(), p)
	if !res.OK() {
		t.Fatalf("expected ok, got %q (%v)", res.Status, res.Err)
	}
	if got := strings.Count(res.Text, "=== FILE: "); got != 10 {
		t.Errorf("expected 10 members, got %d", got)
	}
	if !res.Truncated || res.Skipped != 2 {
		t.Errorf("expected truncation of 2, got %v/%d", res.Truncated, res.Skipped)
	}
	if strings.Contains(res.Text, "nested") || strings.Contains(res.Text, "escaped") {
		t.Error("nested or escaping members must not be processed")
	}
	if !strings.HasPrefix(res.Text, "=== FILE: docs/f01.csv ===\n=== SHEET: Sheet1 ===") {
		t.Errorf("unexpected archive text prefix %q", res.Text[:60])
	}
	if strings.Contains(res.Text, "row11") {
		t.Error("members beyond the cap must not be processed")
	}

	left, err := os.ReadDir(os.Getenv("TMPDIR"))
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("expected temp dir cleanup, found %d entries", len(left))
	}
}

func TestArchive_NoUsableMembers(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bundle.zip")
	buildZip(t, p, map[string]string{"a.txt": "x", "b.pdf": "not a pdf"})
	res := NewExtractor(Options{}).Extract(context.Background(), p)
	if res.Status != StatusNoText {
		t.Fatalf("expected no_text, got %q", res.Status)
	}
	if res.Message() != "No text could be extracted from files in ZIP archive" {
		t.Errorf("unexpected message %q", res.Message())
	}
}

func TestArchive_Corrupt(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bad.zip", "PK not really")
	res := NewExtractor(Options{}).Extract(context.Background(), p)
	if res.Status != StatusFailed {
		t.Fatalf("expected failed, got %q", res.Status)
	}
}
