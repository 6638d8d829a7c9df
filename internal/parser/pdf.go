package parser

import (
	"context"
	"log/slog"
	"os"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser reads the embedded text layer and falls back to OCR of the
// first pages only when no page carries text.
type PDFParser struct {
	ocr         OCR
	maxOCRPages int
	textLayer   func(path string) ([]string, error)
	log         *slog.Logger
}

func (p *PDFParser) Parse(ctx context.Context, path string) Result {
	pages, err := p.textLayer(path)
	if err != nil {
		return failed("processing PDF: %w", err)
	}

	var texts []string
	for _, page := range pages {
		if t := strings.TrimSpace(page); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) > 0 {
		return ok(strings.Join(texts, "\n\n"))
	}

	p.log.Info("pdf has no text layer, using OCR", "path", path, "max_pages", p.maxOCRPages)
	return p.ocrPages(ctx, path)
}

func (p *PDFParser) ocrPages(ctx context.Context, path string) Result {
	if p.ocr == nil {
		return failed("PDF OCR failed: %w", ErrNoOCR)
	}

	tmpDir, err := os.MkdirTemp("", "deid-pdf-*")
	if err != nil {
		return failed("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	images, err := p.ocr.Rasterize(ctx, path, tmpDir, p.maxOCRPages)
	if err != nil {
		return failed("PDF OCR failed: %w", err)
	}
	if len(images) > p.maxOCRPages {
		images = images[:p.maxOCRPages]
	}

	var texts []string
	for i, img := range images {
		text, err := bestOCR(ctx, p.ocr, img, pdfPagePSMs)
		if err != nil {
			p.log.Warn("page OCR failed", "path", path, "page", i+1, "error", err)
			continue
		}
		if text != "" {
			texts = append(texts, text)
		}
	}
	if err := ctx.Err(); err != nil {
		return failed("PDF OCR failed: %w", err)
	}
	return textOrEmpty(strings.Join(texts, "\n\n"))
}

// pdfTextLayer returns the plain text of every page, in page order.
func pdfTextLayer(path string) ([]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		// Unreadable pages count as blank; if all are, OCR takes over.
		text, err := page.GetPlainText(nil)
		if err != nil {
			text = ""
		}
		pages = append(pages, text)
	}
	return pages, nil
}
