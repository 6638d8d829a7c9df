package parser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Parser converts one file on disk into text.
type Parser interface {
	Parse(ctx context.Context, path string) Result
}

// OCR recognizes text in images and renders PDFs to images.
type OCR interface {
	Recognize(ctx context.Context, imagePath string, psm int) (string, error)
	Rasterize(ctx context.Context, pdfPath, dir string, maxPages int) ([]string, error)
}

type Options struct {
	OCR                   OCR
	PDFOCRMaxPages        int   // default 5
	ArchiveMaxMembers     int   // default 10
	ArchiveMaxMemberBytes int64 // default 50MB
	Logger                *slog.Logger
}

// Extractor dispatches files to the per-format parsers.
type Extractor struct {
	opts Options
	log  *slog.Logger

	// pdfPages returns the text layer of each page; swappable in tests.
	pdfPages func(path string) ([]string, error)
}

func NewExtractor(opts Options) *Extractor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PDFOCRMaxPages <= 0 {
		opts.PDFOCRMaxPages = 5
	}
	if opts.ArchiveMaxMembers <= 0 {
		opts.ArchiveMaxMembers = 10
	}
	if opts.ArchiveMaxMemberBytes <= 0 {
		opts.ArchiveMaxMemberBytes = 52428800
	}
	return &Extractor{opts: opts, log: opts.Logger, pdfPages: pdfTextLayer}
}

// ForFile returns the appropriate parser for a filename.
func (e *Extractor) ForFile(filename string) (Parser, error) {
	switch Resolve(filename) {
	case FormatImage:
		return &ImageParser{ocr: e.opts.OCR}, nil
	case FormatPDF:
		return &PDFParser{ocr: e.opts.OCR, maxOCRPages: e.opts.PDFOCRMaxPages, textLayer: e.pdfPages, log: e.log}, nil
	case FormatWord:
		return &DOCXParser{}, nil
	case FormatTabular:
		return &TabularParser{}, nil
	case FormatArchive:
		return &ArchiveParser{ex: e}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, strings.ToLower(filepath.Ext(filename)))
	}
}

// Extract turns the file at path into text. It always returns a Result.
func (e *Extractor) Extract(ctx context.Context, path string) (res Result) {
	ext := strings.ToLower(filepath.Ext(path))
	format := Resolve(path)
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("extraction panicked", "path", path, "panic", r)
			res = failed("processing %s: %v", format, r)
		}
		res.Path, res.Ext, res.Format = path, ext, format
	}()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Status: StatusFailed, Err: fmt.Errorf("%w: %s", ErrNotFound, path)}
		}
		return Result{Status: StatusFailed, Err: fmt.Errorf("stat file: %w", err)}
	}

	p, err := e.ForFile(path)
	if err != nil {
		return Result{Status: StatusUnsupported, Err: err}
	}

	res = p.Parse(ctx, path)
	e.log.Debug("extracted text", "path", path, "format", format, "status", res.Status, "chars", len(res.Text))
	return res
}
