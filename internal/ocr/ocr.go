// Package ocr drives the tesseract and pdftoppm binaries.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"

	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 200
	OEM           int // default 3
}

// Engine runs OCR on images and rasterizes PDFs into page images.
type Engine struct {
	cfg    Config
	runner Runner
	log    *slog.Logger
}

type Option func(*Engine)

// WithRunner replaces the exec-backed runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(e *Engine) { e.runner = r }
}

func NewEngine(cfg Config, log *slog.Logger, opts ...Option) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 200
	}
	if cfg.OEM <= 0 {
		cfg.OEM = 3
	}
	e := &Engine{cfg: cfg, runner: execRunner{log: log}, log: log}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Recognize runs tesseract on one image with the given page segmentation mode
// and returns its raw stdout.
func (e *Engine) Recognize(ctx context.Context, imagePath string, psm int) (string, error) {
	// tesseract <file> stdout -l <lang> --oem N --psm N
	args := []string{imagePath, "stdout", "-l", e.cfg.TesseractLang,
		"--oem", strconv.Itoa(e.cfg.OEM), "--psm", strconv.Itoa(psm)}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract psm %d: %w: %s", psm, err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return string(out), nil
}

// Rasterize renders pages 1..maxPages of pdfPath as PNGs inside dir and
// returns the image paths in page order.
func (e *Engine) Rasterize(ctx context.Context, pdfPath, dir string, maxPages int) ([]string, error) {
	prefix := filepath.Join(dir, "page")
	// pdftoppm -r 200 -png -f 1 -l 5 <in.pdf> <dir/page>
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if maxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(maxPages))
	}
	args = append(args, pdfPath, prefix)
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}

	// pdftoppm zero-pads page numbers by total page count, so a lexical sort
	// is also page order.
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if maxPages > 0 && len(matches) > maxPages {
		matches = matches[:maxPages]
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}
	e.log.Debug("rasterized pdf", "path", pdfPath, "pages", len(matches))
	return matches, nil
}

// Available reports whether both binaries resolve on PATH.
func (e *Engine) Available() bool {
	if _, err := exec.LookPath(e.cfg.Tesseract); err != nil {
		return false
	}
	if _, err := exec.LookPath(e.cfg.Pdftoppm); err != nil {
		return false
	}
	return true
}
