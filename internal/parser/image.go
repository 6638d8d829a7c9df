package parser

import (
	"context"
	"errors"
	"strings"
)

// Page segmentation modes tried in order; the longest output wins.
var (
	imagePSMs   = []int{6, 3, 1}
	pdfPagePSMs = []int{6, 3}
)

// ImageParser handles raster images through OCR.
type ImageParser struct {
	ocr OCR
}

func (p *ImageParser) Parse(ctx context.Context, path string) Result {
	if p.ocr == nil {
		return failed("OCR Error: %w", ErrNoOCR)
	}
	text, err := bestOCR(ctx, p.ocr, path, imagePSMs)
	if err != nil {
		return failed("OCR Error: %w", err)
	}
	return textOrEmpty(text)
}

// bestOCR runs every mode and keeps the longest trimmed output, reduced to
// its non-blank lines. It errors only when every mode failed.
func bestOCR(ctx context.Context, ocr OCR, path string, psms []int) (string, error) {
	var best string
	var errs []error
	for _, psm := range psms {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := ocr.Recognize(ctx, path, psm)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(strings.TrimSpace(text)) > len(strings.TrimSpace(best)) {
			best = text
		}
	}
	if len(errs) == len(psms) {
		return "", errors.Join(errs...)
	}
	return cleanLines(best), nil
}
