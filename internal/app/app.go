// Package app wires configuration into the processing components shared by
// the server and the batch CLI.
package app

import (
	"log/slog"
	"time"

	"github.com/NarendraPati1/deIdentifier/internal/config"
	"github.com/NarendraPati1/deIdentifier/internal/detect"
	"github.com/NarendraPati1/deIdentifier/internal/ocr"
	"github.com/NarendraPati1/deIdentifier/internal/parser"
	"github.com/NarendraPati1/deIdentifier/internal/pipeline"
)

// Components are the built processing stages.
type Components struct {
	Pipeline *pipeline.Pipeline
	Oracle   *detect.HTTPOracle // nil in demo mode
	OCRReady bool
}

// Stats returns oracle latency stats, or nil in demo mode.
func (c Components) Stats() *detect.LatencyStats {
	if c.Oracle == nil {
		return nil
	}
	return c.Oracle.Stats()
}

// Close releases oracle connections.
func (c Components) Close() {
	if c.Oracle != nil {
		c.Oracle.Close()
	}
}

// Build constructs the OCR engine, extractor, detector and pipeline from cfg.
func Build(cfg config.Config, log *slog.Logger) Components {
	var c Components

	engine := ocr.NewEngine(ocr.Config{
		Tesseract:     cfg.TesseractBin,
		Pdftoppm:      cfg.PdftoppmBin,
		TesseractLang: cfg.TesseractLang,
		TessdataDir:   cfg.TessdataDir,
		DPI:           cfg.OCRDPI,
	}, log)

	opts := parser.Options{
		PDFOCRMaxPages:        cfg.PDFOCRMaxPages,
		ArchiveMaxMembers:     cfg.ArchiveMaxMembers,
		ArchiveMaxMemberBytes: cfg.ArchiveMaxMemberBytes,
		Logger:                log,
	}
	if engine.Available() {
		opts.OCR = engine
		c.OCRReady = true
	} else {
		log.Warn("OCR binaries not found, images and scanned PDFs will fail",
			"tesseract", cfg.TesseractBin, "pdftoppm", cfg.PdftoppmBin)
	}

	dopts := detect.Options{
		Threshold: cfg.Threshold,
		MaxChars:  cfg.OracleMaxChars,
		Logger:    log,
	}
	if cfg.OracleURL != "" {
		c.Oracle = detect.NewHTTPOracle(cfg.OracleURL, cfg.OracleModel, cfg.OracleAPIKey, cfg.OracleTimeout, detect.NewLatencyStats(time.Hour))
		dopts.Oracle = c.Oracle
		log.Info("detection oracle configured", "url", cfg.OracleURL, "model", cfg.OracleModel)
	} else {
		log.Warn("no detection oracle configured, running in demo mode")
	}

	c.Pipeline = pipeline.New(
		parser.NewExtractor(opts),
		detect.NewAdapter(dopts),
		log,
		pipeline.Config{
			Threshold:   cfg.Threshold,
			Concurrency: cfg.BatchConcurrency,
			SharedCache: cfg.SharedSessionCache,
		},
	)
	return c
}
