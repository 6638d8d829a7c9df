package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Detection oracle. An empty URL runs detection in demo mode.
	OracleURL      string        `yaml:"oracle_url"`
	OracleModel    string        `yaml:"oracle_model"`
	OracleAPIKey   string        `yaml:"oracle_api_key"`
	OracleTimeout  time.Duration `yaml:"oracle_timeout"`
	OracleMaxChars int           `yaml:"oracle_max_chars"`
	Threshold      float64       `yaml:"threshold"`

	// OCR
	TesseractBin   string `yaml:"tesseract_bin"`
	PdftoppmBin    string `yaml:"pdftoppm_bin"`
	TesseractLang  string `yaml:"tesseract_lang"`
	TessdataDir    string `yaml:"tessdata_dir"`
	OCRDPI         int    `yaml:"ocr_dpi"`
	PDFOCRMaxPages int    `yaml:"pdf_ocr_max_pages"`

	// Archives
	ArchiveMaxMembers     int   `yaml:"archive_max_members"`
	ArchiveMaxMemberBytes int64 `yaml:"archive_max_member_bytes"`

	// Worker pool
	WorkerCount      int `yaml:"worker_count"`
	MaxQueueSize     int `yaml:"max_queue_size"`
	BatchConcurrency int `yaml:"batch_concurrency"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// Sessions share one replacement context across their documents.
	SharedSessionCache bool `yaml:"shared_session_cache"`

	// Redaction log. Empty disables persistence.
	StorePath string `yaml:"store_path"`

	LogLevel string `yaml:"log_level"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:                  "8090",
		OracleModel:           "urchade/gliner_multi_pii-v1",
		OracleTimeout:         120 * time.Second,
		Threshold:             0.5,
		TesseractBin:          "tesseract",
		PdftoppmBin:           "pdftoppm",
		TesseractLang:         "eng",
		OCRDPI:                200,
		PDFOCRMaxPages:        5,
		ArchiveMaxMembers:     10,
		ArchiveMaxMemberBytes: 52428800, // 50MB
		WorkerCount:           4,
		MaxQueueSize:          100,
		BatchConcurrency:      4,
		MaxUploadBytes:        104857600, // 100MB
		JobTTL:                1 * time.Hour,
		SharedSessionCache:    true,
		StorePath:             "deidentifier.db",
		LogLevel:              "info",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// DEID_CONFIG_FILE (if any), then environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("DEID_CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("DEID_API_KEY", cfg.APIKey)

	cfg.OracleURL = envOr("ORACLE_URL", cfg.OracleURL)
	cfg.OracleModel = envOr("ORACLE_MODEL", cfg.OracleModel)
	cfg.OracleAPIKey = envOr("ORACLE_API_KEY", cfg.OracleAPIKey)
	cfg.OracleTimeout = envDuration("ORACLE_TIMEOUT", cfg.OracleTimeout)
	cfg.OracleMaxChars = envInt("ORACLE_MAX_CHARS", cfg.OracleMaxChars)
	cfg.Threshold = envFloat("DETECTION_THRESHOLD", cfg.Threshold)

	cfg.TesseractBin = envOr("TESSERACT_BIN", cfg.TesseractBin)
	cfg.PdftoppmBin = envOr("PDFTOPPM_BIN", cfg.PdftoppmBin)
	cfg.TesseractLang = envOr("TESSERACT_LANG", cfg.TesseractLang)
	cfg.TessdataDir = envOr("TESSDATA_DIR", cfg.TessdataDir)
	cfg.OCRDPI = envInt("OCR_DPI", cfg.OCRDPI)
	cfg.PDFOCRMaxPages = envInt("PDF_OCR_MAX_PAGES", cfg.PDFOCRMaxPages)

	cfg.ArchiveMaxMembers = envInt("ARCHIVE_MAX_MEMBERS", cfg.ArchiveMaxMembers)
	cfg.ArchiveMaxMemberBytes = envInt64("ARCHIVE_MAX_MEMBER_BYTES", cfg.ArchiveMaxMemberBytes)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.BatchConcurrency = envInt("BATCH_CONCURRENCY", cfg.BatchConcurrency)

	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)
	cfg.SharedSessionCache = envBool("SESSION_SHARED_CACHE", cfg.SharedSessionCache)
	cfg.StorePath = envOr("STORE_PATH", cfg.StorePath)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)

	cfg.clamp()
	return cfg, nil
}

func (c *Config) clamp() {
	d := Defaults()
	if c.OracleTimeout <= 0 {
		c.OracleTimeout = d.OracleTimeout
	}
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.OCRDPI <= 0 {
		c.OCRDPI = d.OCRDPI
	}
	if c.PDFOCRMaxPages <= 0 {
		c.PDFOCRMaxPages = d.PDFOCRMaxPages
	}
	if c.ArchiveMaxMembers <= 0 {
		c.ArchiveMaxMembers = d.ArchiveMaxMembers
	}
	if c.ArchiveMaxMemberBytes <= 0 {
		c.ArchiveMaxMemberBytes = d.ArchiveMaxMemberBytes
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = d.BatchConcurrency
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.JobTTL <= 0 {
		c.JobTTL = d.JobTTL
	}
}

func (c Config) Validate() error {
	if c.Threshold > 1 {
		return fmt.Errorf("DETECTION_THRESHOLD must be in (0, 1], got %v", c.Threshold)
	}
	if c.OracleURL != "" && !strings.HasPrefix(c.OracleURL, "http://") && !strings.HasPrefix(c.OracleURL, "https://") {
		return fmt.Errorf("ORACLE_URL must be an http(s) URL, got %q", c.OracleURL)
	}
	if c.OracleMaxChars < 0 {
		return fmt.Errorf("ORACLE_MAX_CHARS must not be negative")
	}
	return nil
}

// ValidateServer applies Validate plus the checks only the HTTP server needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("DEID_API_KEY is required")
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
