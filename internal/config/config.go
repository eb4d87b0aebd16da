package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth. Empty disables bearer auth on the /api routes.
	APIKey string

	// OCR engine selection: "tesseract" or "remote".
	Engine     string
	Language   string
	OCRTimeout time.Duration

	// Remote delegation endpoint
	RemoteURL    string
	RemoteAPIKey string
	RemoteMode   string // "page" or "document"

	// Rasterization
	RasterDPI    int
	PdftoppmPath string
	PDFTextLayer bool

	// Worker pool
	WorkerCount      int
	MaxQueueSize     int
	MaxConcurrentOCR int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "10000"),

		APIKey: os.Getenv("SUBIOCR_API_KEY"),

		Engine:     envOr("OCR_ENGINE", "tesseract"),
		Language:   envOr("OCR_LANGUAGE", "vie"),
		OCRTimeout: envDuration("OCR_TIMEOUT", 60*time.Second),

		RemoteURL:    os.Getenv("REMOTE_OCR_URL"),
		RemoteAPIKey: os.Getenv("REMOTE_OCR_API_KEY"),
		RemoteMode:   envOr("REMOTE_OCR_MODE", "page"),

		RasterDPI:    envInt("RASTER_DPI", 300),
		PdftoppmPath: envOr("PDFTOPPM_PATH", "pdftoppm"),
		PDFTextLayer: envBool("PDF_TEXT_LAYER", true),

		WorkerCount:      envInt("WORKER_COUNT", 2),
		MaxQueueSize:     envInt("MAX_QUEUE_SIZE", 50),
		MaxConcurrentOCR: envInt("MAX_CONCURRENT_OCR", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.MaxConcurrentOCR <= 0 {
		cfg.MaxConcurrentOCR = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.OCRTimeout <= 0 {
		cfg.OCRTimeout = 60 * time.Second
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	switch c.Engine {
	case "tesseract":
	case "remote":
		if c.RemoteURL == "" {
			return fmt.Errorf("REMOTE_OCR_URL is required when OCR_ENGINE=remote")
		}
	default:
		return fmt.Errorf("OCR_ENGINE must be \"tesseract\" or \"remote\", got %q", c.Engine)
	}
	if c.RemoteMode != "page" && c.RemoteMode != "document" {
		return fmt.Errorf("REMOTE_OCR_MODE must be \"page\" or \"document\", got %q", c.RemoteMode)
	}
	// OCR accuracy degrades sharply below ~200 DPI; 72 is the hard floor.
	if c.RasterDPI < 72 {
		return fmt.Errorf("RASTER_DPI must be at least 72, got %d", c.RasterDPI)
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
