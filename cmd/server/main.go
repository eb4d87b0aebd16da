package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subi-vn/subiocr/internal/api"
	"github.com/subi-vn/subiocr/internal/config"
	"github.com/subi-vn/subiocr/internal/ocr"
	"github.com/subi-vn/subiocr/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build the OCR engine and, in document mode, the delegation target.
	var engine ocr.Engine
	var remote *ocr.Remote
	var forwarder pipeline.Forwarder
	switch cfg.Engine {
	case "remote":
		remote = ocr.NewRemote(cfg.RemoteURL, cfg.RemoteAPIKey)
		engine = remote
		if cfg.RemoteMode == "document" {
			forwarder = remote
		}
	default:
		engine = ocr.NewTesseract(cfg.RasterDPI)
	}

	stats := ocr.NewStats(time.Hour)
	instrumented := ocr.Instrument(engine, stats)

	proc := pipeline.NewProcessor(instrumented, forwarder, log, pipeline.Options{
		Language:         cfg.Language,
		RasterDPI:        cfg.RasterDPI,
		PdftoppmPath:     cfg.PdftoppmPath,
		OCRTimeout:       cfg.OCRTimeout,
		MaxConcurrentOCR: cfg.MaxConcurrentOCR,
		UseTextLayer:     cfg.PDFTextLayer,
	})

	orch := pipeline.NewOrchestrator(cfg, proc, log)
	orch.Start(ctx)

	srv := api.NewServer(proc, orch, engine, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		// Drain in-flight HTTP requests before closing the job queue so a
		// submit racing shutdown cannot hit a stopped orchestrator.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()

		if remote != nil {
			remote.Close()
		}
	}()

	log.Info("starting subiocr", "port", cfg.Port, "engine", engine.Name(), "language", cfg.Language)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
