package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/amara-obi/invoicetrack/internal/common"
	"github.com/amara-obi/invoicetrack/internal/dispatch"
	"github.com/amara-obi/invoicetrack/internal/export"
	"github.com/amara-obi/invoicetrack/internal/pipeline"
	"github.com/amara-obi/invoicetrack/internal/recognition"
	"github.com/amara-obi/invoicetrack/internal/repository"
	"github.com/amara-obi/invoicetrack/internal/server"
	"github.com/amara-obi/invoicetrack/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(cfg.Server.LogLevel),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, nil)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer db.Close(nil)

	if err := repository.HealthCheck(ctx, db, 3*time.Second); err != nil {
		log.Fatalf("database health: %v", err)
	}
	log.Infow("database health OK", "driver", db.Driver)

	store, err := buildStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	docs := repository.NewDocumentRepository(db, nil)
	queue := repository.NewQueueRepository(db, nil)
	results := repository.NewResultRepository(db, nil)

	engine := recognition.NewTesseractEngine(recognition.EngineConfig{
		Tesseract:   cfg.OCR.Tesseract,
		Lang:        cfg.OCR.TesseractLang,
		TessdataDir: cfg.OCR.TessdataDir,
		PSM:         cfg.OCR.PSM,
		OEM:         cfg.OCR.OEM,
	}, nil)
	recognizer := recognition.NewAdapter(recognition.Config{
		Pdftoppm:        cfg.OCR.Pdftoppm,
		DPI:             cfg.OCR.DPI,
		MaxPages:        cfg.OCR.MaxPages,
		PageParallelism: cfg.OCR.PageParallelism,
		Timeout:         cfg.OCR.Timeout,
	}, engine, nil, nil)

	proc := pipeline.NewProcessor(nil, docs, queue, results, store, recognizer, cfg.Dispatch.ProcessTimeout)

	pool := dispatch.NewProcessorQueue(proc, nil,
		dispatch.WithWorkers(cfg.Dispatch.Workers),
		dispatch.WithQueueSize(cfg.Dispatch.QueueSize),
		dispatch.WithProcessTimeout(cfg.Dispatch.ProcessTimeout),
	)
	dispatcher := dispatch.NewService(nil, docs, queue, pool)

	poller := dispatch.NewPoller(nil, queue, pool, dispatch.PollerConfig{
		Interval:     cfg.Dispatch.PollInterval,
		MinAge:       cfg.Dispatch.PollMinAge,
		ClaimsPerSec: cfg.Dispatch.ClaimsPerSec,
	})
	go poller.Run(ctx)

	exporter := export.NewService(results, docs, nil)

	srv := server.New(logger, cfg.Server, db, docs, queue, results, store, dispatcher, exporter)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http shutdown: %v", err)
	}
	pool.Shutdown(shutdownCtx)
	log.Info("stopped.")
}

func buildStorage(ctx context.Context, cfg *common.Config) (storage.Storage, error) {
	if cfg.Storage.Backend == "s3" {
		return storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
	}
	return storage.NewLocalStorage(cfg.Storage.LocalDir)
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
