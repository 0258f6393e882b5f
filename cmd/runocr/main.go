package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/amara-obi/invoicetrack/internal/extract"
	"github.com/amara-obi/invoicetrack/internal/recognition"
)

// runocr recognizes a single file and prints the fragments and extracted
// fields as JSON. Useful for tuning OCR settings without a database.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <file>")
		os.Exit(2)
	}
	path := os.Args[1]
	if _, err := os.Stat(path); err != nil {
		logger.Error("file not readable", "path", path, "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	engine := recognition.NewTesseractEngine(recognition.EngineConfig{
		Tesseract:   os.Getenv("TESSERACT"),
		Lang:        os.Getenv("TESSERACT_LANG"),
		TessdataDir: os.Getenv("TESSDATA_PREFIX"),
		PSM:         envInt("OCR_PSM"),
		OEM:         envInt("OCR_OEM"),
	}, nil)
	recognizer := recognition.NewAdapter(recognition.Config{
		Pdftoppm: os.Getenv("PDFTOPPM"),
		DPI:      envInt("OCR_DPI"),
	}, engine, nil, logger)

	start := time.Now()
	frags := recognizer.Recognize(ctx, path)
	fields := extract.Extract(frags)
	score := extract.Score(fields)

	out := map[string]any{
		"path":        path,
		"fragments":   frags,
		"fields":      fields,
		"confidence":  score,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
}

func envInt(key string) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return 0
}
