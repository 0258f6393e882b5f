package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/amara-obi/invoicetrack/constants"
	"github.com/amara-obi/invoicetrack/internal/entity"
	"github.com/amara-obi/invoicetrack/internal/export"
	"github.com/amara-obi/invoicetrack/internal/pipeline"
	"github.com/amara-obi/invoicetrack/internal/recognition"
	"github.com/amara-obi/invoicetrack/internal/repository"
	"github.com/amara-obi/invoicetrack/internal/storage"
)

// invoice-batch processes a directory of invoices against a throwaway
// in-memory database and writes the extracted fields to an XLSX workbook.

func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir = flag.String("dir", "", "directory of invoice files to process (required)")
		out = flag.String("out", "", "output XLSX path (default <dir>/../invoices.xlsx)")
		dsn = flag.String("dsn", ":memory:", "database DSN (default in-memory SQLite)")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "invoices.xlsx")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	db, err := repository.Open(ctx, repository.Config{DSN: *dsn}, logger)
	if err != nil {
		printError("Error: open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close(logger)

	store, err := storage.NewLocalStorage(filepath.Join(os.TempDir(), "invoice-batch"))
	if err != nil {
		printError("Error: storage: %v\n", err)
		os.Exit(1)
	}

	docs := repository.NewDocumentRepository(db, logger)
	queue := repository.NewQueueRepository(db, logger)
	results := repository.NewResultRepository(db, logger)

	engine := recognition.NewTesseractEngine(recognition.EngineConfig{
		Tesseract: os.Getenv("TESSERACT"),
	}, nil)
	recognizer := recognition.NewAdapter(recognition.Config{
		Pdftoppm: os.Getenv("PDFTOPPM"),
	}, engine, nil, logger)

	proc := pipeline.NewProcessor(logger, docs, queue, results, store, recognizer, 0)

	files, err := collectFiles(*dir)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		printError("Error: no processable files under %s\n", *dir)
		os.Exit(1)
	}

	bar := newProgressBar(len(files), "processing invoices")
	succeeded, failed := 0, 0

	for _, path := range files {
		if err := processOne(ctx, docs, queue, proc, store, path); err != nil {
			logger.Warn("batch item failed", "path", path, "error", err)
			failed++
		} else {
			succeeded++
		}
		_ = bar.Add(1)
	}
	fmt.Println()

	exporter := export.NewService(results, docs, logger)
	xlsxBytes, err := exporter.ExportResultsXLSX(ctx, 0)
	if err != nil {
		printError("Error: export: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0o644); err != nil {
		printError("Error: write %s: %v\n", *out, err)
		os.Exit(1)
	}

	color.Green("processed %d file(s), %d failed", succeeded, failed)
	color.Cyan("results written to %s", *out)
	if failed > 0 {
		os.Exit(1)
	}
}

func collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := constants.NormalizeExt(filepath.Ext(path))
		if _, ok := constants.AllowedExtensions[ext]; ok {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// processOne uploads a file into batch storage, records the document, and
// runs the pipeline synchronously.
func processOne(
	ctx context.Context,
	docs repository.DocumentRepository,
	queue repository.QueueRepository,
	proc *pipeline.Processor,
	store storage.Storage,
	path string,
) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	key := storage.NewKey(filepath.Base(path))
	if err := store.Put(ctx, key, f, info.Size(), ""); err != nil {
		return err
	}

	doc, err := docs.Create(ctx, &entity.Document{
		Filename: filepath.Base(path),
		FilePath: key,
		FileSize: info.Size(),
		Status:   constants.DocumentPending,
	})
	if err != nil {
		return err
	}
	item, err := queue.Create(ctx, doc.ID, 1)
	if err != nil {
		return err
	}

	proc.Run(ctx, doc.ID, item.ID)

	refreshed, err := docs.GetByID(ctx, doc.ID)
	if err != nil {
		return err
	}
	if refreshed.Status != constants.DocumentProcessed {
		latest, lerr := queue.GetByID(ctx, item.ID)
		if lerr == nil && latest.ErrorMessage != nil {
			return fmt.Errorf("%s", *latest.ErrorMessage)
		}
		return fmt.Errorf("document finished in status %s", refreshed.Status)
	}
	return nil
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
