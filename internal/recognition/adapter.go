package recognition

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amara-obi/invoicetrack/constants"
)

// Recognizer turns a document file into ordered text fragments. It never
// fails: a document that cannot be read yields an empty slice, and the
// pipeline downstream records the low confidence that follows.
type Recognizer interface {
	Recognize(ctx context.Context, path string) []Fragment
}

// Config tunes the recognition adapter.
type Config struct {
	Pdftoppm        string
	DPI             int
	MaxPages        int // 0 = unlimited
	PageParallelism int // concurrent OCR pages, 0 = 1
	Timeout         time.Duration

	// minEmbeddedChars is the smallest amount of embedded text that is
	// trusted over OCR. Scanned PDFs often carry a stray character or two.
	MinEmbeddedChars int
}

// Adapter routes a file to the right extraction path: embedded PDF text
// when present, tesseract OCR otherwise, with per-page fan-out for
// rasterized PDFs.
type Adapter struct {
	cfg    Config
	engine Engine
	runner Runner
	logger *slog.Logger
}

func NewAdapter(cfg Config, engine Engine, runner Runner, logger *slog.Logger) *Adapter {
	if runner == nil {
		runner = execRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageParallelism <= 0 {
		cfg.PageParallelism = 1
	}
	if cfg.MinEmbeddedChars <= 0 {
		cfg.MinEmbeddedChars = 16
	}
	return &Adapter{cfg: cfg, engine: engine, runner: runner, logger: logger}
}

func (a *Adapter) Recognize(ctx context.Context, path string) []Fragment {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	var (
		frags []Fragment
		err   error
	)
	switch constants.MapExtToFormat(filepath.Ext(path)) {
	case constants.PDF:
		frags, err = a.recognizePDF(ctx, path)
	case constants.IMAGE:
		frags, err = a.engine.RecognizeImage(ctx, path)
	default:
		a.logger.Warn("unsupported file format", "path", path)
		return nil
	}
	if err != nil {
		a.logger.Error("recognition failed", "path", path, "error", err)
		return nil
	}
	return frags
}

func (a *Adapter) recognizePDF(ctx context.Context, path string) ([]Fragment, error) {
	// Digitally-native PDFs carry their own text layer; prefer it.
	embedded, err := ExtractEmbeddedText(path)
	if err != nil {
		a.logger.Warn("embedded text extraction failed, falling back to OCR",
			"path", path, "error", err)
	} else if embeddedChars(embedded) >= a.cfg.MinEmbeddedChars {
		a.logger.Debug("using embedded pdf text", "path", path, "fragments", len(embedded))
		return embedded, nil
	}

	pages, err := PageCount(path)
	if err != nil {
		return nil, err
	}
	if a.cfg.MaxPages > 0 && pages > a.cfg.MaxPages {
		a.logger.Warn("truncating pdf to page limit",
			"path", path, "pages", pages, "max_pages", a.cfg.MaxPages)
		pages = a.cfg.MaxPages
	}

	dir, err := os.MkdirTemp("", "invoicetrack-ocr-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	perPage := make([][]Fragment, pages)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.PageParallelism)
	for p := 1; p <= pages; p++ {
		g.Go(func() error {
			img, err := RasterizePage(gctx, a.runner, a.cfg.Pdftoppm, path, dir, p, a.cfg.DPI)
			if err != nil {
				return err
			}
			frags, err := a.engine.RecognizeImage(gctx, img)
			if err != nil {
				return err
			}
			perPage[p-1] = offsetPage(frags, p-1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Fragment
	for _, frags := range perPage {
		all = append(all, frags...)
	}
	return all, nil
}

// offsetPage shifts a page's fragments down the synthetic vertical axis and
// sorts them top first so multi-page output reads in document order.
func offsetPage(frags []Fragment, pageIndex int) []Fragment {
	base := float64(pageIndex) * pageYOffset
	for i := range frags {
		for j := range frags[i].Position {
			frags[i].Position[j].Y += base
		}
	}
	sort.SliceStable(frags, func(i, j int) bool {
		return frags[i].Top() < frags[j].Top()
	})
	return frags
}

func embeddedChars(frags []Fragment) int {
	n := 0
	for _, f := range frags {
		n += len(strings.TrimSpace(f.Text))
	}
	return n
}
