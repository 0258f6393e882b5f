package recognition

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Engine produces fragments for a single rasterized image.
type Engine interface {
	RecognizeImage(ctx context.Context, path string) ([]Fragment, error)
}

// EngineConfig configures the tesseract engine.
type EngineConfig struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "eng"
	TessdataDir string
	PSM         int // e.g. 6 is good for a uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default
}

// TesseractEngine shells out to tesseract in TSV mode and turns each text
// line into a fragment with a mean word confidence and a bounding box.
type TesseractEngine struct {
	cfg    EngineConfig
	runner Runner
}

func NewTesseractEngine(cfg EngineConfig, runner Runner) *TesseractEngine {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if runner == nil {
		runner = execRunner{}
	}
	return &TesseractEngine{cfg: cfg, runner: runner}
}

func (e *TesseractEngine) RecognizeImage(ctx context.Context, path string) ([]Fragment, error) {
	args := []string{path, "stdout", "-l", e.cfg.Lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w (%s)", err, truncate(string(errb), 512))
	}
	return parseTSV(string(out)), nil
}

// tesseract TSV columns:
// level page_num block_num par_num line_num word_num left top width height conf text
const (
	tsvLevel = 0
	tsvBlock = 2
	tsvPar   = 3
	tsvLine  = 4
	tsvLeft  = 6
	tsvTop   = 7
	tsvWidth = 8
	tsvHght  = 9
	tsvConf  = 10
	tsvText  = 11

	tsvWordLevel = 5
)

// parseTSV groups word rows into line fragments: text joined with single
// spaces, confidence averaged over words, box spanning the line.
func parseTSV(tsv string) []Fragment {
	type lineAcc struct {
		words []string
		conf  float64
		n     int
		x0    float64
		y0    float64
		x1    float64
		y1    float64
	}

	var (
		frags []Fragment
		acc   *lineAcc
		key   string
	)
	flush := func() {
		if acc == nil || acc.n == 0 {
			return
		}
		frags = append(frags, Fragment{
			Text:       strings.Join(acc.words, " "),
			Confidence: acc.conf / float64(acc.n) / 100.0,
			Position:   boxQuad(acc.x0, acc.y0, acc.x1-acc.x0, acc.y1-acc.y0),
		})
		acc = nil
	}

	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" { // skip header
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		level, err := strconv.Atoi(cols[tsvLevel])
		if err != nil || level != tsvWordLevel {
			continue
		}
		text := strings.TrimSpace(cols[tsvText])
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[tsvConf], 64)
		if err != nil || conf < 0 {
			continue
		}
		left, _ := strconv.ParseFloat(cols[tsvLeft], 64)
		top, _ := strconv.ParseFloat(cols[tsvTop], 64)
		width, _ := strconv.ParseFloat(cols[tsvWidth], 64)
		height, _ := strconv.ParseFloat(cols[tsvHght], 64)

		k := cols[tsvBlock] + "/" + cols[tsvPar] + "/" + cols[tsvLine]
		if acc == nil || k != key {
			flush()
			key = k
			acc = &lineAcc{x0: left, y0: top, x1: left + width, y1: top + height}
		}
		acc.words = append(acc.words, text)
		acc.conf += conf
		acc.n++
		if left < acc.x0 {
			acc.x0 = left
		}
		if top < acc.y0 {
			acc.y0 = top
		}
		if left+width > acc.x1 {
			acc.x1 = left + width
		}
		if top+height > acc.y1 {
			acc.y1 = top + height
		}
	}
	flush()
	return frags
}
