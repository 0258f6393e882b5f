package recognition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// pageYOffset spaces pages apart on the synthetic vertical axis so
// fragments from page N always sort above fragments from page N+1.
const pageYOffset = 10000.0

// PageCount returns the number of pages in a PDF, or an error if the file
// is not a well-formed PDF.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("page count %s: %w", filepath.Base(path), err)
	}
	return n, nil
}

// ExtractEmbeddedText pulls digitally-native text out of a PDF without OCR.
// Every fragment carries confidence 1.0. Returns fragments in reading order
// with one fragment per text row. A scanned PDF yields few or no fragments.
func ExtractEmbeddedText(path string) ([]Fragment, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var frags []Fragment
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("read pdf page %d: %w", pageNum, err)
		}
		base := float64(pageNum-1) * pageYOffset
		// rows come back top of page first
		for i, row := range rows {
			text := joinRowWords(row.Content)
			if strings.TrimSpace(text) == "" {
				continue
			}
			y := base + float64(i)
			frags = append(frags, Fragment{
				Text:       text,
				Confidence: 1.0,
				Position:   boxQuad(0, y, rowWidth(row.Content), 1),
			})
		}
	}
	return frags, nil
}

// joinRowWords concatenates the word runs on one text row, inserting a
// space wherever the horizontal gap between runs exceeds a fraction of the
// font size. PDF stores words as separate runs with no explicit spaces.
func joinRowWords(words []pdf.Text) string {
	var b strings.Builder
	var prevEnd float64
	for i, w := range words {
		if i > 0 {
			gap := w.X - prevEnd
			if gap > w.FontSize*0.2 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(w.S)
		prevEnd = w.X + w.W
	}
	return b.String()
}

func rowWidth(words []pdf.Text) float64 {
	if len(words) == 0 {
		return 0
	}
	last := words[len(words)-1]
	return last.X + last.W - words[0].X
}

// RasterizePage renders a single PDF page to a PNG under dir using
// pdftoppm and returns the path of the produced image.
func RasterizePage(ctx context.Context, runner Runner, pdftoppm, pdfPath, dir string, page, dpi int) (string, error) {
	if pdftoppm == "" {
		pdftoppm = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 300
	}
	prefix := filepath.Join(dir, fmt.Sprintf("page-%04d", page))
	_, errb, err := runner.Run(ctx, pdftoppm,
		"-f", fmt.Sprintf("%d", page),
		"-l", fmt.Sprintf("%d", page),
		"-r", fmt.Sprintf("%d", dpi),
		"-png", "-singlefile",
		pdfPath, prefix,
	)
	if err != nil {
		return "", fmt.Errorf("pdftoppm page %d: %w (%s)", page, err, truncate(string(errb), 512))
	}
	out := prefix + ".png"
	if _, statErr := os.Stat(out); statErr != nil {
		return "", fmt.Errorf("pdftoppm page %d produced no output: %w", page, statErr)
	}
	return out, nil
}
