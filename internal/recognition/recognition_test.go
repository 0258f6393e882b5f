package recognition

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	stdout string
	stderr string
	err    error
	calls  [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return []byte(f.stdout), []byte(f.stderr), f.err
}

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t600\t800\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t20\t60\t12\t90\tInvoice\n" +
	"5\t1\t1\t1\t1\t2\t80\t20\t70\t12\t80\tNumber:\n" +
	"5\t1\t1\t1\t1\t3\t160\t20\t90\t12\t94\tINV-2024-07\n" +
	"5\t1\t1\t1\t2\t1\t10\t40\t50\t12\t70\tTotal:\n" +
	"5\t1\t1\t1\t2\t2\t70\t40\t60\t12\t-1\t\n" +
	"5\t1\t1\t1\t2\t3\t140\t40\t70\t12\t88\t$1,234.56\n"

func TestParseTSVGroupsWordsIntoLines(t *testing.T) {
	frags := parseTSV(sampleTSV)
	require.Len(t, frags, 2)

	assert.Equal(t, "Invoice Number: INV-2024-07", frags[0].Text)
	assert.InDelta(t, 0.88, frags[0].Confidence, 0.0001) // mean of 90, 80, 94
	assert.Equal(t, 10.0, frags[0].Position[0].X)
	assert.Equal(t, 250.0, frags[0].Position[1].X)
	assert.Equal(t, 20.0, frags[0].Top())

	assert.Equal(t, "Total: $1,234.56", frags[1].Text)
	assert.InDelta(t, 0.79, frags[1].Confidence, 0.0001) // conf -1 word skipped
	assert.Equal(t, 40.0, frags[1].Top())
}

func TestParseTSVEmptyAndMalformed(t *testing.T) {
	assert.Empty(t, parseTSV(""))
	assert.Empty(t, parseTSV("header only\n"))
	assert.Empty(t, parseTSV("level\tcols\n5\t1\t1\n"))
}

func TestTesseractEngineArgs(t *testing.T) {
	runner := &fakeRunner{stdout: sampleTSV}
	eng := NewTesseractEngine(EngineConfig{
		Lang:        "eng",
		PSM:         6,
		OEM:         1,
		TessdataDir: "/opt/tessdata",
	}, runner)

	frags, err := eng.RecognizeImage(context.Background(), "/tmp/page.png")
	require.NoError(t, err)
	assert.Len(t, frags, 2)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{
		"tesseract", "/tmp/page.png", "stdout", "-l", "eng",
		"--psm", "6", "--oem", "1", "--tessdata-dir", "/opt/tessdata", "tsv",
	}, runner.calls[0])
}

func TestTesseractEngineError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1"), stderr: "no such file"}
	eng := NewTesseractEngine(EngineConfig{}, runner)

	_, err := eng.RecognizeImage(context.Background(), "/tmp/missing.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such file")
}

type fakeEngine struct {
	frags []Fragment
	err   error
}

func (f fakeEngine) RecognizeImage(context.Context, string) ([]Fragment, error) {
	return f.frags, f.err
}

func TestAdapterImageErrorYieldsEmpty(t *testing.T) {
	a := NewAdapter(Config{}, fakeEngine{err: errors.New("boom")}, &fakeRunner{}, nil)
	frags := a.Recognize(context.Background(), "/tmp/scan.png")
	assert.Empty(t, frags)
}

func TestAdapterImageSuccess(t *testing.T) {
	want := []Fragment{{Text: "hello", Confidence: 0.9, Position: boxQuad(0, 0, 10, 2)}}
	a := NewAdapter(Config{}, fakeEngine{frags: want}, &fakeRunner{}, nil)
	frags := a.Recognize(context.Background(), "/tmp/scan.jpg")
	assert.Equal(t, want, frags)
}

type countingEngine struct {
	calls int
}

func (c *countingEngine) RecognizeImage(context.Context, string) ([]Fragment, error) {
	c.calls++
	return nil, nil
}

func TestAdapterRejectsUnsupportedFormat(t *testing.T) {
	eng := &countingEngine{}
	a := NewAdapter(Config{}, eng, &fakeRunner{}, nil)
	frags := a.Recognize(context.Background(), "/tmp/notes.txt")
	assert.Empty(t, frags)
	assert.Zero(t, eng.calls)
}

func TestAdapterRoutesPDFByFormat(t *testing.T) {
	eng := &countingEngine{}
	a := NewAdapter(Config{}, eng, &fakeRunner{}, nil)
	// the file is missing so the pdf path yields nothing, but the image
	// engine must never be consulted for a pdf extension
	frags := a.Recognize(context.Background(), "/nonexistent/invoice.PDF")
	assert.Empty(t, frags)
	assert.Zero(t, eng.calls)
}

func TestJoinText(t *testing.T) {
	frags := []Fragment{
		{Text: "Invoice Number: INV-1"},
		{Text: "   "},
		{Text: "Total: $9.99"},
	}
	assert.Equal(t, "Invoice Number: INV-1\nTotal: $9.99", JoinText(frags))
	assert.Equal(t, "", JoinText(nil))
}

func TestOffsetPagePreservesReadingOrder(t *testing.T) {
	page2 := offsetPage([]Fragment{
		{Text: "lower", Position: boxQuad(0, 50, 10, 2)},
		{Text: "upper", Position: boxQuad(0, 10, 10, 2)},
	}, 1)

	assert.Equal(t, "upper", page2[0].Text)
	assert.Greater(t, page2[0].Top(), pageYOffset-1)

	page1 := offsetPage([]Fragment{{Text: "first", Position: boxQuad(0, 5, 10, 2)}}, 0)
	assert.Less(t, page1[0].Top(), page2[0].Top())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 8))
	long := strings.Repeat("x", 20)
	assert.Equal(t, strings.Repeat("x", 8)+"...(truncated)", truncate(long, 8))
}
