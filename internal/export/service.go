package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/amara-obi/invoicetrack/internal/entity"
	"github.com/amara-obi/invoicetrack/internal/repository"
)

// Service is a tiny façade over repositories that produces XLSX bytes for exports.
type Service struct {
	results repository.ResultRepository
	docs    repository.DocumentRepository
	logger  *slog.Logger
}

func NewService(results repository.ResultRepository, docs repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{results: results, docs: docs, logger: logger}
}

// ExportResultsXLSX returns an XLSX workbook (as bytes) with one row per
// processing result, newest first, capped at limit rows (0 means 1000).
func (s *Service) ExportResultsXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 1000
	}

	results, err := s.results.List(ctx, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Results"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Document",
		"Invoice Number",
		"Vendor",
		"Invoice Date",
		"Due Date",
		"Total Amount",
		"Confidence",
		"Validation Status",
		"Processed At",
		"Total Seconds",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range results {
		filename := ""
		if doc, err := s.docs.GetByID(ctx, r.DocumentID); err == nil {
			filename = doc.Filename
		}

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, filename)
		write(2, deref(r.InvoiceNumber))
		write(3, deref(r.VendorName))
		write(4, formatDate(r.InvoiceDate))
		write(5, formatDate(r.DueDate))
		if r.TotalAmount != nil {
			write(6, *r.TotalAmount)
		} else {
			write(6, "")
		}
		write(7, r.ConfidenceScore)
		write(8, string(r.Status))
		write(9, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		write(10, r.TotalSeconds)

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 32) // document
	_ = f.SetColWidth(sheet, "B", "C", 22) // invoice number, vendor
	_ = f.SetColWidth(sheet, "D", "E", 14) // dates
	_ = f.SetColWidth(sheet, "F", "G", 12) // amount, confidence
	_ = f.SetColWidth(sheet, "H", "H", 18) // validation status
	_ = f.SetColWidth(sheet, "I", "I", 20) // processed at

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// RowsForResults is the tabular form used by the batch CLI, mirroring the
// XLSX layout without the workbook.
func RowsForResults(results []entity.ProcessingResult) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			deref(r.InvoiceNumber),
			deref(r.VendorName),
			formatDate(r.InvoiceDate),
			formatDate(r.DueDate),
			formatAmount(r.TotalAmount),
			fmt.Sprintf("%.2f", r.ConfidenceScore),
		})
	}
	return rows
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func formatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}
