package extract

import (
	"sort"
	"strconv"
	"strings"

	"github.com/amara-obi/invoicetrack/internal/recognition"
)

// LineItem is one parsed invoice line: quantity, description, amount.
type LineItem struct {
	Quantity    int     `json:"quantity"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// Fields holds everything the extractor could recover from a document.
// Absent fields stay nil; dates are kept as the literal matched string and
// parsed into time values only at persistence.
type Fields struct {
	InvoiceNumber *string    `json:"invoice_number"`
	VendorName    *string    `json:"vendor_name"`
	InvoiceDate   *string    `json:"invoice_date"`
	DueDate       *string    `json:"due_date"`
	TotalAmount   *float64   `json:"total_amount"`
	LineItems     []LineItem `json:"line_items"`
}

// Extract recovers structured fields from recognized fragments. It is pure:
// same fragments in, same fields out, and nothing in it can fail. A value
// that will not parse is simply left absent.
func Extract(frags []recognition.Fragment) Fields {
	text := recognition.JoinText(frags)

	var f Fields
	if v, ok := firstMatch(invoiceNumberRule, text); ok {
		f.InvoiceNumber = ptr(v)
	}
	if v, ok := matchVendor(text, frags); ok {
		f.VendorName = ptr(v)
	}
	if v, ok := firstMatch(invoiceDateRule, text); ok {
		f.InvoiceDate = ptr(v)
	}
	if v, ok := firstMatch(dueDateRule, text); ok {
		f.DueDate = ptr(v)
	}
	if v, ok := matchAmount(totalRule, text); ok {
		f.TotalAmount = &v
	}
	f.LineItems = matchLineItems(text)
	return f
}

// matchAmount tries each pattern in order; a capture that fails to parse as
// a number falls through to the next pattern.
func matchAmount(rule FieldRule, text string) (float64, bool) {
	for _, p := range rule.Patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ",", "")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		return v, true
	}
	return 0, false
}

// matchVendor tries labeled vendor rules first, then falls back to a
// positional heuristic: the topmost fragment that looks like a company name
// rather than a document label or a labeled field line.
func matchVendor(text string, frags []recognition.Fragment) (string, bool) {
	if v, ok := firstMatch(vendorRule, text); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v, true
		}
	}
	// only the document header is a plausible place for a vendor name, so
	// order by vertical position and inspect the topmost fragments
	sorted := make([]recognition.Fragment, len(frags))
	copy(sorted, frags)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Top() < sorted[j].Top() })

	const headerFragments = 3
	for i, frag := range sorted {
		if i >= headerFragments {
			break
		}
		cand := strings.TrimSpace(frag.Text)
		if len(cand) <= 5 {
			continue
		}
		if vendorDocTypeLabel.MatchString(cand) || vendorFieldLabel.MatchString(cand) {
			continue
		}
		return cand, true
	}
	return "", false
}

// matchLineItems scans each text line for a qty/description/amount triple.
// Lines that do not fit the shape, or whose numbers fail to parse, are
// skipped silently.
func matchLineItems(text string) []LineItem {
	var items []LineItem
	for _, line := range strings.Split(text, "\n") {
		m := lineItemPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		qty, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		amount, err := strconv.ParseFloat(strings.ReplaceAll(m[3], ",", ""), 64)
		if err != nil {
			continue
		}
		items = append(items, LineItem{
			Quantity:    qty,
			Description: strings.TrimSpace(m[2]),
			Amount:      amount,
		})
	}
	return items
}

func ptr(s string) *string { return &s }
