package extract

import "regexp"

// A FieldRule is an ordered list of patterns for one field. Patterns are
// tried in sequence against the full recognized text; the first capture
// that parses wins. Parse failures fall through to the next pattern.
type FieldRule struct {
	Name     string
	Patterns []*regexp.Regexp
}

var (
	invoiceNumberRule = FieldRule{
		Name: "invoice_number",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)invoice\s*(?:number|no\.?)\s*:?\s*([\w/-]+)`),
			regexp.MustCompile(`(?i)invoice\s*#\s*:?\s*([\w/-]+)`),
			regexp.MustCompile(`(?i)\binv\s*#\s*:?\s*([\w/-]+)`),
			regexp.MustCompile(`(?i)\b(INV-[\w/-]+)\b`),
		},
	}

	vendorRule = FieldRule{
		Name: "vendor_name",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)vendor\s*:?\s*(.+)`),
			regexp.MustCompile(`(?i)(?:sold|billed?)\s*(?:to\s*)?(?:by|from)\s*:?\s*(.+)`),
			regexp.MustCompile(`(?i)^from\s*:\s*(.+)`),
		},
	}

	// Deliberately loose: "Due Date: 09/01/2024" satisfies this too, so an
	// invoice that only carries a due date still reports an invoice date.
	invoiceDateRule = FieldRule{
		Name: "invoice_date",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)invoice\s*date\s*:?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
			regexp.MustCompile(`(?i)date\s*:?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
			regexp.MustCompile(`(?i)date\s*:?\s*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`),
		},
	}

	dueDateRule = FieldRule{
		Name: "due_date",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)due\s*date\s*:?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
			regexp.MustCompile(`(?i)payment\s*due\s*:?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
			regexp.MustCompile(`(?i)due\s*date\s*:?\s*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`),
		},
	}

	totalRule = FieldRule{
		Name: "total_amount",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)total\s*(?:amount\s*)?(?:due\s*)?:?\s*\$?\s*([\d,]+\.\d{2})`),
			regexp.MustCompile(`(?i)amount\s*due\s*:?\s*\$?\s*([\d,]+\.\d{2})`),
			regexp.MustCompile(`(?i)balance\s*(?:due\s*)?:?\s*\$?\s*([\d,]+\.\d{2})`),
			regexp.MustCompile(`(?i)grand\s*total\s*:?\s*\$?\s*([\d,]+\.\d{2})`),
		},
	}

	// qty, description, amount on a single line
	lineItemPattern = regexp.MustCompile(`^\s*(\d+)\s+([A-Za-z0-9][A-Za-z0-9\s.,'-]*?)\s+\$?([\d,]+\.\d{2})\s*$`)

	// Labeled field lines ("Invoice #: ...", "Total: ...") and bare document
	// type words never serve as a positional vendor guess. A keyword alone is
	// fine: "Due North Consulting" is a perfectly good vendor name.
	vendorFieldLabel   = regexp.MustCompile(`(?i)\b(?:invoice|total|amount|due|date|subtotal|balance)\b\s*(?:#|:|no\.?\b)`)
	vendorDocTypeLabel = regexp.MustCompile(`(?i)^(invoice|statement|bill|receipt)$`)
)

// firstMatch runs a rule's patterns in order and returns the first capture.
func firstMatch(rule FieldRule, text string) (string, bool) {
	for _, p := range rule.Patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}
