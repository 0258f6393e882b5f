package extract

// Score derives a single confidence in [0,1] from which fields resolved.
//
// Base is the fraction of the five key fields that are present. A missing
// invoice number multiplies the score by 0.7, as does a missing total;
// both penalties stack. Recovering at least one line item adds 0.1. The
// result is clamped to [0,1] after the bonus.
func Score(f Fields) float64 {
	present := 0
	for _, ok := range []bool{
		f.InvoiceNumber != nil,
		f.VendorName != nil,
		f.InvoiceDate != nil,
		f.DueDate != nil,
		f.TotalAmount != nil,
	} {
		if ok {
			present++
		}
	}

	score := float64(present) / 5.0
	if f.InvoiceNumber == nil {
		score *= 0.7
	}
	if f.TotalAmount == nil {
		score *= 0.7
	}
	if len(f.LineItems) > 0 {
		score += 0.1
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}
