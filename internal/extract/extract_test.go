package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amara-obi/invoicetrack/internal/recognition"
)

func frag(text string) recognition.Fragment {
	return recognition.Fragment{Text: text, Confidence: 1.0}
}

func fragAt(text string, y float64) recognition.Fragment {
	return recognition.Fragment{
		Text:       text,
		Confidence: 1.0,
		Position: recognition.Quad{
			{X: 0, Y: y}, {X: 200, Y: y}, {X: 200, Y: y + 12}, {X: 0, Y: y + 12},
		},
	}
}

func TestExtractEndToEnd(t *testing.T) {
	frags := []recognition.Fragment{
		frag("Invoice #: INV-2024-07  Total: $1,234.56  Due Date: 09/01/2024"),
	}

	f := Extract(frags)

	require.NotNil(t, f.InvoiceNumber)
	assert.Equal(t, "INV-2024-07", *f.InvoiceNumber)
	require.NotNil(t, f.TotalAmount)
	assert.Equal(t, 1234.56, *f.TotalAmount)
	require.NotNil(t, f.DueDate)
	assert.Equal(t, "09/01/2024", *f.DueDate)
	// the loose date rule also fires on "Due Date:"
	require.NotNil(t, f.InvoiceDate)
	assert.Equal(t, "09/01/2024", *f.InvoiceDate)
	assert.Nil(t, f.VendorName)
	assert.Empty(t, f.LineItems)

	assert.InDelta(t, 0.8, Score(f), 1e-9)
}

func TestExtractIsPure(t *testing.T) {
	frags := []recognition.Fragment{
		frag("Acme Supplies Inc."),
		frag("Invoice Number: 42"),
	}
	first := Extract(frags)
	second := Extract(frags)
	assert.Equal(t, first, second)
}

func TestExtractEmptyFragments(t *testing.T) {
	f := Extract(nil)
	assert.Nil(t, f.InvoiceNumber)
	assert.Nil(t, f.VendorName)
	assert.Nil(t, f.InvoiceDate)
	assert.Nil(t, f.DueDate)
	assert.Nil(t, f.TotalAmount)
	assert.Empty(t, f.LineItems)
	assert.Equal(t, 0.0, Score(f))
}

func TestVendorLabeledRule(t *testing.T) {
	f := Extract([]recognition.Fragment{frag("Vendor: Acme Supplies Inc.")})
	require.NotNil(t, f.VendorName)
	assert.Equal(t, "Acme Supplies Inc.", *f.VendorName)
}

func TestVendorPositionalFallback(t *testing.T) {
	f := Extract([]recognition.Fragment{
		frag("Acme Supplies Inc."),
		frag("Invoice Number: 42"),
	})
	require.NotNil(t, f.VendorName)
	assert.Equal(t, "Acme Supplies Inc.", *f.VendorName)
}

func TestVendorFallbackSortsByVerticalPosition(t *testing.T) {
	// slice order is not reading order; the page footer arrives first
	f := Extract([]recognition.Fragment{
		fragAt("Thank you for your business", 1000),
		fragAt("Acme Supplies Inc.", 10),
	})
	require.NotNil(t, f.VendorName)
	assert.Equal(t, "Acme Supplies Inc.", *f.VendorName)
}

func TestVendorFallbackRejectsLabels(t *testing.T) {
	for _, text := range []string{
		"INVOICE",
		"Total Due: $5.00",
		"Statement",
		"Acme", // too short
		"Invoice No. 42",
		"Due Date: 09/01/2024",
	} {
		f := Extract([]recognition.Fragment{frag(text)})
		assert.Nil(t, f.VendorName, "should reject %q", text)
	}
}

func TestVendorFallbackAllowsKeywordsInNames(t *testing.T) {
	f := Extract([]recognition.Fragment{fragAt("Due North Consulting", 10)})
	require.NotNil(t, f.VendorName)
	assert.Equal(t, "Due North Consulting", *f.VendorName)
}

func TestVendorFallbackOnlyHeaderFragments(t *testing.T) {
	f := Extract([]recognition.Fragment{
		fragAt("Acme Supplies Inc.", 400), // fourth by position, past the header
		fragAt("Invoice", 10),
		fragAt("2024", 20),
		fragAt("Date: 09/01/2024", 30),
	})
	assert.Nil(t, f.VendorName)
}

func TestTotalAmountCommaStripping(t *testing.T) {
	f := Extract([]recognition.Fragment{frag("Total: $12,345,678.90")})
	require.NotNil(t, f.TotalAmount)
	assert.Equal(t, 12345678.90, *f.TotalAmount)
}

func TestLineItems(t *testing.T) {
	f := Extract([]recognition.Fragment{
		frag("2 Standard Anvils $400.00"),
		frag("1 Rocket Skates 89.99"),
		frag("not a line item"),
		frag("Total: $489.99"),
	})

	require.Len(t, f.LineItems, 2)
	assert.Equal(t, LineItem{Quantity: 2, Description: "Standard Anvils", Amount: 400.00}, f.LineItems[0])
	assert.Equal(t, LineItem{Quantity: 1, Description: "Rocket Skates", Amount: 89.99}, f.LineItems[1])
}

func TestScoreFourOfFiveMissingInvoiceNumber(t *testing.T) {
	vendor, inv, due := "Acme", "09/01/2024", "10/01/2024"
	total := 100.0
	f := Fields{
		VendorName:  &vendor,
		InvoiceDate: &inv,
		DueDate:     &due,
		TotalAmount: &total,
	}
	assert.InDelta(t, 0.56, Score(f), 1e-9)
}

func TestScoreAllFieldsWithLineItem(t *testing.T) {
	num, vendor, inv, due := "INV-1", "Acme", "09/01/2024", "10/01/2024"
	total := 100.0
	f := Fields{
		InvoiceNumber: &num,
		VendorName:    &vendor,
		InvoiceDate:   &inv,
		DueDate:       &due,
		TotalAmount:   &total,
		LineItems:     []LineItem{{Quantity: 1, Description: "Anvil", Amount: 100}},
	}
	assert.Equal(t, 1.0, Score(f))
}

func TestScorePenaltiesStack(t *testing.T) {
	vendor, inv, due := "Acme", "09/01/2024", "10/01/2024"
	f := Fields{
		VendorName:  &vendor,
		InvoiceDate: &inv,
		DueDate:     &due,
	}
	// 3/5 = 0.6, then x0.7 twice
	assert.InDelta(t, 0.6*0.7*0.7, Score(f), 1e-9)
}

func TestBuildPayloadValidates(t *testing.T) {
	frags := []recognition.Fragment{
		frag("Invoice #: INV-2024-07  Total: $1,234.56  Due Date: 09/01/2024"),
	}
	f := Extract(frags)
	b, err := BuildPayload(f, Score(f), frags)
	require.NoError(t, err)

	var p Payload
	require.NoError(t, json.Unmarshal(b, &p))
	assert.Equal(t, 1, p.FragmentCount)
	assert.InDelta(t, 0.8, p.ConfidenceScore, 1e-9)
	require.NotNil(t, p.Fields.InvoiceNumber)
	assert.Equal(t, "INV-2024-07", *p.Fields.InvoiceNumber)
}
