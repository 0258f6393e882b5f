package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/amara-obi/invoicetrack/internal/recognition"
)

// Payload is the raw extraction blob persisted alongside a result for
// audit and debugging. It carries everything the extractor saw and did.
type Payload struct {
	Fields          Fields  `json:"fields"`
	ConfidenceScore float64 `json:"confidence_score"`
	FragmentCount   int     `json:"fragment_count"`
	Text            string  `json:"text"`
}

// BuildPayload marshals the extraction outcome into the audit blob.
func BuildPayload(f Fields, score float64, frags []recognition.Fragment) ([]byte, error) {
	p := Payload{
		Fields:          f,
		ConfidenceScore: score,
		FragmentCount:   len(frags),
		Text:            recognition.JoinText(frags),
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	if err := validatePayload(b); err != nil {
		return nil, err
	}
	return b, nil
}

// buildPayloadJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map, used locally to guard what goes into raw_extraction.
func buildPayloadJSONSchema() map[string]any {
	nullableString := map[string]any{"type": []string{"string", "null"}}
	lineItem := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"quantity":    map[string]any{"type": "integer", "minimum": 0},
			"description": map[string]any{"type": "string"},
			"amount":      map[string]any{"type": "number"},
		},
		"required": []string{"quantity", "description", "amount"},
	}
	fields := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"invoice_number": nullableString,
			"vendor_name":    nullableString,
			"invoice_date":   nullableString,
			"due_date":       nullableString,
			"total_amount":   map[string]any{"type": []string{"number", "null"}},
			"line_items":     map[string]any{"type": []string{"array", "null"}, "items": lineItem},
		},
		"required": []string{"invoice_number", "vendor_name", "invoice_date", "due_date", "total_amount", "line_items"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"fields":           fields,
			"confidence_score": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"fragment_count":   map[string]any{"type": "integer", "minimum": 0},
			"text":             map[string]any{"type": "string"},
		},
		"required": []string{"fields", "confidence_score", "fragment_count", "text"},
	}
}

func validatePayload(data []byte) error {
	b, err := json.Marshal(buildPayloadJSONSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("payload.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("payload.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("payload does not match schema: %w", err)
	}
	return nil
}
