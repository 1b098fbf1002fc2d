package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Transaction is one extracted transaction as produced by a run. It is
// owned by its run and never mutated after creation; the synthesizer copies
// transactions instead of editing them.
//
// All tracked fields are kept as the raw strings the extractor emitted.
// Reconciliation compares them verbatim (after absent-normalization), so the
// engine never loses formatting differences like "1.0" vs "1".
type Transaction struct {
	ID            string `json:"id"`
	RunID         string `json:"runId"`
	SourceEmailID string `json:"sourceEmailId"`

	Type string `json:"type"`

	Amount      string `json:"amount,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Description string `json:"description,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	Category    string `json:"category,omitempty"`

	Quantity          string `json:"quantity,omitempty"`
	QuantityExecuted  string `json:"quantityExecuted,omitempty"`
	QuantityRemaining string `json:"quantityRemaining,omitempty"`

	Price          string `json:"price,omitempty"`
	ExecutionPrice string `json:"executionPrice,omitempty"`
	PriceType      string `json:"priceType,omitempty"`
	LimitPrice     string `json:"limitPrice,omitempty"`

	Fees         string `json:"fees,omitempty"`
	ContractSize string `json:"contractSize,omitempty"`

	OrderID       string `json:"orderId,omitempty"`
	OrderType     string `json:"orderType,omitempty"`
	OrderQuantity string `json:"orderQuantity,omitempty"`
	OrderPrice    string `json:"orderPrice,omitempty"`
	OrderStatus   string `json:"orderStatus,omitempty"`
	TimeInForce   string `json:"timeInForce,omitempty"`

	ReferenceNumber   string `json:"referenceNumber,omitempty"`
	PartiallyExecuted string `json:"partiallyExecuted,omitempty"`
	ExecutionTime     string `json:"executionTime,omitempty"`
	Date              string `json:"date,omitempty"`

	Confidence float64 `json:"confidence"`

	// AdditionalData is the open-ended extractor payload. It may arrive as a
	// plain key→value map or as a list of {key, value} pairs; use
	// FlattenAdditionalData before comparing.
	AdditionalData any `json:"additionalData,omitempty"`

	// Provenance is set only on synthesized transactions.
	Provenance *Provenance `json:"provenance,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Provenance records where a synthesized transaction came from, sufficient
// for audit.
type Provenance struct {
	SourceTransactionID string `json:"sourceTransactionId"`
	SourceRunID         string `json:"sourceRunId"`
	Decision            string `json:"decision"`
}

// TrackedFields is the canonical ordered list of scalar fields the differ
// compares. Confidence is displayed but deliberately not tracked.
var TrackedFields = []string{
	"type",
	"amount",
	"currency",
	"description",
	"symbol",
	"category",
	"quantity",
	"quantityExecuted",
	"quantityRemaining",
	"price",
	"executionPrice",
	"priceType",
	"limitPrice",
	"fees",
	"contractSize",
	"orderId",
	"orderType",
	"orderQuantity",
	"orderPrice",
	"orderStatus",
	"timeInForce",
	"referenceNumber",
	"partiallyExecuted",
	"executionTime",
	"date",
}

// NumericFields is the set of tracked fields whose disagreements qualify for
// the "real numeric difference" classification when both sides are present.
var NumericFields = map[string]bool{
	"amount":            true,
	"quantity":          true,
	"quantityExecuted":  true,
	"quantityRemaining": true,
	"price":             true,
	"executionPrice":    true,
	"limitPrice":        true,
	"fees":              true,
	"orderQuantity":     true,
	"orderPrice":        true,
	"contractSize":      true,
}

// Field returns the value of a tracked field by name. Unknown names return
// the empty string, which the differ treats as absent.
func (t *Transaction) Field(name string) string {
	switch name {
	case "type":
		return t.Type
	case "amount":
		return t.Amount
	case "currency":
		return t.Currency
	case "description":
		return t.Description
	case "symbol":
		return t.Symbol
	case "category":
		return t.Category
	case "quantity":
		return t.Quantity
	case "quantityExecuted":
		return t.QuantityExecuted
	case "quantityRemaining":
		return t.QuantityRemaining
	case "price":
		return t.Price
	case "executionPrice":
		return t.ExecutionPrice
	case "priceType":
		return t.PriceType
	case "limitPrice":
		return t.LimitPrice
	case "fees":
		return t.Fees
	case "contractSize":
		return t.ContractSize
	case "orderId":
		return t.OrderID
	case "orderType":
		return t.OrderType
	case "orderQuantity":
		return t.OrderQuantity
	case "orderPrice":
		return t.OrderPrice
	case "orderStatus":
		return t.OrderStatus
	case "timeInForce":
		return t.TimeInForce
	case "referenceNumber":
		return t.ReferenceNumber
	case "partiallyExecuted":
		return t.PartiallyExecuted
	case "executionTime":
		return t.ExecutionTime
	case "date":
		return t.Date
	}
	return ""
}

// SetField assigns a tracked field by name. It returns an error for unknown
// names so override application can reject typos instead of dropping them.
func (t *Transaction) SetField(name, value string) error {
	switch name {
	case "type":
		t.Type = value
	case "amount":
		t.Amount = value
	case "currency":
		t.Currency = value
	case "description":
		t.Description = value
	case "symbol":
		t.Symbol = value
	case "category":
		t.Category = value
	case "quantity":
		t.Quantity = value
	case "quantityExecuted":
		t.QuantityExecuted = value
	case "quantityRemaining":
		t.QuantityRemaining = value
	case "price":
		t.Price = value
	case "executionPrice":
		t.ExecutionPrice = value
	case "priceType":
		t.PriceType = value
	case "limitPrice":
		t.LimitPrice = value
	case "fees":
		t.Fees = value
	case "contractSize":
		t.ContractSize = value
	case "orderId":
		t.OrderID = value
	case "orderType":
		t.OrderType = value
	case "orderQuantity":
		t.OrderQuantity = value
	case "orderPrice":
		t.OrderPrice = value
	case "orderStatus":
		t.OrderStatus = value
	case "timeInForce":
		t.TimeInForce = value
	case "referenceNumber":
		t.ReferenceNumber = value
	case "partiallyExecuted":
		t.PartiallyExecuted = value
	case "executionTime":
		t.ExecutionTime = value
	case "date":
		t.Date = value
	default:
		return fmt.Errorf("SetField: unknown tracked field %q", name)
	}
	return nil
}

// Clone returns a deep copy suitable for use as a synthesis template.
func (t *Transaction) Clone() *Transaction {
	cp := *t
	cp.AdditionalData = cloneAdditionalData(t.AdditionalData)
	if t.Provenance != nil {
		p := *t.Provenance
		cp.Provenance = &p
	}
	return &cp
}

func cloneAdditionalData(raw any) any {
	flat := FlattenAdditionalData(raw)
	if len(flat) == 0 {
		return nil
	}
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		out[k] = v
	}
	return out
}

// FlattenAdditionalData resolves the two encodings extractors use for the
// additional-data payload into a plain key→value map:
//
//   - map[string]any is copied as-is
//   - []any of {key, value}-shaped maps is folded into a map
//
// Any other array-shaped entry is discarded. A nil payload yields an empty
// map.
func FlattenAdditionalData(raw any) map[string]any {
	out := make(map[string]any)
	switch v := raw.(type) {
	case nil:
		return out
	case map[string]any:
		for k, val := range v {
			out[k] = val
		}
	case []any:
		for _, item := range v {
			pair, ok := item.(map[string]any)
			if !ok {
				continue
			}
			key, ok := pair["key"].(string)
			if !ok || key == "" {
				continue
			}
			out[key] = pair["value"]
		}
	}
	return out
}

// NormalizeValue renders an additional-data value into the canonical string
// used for comparison. nil and the empty string both normalize to the absent
// sentinel (the empty string).
func NormalizeValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}
