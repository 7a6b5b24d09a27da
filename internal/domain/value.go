package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Value is a single daily observation. It is either a plain number or a record
// carrying a total plus the province it was reported for.
type Value struct {
	Total    float64
	Province string
	record   bool
}

// Number wraps a bare numeric observation.
func Number(total float64) Value {
	return Value{Total: total}
}

// RecordValue wraps a province-tagged record observation.
func RecordValue(total float64, province string) Value {
	return Value{Total: total, Province: province, record: true}
}

// IsRecord reports whether the value came from a record rather than a bare number.
func (v Value) IsRecord() bool {
	return v.record
}

type recordJSON struct {
	Total    *float64 `json:"total"`
	Province string   `json:"PROVINCE,omitempty"`
}

// MarshalJSON writes plain numbers as numbers and records as objects.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.record {
		return json.Marshal(v.Total)
	}
	total := v.Total
	return json.Marshal(recordJSON{Total: &total, Province: v.Province})
}

// UnmarshalJSON accepts a number or an object with a numeric "total". Anything
// else is rejected with a *ValidationError rather than decoded as NaN.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &ValidationError{Field: "value", Reason: "empty value"}
	}

	switch data[0] {
	case '{':
		var rec recordJSON
		if err := json.Unmarshal(data, &rec); err != nil {
			return &ValidationError{Field: "value", Reason: fmt.Sprintf("record total is not numeric: %v", err)}
		}
		if rec.Total == nil {
			return &ValidationError{Field: "value", Reason: "record has no total"}
		}
		*v = RecordValue(*rec.Total, rec.Province)
		return checkFinite(*v)
	case '"', '[', 't', 'f', 'n':
		return &ValidationError{Field: "value", Reason: fmt.Sprintf("expected number or record, got %s", data)}
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return &ValidationError{Field: "value", Reason: err.Error()}
		}
		*v = Number(n)
		return checkFinite(*v)
	}
}

func checkFinite(v Value) error {
	if math.IsNaN(v.Total) || math.IsInf(v.Total, 0) {
		return &ValidationError{Field: "value", Reason: "total is not finite"}
	}
	return nil
}
