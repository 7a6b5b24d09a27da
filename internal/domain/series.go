package domain

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Point is the unit exchanged between the analytics engines and consumers.
type Point struct {
	X time.Time `json:"x"`
	Y float64   `json:"y"`
}

// PeakRecord is the maximum of a smoothed series.
type PeakRecord struct {
	Date  time.Time `json:"date"`
	Total float64   `json:"total"`
}

// Series is a date-indexed set of observations with at most one value per
// calendar day. Map iteration order is meaningless; Dates and Points always
// return chronological order.
type Series struct {
	values map[string]Value
}

// NewSeries returns an empty series.
func NewSeries() *Series {
	return &Series{values: make(map[string]Value)}
}

// SeriesFromNumbers builds a series of plain numbers keyed by date.
func SeriesFromNumbers(values map[time.Time]float64) *Series {
	s := NewSeries()
	for d, v := range values {
		s.Set(d, Number(v))
	}
	return s
}

// SetChecked is Set for untrusted values: a NaN or infinite total fails with a
// *ValidationError naming the day and leaves the series unchanged.
func (s *Series) SetChecked(d time.Time, v Value) error {
	if err := checkFinite(v); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Key = FormatDay(d)
		}
		return err
	}
	s.Set(d, v)
	return nil
}

// Set stores v under the normalized day of d, replacing any previous value.
// It trusts v; use SetChecked for values that may not be finite.
func (s *Series) Set(d time.Time, v Value) {
	if s.values == nil {
		s.values = make(map[string]Value)
	}
	s.values[FormatDay(d)] = v
}

// Get returns the value stored for the day of d.
func (s *Series) Get(d time.Time) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	v, ok := s.values[FormatDay(d)]
	return v, ok
}

// Total returns the numeric total stored for the day of d.
func (s *Series) Total(d time.Time) (float64, bool) {
	v, ok := s.Get(d)
	return v.Total, ok
}

// Len is the number of days holding a value.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

func (s *Series) sortedKeys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	// "2006-01-02" keys sort chronologically as strings.
	sort.Strings(keys)
	return keys
}

// Dates returns the days holding a value, oldest first.
func (s *Series) Dates() []time.Time {
	keys := s.sortedKeys()
	dates := make([]time.Time, 0, len(keys))
	for _, k := range keys {
		d, err := ParseDay(k)
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

// First returns the oldest day holding a value.
func (s *Series) First() (time.Time, bool) {
	keys := s.sortedKeys()
	if len(keys) == 0 {
		return time.Time{}, false
	}
	d, err := ParseDay(keys[0])
	return d, err == nil
}

// Last returns the most recent day holding a value.
func (s *Series) Last() (time.Time, bool) {
	keys := s.sortedKeys()
	if len(keys) == 0 {
		return time.Time{}, false
	}
	d, err := ParseDay(keys[len(keys)-1])
	return d, err == nil
}

// Points converts the series into chronologically ordered points using each
// value's total.
func (s *Series) Points() []Point {
	keys := s.sortedKeys()
	points := make([]Point, 0, len(keys))
	for _, k := range keys {
		d, err := ParseDay(k)
		if err != nil {
			continue
		}
		points = append(points, Point{X: d, Y: s.values[k].Total})
	}
	return points
}

// Fingerprint hashes the sorted dates and totals. Two series with the same
// content share a fingerprint regardless of how they were built.
func (s *Series) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, k := range s.sortedKeys() {
		_, _ = h.WriteString(k)
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(s.values[k].Total))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// MarshalJSON writes the series as {"2006-01-02": value, ...}.
func (s *Series) MarshalJSON() ([]byte, error) {
	if s == nil || s.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.values)
}

// UnmarshalJSON decodes {"2006-01-02": number | {"total": n}}. Malformed keys or
// values fail with a *ValidationError naming the offending date.
func (s *Series) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return &ValidationError{Field: "series", Reason: err.Error()}
	}

	values := make(map[string]Value, len(raw))
	for key, msg := range raw {
		d, err := ParseDay(key)
		if err != nil {
			return &ValidationError{Field: "series", Key: key, Reason: "date is not YYYY-MM-DD"}
		}
		var v Value
		if err := v.UnmarshalJSON(msg); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				return &ValidationError{Field: "series", Key: key, Reason: verr.Reason}
			}
			return err
		}
		values[FormatDay(d)] = v
	}
	s.values = values
	return nil
}
