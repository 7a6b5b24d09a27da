package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RawRow is one row of an open-data JSON file, e.g.
// {"DATE":"2020-03-01","PROVINCE":"Antwerpen","REGION":"Flanders","CASES":4}.
type RawRow map[string]json.RawMessage

// Source columns per variable.
const (
	ColumnDate     = "DATE"
	ColumnProvince = "PROVINCE"
)

// ValueColumn returns the open-data column holding the variable's count.
func ValueColumn(v Variable) string {
	switch v {
	case VariableCases:
		return "CASES"
	case VariableTotalHospitalizations:
		return "TOTAL_IN"
	case VariableTotalICU:
		return "TOTAL_IN_ICU"
	case VariableMortality:
		return "DEATHS"
	default:
		return ""
	}
}

// AggregateRows sums the rows of one variable per (day, province). Rows with no
// date are skipped: the publisher uses them for counts of unknown date. Rows
// with no count are skipped too, so a day without data never reads as zero. The
// province tag is dropped for variables without regional breakdown. A value
// that is neither a number nor a numeric string fails with a *ValidationError.
func AggregateRows(v Variable, rows []RawRow) ([]Record, int, error) {
	column := ValueColumn(v)
	if column == "" {
		return nil, 0, &ValidationError{Field: string(v), Reason: "unknown variable"}
	}

	type key struct {
		day      string
		province string
	}
	totals := make(map[key]float64)
	skipped := 0

	for i, row := range rows {
		day := stringField(row[ColumnDate])
		if day == "" || strings.EqualFold(day, "NA") {
			skipped++
			continue
		}
		d, err := ParseDay(day)
		if err != nil {
			return nil, skipped, &ValidationError{Field: ColumnDate, Key: strconv.Itoa(i), Reason: "date is not YYYY-MM-DD"}
		}

		n, ok, err := numericField(row[column])
		if err != nil {
			return nil, skipped, &ValidationError{Field: column, Key: strconv.Itoa(i), Reason: err.Error()}
		}
		if !ok {
			skipped++
			continue
		}

		province := ""
		if v.HasRegionalBreakdown() {
			province = stringField(row[ColumnProvince])
		}
		totals[key{day: FormatDay(d), province: province}] += n
	}

	records := make([]Record, 0, len(totals))
	for k, total := range totals {
		d, _ := ParseDay(k.day)
		records = append(records, Record{Date: d, Province: k.province, Total: total})
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].Province < records[j].Province
	})
	return records, skipped, nil
}

// stringField decodes a JSON string, returning "" for anything else.
func stringField(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

type fieldError string

func (e fieldError) Error() string { return string(e) }

// numericField accepts a JSON number or a numeric string. ok is false for a
// missing, null or empty cell: no count is not a count of zero.
func numericField(raw json.RawMessage) (n float64, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, nil
	}
	if raw[0] == '"' {
		s := stringField(raw)
		if s == "" {
			return 0, false, nil
		}
		n, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fieldError("value " + strconv.Quote(s) + " is not numeric")
		}
	} else if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false, fieldError("value " + string(raw) + " is not numeric")
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false, fieldError("value " + string(raw) + " is not finite")
	}
	return n, true, nil
}

// BuildDataset aggregates the rows of every supplied variable into a Dataset.
// The second return value counts rows skipped for lack of a date or a count.
func BuildDataset(rows map[Variable][]RawRow) (*Dataset, int, error) {
	ds := NewDataset()
	skipped := 0
	for _, v := range Variables {
		r, ok := rows[v]
		if !ok {
			continue
		}
		records, n, err := AggregateRows(v, r)
		skipped += n
		if err != nil {
			return nil, skipped, err
		}
		ds.Variables[v] = records
	}
	return ds, skipped, nil
}

// Span returns the first and last day covered by any variable.
func (d *Dataset) Span() (time.Time, time.Time, bool) {
	var first, last time.Time
	found := false
	for _, records := range d.Variables {
		for _, r := range records {
			if !found || r.Date.Before(first) {
				first = r.Date
			}
			if !found || r.Date.After(last) {
				last = r.Date
			}
			found = true
		}
	}
	return first, last, found
}
