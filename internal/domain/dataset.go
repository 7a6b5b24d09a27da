package domain

import (
	"encoding/binary"
	"math"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Variable names a dataset column.
type Variable string

const (
	VariableCases                 Variable = "cases"
	VariableTotalHospitalizations Variable = "totalHospitalizations"
	VariableTotalICU              Variable = "totalICU"
	VariableMortality             Variable = "mortality"
)

// VariableIncidence is derived from cases: 14-day cumulative cases per 100k
// inhabitants. It never appears in a Dataset.
const VariableIncidence Variable = "incidence"

// Variables lists the dataset variables in display order.
var Variables = []Variable{
	VariableCases,
	VariableTotalHospitalizations,
	VariableTotalICU,
	VariableMortality,
}

// HasRegionalBreakdown reports whether the variable is published per province.
// Mortality is only published nationally.
func (v Variable) HasRegionalBreakdown() bool {
	return v != VariableMortality
}

// NationalRegion is the aggregate of all provinces.
const NationalRegion = "Belgium"

// Provinces are the province tags used by the open-data files.
var Provinces = []string{
	"Antwerpen",
	"BrabantWallon",
	"Brussels",
	"Hainaut",
	"Limburg",
	"Liège",
	"Luxembourg",
	"Namur",
	"OostVlaanderen",
	"VlaamsBrabant",
	"WestVlaanderen",
}

// Regions returns the national aggregate followed by every province.
func Regions() []string {
	return append([]string{NationalRegion}, Provinces...)
}

// IsKnownRegion reports whether region is the national aggregate or a province.
func IsKnownRegion(region string) bool {
	if region == NationalRegion {
		return true
	}
	for _, p := range Provinces {
		if p == region {
			return true
		}
	}
	return false
}

// Record is one aggregated row: the total for a day, tagged with the province
// it was reported for. Mortality records carry no province.
type Record struct {
	Date     time.Time `json:"date"`
	Province string    `json:"province,omitempty"`
	Total    float64   `json:"total"`
}

// Dataset holds every variable of one fetch. It is built once and never
// mutated; a new fetch or a new region selection produces a new Dataset.
type Dataset struct {
	Variables map[Variable][]Record
}

// NewDataset creates an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{Variables: make(map[Variable][]Record)}
}

// Records returns the raw records of a variable.
func (d *Dataset) Records(v Variable) []Record {
	if d == nil {
		return nil
	}
	return d.Variables[v]
}

// Series sums the records of a variable per day. Days carried by a single
// province keep the province tag on the value; multi-province days become
// plain numbers.
func (d *Dataset) Series(v Variable) *Series {
	type acc struct {
		total    float64
		province string
		mixed    bool
	}

	days := make(map[string]*acc)
	for _, r := range d.Records(v) {
		key := FormatDay(r.Date)
		a, ok := days[key]
		if !ok {
			a = &acc{province: r.Province}
			days[key] = a
		}
		if a.province != r.Province {
			a.mixed = true
		}
		a.total += r.Total
	}

	s := NewSeries()
	for key, a := range days {
		if !a.mixed && a.province != "" {
			s.values[key] = RecordValue(a.total, a.province)
		} else {
			s.values[key] = Number(a.total)
		}
	}
	return s
}

// Fingerprint hashes every record of every variable, province included, so a
// correction that moves counts between provinces changes it even when the
// national daily sums do not.
func (d *Dataset) Fingerprint() uint64 {
	names := make([]string, 0, len(d.Variables))
	for v, records := range d.Variables {
		if len(records) > 0 {
			names = append(names, string(v))
		}
	}
	sort.Strings(names)

	h := xxhash.New()
	var buf [8]byte
	for _, name := range names {
		records := append([]Record(nil), d.Variables[Variable(name)]...)
		sort.Slice(records, func(i, j int) bool {
			if !records[i].Date.Equal(records[j].Date) {
				return records[i].Date.Before(records[j].Date)
			}
			if records[i].Province != records[j].Province {
				return records[i].Province < records[j].Province
			}
			return records[i].Total < records[j].Total
		})

		_, _ = h.WriteString(name)
		_, _ = h.Write([]byte{0})
		for _, r := range records {
			_, _ = h.WriteString(FormatDay(r.Date))
			_, _ = h.WriteString(r.Province)
			_, _ = h.Write([]byte{0})
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(r.Total))
			_, _ = h.Write(buf[:])
		}
		_, _ = h.Write([]byte{1})
	}
	return h.Sum64()
}

// FilterByRegion restricts a dataset to one region. The national aggregate is
// returned as-is (same pointer). For a province every variable keeps only that
// province's records, except mortality which has no regional breakdown and is
// passed through unchanged.
func FilterByRegion(d *Dataset, region string) *Dataset {
	if d == nil || region == NationalRegion {
		return d
	}

	out := &Dataset{Variables: make(map[Variable][]Record, len(d.Variables))}
	for v, records := range d.Variables {
		if !v.HasRegionalBreakdown() {
			out.Variables[v] = records
			continue
		}
		filtered := make([]Record, 0, len(records)/len(Provinces)+1)
		for _, r := range records {
			if r.Province == region {
				filtered = append(filtered, r)
			}
		}
		out.Variables[v] = filtered
	}
	return out
}
