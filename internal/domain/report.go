package domain

import "time"

// VariableReport is one row of a region summary. Pointer fields are nil when
// the value is not applicable, which is distinct from a genuine zero.
type VariableReport struct {
	Variable Variable `json:"variable"`
	Regional bool     `json:"regional"`

	// Average is the 7-day rolling average on the last consolidated day.
	Average *float64 `json:"average,omitempty"`
	// Yesterday is yesterday's raw, not yet consolidated, value.
	Yesterday *float64 `json:"yesterday,omitempty"`

	DoublingDays *int   `json:"doubling_days,omitempty"`
	Doubling     string `json:"doubling,omitempty"`

	Peak *PeakRecord `json:"peak,omitempty"`
	// NextPeak is when the current growth would reach the previous peak again.
	NextPeak string `json:"next_peak,omitempty"`

	// Capacity and Saturation are set for bed-bound variables only.
	Capacity   *float64 `json:"capacity,omitempty"`
	Saturation string   `json:"saturation,omitempty"`

	// RateOfChange is the latest week-over-week change, in percent.
	RateOfChange *float64 `json:"rate_of_change,omitempty"`
	// Trend is the degree-2 overlay fitted over the rate of change.
	Trend []Point `json:"trend,omitempty"`
}

// RegionReport summarizes every variable of one region at one point in time.
// Reports built in the same refresh cycle share a RefreshID.
type RegionReport struct {
	RefreshID       string           `json:"refresh_id,omitempty"`
	Region          string           `json:"region"`
	ConsolidatedDay time.Time        `json:"consolidated_day"`
	GeneratedAt     time.Time        `json:"generated_at"`
	Fingerprint     uint64           `json:"fingerprint"`
	Variables       []VariableReport `json:"variables"`
}

// Variable returns the row for v, if present.
func (r RegionReport) Variable(v Variable) (VariableReport, bool) {
	for _, vr := range r.Variables {
		if vr.Variable == v {
			return vr, true
		}
	}
	return VariableReport{}, false
}
