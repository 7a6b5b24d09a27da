package trend

import (
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/epi-trends-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// doublingEvery10 rises strictly and satisfies v(d) = 2*v(d-10) from day 10 on.
// Scaling by two is exact in floating point, so the averages halve exactly.
func doublingEvery10(days int) *domain.Series {
	values := make([]float64, days)
	for i := range values {
		if i < 10 {
			values[i] = 100 + 7*float64(i)
			continue
		}
		values[i] = 2 * values[i-10]
	}
	return seriesOf(values...)
}

// compound grows by rate per day.
func compound(days int, start, rate float64) *domain.Series {
	values := make([]float64, days)
	for i := range values {
		values[i] = start * math.Pow(1+rate, float64(i))
	}
	return seriesOf(values...)
}

func TestDaysToDoubling_ExactPeriod(t *testing.T) {
	s := doublingEvery10(31)

	days, ok := DaysToDoubling(s, day(30))
	require.True(t, ok)
	assert.Equal(t, 10, days)

	date, ok := DoublingDate(s, day(30))
	require.True(t, ok)
	assert.Equal(t, day(20), date)

	assert.Equal(t, "10 days", DaysToDoublingString(s, day(30)))
}

func TestDaysToDoubling_DefaultsToConsolidatedDay(t *testing.T) {
	clk := clockwork.NewFakeClockAt(day(30 + domain.ConsolidationLagDays).Add(9 * time.Hour))
	domain.SetClock(clk)
	defer domain.SetClock(nil)

	days, ok := DaysToDoubling(doublingEvery10(31), time.Time{})
	require.True(t, ok)
	assert.Equal(t, 10, days)
}

func TestDoublingDate_Absent(t *testing.T) {
	tests := []struct {
		name   string
		series *domain.Series
		limit  int
	}{
		{"flat series exhausts history", seriesOf(constant(30, 5)...), 29},
		{"declining series exhausts history", seriesOf(50, 40, 30, 25, 20, 15, 12, 10, 9, 8), 9},
		{"no data at anchor", seriesOf(1, 2, 4, 8), 40},
		{"zero anchored average", seriesOf(constant(10, 0)...), 9},
		{"empty series", domain.NewSeries(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := DoublingDate(tt.series, day(tt.limit))
			assert.False(t, ok)
			assert.Empty(t, DaysToDoublingString(tt.series, day(tt.limit)))
		})
	}
}

func TestDoublingDate_StopsOnMissingWindow(t *testing.T) {
	// Two data islands separated by more than a week.
	s := domain.NewSeries()
	for i := 0; i < 5; i++ {
		s.Set(day(i), domain.Number(1))
	}
	for i := 20; i < 30; i++ {
		s.Set(day(i), domain.Number(float64(100+i)))
	}

	_, ok := DoublingDate(s, day(29))
	assert.False(t, ok)
}

func TestDoublingDate_StopsOnZeroAverage(t *testing.T) {
	// The day before the anchor averages to exactly zero: that is no data,
	// not a halving.
	values := append(constant(7, 0), 100)
	_, ok := DoublingDate(seriesOf(values...), day(7))
	assert.False(t, ok)
}

func TestDoublingDate_BoundedLookback(t *testing.T) {
	// Barely rising over two years: never halves within the bound.
	values := make([]float64, 2*MaxDoublingLookback)
	for i := range values {
		values[i] = 10_000 + float64(i)
	}
	s := seriesOf(values...)

	_, ok := DoublingDate(s, day(len(values)-1))
	assert.False(t, ok)
}

func TestDayToValue_FlatOrDeclining(t *testing.T) {
	series := map[string]*domain.Series{
		"flat":      seriesOf(constant(30, 12)...),
		"declining": compound(30, 1000, -0.05),
	}
	for name, s := range series {
		for _, target := range []float64{0, 1, 12, 500, 1e9} {
			_, ok := DayToValue(s, target, day(29))
			assert.False(t, ok, "%s target %v", name, target)
			assert.Empty(t, DayToValueString(s, target, day(29), day(29)))
		}
	}
}

func TestDayToValue_MissingOrZeroAverages(t *testing.T) {
	t.Run("no data a week back", func(t *testing.T) {
		s := domain.NewSeries()
		for i := 23; i < 30; i++ {
			s.Set(day(i), domain.Number(float64(i)))
		}
		_, ok := DayToValue(s, 100, day(29))
		assert.False(t, ok)
	})

	t.Run("zero a week back", func(t *testing.T) {
		values := append(constant(15, 0), 1, 2, 3, 4, 5, 6, 7)
		_, ok := DayToValue(seriesOf(values...), 100, day(21))
		assert.False(t, ok)
	})

	t.Run("no data at anchor", func(t *testing.T) {
		_, ok := DayToValue(compound(20, 10, 0.1), 100, day(60))
		assert.False(t, ok)
	})
}

func TestDayToValue_ClosedForm(t *testing.T) {
	s := compound(40, 100, 0.03)
	limit := day(39)
	target := 5000.0

	got, ok := DayToValue(s, target, limit)
	require.True(t, ok)

	day1, _ := RollingAverage(s, day(32), -7)
	day2, _ := RollingAverage(s, limit, -7)
	pc := (day2 - day1) / day1
	n := 1.0 / 7
	tDays := math.Log(target/day2) / (n * math.Log(1+pc/n))
	assert.Equal(t, domain.DateFrom(limit, int(math.Floor(tDays+0.5))), got)
}

func TestDayToValue_RoundTrip(t *testing.T) {
	s := compound(40, 100, 0.02)
	limit := day(39)

	day1, _ := RollingAverage(s, domain.DateFrom(limit, -7), -7)
	day2, _ := RollingAverage(s, limit, -7)
	// Daily growth factor of the model: (1 + pc/n)^n with n = 1/7.
	growth := math.Pow(1+7*(day2-day1)/day1, 1.0/7)

	for _, target := range []float64{day2 * 1.5, day2 * 4, day2 * 30} {
		projected, ok := DayToValue(s, target, limit)
		require.True(t, ok)

		// Extend the smoothed series from the anchor at the same rate.
		k := domain.DaysBetween(limit, projected)
		extended := day2 * math.Pow(growth, float64(k))

		// Rounding to whole days moves the value by at most half a day of growth.
		tolerance := math.Sqrt(growth) - 1 + 1e-9
		assert.InDelta(t, 1.0, extended/target, tolerance, "target %v", target)
	}
}

func TestDayToValueString(t *testing.T) {
	s := compound(40, 100, 0.05)
	limit := day(39)
	day2, _ := RollingAverage(s, limit, -7)

	t.Run("future date", func(t *testing.T) {
		got := DayToValueString(s, day2*10, limit, limit)
		d, _ := DayToValue(s, day2*10, limit)
		assert.Equal(t, d.Format(domain.DisplayLayout), got)
		assert.True(t, d.After(limit))
	})

	t.Run("today", func(t *testing.T) {
		assert.Equal(t, LabelToday, DayToValueString(s, day2, limit, limit))
	})

	t.Run("exceeded", func(t *testing.T) {
		assert.Equal(t, LabelExceeded, DayToValueString(s, day2/3, limit, limit))
	})

	t.Run("no projection", func(t *testing.T) {
		assert.Empty(t, DayToValueString(seriesOf(constant(40, 3)...), 10, limit, limit))
	})

	t.Run("today from clock", func(t *testing.T) {
		domain.SetClock(clockwork.NewFakeClockAt(limit.Add(15 * time.Hour)))
		defer domain.SetClock(nil)
		assert.Equal(t, LabelToday, DayToValueString(s, day2, limit, time.Time{}))
	})
}
