// Command genmock writes synthetic open-data files (cases, hospitalisations
// and mortality) shaped like the Sciensano publications. The curves follow a
// single epidemic wave split across provinces by population, so the output
// exercises growth, peak and decline in every report.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -start 2020-09-01 -days 90
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/epi-trends-service/internal/adapter/sciensano"
	"github.com/couchcryptid/epi-trends-service/internal/config"
	"github.com/couchcryptid/epi-trends-service/internal/domain"
)

// provinceRegion maps a province to the region column of the files.
var provinceRegion = map[string]string{
	"Antwerpen":      "Flanders",
	"Limburg":        "Flanders",
	"OostVlaanderen": "Flanders",
	"VlaamsBrabant":  "Flanders",
	"WestVlaanderen": "Flanders",
	"BrabantWallon":  "Wallonia",
	"Hainaut":        "Wallonia",
	"Liège":          "Wallonia",
	"Luxembourg":     "Wallonia",
	"Namur":          "Wallonia",
	"Brussels":       "Brussels",
}

type wave struct {
	baseline float64 // national cases per day outside the wave
	peak     float64 // national cases per day at the top of the wave
	peakDay  int     // day offset of the top of the wave
	width    float64 // days, gaussian width
}

func (w wave) casesAt(day int) float64 {
	x := (float64(day) - float64(w.peakDay)) / w.width
	return w.baseline + (w.peak-w.baseline)*math.Exp(-x*x)
}

type row map[string]any

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for the generated files")
	start := flag.String("start", "2020-09-01", "first day of the series (YYYY-MM-DD)")
	days := flag.Int("days", 90, "number of days to generate")
	peak := flag.Float64("peak", 18000, "national cases per day at the top of the wave")
	flag.Parse()

	if *out == "" || *days < 1 {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	first, err := domain.ParseDay(*start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}

	w := wave{baseline: 300, peak: *peak, peakDay: *days * 2 / 3, width: float64(*days) / 6}
	cases, hosp, mort := generate(first, *days, w, config.DefaultReference())

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}
	for file, rows := range map[string][]row{
		sciensano.FileCases:     cases,
		sciensano.FileHospitals: hosp,
		sciensano.FileMortality: mort,
	} {
		if err := writeRows(filepath.Join(*out, file), rows); err != nil {
			return fmt.Errorf("writing %s: %w", file, err)
		}
		log.Printf("%s: %d rows", file, len(rows))
	}
	return nil
}

func generate(first time.Time, days int, w wave, ref *config.Reference) (cases, hosp, mort []row) {
	national, _ := ref.Region(domain.NationalRegion)

	// Occupancy per province carried from one day to the next.
	occupancy := make(map[string]float64, len(domain.Provinces))
	daily := make([]float64, days)

	for i := 0; i < days; i++ {
		date := domain.FormatDay(domain.DateFrom(first, i))
		daily[i] = w.casesAt(i)

		for _, p := range domain.Provinces {
			share := 1.0 / float64(len(domain.Provinces))
			if r, ok := ref.Region(p); ok && national.Population > 0 {
				share = r.Population / national.Population
			}
			n := math.Round(daily[i] * share)
			female := math.Round(n * 0.52)
			cases = append(cases,
				row{"DATE": date, "PROVINCE": p, "REGION": provinceRegion[p], "AGEGROUP": "30-39", "SEX": "F", "CASES": female},
				row{"DATE": date, "PROVINCE": p, "REGION": provinceRegion[p], "AGEGROUP": "30-39", "SEX": "M", "CASES": n - female},
			)

			// Admissions lag cases by five days; stays last about ten days.
			lagged := w.casesAt(i-5) * share
			occupancy[p] = math.Round(occupancy[p]*0.9 + lagged*0.05)
			hosp = append(hosp, row{
				"DATE": date, "PROVINCE": p, "REGION": provinceRegion[p],
				"NR_REPORTING": 10, "TOTAL_IN": occupancy[p], "TOTAL_IN_ICU": math.Round(occupancy[p] * 0.18),
			})
		}

		deaths := math.Round(w.casesAt(i-14) * 0.012)
		flanders := math.Round(deaths * 0.55)
		mort = append(mort,
			row{"DATE": date, "REGION": "Flanders", "AGEGROUP": "85+", "SEX": "F", "DEATHS": flanders},
			row{"DATE": date, "REGION": "Wallonia", "AGEGROUP": "85+", "SEX": "F", "DEATHS": deaths - flanders},
		)
	}

	// The published cases file carries a few rows of unknown date.
	cases = append(cases, row{"PROVINCE": "Brussels", "REGION": "Brussels", "AGEGROUP": "NA", "SEX": "NA", "CASES": 3})
	return cases, hosp, mort
}

func writeRows(path string, rows []row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
