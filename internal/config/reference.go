package config

import (
	"fmt"
	"time"

	"github.com/couchcryptid/epi-trends-service/internal/domain"
	"github.com/spf13/viper"
)

// RegionReference holds the static figures reports are scaled against.
// Zero capacity means unknown: no saturation day is reported for it.
type RegionReference struct {
	Name         string  `mapstructure:"name"`
	Population   float64 `mapstructure:"population"`
	HospitalBeds float64 `mapstructure:"hospital_beds"`
	ICUBeds      float64 `mapstructure:"icu_beds"`
}

// Reference is the static reference data: populations, bed capacity and the
// start of the period trend lines are fitted over.
type Reference struct {
	Regions         []RegionReference
	RegressionStart time.Time
}

// referenceFile mirrors the YAML layout. Regions are a list rather than a map
// because viper lower-cases map keys and region names are case sensitive.
type referenceFile struct {
	Regions         []RegionReference `mapstructure:"regions"`
	RegressionStart string            `mapstructure:"regression_start"`
}

// DefaultReference returns the built-in reference data: 2020 statistical
// office populations and national bed capacity.
func DefaultReference() *Reference {
	return &Reference{
		Regions: []RegionReference{
			{Name: domain.NationalRegion, Population: 11492641, HospitalBeds: 52565, ICUBeds: 2650},
			{Name: "Antwerpen", Population: 1869730},
			{Name: "BrabantWallon", Population: 406019},
			{Name: "Brussels", Population: 1218255},
			{Name: "Hainaut", Population: 1346840},
			{Name: "Limburg", Population: 877370},
			{Name: "Liège", Population: 1109800},
			{Name: "Luxembourg", Population: 286752},
			{Name: "Namur", Population: 495832},
			{Name: "OostVlaanderen", Population: 1525255},
			{Name: "VlaamsBrabant", Population: 1155843},
			{Name: "WestVlaanderen", Population: 1200945},
		},
		RegressionStart: time.Date(2020, time.August, 15, 0, 0, 0, 0, time.Local),
	}
}

// LoadReference reads an optional YAML reference file and overlays it on the
// built-in defaults. An empty path returns the defaults.
//
//	regression_start: 2020-08-15
//	regions:
//	  - name: Namur
//	    population: 495832
//	    hospital_beds: 1800
//	    icu_beds: 90
func LoadReference(path string) (*Reference, error) {
	ref := DefaultReference()
	if path == "" {
		return ref, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read reference file: %w", err)
	}

	var file referenceFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decode reference file: %w", err)
	}

	if file.RegressionStart != "" {
		start, err := domain.ParseDay(file.RegressionStart)
		if err != nil {
			return nil, fmt.Errorf("invalid regression_start %q: %w", file.RegressionStart, err)
		}
		ref.RegressionStart = start
	}

	for _, r := range file.Regions {
		if !domain.IsKnownRegion(r.Name) {
			return nil, fmt.Errorf("reference file: unknown region %q", r.Name)
		}
		if r.Population < 0 || r.HospitalBeds < 0 || r.ICUBeds < 0 {
			return nil, fmt.Errorf("reference file: negative figure for %s", r.Name)
		}
		ref.overlay(r)
	}
	return ref, nil
}

// overlay replaces the non-zero figures of r's region.
func (ref *Reference) overlay(r RegionReference) {
	for i := range ref.Regions {
		if ref.Regions[i].Name != r.Name {
			continue
		}
		if r.Population > 0 {
			ref.Regions[i].Population = r.Population
		}
		if r.HospitalBeds > 0 {
			ref.Regions[i].HospitalBeds = r.HospitalBeds
		}
		if r.ICUBeds > 0 {
			ref.Regions[i].ICUBeds = r.ICUBeds
		}
		return
	}
	ref.Regions = append(ref.Regions, r)
}

// Region returns the reference figures of a region.
func (ref *Reference) Region(name string) (RegionReference, bool) {
	for _, r := range ref.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return RegionReference{}, false
}
