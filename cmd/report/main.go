// Command report builds region reports once and prints them as JSON. It reads
// the open-data files from a local directory, or downloads them when no
// directory is given.
//
// Usage:
//
//	go run ./cmd/report -dir data/mock -regions Belgium,Namur -today 2020-11-01
//	go run ./cmd/report -url https://epistat.sciensano.be/Data
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/epi-trends-service/internal/adapter/sciensano"
	"github.com/couchcryptid/epi-trends-service/internal/config"
	"github.com/couchcryptid/epi-trends-service/internal/domain"
	"github.com/couchcryptid/epi-trends-service/internal/pipeline"
	"github.com/couchcryptid/epi-trends-service/internal/trend"
	"github.com/jonboulle/clockwork"
)

type options struct {
	dir        string
	url        string
	regions    string
	today      string
	reference  string
	peakWindow int
	timeout    time.Duration
	logLevel   string
}

func main() {
	var opts options
	flag.StringVar(&opts.dir, "dir", "", "directory containing the open-data JSON files")
	flag.StringVar(&opts.url, "url", "https://epistat.sciensano.be/Data", "open-data base URL, used when -dir is empty")
	flag.StringVar(&opts.regions, "regions", domain.NationalRegion, "comma-separated regions to report")
	flag.StringVar(&opts.today, "today", "", "report as of this day (YYYY-MM-DD) instead of the current day")
	flag.StringVar(&opts.reference, "reference", "", "optional YAML reference file")
	flag.IntVar(&opts.peakWindow, "peak-window", trend.DefaultPeakWindow, "peak smoothing window in days")
	flag.DurationVar(&opts.timeout, "timeout", time.Minute, "download timeout per file")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flag.Parse()

	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	if opts.today != "" {
		today, err := domain.ParseDay(opts.today)
		if err != nil {
			return fmt.Errorf("invalid -today: %w", err)
		}
		// Noon keeps the frozen day stable whatever the local offset.
		domain.SetClock(clockwork.NewFakeClockAt(today.Add(12 * time.Hour)))
		defer domain.SetClock(nil)
	}

	regions, err := parseRegions(opts.regions)
	if err != nil {
		return err
	}

	reference, err := config.LoadReference(opts.reference)
	if err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return fmt.Errorf("invalid -log-level: %w", err)
	}
	// Stdout carries the JSON output; logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var source pipeline.DatasetExtractor
	if opts.dir != "" {
		source = sciensano.NewDirSource(opts.dir, logger)
	} else {
		source = sciensano.NewClient(opts.url, opts.timeout, logger, nil)
	}

	ds, err := source.ExtractDataset(ctx)
	if err != nil {
		return err
	}

	reporter := pipeline.NewReporter(trend.NewDetector(opts.peakWindow, len(regions)*(len(domain.Variables)+1)), reference, regions, logger)
	reports, err := reporter.BuildReports(ctx, ds)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

func parseRegions(value string) ([]string, error) {
	var regions []string
	for _, r := range strings.Split(value, ",") {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if !domain.IsKnownRegion(r) {
			return nil, fmt.Errorf("unknown region %q (known: %s)", r, strings.Join(domain.Regions(), ", "))
		}
		regions = append(regions, r)
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("no region given")
	}
	return regions, nil
}
