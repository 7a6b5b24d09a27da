package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/epi-trends-service/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers   []string
	KafkaSinkTopic string
	KafkaEnabled   bool
	HTTPAddr       string
	LogLevel       string
	LogFormat      string

	ShutdownTimeout time.Duration

	// Producer batching for the sink topic.
	BatchSize          int
	BatchFlushInterval time.Duration

	// Open-data source.
	SourceBaseURL   string
	SourceTimeout   time.Duration
	SourceMaxAge    time.Duration
	RefreshInterval time.Duration

	// Analytics.
	Regions       []string
	PeakWindow    int
	PeakCacheSize int
	ReferenceFile string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	sourceTimeout, err := parsePositiveDuration("SOURCE_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	sourceMaxAge, err := parsePositiveDuration("SOURCE_MAX_AGE", "12h")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parsePositiveDuration("REFRESH_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}

	peakWindow, err := parsePositiveInt("PEAK_WINDOW", 7)
	if err != nil {
		return nil, err
	}
	peakCacheSize, err := parsePositiveInt("PEAK_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	regions, err := parseRegions(os.Getenv("REGIONS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "region-trend-reports"),
		KafkaEnabled:       sharedcfg.EnvOrDefault("KAFKA_ENABLED", "true") == "true",
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		SourceBaseURL:   sharedcfg.EnvOrDefault("SOURCE_BASE_URL", "https://epistat.sciensano.be/Data"),
		SourceTimeout:   sourceTimeout,
		SourceMaxAge:    sourceMaxAge,
		RefreshInterval: refreshInterval,

		Regions:       regions,
		PeakWindow:    peakWindow,
		PeakCacheSize: peakCacheSize,
		ReferenceFile: os.Getenv("REFERENCE_FILE"),
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

// parseRegions reads a comma-separated region list. Empty means every region.
func parseRegions(value string) ([]string, error) {
	regions := sharedcfg.ParseBrokers(value)
	if len(regions) == 0 {
		return domain.Regions(), nil
	}
	for _, r := range regions {
		if !domain.IsKnownRegion(r) {
			return nil, fmt.Errorf("invalid REGIONS: unknown region %q", r)
		}
	}
	return regions, nil
}
