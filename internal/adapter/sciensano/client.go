package sciensano

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/epi-trends-service/internal/domain"
	"github.com/couchcryptid/epi-trends-service/internal/observability"
)

// Open-data files, relative to the base URL.
const (
	FileCases       = "COVID19BE_CASES_AGESEX.json"
	FileHospitals   = "COVID19BE_HOSP.json"
	FileMortality   = "COVID19BE_MORT.json"
	maxErrorBodyLen = 512
)

// FileFor returns the file publishing a variable. Hospitalizations and ICU
// occupancy share one file.
func FileFor(v domain.Variable) string {
	switch v {
	case domain.VariableCases:
		return FileCases
	case domain.VariableTotalHospitalizations, domain.VariableTotalICU:
		return FileHospitals
	case domain.VariableMortality:
		return FileMortality
	default:
		return ""
	}
}

// DecodeRows reads one open-data JSON array.
func DecodeRows(r io.Reader) ([]domain.RawRow, error) {
	var rows []domain.RawRow
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

// rowFetcher retrieves the rows of one file.
type rowFetcher func(ctx context.Context, file string) ([]domain.RawRow, error)

// buildDataset fetches each file once and aggregates every variable.
func buildDataset(ctx context.Context, fetch rowFetcher, logger *slog.Logger, metrics *observability.Metrics) (*domain.Dataset, error) {
	byFile := make(map[string][]domain.RawRow)
	rows := make(map[domain.Variable][]domain.RawRow, len(domain.Variables))
	for _, v := range domain.Variables {
		file := FileFor(v)
		r, ok := byFile[file]
		if !ok {
			var err error
			r, err = fetch(ctx, file)
			if err != nil {
				return nil, err
			}
			byFile[file] = r
		}
		rows[v] = r
	}

	ds, skipped, err := domain.BuildDataset(rows)
	if err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}
	if skipped > 0 {
		logger.Debug("rows without date or count skipped", "count", skipped)
	}
	if metrics != nil {
		metrics.RowsSkipped.Add(float64(skipped))
		for _, v := range domain.Variables {
			metrics.DatasetRecords.WithLabelValues(string(v)).Set(float64(len(ds.Records(v))))
		}
	}
	return ds, nil
}

// Client downloads the open-data files over HTTP.
// It implements pipeline.DatasetExtractor.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an open-data client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// ExtractDataset downloads every file and aggregates the rows.
func (c *Client) ExtractDataset(ctx context.Context) (*domain.Dataset, error) {
	return buildDataset(ctx, c.FetchRows, c.logger, c.metrics)
}

// FetchRows downloads and decodes one file.
func (c *Client) FetchRows(ctx context.Context, file string) ([]domain.RawRow, error) {
	start := time.Now()
	rows, err := c.doRequest(ctx, c.baseURL+"/"+file, file)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	if c.metrics != nil {
		c.metrics.SourceRequests.WithLabelValues(file, outcome).Inc()
		c.metrics.SourceDuration.WithLabelValues(file).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}

	c.logger.Debug("source file fetched", "file", file, "rows", len(rows), "duration", time.Since(start))
	return rows, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, file string) ([]domain.RawRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", file, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return nil, fmt.Errorf("fetch %s: status %d: %s", file, resp.StatusCode, body)
	}

	rows, err := DecodeRows(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return rows, nil
}

// DirSource reads previously downloaded files from a local directory.
// It implements pipeline.DatasetExtractor.
type DirSource struct {
	dir    string
	logger *slog.Logger
}

// NewDirSource creates a source reading the open-data files from dir.
func NewDirSource(dir string, logger *slog.Logger) *DirSource {
	return &DirSource{dir: dir, logger: logger}
}

// ExtractDataset reads every file and aggregates the rows.
func (d *DirSource) ExtractDataset(ctx context.Context) (*domain.Dataset, error) {
	return buildDataset(ctx, d.readRows, d.logger, nil)
}

func (d *DirSource) readRows(_ context.Context, file string) ([]domain.RawRow, error) {
	f, err := os.Open(filepath.Join(d.dir, file))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	rows, err := DecodeRows(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return rows, nil
}
