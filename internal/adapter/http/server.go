package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/epi-trends-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReportSource serves the latest region reports.
type ReportSource interface {
	sharedobs.ReadinessChecker
	Reports() []domain.RegionReport
	Report(region string) (domain.RegionReport, bool)
}

// Server exposes health, readiness, metrics and report HTTP endpoints.
type Server struct {
	httpServer *http.Server
	reports    ReportSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /reports and /reports/{region} routes.
func NewServer(addr string, reports ReportSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		reports: reports,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(reports))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /reports", s.handleReports)
	mux.HandleFunc("GET /reports/{region}", s.handleRegionReport)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleReports(w http.ResponseWriter, _ *http.Request) {
	reports := s.reports.Reports()
	if reports == nil {
		writeError(w, http.StatusServiceUnavailable, "reports not built yet")
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, reports)
}

func (s *Server) handleRegionReport(w http.ResponseWriter, r *http.Request) {
	region := r.PathValue("region")
	if !domain.IsKnownRegion(region) {
		writeError(w, http.StatusNotFound, "unknown region "+region)
		return
	}
	report, ok := s.reports.Report(region)
	if !ok {
		if s.reports.Reports() == nil {
			writeError(w, http.StatusServiceUnavailable, "reports not built yet")
			return
		}
		writeError(w, http.StatusNotFound, "region "+region+" is not reported")
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, report)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
