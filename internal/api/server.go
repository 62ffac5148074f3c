// Package api serves the report pipeline over HTTP: payloads are POSTed and
// come back as chart specs, a snapshot, or an interactive page.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/geometry.report/internal/config"
	"github.com/banshee-data/geometry.report/internal/db"
	"github.com/banshee-data/geometry.report/internal/httputil"
	"github.com/banshee-data/geometry.report/internal/monitoring"
	"github.com/banshee-data/geometry.report/internal/payload"
	"github.com/banshee-data/geometry.report/internal/pipeline"
	"github.com/banshee-data/geometry.report/internal/render"
	"github.com/banshee-data/geometry.report/internal/track"
	"github.com/banshee-data/geometry.report/internal/version"
)

// ANSI escape codes for the request log
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 1000
)

// History is the run store behind the history endpoints.
type History interface {
	pipeline.Recorder
	ListRuns(ctx context.Context, limit int) ([]db.Run, error)
	Run(ctx context.Context, id string) (db.Run, error)
}

// SnapshotResponse is the body of POST /api/snapshot.
type SnapshotResponse struct {
	RunID   string `json:"run_id"`
	DataURL string `json:"data_url"`
}

type Server struct {
	cfg     *config.ReportConfig
	history History
}

// NewServer returns a server rendering with cfg. history may be nil, which
// disables recording and the history endpoints.
func NewServer(cfg *config.ReportConfig, history History) *Server {
	if cfg == nil {
		cfg = config.EmptyReportConfig()
	}
	return &Server{cfg: cfg, history: history}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/charts", s.postCharts)
	mux.HandleFunc("/api/snapshot", s.postSnapshot)
	mux.HandleFunc("/charts", s.postChartsHTML)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/", s.showRun)
	mux.HandleFunc("/api/version", s.showVersion)
	return mux
}

// Handler returns the mux wrapped in the request logger.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.ServeMux())
}

func (s *Server) runner(cfg *config.ReportConfig) *pipeline.Runner {
	r := pipeline.NewRunner(cfg)
	if s.history != nil {
		r.History = s.history
	}
	r.Source = "api"
	return r
}

// run decodes the request body and runs it with the given renderer
// override. It writes the error response itself and returns nil on failure.
func (s *Server) run(w http.ResponseWriter, r *http.Request, renderer string) *pipeline.Result {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return nil
	}

	snap, err := payload.Decode(r.Body)
	if err != nil {
		writePipelineError(w, err)
		return nil
	}

	cfg := *s.cfg
	if renderer != "" {
		cfg.Renderer = &renderer
	}
	runner := s.runner(&cfg)
	res, err := runner.Run(r.Context(), snap, runner.NewSurface(snap.Page))
	if err != nil {
		writePipelineError(w, err)
		return nil
	}
	return res
}

func (s *Server) postCharts(w http.ResponseWriter, r *http.Request) {
	res := s.run(w, r, "")
	if res == nil {
		return
	}
	httputil.WriteJSONOK(w, res)
}

// postSnapshot returns the snapshot data URL as JSON, or the decoded PNG
// when the client accepts image/png.
func (s *Server) postSnapshot(w http.ResponseWriter, r *http.Request) {
	res := s.run(w, r, config.RendererPNG)
	if res == nil {
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "image/png") && res.DataURL != "" {
		mediaType, data, err := render.DecodeDataURL(res.DataURL)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteBody(w, mediaType, data)
		return
	}
	httputil.WriteJSONOK(w, SnapshotResponse{RunID: res.RunID, DataURL: res.DataURL})
}

func (s *Server) postChartsHTML(w http.ResponseWriter, r *http.Request) {
	res := s.run(w, r, config.RendererHTML)
	if res == nil {
		return
	}
	if res.DataURL == "" {
		httputil.UnprocessableEntity(w, "no visible charts")
		return
	}
	_, page, err := render.DecodeDataURL(res.DataURL)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteBody(w, "text/html; charset=utf-8", page)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.history == nil {
		httputil.NotFound(w, "run history is disabled")
		return
	}

	limit := defaultRunsLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxRunsLimit {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, "failed to list runs: "+err.Error())
		return
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.history == nil {
		httputil.NotFound(w, "run history is disabled")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		httputil.BadRequest(w, "invalid run id")
		return
	}

	run, err := s.history.Run(r.Context(), id)
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "failed to load run: "+err.Error())
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, version.Current())
}

// writePipelineError maps the pipeline error classes onto status codes.
func writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, track.ErrInvalidInput):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, track.ErrConfiguration), errors.Is(err, track.ErrDataOrdering):
		httputil.UnprocessableEntity(w, err.Error())
	case errors.Is(err, context.Canceled):
		monitoring.Logf("request cancelled: %v", err)
	default:
		httputil.InternalServerError(w, err.Error())
	}
}
