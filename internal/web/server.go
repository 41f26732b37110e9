// Package web serves the healer's read-only HTTP surface: liveness,
// the batch summary API and Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/5dlabs/healer/internal/analytics"
	"github.com/5dlabs/healer/internal/batch"
	"github.com/5dlabs/healer/internal/db"
)

// SummarySource provides the current batch view. The monitor loop
// implements it.
type SummarySource interface {
	Batch() *batch.Batch
}

// Server is the read-only HTTP server.
type Server struct {
	source SummarySource
	store  *db.DB // nil = persistence disabled
	addr   string
}

// NewServer creates a Server. store may be nil; the history endpoints
// then report that persistence is disabled.
func NewServer(source SummarySource, store *db.DB, addr string) *Server {
	return &Server{source: source, store: store, addr: addr}
}

// Handler returns the routed handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/tasks", s.handleTasks)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/remediations", s.handleRemediations)
	mux.HandleFunc("GET /api/trend", s.handleTrend)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// ListenAndServe runs the server until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Printf("web: listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return fmt.Errorf("web server: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	b := s.source.Batch()
	if b == nil {
		writeError(w, http.StatusServiceUnavailable, "no batch loaded yet")
		return
	}
	writeJSON(w, http.StatusOK, batch.Summarize(b))
}

type taskView struct {
	TaskID      string `json:"task_id"`
	Phase       string `json:"phase"`
	Stage       string `json:"stage,omitempty"`
	Agent       string `json:"agent,omitempty"`
	PRNumber    int    `json:"pr_number,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Remediation string `json:"remediation,omitempty"`
	Stuck       bool   `json:"stuck,omitempty"`
}

func (s *Server) handleTasks(w http.ResponseWriter, _ *http.Request) {
	b := s.source.Batch()
	if b == nil {
		writeError(w, http.StatusServiceUnavailable, "no batch loaded yet")
		return
	}

	views := make([]taskView, 0, len(b.Tasks))
	for _, t := range b.Tasks {
		v := taskView{
			TaskID:   t.TaskID,
			Phase:    t.Status.Phase.String(),
			PRNumber: t.PRNumber,
			Reason:   t.Status.Reason,
			Stuck:    t.IsStuck(),
		}
		if st, ok := t.CurrentStage(); ok {
			v.Stage = st.String()
			v.Agent = st.Agent()
		} else if t.Status.Phase == batch.PhaseFailed {
			v.Stage = t.Status.Stage.String()
		}
		if t.Status.Remediation != nil {
			v.Remediation = t.Status.Remediation.RunName
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

func limitParam(r *http.Request) int {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	return limit
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "persistence disabled")
		return
	}
	rows, err := s.store.RecentAlerts(r.Context(), limitParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "persistence disabled")
		return
	}
	points, err := analytics.QueryHealthTrend(r.Context(), s.store, limitParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleRemediations(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "persistence disabled")
		return
	}
	rows, err := s.store.RecentRemediations(r.Context(), r.URL.Query().Get("task"), limitParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
