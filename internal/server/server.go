// Package server exposes stored report rows and async batch runs over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/castlemilk/cse-statements/internal/report"
	"github.com/castlemilk/cse-statements/internal/store"
)

// RunFunc performs one batch run, reporting progress as files complete.
type RunFunc func(ctx context.Context, progress func(done, total int)) (store.Run, error)

// Config wires the server to its collaborators.
type Config struct {
	Store store.Store
	// Run starts a batch run. POST /runs answers 503 when nil.
	Run            RunFunc
	JobTTL         time.Duration
	AllowedOrigins []string
	Logger         *slog.Logger
}

func (c *Config) defaults() {
	if c.JobTTL <= 0 {
		c.JobTTL = time.Hour
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"http://localhost:1234", "http://127.0.0.1:1234"}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server serves the read API and async run jobs.
type Server struct {
	cfg    Config
	jobs   *JobStore
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	newID  func() string
}

// New creates a Server. Call Close to stop background work.
func New(cfg Config) *Server {
	cfg.defaults()
	base, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		jobs:   NewJobStore(cfg.JobTTL),
		base:   base,
		cancel: cancel,
		newID:  uuid.NewString,
	}
}

// Close cancels in-flight runs and waits for them to return.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
	s.jobs.Stop()
}

// Router returns the chi routes without middleware.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/reports", s.handleListReports)
	r.Get("/runs/latest", s.handleLatestRun)
	r.Post("/runs", s.handleStartRun)
	r.Get("/runs/{id}", s.handleGetJob)
	return r
}

// Handler returns the full HTTP handler: routes behind CORS, served over
// HTTP/1.1 or cleartext HTTP/2.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"User-Agent",
		},
	})
	return h2c.NewHandler(c.Handler(s.Router()), &http2.Server{})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type listReportsResponse struct {
	Rows          []report.Row `json:"rows"`
	NextPageToken string       `json:"next_page_token,omitempty"`
}

// handleListReports lists rows of the latest run, or of ?run=.
// GET /reports?issuer=DIPD&run=...&page_size=50&page_token=...
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var pageSize int64
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			http.Error(w, "Invalid page_size", http.StatusBadRequest)
			return
		}
		pageSize = n
	}

	rows, next, err := s.cfg.Store.ListReports(r.Context(), q.Get("run"), strings.ToUpper(q.Get("issuer")),
		int32(pageSize), q.Get("page_token"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "No reports found", http.StatusNotFound)
		return
	case errors.Is(err, store.ErrInvalidPageToken):
		http.Error(w, "Invalid page_token", http.StatusBadRequest)
		return
	case err != nil:
		s.cfg.Logger.Error("list reports failed", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []report.Row{}
	}
	writeJSON(w, http.StatusOK, listReportsResponse{Rows: rows, NextPageToken: next})
}

// GET /runs/latest
func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.cfg.Store.LatestRun(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "No runs yet", http.StatusNotFound)
		return
	}
	if err != nil {
		s.cfg.Logger.Error("latest run failed", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleStartRun starts an async batch run.
// POST /runs
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Run == nil {
		http.Error(w, "Runs are not enabled", http.StatusServiceUnavailable)
		return
	}
	job := Job{ID: s.newID(), Status: JobPending}
	activeID, created, err := s.jobs.CreateIfIdle(job)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if !created {
		w.Header().Set("Location", "/runs/"+activeID)
		http.Error(w, "A run is already in progress", http.StatusConflict)
		return
	}
	s.cfg.Logger.Info("run job created", "job", job.ID)

	s.wg.Add(1)
	go s.execute(job.ID)

	w.Header().Set("Location", "/runs/"+job.ID)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     job.ID,
		"status": string(JobPending),
	})
}

func (s *Server) execute(id string) {
	defer s.wg.Done()
	_ = s.jobs.Update(id, func(j *Job) { j.Status = JobRunning })

	run, err := s.cfg.Run(s.base, func(done, total int) {
		_ = s.jobs.Update(id, func(j *Job) { j.Done, j.Total = done, total })
	})
	_ = s.jobs.Update(id, func(j *Job) {
		if err != nil {
			j.Status = JobFailed
			j.Error = err.Error()
			return
		}
		j.Status = JobDone
		j.RunID = run.ID
		j.Rows = run.Rows
		j.Failed = run.Failed
	})
	if err != nil {
		s.cfg.Logger.Error("run job failed", "job", id, "err", err)
		return
	}
	s.cfg.Logger.Info("run job finished", "job", id, "run", run.ID, "rows", run.Rows)
}

// GET /runs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
