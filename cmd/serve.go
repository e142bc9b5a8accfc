package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doernaz/brandlift/internal/discovery"
	"github.com/doernaz/brandlift/internal/jobs"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger server for scans",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initScan(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		s := newScanServer(ctx, env.Controller, env.Sink, jobs.NewManager(), defaultRequest(cfg))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(s, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		// Background scans see the canceled context and stop between pivots.
		s.wait()
		return nil
	},
}

// runner runs a scan. Implemented by *discovery.Controller.
type runner interface {
	CheckRequest(req *discovery.RunRequest) error
	Run(ctx context.Context, req discovery.RunRequest, progress discovery.ProgressFunc) (*discovery.RunResult, error)
}

// scanServer holds the handlers' dependencies.
type scanServer struct {
	ctx      context.Context
	runner   runner
	sink     discovery.Sink
	jobs     *jobs.Manager
	defaults discovery.RunRequest
	wg       sync.WaitGroup
}

func newScanServer(ctx context.Context, r runner, snk discovery.Sink, m *jobs.Manager, defaults discovery.RunRequest) *scanServer {
	return &scanServer{ctx: ctx, runner: r, sink: snk, jobs: m, defaults: defaults}
}

// wait blocks until every background scan has returned.
func (s *scanServer) wait() {
	s.wg.Wait()
}

// buildRouter registers the HTTP routes.
func buildRouter(s *scanServer, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/scan", s.handleScan)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// scanRequest is the POST /api/scan body. Absent fields fall back to the
// configured defaults.
type scanRequest struct {
	TargetCount   *int     `json:"targetCount"`
	Locations     []string `json:"locations"`
	Keywords      []string `json:"keywords"`
	MaxIterations *int     `json:"maxIterations"`
	Profile       string   `json:"profile"`
	MinSignal     *float64 `json:"minSignal"`
	Async         bool     `json:"async"`
}

func (b scanRequest) merge(defaults discovery.RunRequest) discovery.RunRequest {
	req := defaults
	if b.TargetCount != nil {
		req.TargetCount = *b.TargetCount
	}
	if len(b.Locations) > 0 {
		req.Locations = b.Locations
	}
	if len(b.Keywords) > 0 {
		req.Keywords = b.Keywords
	}
	if b.MaxIterations != nil {
		req.MaxIterations = *b.MaxIterations
	}
	if b.Profile != "" {
		req.Profile = b.Profile
	}
	if b.MinSignal != nil {
		req.MinSignal = *b.MinSignal
	}
	return req
}

type scanResponse struct {
	Status            string `json:"status"`
	TotalVerified     int    `json:"totalVerified"`
	Message           string `json:"message"`
	RunID             string `json:"runId"`
	TerminationReason string `json:"terminationReason"`
}

func (s *scanServer) handleScan(w http.ResponseWriter, r *http.Request) {
	var body scanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req := body.merge(s.defaults)
	if err := s.runner.CheckRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if body.Async {
		job := s.jobs.Create(req)
		req.RunID = job.RunID
		s.wg.Add(1)
		go s.runJob(job.ID, req)
		writeJSON(w, http.StatusAccepted, map[string]string{"jobId": job.ID, "runId": job.RunID})
		return
	}

	res, err := s.runner.Run(r.Context(), req, nil)
	if err != nil {
		status := http.StatusInternalServerError
		if discovery.IsRequestError(err) {
			status = http.StatusBadRequest
		}
		zap.L().Error("scan failed", zap.Error(err))
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{
		Status:            res.Status,
		TotalVerified:     res.TotalVerified,
		Message:           res.Message,
		RunID:             res.RunID,
		TerminationReason: res.TerminationReason,
	})
}

// runJob runs a scan in the background and records its outcome.
func (s *scanServer) runJob(id string, req discovery.RunRequest) {
	defer s.wg.Done()
	log := zap.L().With(zap.String("job_id", id), zap.String("run_id", req.RunID))

	_ = s.jobs.Start(id)
	res, err := s.runner.Run(s.ctx, req, func(state discovery.RunState) {
		_ = s.jobs.Progress(id, state)
	})
	if err != nil {
		log.Error("scan job failed", zap.Error(err))
		_ = s.jobs.Fail(id, err, res)
		return
	}
	log.Info("scan job complete", zap.Int("total_verified", res.TotalVerified))
	_ = s.jobs.Complete(id, res)
}

type jobResponse struct {
	jobs.Job
	Leads []*discovery.VerifiedLead `json:"leads"`
}

func (s *scanServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	leads, err := s.sink.ListByRunID(r.Context(), job.RunID)
	if err != nil {
		zap.L().Error("list job leads", zap.String("job_id", job.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load leads")
		return
	}
	if leads == nil {
		leads = []*discovery.VerifiedLead{}
	}
	writeJSON(w, http.StatusOK, jobResponse{Job: job, Leads: leads})
}

func (s *scanServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.jobs.List()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
