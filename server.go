package qcomposer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const welcomeMessage = "Welcome to Quantarium Composer API"

/*
Server binds the controller to HTTP and the broadcast group to a websocket.

It is a thin collaborator: every decision about the session is made by the
controller, the server only decodes requests and encodes results.
*/
type Server struct {
	router     *chi.Mux
	controller *Controller
	group      *BroadcastGroup
	limiter    Regulator
	gatherer   prometheus.Gatherer
	log        zerolog.Logger
	cfg        *Config
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRegulator refuses command requests while the regulator says so.
func WithRegulator(limiter Regulator) ServerOption {
	return func(server *Server) {
		server.limiter = limiter
	}
}

// WithGatherer exposes the gatherer on GET /metrics.
func WithGatherer(gatherer prometheus.Gatherer) ServerOption {
	return func(server *Server) {
		server.gatherer = gatherer
	}
}

// NewServer builds the router. Nothing listens until ListenAndServe.
func NewServer(
	cfg *Config,
	controller *Controller,
	group *BroadcastGroup,
	log zerolog.Logger,
	opts ...ServerOption,
) *Server {
	server := &Server{
		router:     chi.NewRouter(),
		controller: controller,
		group:      group,
		log:        log.With().Str("component", "server").Logger(),
		cfg:        cfg,
	}

	for _, opt := range opts {
		opt(server)
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// Handler exposes the router, mostly for tests.
func (server *Server) Handler() http.Handler {
	return server.router
}

func (server *Server) setupMiddleware() {
	server.router.Use(middleware.Recoverer)
	server.router.Use(middleware.RequestID)
	server.router.Use(middleware.RealIP)
	server.router.Use(server.loggingMiddleware)
	server.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: server.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (server *Server) setupRoutes() {
	server.router.Get("/health", server.handleHealth)
	server.router.Get("/ws", server.handleSubscribe)

	if server.gatherer != nil {
		server.router.Handle("/metrics", promhttp.HandlerFor(server.gatherer, promhttp.HandlerOpts{}))
	}

	server.router.Route("/api", func(r chi.Router) {
		r.Get("/", server.handleWelcome)
		r.Get("/state", server.handleState)
		r.Get("/gates", server.handleGates)
		r.Post("/compare", server.handleCompare)

		r.Group(func(r chi.Router) {
			r.Use(server.throttle)

			r.Post("/init", server.handleReset)
			r.Post("/reset", server.handleReset)
			r.Post("/gates/{symbol}/preview", server.handlePreviewGate)
			r.Post("/gates/{symbol}", server.handleApplyGate)
			r.Post("/undo", server.handleUndoGate)
			r.Post("/measure", server.handleMeasure)
			r.Post("/unmeasure", server.handleUnmeasure)
		})
	})
}

/*
ListenAndServe serves until ctx is cancelled, then shuts down gracefully.

Returns:
  - error: nil after a clean shutdown, otherwise the listen or shutdown error
*/
func (server *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              server.cfg.Addr,
		Handler:           server.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		server.log.Info().Str("addr", server.cfg.Addr).Msg("listening")
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("listen on %s: %w", server.cfg.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.cfg.ShutdownTimeout)
	defer cancel()

	server.group.Close()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	server.log.Info().Msg("stopped")
	return nil
}

func (server *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		server.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func (server *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if server.limiter != nil && server.limiter.Limit() {
			server.writeJSON(w, http.StatusTooManyRequests, Failure{
				Error: true,
				Msg:   "Too many commands, slow down",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (server *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	server.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (server *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, welcomeMessage)
}

func (server *Server) handleState(w http.ResponseWriter, r *http.Request) {
	server.writeJSON(w, http.StatusOK, server.controller.State())
}

func (server *Server) handleGates(w http.ResponseWriter, r *http.Request) {
	server.writeJSON(w, http.StatusOK, server.controller.Gates())
}

func (server *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	server.writeJSON(w, http.StatusOK, server.controller.Reset())
}

func (server *Server) handlePreviewGate(w http.ResponseWriter, r *http.Request) {
	preview, err := server.controller.PreviewGate(chi.URLParam(r, "symbol"))
	server.respond(w, preview, err)
}

func (server *Server) handleApplyGate(w http.ResponseWriter, r *http.Request) {
	summary, err := server.controller.ApplyGate(chi.URLParam(r, "symbol"))
	server.respond(w, summary, err)
}

func (server *Server) handleUndoGate(w http.ResponseWriter, r *http.Request) {
	summary, err := server.controller.UndoGate()
	server.respond(w, summary, err)
}

type measureRequest struct {
	BatchSize *int `json:"batchSize"`
}

func (server *Server) handleMeasure(w http.ResponseWriter, r *http.Request) {
	batchSize, err := decodeBatchSize(r)
	if err != nil {
		server.respond(w, nil, err)
		return
	}

	measurement, err := server.controller.Measure(batchSize)
	server.respond(w, measurement, err)
}

// decodeBatchSize reads batchSize from the JSON body, falling back to the query string.
func decodeBatchSize(r *http.Request) (int, error) {
	var request measureRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		return 0, invalidParameters("Invalid parameters: %v", err)
	}

	if request.BatchSize != nil {
		return *request.BatchSize, nil
	}

	raw := r.URL.Query().Get("batchSize")
	if raw == "" {
		return 0, invalidParameters("Invalid parameters: batchSize is required")
	}

	batchSize, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParameters("Invalid parameters: batchSize must be an integer")
	}

	return batchSize, nil
}

func (server *Server) handleUnmeasure(w http.ResponseWriter, r *http.Request) {
	summary, err := server.controller.Unmeasure()
	server.respond(w, summary, err)
}

type compareRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

func (server *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var request compareRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		server.respond(w, nil, invalidParameters("Invalid parameters: %v", err))
		return
	}

	comparison, err := server.controller.CompareStates(request.A, request.B)
	server.respond(w, comparison, err)
}

func (server *Server) respond(w http.ResponseWriter, body any, err error) {
	if err != nil {
		server.writeJSON(w, statusFor(err), NewFailure(err))
		return
	}

	server.writeJSON(w, http.StatusOK, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownGate):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidParameters):
		return http.StatusBadRequest
	case errors.Is(err, ErrCollapsed), errors.Is(err, ErrEmptyStack), errors.Is(err, ErrNoMeasurement):
		return http.StatusConflict
	}

	return http.StatusInternalServerError
}

func (server *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		server.log.Warn().Err(err).Msg("failed to encode response")
	}
}
