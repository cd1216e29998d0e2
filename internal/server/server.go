package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/spake/internal/config"
	"github.com/example/spake/internal/generate"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// MaxCount bounds the sentences returned by one /generate call.
const MaxCount = 20

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	workers        int
	requestTimeout time.Duration
	maxTokens      int
	generate       config.GenerateConfig
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		workers:        4,
		requestTimeout: 10 * time.Second,
		maxTokens:      1000,
		generate:       config.DefaultConfig().Generate,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithWorkers sets the maximum number of concurrent generation calls.
// Zero disables throttling.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request generation deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithMaxTokens caps walks whose configuration leaves them unbounded, so a
// cyclic model cannot pin a worker.
func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = n }
}

// WithGenerateDefaults sets the order, policy and walk settings used when a
// request does not override them. A non-zero Seed roots the seed pool.
func WithGenerateDefaults(cfg config.GenerateConfig) Option {
	return func(o *options) { o.generate = cfg }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	models *Holder
	opts   options
	sem    chan struct{} // semaphore for worker pool
	seeds  *generate.SeedPool
	log    *slog.Logger
}

func newHandler(models *Holder, optFns ...Option) *handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		models: models,
		opts:   opts,
		seeds:  generate.NewSeedPool(opts.generate.Seed),
		log:    opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	return h
}

// NewHandler returns an http.Handler that serves /health, /generate,
// /stats and POST /reload.
func NewHandler(models *Holder, optFns ...Option) http.Handler {
	return newHandler(models, optFns...).routes()
}

func (h *handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/generate", h.handleGenerate)
	mux.HandleFunc("/stats", h.handleStats)
	mux.HandleFunc("/reload", h.handleReload)

	return withRequestID(mux)
}

type requestIDKey struct{}

// withRequestID tags every request with an ID, taken from the incoming
// header when present, and echoes it in the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": buildVersion(),
		"model":   h.models.Model() != nil,
	})
}

type generateRequest struct {
	Order  string `json:"order"`
	Policy string `json:"policy"`
	Count  int    `json:"count"`
	Seed   uint64 `json:"seed"`
}

type generateResponse struct {
	RequestID string   `json:"request_id"`
	Order     string   `json:"order"`
	Policy    string   `json:"policy"`
	Seed      uint64   `json:"seed"`
	Sentences []string `json:"sentences"`
}

func parseGenerateRequest(r *http.Request) (generateRequest, error) {
	req := generateRequest{Count: 1}

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Order = q.Get("order")
		req.Policy = q.Get("policy")
		if v := q.Get("count"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return req, fmt.Errorf("invalid count %q", v)
			}
			req.Count = n
		}
		if v := q.Get("seed"); v != "" {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return req, fmt.Errorf("invalid seed %q", v)
			}
			req.Seed = n
		}
	case http.MethodPost:
		if r.Body == nil || r.ContentLength == 0 {
			return req, nil
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid JSON: %w", err)
		}
	}

	return req, nil
}

func (h *handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, err := parseGenerateRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Count < 1 || req.Count > MaxCount {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("count must be between 1 and %d", MaxCount))
		return
	}

	cfg := h.opts.generate
	if req.Order != "" {
		cfg.Order = req.Order
	}
	if req.Policy != "" {
		cfg.Policy = req.Policy
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = h.opts.maxTokens
	}
	cfg.Seed = req.Seed
	if cfg.Seed == 0 {
		cfg.Seed = h.seeds.Next()
	}

	m := h.models.Model()
	if m == nil {
		writeError(w, http.StatusServiceUnavailable, "no model loaded")
		return
	}

	g, err := generate.New(m, cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Acquire a worker slot, honouring cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
		defer func() { <-h.sem }()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	log := h.log.With(slog.String("request_id", requestID(r.Context())))

	start := time.Now()
	sentences, err := generateN(ctx, g, req.Count)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		attrs := []any{
			slog.String("order", g.Order.String()),
			slog.String("policy", g.Policy.String()),
			slog.Uint64("seed", cfg.Seed),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		}

		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			log.WarnContext(r.Context(), "generation timed out", attrs...)
			writeError(w, http.StatusGatewayTimeout, "generation timed out")
		case errors.Is(err, generate.ErrEmptyModel):
			log.WarnContext(r.Context(), "generation on empty model", attrs...)
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, generate.ErrMissingContext) || errors.Is(err, generate.ErrWalkLimit):
			log.WarnContext(r.Context(), "generation failed", attrs...)
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			log.ErrorContext(r.Context(), "generation failed", attrs...)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	log.InfoContext(r.Context(), "generation complete",
		slog.String("order", g.Order.String()),
		slog.String("policy", g.Policy.String()),
		slog.Uint64("seed", cfg.Seed),
		slog.Int("count", len(sentences)),
		slog.Int64("duration_ms", durationMS),
	)

	writeJSON(w, http.StatusOK, generateResponse{
		RequestID: requestID(r.Context()),
		Order:     g.Order.String(),
		Policy:    g.Policy.String(),
		Seed:      cfg.Seed,
		Sentences: sentences,
	})
}

func generateN(ctx context.Context, g *generate.Generator, n int) ([]string, error) {
	out := make([]string, 0, n)
	for range n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s, err := g.Generate()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, nil
}

type statsResponse struct {
	Sentences       int      `json:"sentences"`
	Tokens          int      `json:"tokens"`
	Vocab           int      `json:"vocab"`
	Initial         int      `json:"initial"`
	BigramContexts  int      `json:"bigram_contexts"`
	TrigramContexts int      `json:"trigram_contexts"`
	TopTokens       []string `json:"top_tokens"`
}

func (h *handler) handleStats(w http.ResponseWriter, _ *http.Request) {
	m := h.models.Model()
	if m == nil {
		writeError(w, http.StatusServiceUnavailable, "no model loaded")
		return
	}

	bigrams, trigrams := m.Contexts()
	top := m.Stats.TopTokens
	if top == nil {
		top = []string{}
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Sentences:       m.Stats.Sentences,
		Tokens:          m.Stats.Tokens,
		Vocab:           m.Stats.Vocab,
		Initial:         len(m.Initial),
		BigramContexts:  bigrams,
		TrigramContexts: trigrams,
		TopTokens:       top,
	})
}

func (h *handler) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start := time.Now()
	m, err := h.models.Reload(r.Context())
	durationMS := time.Since(start).Milliseconds()

	log := h.log.With(slog.String("request_id", requestID(r.Context())))
	if err != nil {
		log.ErrorContext(r.Context(), "model reload failed",
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.InfoContext(r.Context(), "model reloaded",
		slog.Int("sentences", m.Stats.Sentences),
		slog.Int("vocab", m.Stats.Vocab),
		slog.Int64("duration_ms", durationMS),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "reloaded",
		"sentences": m.Stats.Sentences,
		"vocab":     m.Stats.Vocab,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	models          *Holder
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func New(cfg config.Config, models *Holder) *Server {
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Server{
		cfg:             cfg,
		models:          models,
		logger:          slog.Default(),
		shutdownTimeout: timeout,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithLogger overrides the request logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

// Start serves until ctx is cancelled. When the holder is empty it tries one
// reload first; a failure is logged and /generate answers 503 until a
// successful POST /reload.
func (s *Server) Start(ctx context.Context) error {
	if s.models == nil {
		s.models = NewHolder(nil)
	}

	if s.models.Model() == nil {
		if _, err := s.models.Reload(ctx); err != nil {
			s.logger.Warn("starting without a model", "error", err)
		}
	}

	h := NewHandler(s.models,
		WithWorkers(s.cfg.Server.Workers),
		WithRequestTimeout(s.cfg.Server.RequestTimeout),
		WithGenerateDefaults(s.cfg.Generate),
		WithLogger(s.logger),
	)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
