package kernel

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/adityak74/weatherweave/internal/config"
	"github.com/adityak74/weatherweave/internal/core/domain"
	"github.com/adityak74/weatherweave/internal/core/services"
	"github.com/adityak74/weatherweave/internal/metrics"
)

// Default generate throttle: one run every ten seconds with a burst of two.
const (
	DefaultGenerateEvery = 10 * time.Second
	DefaultGenerateBurst = 2
)

// Deps groups what the control API serves.
type Deps struct {
	Logger       *slog.Logger
	Pipeline     *services.Pipeline
	Orchestrator *services.GenerationOrchestrator
	Store        *services.ArtifactStore
	Journal      *services.RunJournal
	Settings     *config.SettingsStore
	EventBus     *services.EventBus
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer // nil disables /metrics
	Version      string

	GenerateLimit rate.Limit // zero uses DefaultGenerateEvery
	GenerateBurst int
}

type Server struct {
	logger       *slog.Logger
	pipeline     *services.Pipeline
	orchestrator *services.GenerationOrchestrator
	store        *services.ArtifactStore
	journal      *services.RunJournal
	settings     *config.SettingsStore
	eventBus     *services.EventBus
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	version      string
	started      time.Time
	limiter      *rate.Limiter
}

func NewServer(d Deps) *Server {
	limit := d.GenerateLimit
	if limit == 0 {
		limit = rate.Every(DefaultGenerateEvery)
	}
	burst := d.GenerateBurst
	if burst <= 0 {
		burst = DefaultGenerateBurst
	}
	return &Server{
		logger:       d.Logger,
		pipeline:     d.Pipeline,
		orchestrator: d.Orchestrator,
		store:        d.Store,
		journal:      d.Journal,
		settings:     d.Settings,
		eventBus:     d.EventBus,
		metrics:      d.Metrics,
		gatherer:     d.Gatherer,
		version:      d.Version,
		started:      time.Now(),
		limiter:      rate.NewLimiter(limit, burst),
	}
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/weather", s.handleWeather)
	mux.HandleFunc("GET /v1/themes", s.handleThemes)

	mux.HandleFunc("GET /v1/wallpapers", s.handleListWallpapers)
	mux.HandleFunc("GET /v1/wallpapers/current", s.handleCurrentWallpaper)
	mux.Handle("POST /v1/wallpapers", s.rateLimited(http.HandlerFunc(s.handleGenerate)))
	mux.HandleFunc("POST /v1/wallpapers/prune", s.handlePrune)
	mux.HandleFunc("POST /v1/wallpapers/{id}/apply", s.handleApply)
	mux.HandleFunc("DELETE /v1/wallpapers/{id}", s.handleDelete)
	mux.HandleFunc("GET /v1/wallpapers/{id}/image", s.handleImage)

	mux.HandleFunc("GET /v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /v1/runs/{id}", s.handleGetRun)

	mux.HandleFunc("GET /v1/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /v1/settings", s.handleUpdateSettings)

	mux.HandleFunc("GET /v1/events", s.handleEvents)

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	if s.metrics == nil {
		return mux
	}
	return s.metrics.Middleware(mux)
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			if s.metrics != nil {
				s.metrics.RateLimitDropped.Inc()
			}
			w.Header().Set("Retry-After", "10")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "generate rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status     string   `json:"status"`
	Version    string   `json:"version"`
	Uptime     string   `json:"uptime"`
	Strategies []string `json:"strategies"`
	History    int      `json:"history"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Version:    s.version,
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Strategies: s.orchestrator.Strategies(),
		History:    len(s.store.History()),
	})
}

// GET /v1/weather?theme=minimal
func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	var theme domain.Theme
	if q := r.URL.Query().Get("theme"); q != "" {
		t, err := domain.ParseTheme(q)
		if err != nil {
			s.writeError(w, err)
			return
		}
		theme = t
	}

	preview, err := s.pipeline.Preview(r.Context(), theme)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

type themeInfo struct {
	ID          domain.Theme `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Selected    bool         `json:"selected"`
}

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request) {
	selected := s.settings.GetConfig().Theme
	out := make([]themeInfo, 0, len(domain.AllThemes))
	for _, t := range domain.AllThemes {
		out = append(out, themeInfo{
			ID:          t,
			Name:        t.DisplayName(),
			Description: t.Description(),
			Selected:    t == selected,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPipelineBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownTheme), errors.Is(err, domain.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrApply), errors.Is(err, domain.ErrWeatherFetch), errors.Is(err, domain.ErrFallbackFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
