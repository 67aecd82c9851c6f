package api

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"dashboard/internal/dashboard"
	"dashboard/internal/engine"
	"dashboard/internal/models"
	"dashboard/internal/render"
	"dashboard/internal/session"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Config holds the handler's settings.
type Config struct {
	Logger     *slog.Logger
	SessionTTL time.Duration
	Clock      clockwork.Clock

	// RateLimit caps input changes per client per second; zero disables it.
	RateLimit float64
	RateBurst int
}

// Handler serves the dashboard. Until SetData is called every dataset route
// answers 503 so the server can start before the load finishes.
type Handler struct {
	cfg Config

	mu       sync.RWMutex
	store    *engine.Store
	sessions *session.Manager
}

func NewHandler(cfg Config) *Handler {
	return &Handler{cfg: cfg}
}

// SetData publishes a loaded store. Sessions from a previous store are dropped.
func (h *Handler) SetData(store *engine.Store) error {
	sessions, err := session.NewManager(session.Config{
		Logger: h.cfg.Logger,
		Store:  store,
		TTL:    h.cfg.SessionTTL,
		Clock:  h.cfg.Clock,
	})
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.store = store
	h.sessions = sessions
	h.mu.Unlock()
	return nil
}

// Sweep expires idle sessions. It is a no-op while loading.
func (h *Handler) Sweep() int {
	h.mu.RLock()
	sessions := h.sessions
	h.mu.RUnlock()
	if sessions == nil {
		return 0
	}
	return sessions.Sweep()
}

func (h *Handler) loaded() (*engine.Store, *session.Manager, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.store == nil {
		return nil, nil, echo.NewHTTPError(http.StatusServiceUnavailable, "dataset is still loading")
	}
	return h.store, h.sessions, nil
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.GET("/options", h.GetOptions)
	api.GET("/charts/static", h.GetStaticCharts)
	api.GET("/charts/interactive", h.GetInteractiveChart)

	var limit []echo.MiddlewareFunc
	if h.cfg.RateLimit > 0 {
		limit = append(limit, middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(h.cfg.RateLimit),
				Burst:     h.cfg.RateBurst,
				ExpiresIn: 3 * time.Minute,
			},
		)))
	}

	api.POST("/sessions", h.CreateSession)
	api.GET("/sessions/:id", h.GetSession)
	api.PATCH("/sessions/:id/inputs", h.UpdateInputs, limit...)
	api.GET("/sessions/:id/charts/:output/svg", h.GetChartSVG)
}

// httpError maps domain errors onto status codes; anything else is a 500.
func httpError(err error) error {
	var ufe *models.UnknownFieldError
	switch {
	case errors.As(err, &ufe), errors.Is(err, models.ErrUnknownChartKind):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.Is(err, session.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error()).SetInternal(err)
	}
	return err
}

// --- HANDLERS ---

func (h *Handler) Health(c echo.Context) error {
	h.mu.RLock()
	ready := h.store != nil
	h.mu.RUnlock()
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok", "ready": ready})
}

type optionsResponse struct {
	Fields     []models.Field            `json:"fields"`
	ChartTypes []models.ChartKind        `json:"chart_types"`
	Values     map[models.Field][]string `json:"values"`
}

// GetOptions lists the dropdown choices: the groupable fields and every
// distinct value of each field.
func (h *Handler) GetOptions(c echo.Context) error {
	store, _, err := h.loaded()
	if err != nil {
		return err
	}
	resp := optionsResponse{
		Fields:     models.Fields,
		ChartTypes: []models.ChartKind{models.ChartBar, models.ChartPie},
		Values:     make(map[models.Field][]string, len(models.Fields)),
	}
	for _, f := range models.Fields {
		vals, err := store.DistinctValues(f)
		if err != nil {
			return err
		}
		resp.Values[f] = vals
	}
	return c.JSON(http.StatusOK, resp)
}

// chartKind reads a chart type query parameter, defaulting to Bar.
func chartKind(c echo.Context, name string) (models.ChartKind, error) {
	v := c.QueryParam(name)
	if v == "" {
		return models.ChartBar, nil
	}
	return models.ParseChartKind(v)
}

func (h *Handler) GetStaticCharts(c echo.Context) error {
	store, _, err := h.loaded()
	if err != nil {
		return err
	}
	kind, err := chartKind(c, "chart_type")
	if err != nil {
		return httpError(err)
	}
	charts, err := dashboard.ComputeStatic(store, kind)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, charts)
}

// GetInteractiveChart evaluates the interactive chart from query parameters
// without creating a session.
func (h *Handler) GetInteractiveChart(c echo.Context) error {
	store, _, err := h.loaded()
	if err != nil {
		return err
	}
	in := dashboard.DefaultInputs()
	for _, name := range dashboard.AllInputs {
		if v := c.QueryParam(string(name)); v != "" {
			in[name] = v
		}
	}
	kind, err := models.ParseChartKind(in[dashboard.InputChartType])
	if err != nil {
		return httpError(err)
	}
	spec, err := dashboard.ComputeInteractive(store, kind, in[dashboard.InputField], in.Filters())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, spec)
}

type sessionResponse struct {
	ID     string                       `json:"id"`
	Inputs dashboard.Inputs             `json:"inputs"`
	Charts map[string]models.ChartSpec `json:"charts"`
}

func newSessionResponse(s *session.Session) sessionResponse {
	return sessionResponse{ID: s.ID, Inputs: s.Inputs(), Charts: s.Charts()}
}

type updateResponse struct {
	sessionResponse
	Updated []string `json:"updated"`
}

func (h *Handler) CreateSession(c echo.Context) error {
	_, sessions, err := h.loaded()
	if err != nil {
		return err
	}
	s, err := sessions.Create()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, newSessionResponse(s))
}

func (h *Handler) GetSession(c echo.Context) error {
	_, sessions, err := h.loaded()
	if err != nil {
		return err
	}
	s, err := sessions.Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, newSessionResponse(s))
}

// UpdateInputs applies a JSON object of input changes. A null value clears
// the input. Only the outputs depending on a changed input are recomputed.
func (h *Handler) UpdateInputs(c echo.Context) error {
	_, sessions, err := h.loaded()
	if err != nil {
		return err
	}

	var body map[string]*string
	if err := (&echo.DefaultBinder{}).BindBody(c, &body); err != nil {
		return err
	}
	changes := make(map[dashboard.Input]*string, len(body))
	for name, v := range body {
		in, ok := dashboard.ParseInput(name)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown input %q", name))
		}
		changes[in] = v
	}

	id := c.Param("id")
	updated, err := sessions.Update(id, changes)
	if err != nil {
		return httpError(err)
	}
	s, err := sessions.Get(id)
	if err != nil {
		return httpError(err)
	}
	if updated == nil {
		updated = []string{}
	}
	return c.JSON(http.StatusOK, updateResponse{sessionResponse: newSessionResponse(s), Updated: updated})
}

func (h *Handler) GetChartSVG(c echo.Context) error {
	_, sessions, err := h.loaded()
	if err != nil {
		return err
	}
	s, err := sessions.Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	spec, ok := s.Charts()[c.Param("output")]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown output %q", c.Param("output")))
	}

	var buf bytes.Buffer
	if err := render.SVG(&buf, spec); err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "image/svg+xml", buf.Bytes())
}
