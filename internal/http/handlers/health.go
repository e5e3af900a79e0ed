package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the readiness check pings. *pgxpool.Pool fits
// directly; Redis and the platform API are wrapped with PingFunc.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// UpstreamPing reports the platform API as reachable when it answers at all;
// any HTTP status counts, only transport failures do not.
func UpstreamPing(baseURL string, client *http.Client) PingFunc {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}
}

// HealthHandler serves the liveness and readiness endpoints.
type HealthHandler struct {
	checks  map[string]Pinger
	gauges  map[string]func() int
	started time.Time
	version string
}

// NewHealthHandler creates a health handler. checks may be empty: the BFF
// runs without a database or Redis.
func NewHealthHandler(version string, checks map[string]Pinger) *HealthHandler {
	if checks == nil {
		checks = make(map[string]Pinger)
	}
	return &HealthHandler{
		checks:  checks,
		gauges:  make(map[string]func() int),
		started: time.Now(),
		version: version,
	}
}

// Gauge adds a live count (open reading sessions, sockets) to the readiness body.
func (h *HealthHandler) Gauge(name string, fn func() int) *HealthHandler {
	h.gauges[name] = fn
	return h
}

type ReadinessResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Live      map[string]int    `json:"live,omitempty"`
}

// Liveness never touches dependencies.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness pings every dependency; one failure makes the instance unready.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	failed, checks := h.ping(ctx)

	live := make(map[string]int, len(h.gauges))
	for name, fn := range h.gauges {
		live[name] = fn()
	}

	res := ReadinessResponse{
		Status:    "healthy",
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Live:      live,
	}
	code := http.StatusOK
	if failed != "" {
		res.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, res)
}

// Health is the short form of Readiness.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if failed, _ := h.ping(ctx); failed != "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": failed + " unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

// ping returns the name of a failed check, if any, and every check's outcome.
func (h *HealthHandler) ping(ctx context.Context) (string, map[string]string) {
	failed := ""
	out := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			out[name] = "unhealthy: " + err.Error()
			failed = name
			continue
		}
		out[name] = "healthy"
	}
	return failed, out
}
