// Package health contiene el controller de /healthz.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	dto "github.com/tunetrail/tunetrail/internal/http/dto/health"
	httperrors "github.com/tunetrail/tunetrail/internal/http/errors"
	"github.com/tunetrail/tunetrail/internal/observability/logger"
	"github.com/tunetrail/tunetrail/internal/upstream"
)

// Check es un ping de una dependencia. nil = deshabilitada.
type Check func(ctx context.Context) error

// Deps de la verificación. DB es crítica; cache y gates solo degradan.
type Deps struct {
	DB      Check
	Cache   Check
	Gates   map[string]*upstream.Gate
	Version string
	Timeout time.Duration
}

type HealthController struct {
	deps Deps
}

func NewHealthController(deps Deps) *HealthController {
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Second
	}
	return &HealthController{deps: deps}
}

func run(ctx context.Context, c Check, disabled string) (dto.HealthStatus, error) {
	if c == nil {
		return dto.HealthStatus{Status: "disabled", Message: disabled}, nil
	}
	if err := c(ctx); err != nil {
		return dto.HealthStatus{Status: "error", Message: fmt.Sprintf("unavailable: %v", err)}, err
	}
	return dto.HealthStatus{Status: "ok"}, nil
}

// Check arma el reporte sin escribirlo.
func (c *HealthController) Check(ctx context.Context) dto.HealthResponse {
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Check"))
	ctx, cancel := context.WithTimeout(ctx, c.deps.Timeout)
	defer cancel()

	resp := dto.HealthResponse{
		Status:     "ready",
		Components: make(map[string]dto.HealthStatus),
		Version:    c.deps.Version,
		Timestamp:  time.Now().UTC(),
	}

	st, err := run(ctx, c.deps.DB, "memory store")
	resp.Components["db"] = st
	if err != nil {
		log.Error("db unavailable", logger.Err(err))
		resp.Status = "unavailable"
	}

	st, err = run(ctx, c.deps.Cache, "memory cache only")
	resp.Components["cache"] = st
	if err != nil {
		log.Warn("cache unavailable", logger.Err(err))
		if resp.Status == "ready" {
			resp.Status = "degraded"
		}
	}

	names := make([]string, 0, len(c.deps.Gates))
	for name := range c.deps.Gates {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if c.deps.Gates[name].Closed() {
			resp.Components["upstream_"+name] = dto.HealthStatus{Status: "cooling_down"}
			if resp.Status == "ready" {
				resp.Status = "degraded"
			}
			continue
		}
		resp.Components["upstream_"+name] = dto.HealthStatus{Status: "ok"}
	}
	return resp
}

// Healthz maneja GET /healthz. 503 solo si la DB no responde.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := c.Check(r.Context())
	status := http.StatusOK
	if resp.Status == "unavailable" {
		status = http.StatusServiceUnavailable
	}
	if c.deps.Version != "" {
		w.Header().Set("X-Service-Version", c.deps.Version)
	}
	httperrors.WriteJSON(w, status, resp)
}
