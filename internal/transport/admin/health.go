package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const readinessTimeout = 3 * time.Second

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

func (h *HealthHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
	defer cancel()

	deps := make(map[string]dependencyStatus)
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		deps["database"] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
		healthy = false
	} else {
		deps["database"] = dependencyStatus{Status: "ok"}
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, readinessResponse{
		Status:       status,
		Dependencies: deps,
	})
}
