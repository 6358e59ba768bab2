package handler

import (
	"net/http"

	"github.com/ecomkit/xenbridge/infra/response"
)

// HealthHandler reports process liveness
type HealthHandler struct {
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// Check processes GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, "Service is healthy", map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}
