package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"obit-optout.backend/internal/interfaces/http/response"
	"obit-optout.backend/internal/metrics"
	"obit-optout.backend/internal/usecases"
)

// IngestHandler exposes the blocklist gate consumed by the ingest pipeline
// before it accepts a listing from any upstream source.
type IngestHandler struct {
	adminUsecase *usecases.AdminUsecase
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(adminUsecase *usecases.AdminUsecase) *IngestHandler {
	return &IngestHandler{adminUsecase: adminUsecase}
}

// CheckBlocklist reports whether content with the fingerprint may be
// republished
// GET /api/v1/ingest/blocklist/:fingerprint
func (h *IngestHandler) CheckBlocklist(c *gin.Context) {
	blocked, err := h.adminUsecase.IsBlocked(c.Request.Context(), c.Param("fingerprint"))
	if err != nil {
		metrics.BlocklistLookupsTotal.WithLabelValues("error").Inc()
		response.Error(c, err)
		return
	}

	if blocked {
		metrics.BlocklistLookupsTotal.WithLabelValues("blocked").Inc()
	} else {
		metrics.BlocklistLookupsTotal.WithLabelValues("allowed").Inc()
	}

	response.Success(c, http.StatusOK, gin.H{
		"fingerprint": c.Param("fingerprint"),
		"blocked":     blocked,
	})
}
