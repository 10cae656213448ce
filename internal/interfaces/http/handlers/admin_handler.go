package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"obit-optout.backend/internal/domain/entities"
	domainerrors "obit-optout.backend/internal/domain/errors"
	"obit-optout.backend/internal/interfaces/http/middleware"
	"obit-optout.backend/internal/interfaces/http/response"
	"obit-optout.backend/internal/metrics"
	"obit-optout.backend/internal/usecases"
)

// AdminHandler handles the privileged suppression gateway endpoints
type AdminHandler struct {
	adminUsecase  *usecases.AdminUsecase
	optOutUsecase *usecases.OptOutUsecase
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminUsecase *usecases.AdminUsecase, optOutUsecase *usecases.OptOutUsecase) *AdminHandler {
	return &AdminHandler{adminUsecase: adminUsecase, optOutUsecase: optOutUsecase}
}

type adminSuppressBody struct {
	SubjectID          string `json:"subjectId"`
	ContentFingerprint string `json:"contentFingerprint"`
	Reason             string `json:"reason"`
	RequesterName      string `json:"requesterName"`
	RequesterEmail     string `json:"requesterEmail"`
	Notes              string `json:"notes"`
}

type suppressionRecordView struct {
	ID                 uuid.UUID            `json:"id"`
	SubjectID          string               `json:"subjectId"`
	ContentFingerprint string               `json:"contentFingerprint"`
	Reason             string               `json:"reason"`
	State              entities.RecordState `json:"state"`
	RequesterName      string               `json:"requesterName,omitempty"`
	RequesterEmail     string               `json:"requesterEmail,omitempty"`
	VerifiedAt         null.Time            `json:"verifiedAt"`
	SuppressedAt       null.Time            `json:"suppressedAt"`
	ReviewedAt         null.Time            `json:"reviewedAt"`
	ReviewedBy         null.String          `json:"reviewedBy"`
	CreatedAt          time.Time            `json:"createdAt"`
}

func toRecordView(r *entities.SuppressionRecord) suppressionRecordView {
	return suppressionRecordView{
		ID:                 r.ID,
		SubjectID:          r.SubjectID,
		ContentFingerprint: r.ContentFingerprint,
		Reason:             string(r.Reason),
		State:              r.State(),
		RequesterName:      r.RequesterName,
		RequesterEmail:     r.RequesterEmail,
		VerifiedAt:         r.VerifiedAt,
		SuppressedAt:       r.SuppressedAt,
		ReviewedAt:         r.ReviewedAt,
		ReviewedBy:         r.ReviewedBy,
		CreatedAt:          r.CreatedAt,
	}
}

// Suppress records an operator suppression
// POST /api/v1/admin/suppressions
func (h *AdminHandler) Suppress(c *gin.Context) {
	var body adminSuppressBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, domainerrors.CodeValidation, "invalid request payload")
		return
	}

	actor, _ := middleware.GetOperatorEmail(c)
	record, err := h.adminUsecase.Suppress(c.Request.Context(), &entities.AdminSuppressInput{
		SubjectID:          body.SubjectID,
		ContentFingerprint: body.ContentFingerprint,
		Reason:             entities.SuppressionReason(body.Reason),
		RequesterName:      body.RequesterName,
		RequesterEmail:     body.RequesterEmail,
		Actor:              actor,
		Notes:              body.Notes,
	})
	if err != nil {
		metrics.AdminActionsTotal.WithLabelValues("suppress", "error").Inc()
		response.Error(c, err)
		return
	}

	metrics.AdminActionsTotal.WithLabelValues("suppress", "ok").Inc()
	response.Success(c, http.StatusCreated, toRecordView(record))
}

// Unsuppress lifts every active suppression for a subject
// DELETE /api/v1/admin/suppressions/subject/:subjectId
func (h *AdminHandler) Unsuppress(c *gin.Context) {
	actor, _ := middleware.GetOperatorEmail(c)

	lifted, err := h.adminUsecase.Unsuppress(c.Request.Context(), c.Param("subjectId"), actor)
	if err != nil {
		metrics.AdminActionsTotal.WithLabelValues("unsuppress", "error").Inc()
		response.Error(c, err)
		return
	}

	metrics.AdminActionsTotal.WithLabelValues("unsuppress", "ok").Inc()
	response.Success(c, http.StatusOK, gin.H{
		"subjectId": c.Param("subjectId"),
		"lifted":    lifted,
	})
}

// ReviewQueue pages through suppressions awaiting operator review
// GET /api/v1/admin/suppressions/review-queue
func (h *AdminHandler) ReviewQueue(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	records, meta, err := h.adminUsecase.ListPendingForReview(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	views := make([]suppressionRecordView, 0, len(records))
	for _, r := range records {
		views = append(views, toRecordView(r))
	}

	response.Success(c, http.StatusOK, gin.H{
		"data": views,
		"meta": meta,
	})
}

// MarkReviewed stamps a suppression record as reviewed
// POST /api/v1/admin/suppressions/:id/review
func (h *AdminHandler) MarkReviewed(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, domainerrors.CodeValidation, "id must be a valid UUID")
		return
	}

	reviewer, _ := middleware.GetOperatorEmail(c)
	if err := h.adminUsecase.MarkReviewed(c.Request.Context(), id, reviewer); err != nil {
		metrics.AdminActionsTotal.WithLabelValues("review", "error").Inc()
		response.Error(c, err)
		return
	}

	metrics.AdminActionsTotal.WithLabelValues("review", "ok").Inc()
	response.Success(c, http.StatusOK, gin.H{"id": id, "reviewed": true})
}

// IsBlocked reports whether a content fingerprint is on the blocklist
// GET /api/v1/admin/blocklist/:fingerprint
func (h *AdminHandler) IsBlocked(c *gin.Context) {
	blocked, err := h.adminUsecase.IsBlocked(c.Request.Context(), c.Param("fingerprint"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"fingerprint": c.Param("fingerprint"),
		"blocked":     blocked,
	})
}

// RateLimitStatus reports whether an origin is currently rate limited
// GET /api/v1/admin/rate-limit/:origin
func (h *AdminHandler) RateLimitStatus(c *gin.Context) {
	limited, err := h.optOutUsecase.IsRateLimited(c.Request.Context(), c.Param("origin"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"origin":      c.Param("origin"),
		"rateLimited": limited,
	})
}
