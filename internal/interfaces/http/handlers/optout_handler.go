package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"obit-optout.backend/internal/domain/entities"
	domainerrors "obit-optout.backend/internal/domain/errors"
	"obit-optout.backend/internal/interfaces/http/response"
	"obit-optout.backend/internal/metrics"
	"obit-optout.backend/internal/usecases"
)

// OptOutHandler handles the public removal request endpoints
type OptOutHandler struct {
	optOutUsecase *usecases.OptOutUsecase
}

// NewOptOutHandler creates a new opt-out handler
func NewOptOutHandler(optOutUsecase *usecases.OptOutUsecase) *OptOutHandler {
	return &OptOutHandler{optOutUsecase: optOutUsecase}
}

type submitRequestBody struct {
	SubjectID    string `json:"subjectId"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Relationship string `json:"relationship"`
	Notes        string `json:"notes"`
}

// SubmitRequest handles a public removal request
// POST /api/v1/optout/requests
func (h *OptOutHandler) SubmitRequest(c *gin.Context) {
	var body submitRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		metrics.RemovalRequestsTotal.WithLabelValues("bad_payload").Inc()
		response.ErrorWithStatus(c, http.StatusBadRequest, domainerrors.CodeValidation, "invalid request payload")
		return
	}

	input := &entities.RemovalRequestInput{
		SubjectID:      body.SubjectID,
		RequesterName:  body.Name,
		RequesterEmail: body.Email,
		Relationship:   body.Relationship,
		Notes:          body.Notes,
		Origin:         c.ClientIP(),
	}

	result, err := h.optOutUsecase.SubmitRequest(c.Request.Context(), input)
	if err != nil {
		metrics.RemovalRequestsTotal.WithLabelValues(submitOutcome(err)).Inc()
		response.Error(c, err)
		return
	}

	metrics.RemovalRequestsTotal.WithLabelValues("accepted").Inc()
	// The verification token travels by email only.
	response.Success(c, http.StatusAccepted, gin.H{
		"requestId": result.RequestID,
		"message":   "Check your email for a verification link. The link expires in 48 hours.",
	})
}

// Verify redeems a verification token from the emailed link
// GET /api/v1/optout/verify?token=
func (h *OptOutHandler) Verify(c *gin.Context) {
	token := c.Query("token")

	record, err := h.optOutUsecase.VerifyToken(c.Request.Context(), token)
	if err != nil {
		metrics.VerificationsTotal.WithLabelValues(verifyOutcome(err)).Inc()
		response.Error(c, err)
		return
	}

	metrics.VerificationsTotal.WithLabelValues("redeemed").Inc()
	response.Success(c, http.StatusOK, gin.H{
		"subjectId":  record.SubjectID,
		"state":      record.State(),
		"verifiedAt": record.VerifiedAt,
		"message":    "The listing has been removed.",
	})
}

func submitOutcome(err error) string {
	switch {
	case errors.Is(err, domainerrors.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domainerrors.ErrDuplicatePending):
		return "duplicate_pending"
	case errors.Is(err, domainerrors.ErrValidation):
		return "validation_error"
	default:
		return "internal_error"
	}
}

func verifyOutcome(err error) string {
	switch {
	case errors.Is(err, domainerrors.ErrExpiredToken):
		return "expired"
	case errors.Is(err, domainerrors.ErrInvalidToken):
		return "invalid"
	default:
		return "internal_error"
	}
}
