package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"obit-optout.backend/internal/domain/entities"
	domainerrors "obit-optout.backend/internal/domain/errors"
	"obit-optout.backend/internal/domain/repositories"
	"obit-optout.backend/pkg/logger"
	"obit-optout.backend/pkg/utils"
)

// AdminUsecase handles the privileged suppression gateway
type AdminUsecase struct {
	suppressionRepo repositories.SuppressionRepository
	listingRepo     repositories.ListingRepository

	now func() time.Time
}

// NewAdminUsecase creates a new admin usecase
func NewAdminUsecase(
	suppressionRepo repositories.SuppressionRepository,
	listingRepo repositories.ListingRepository,
) *AdminUsecase {
	return &AdminUsecase{
		suppressionRepo: suppressionRepo,
		listingRepo:     listingRepo,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Suppress records an operator-initiated suppression, bypassing the
// verification flow. Unknown reasons are coerced to admin_action; the
// coercion is logged but not surfaced to the caller. Intake reasons
// (family/funeral) are kept as given, and such records stay in the review
// queue like any other public request.
func (u *AdminUsecase) Suppress(ctx context.Context, input *entities.AdminSuppressInput) (*entities.SuppressionRecord, error) {
	input.SubjectID = strings.TrimSpace(input.SubjectID)
	if input.SubjectID == "" {
		return nil, domainerrors.Validation("subjectId is required")
	}

	reason := input.Reason
	if reason == "" {
		reason = entities.ReasonAdminAction
	}
	if !reason.Valid() {
		logger.Warn(ctx, "coercing unknown reason on privileged path",
			zap.String("subject_id", input.SubjectID),
			zap.String("requested_reason", string(reason)),
			zap.String("actor", input.Actor))
		reason = entities.ReasonAdminAction
	}

	fingerprint := strings.TrimSpace(input.ContentFingerprint)
	listing, err := u.listingRepo.GetBySubjectID(ctx, input.SubjectID)
	if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, domainerrors.InternalError(err)
	}
	if fingerprint == "" {
		if listing == nil {
			return nil, domainerrors.Validation("contentFingerprint is required when the subject has no listing")
		}
		fingerprint = listing.ContentFingerprint
	}

	now := u.now()
	actor := strings.TrimSpace(input.Actor)
	requesterName := strings.TrimSpace(input.RequesterName)
	if requesterName == "" {
		requesterName = actor
	}
	requesterEmail := strings.TrimSpace(input.RequesterEmail)
	if requesterEmail == "" {
		requesterEmail = actor
	}
	record := &entities.SuppressionRecord{
		ID:                 utils.GenerateUUIDv7(),
		SubjectID:          input.SubjectID,
		ContentFingerprint: fingerprint,
		RequesterName:      requesterName,
		RequesterEmail:     requesterEmail,
		Reason:             reason,
		SuppressedAt:       null.TimeFrom(now),
		DoNotRepublish:     true,
		Notes:              input.Notes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if listing != nil {
		record.SubjectName = listing.FullName
		if !listing.DateOfDeath.IsZero() {
			record.DateOfDeath = null.TimeFrom(listing.DateOfDeath)
		}
	}
	// A privileged action by an identified operator is verified and reviewed
	// on the spot: the operator has attested to the takedown under their own
	// identity. Intake reasons recorded here, and anonymous automation, stay
	// unreviewed so the record lands in the review queue.
	if reason.Privileged() && actor != "" {
		record.VerifiedAt = null.TimeFrom(now)
		record.ReviewedAt = null.TimeFrom(now)
		record.ReviewedBy = null.StringFrom(actor)
	}

	if err := u.suppressionRepo.CreateSuppressed(ctx, record); err != nil {
		return nil, domainerrors.InternalError(err)
	}

	if listing != nil {
		if err := u.listingRepo.MarkSuppressed(ctx, input.SubjectID, reason, now); err != nil {
			logger.Warn(ctx, "failed to withdraw listing after admin suppression",
				zap.Error(err), zap.String("subject_id", input.SubjectID))
		}
	}

	return record, nil
}

// Unsuppress lifts every active suppression for the subject and restores
// the listing. Audit timestamps on the ledger stay in place.
func (u *AdminUsecase) Unsuppress(ctx context.Context, subjectID, actor string) (int64, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return 0, domainerrors.Validation("subjectId is required")
	}
	if strings.TrimSpace(actor) == "" {
		actor = "unknown"
	}

	now := u.now()
	note := fmt.Sprintf("\n[%s] unsuppressed by %s", now.Format(time.RFC3339), actor)

	lifted, err := u.suppressionRepo.ClearSuppression(ctx, subjectID, note, now)
	if err != nil {
		return 0, domainerrors.InternalError(err)
	}
	if lifted == 0 {
		return 0, domainerrors.NotFound("no active suppression for subject")
	}

	if err := u.listingRepo.ClearSuppression(ctx, subjectID); err != nil {
		logger.Warn(ctx, "failed to restore listing after unsuppression",
			zap.Error(err), zap.String("subject_id", subjectID))
	}

	return lifted, nil
}

// MarkReviewed stamps a record as reviewed regardless of its lifecycle
// state. A repeat review replaces the earlier stamp.
func (u *AdminUsecase) MarkReviewed(ctx context.Context, id uuid.UUID, reviewer string) error {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return domainerrors.Validation("reviewer is required")
	}

	err := u.suppressionRepo.MarkReviewed(ctx, id, reviewer, u.now())
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return domainerrors.NotFound("suppression record not found")
		}
		return domainerrors.InternalError(err)
	}
	return nil
}

// ListPendingForReview pages through suppressed records awaiting review.
func (u *AdminUsecase) ListPendingForReview(ctx context.Context, page, limit int) ([]*entities.SuppressionRecord, *utils.PaginationMeta, error) {
	params := utils.GetPaginationParams(page, limit)

	records, total, err := u.suppressionRepo.ListPendingReview(ctx, params.Limit, params.CalculateOffset())
	if err != nil {
		return nil, nil, domainerrors.InternalError(err)
	}

	meta := utils.CalculateMeta(total, params.Page, params.Limit)
	return records, &meta, nil
}

// IsBlocked reports whether a content fingerprint is barred from
// republication. The ingest pipeline calls this before accepting a listing
// from any upstream source.
func (u *AdminUsecase) IsBlocked(ctx context.Context, fingerprint string) (bool, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return false, domainerrors.Validation("fingerprint is required")
	}

	blocked, err := u.suppressionRepo.IsFingerprintBlocked(ctx, fingerprint)
	if err != nil {
		return false, domainerrors.InternalError(err)
	}
	return blocked, nil
}
