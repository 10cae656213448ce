package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"obit-optout.backend/internal/domain/entities"
	domainerrors "obit-optout.backend/internal/domain/errors"
	"obit-optout.backend/internal/infrastructure/models"
)

// SuppressionRepository implements suppression ledger data operations
type SuppressionRepository struct {
	db *gorm.DB
}

// NewSuppressionRepository creates a new suppression repository
func NewSuppressionRepository(db *gorm.DB) *SuppressionRepository {
	return &SuppressionRepository{db: db}
}

// CreatePending creates a new pending suppression record
func (r *SuppressionRepository) CreatePending(ctx context.Context, record *entities.SuppressionRecord) error {
	m := r.toModel(record)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrTokenConflict
		}
		return err
	}
	return nil
}

// CreateSuppressed creates a record that starts out suppressed
func (r *SuppressionRepository) CreateSuppressed(ctx context.Context, record *entities.SuppressionRecord) error {
	m := r.toModel(record)
	return r.db.WithContext(ctx).Create(m).Error
}

// GetByID gets a suppression record by ID
func (r *SuppressionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.SuppressionRecord, error) {
	var m models.SuppressionRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

// GetByToken gets the unredeemed record holding the given token. Redeemed
// tokens are cleared on redemption, so they look exactly like tokens that
// never existed.
func (r *SuppressionRepository) GetByToken(ctx context.Context, token string) (*entities.SuppressionRecord, error) {
	var m models.SuppressionRecord
	err := r.db.WithContext(ctx).
		Where("verification_token = ? AND verified_at IS NULL", token).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

// RedeemToken consumes a verification token. The conditional update is the
// concurrency guard: two racing redeemers both reach this statement, only
// one sees RowsAffected == 1.
func (r *SuppressionRepository) RedeemToken(ctx context.Context, token string, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.SuppressionRecord{}).
		Where("verification_token = ? AND verified_at IS NULL", token).
		Updates(map[string]interface{}{
			"verified_at":        now,
			"suppressed_at":      now,
			"do_not_republish":   true,
			"verification_token": nil,
			"updated_at":         now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// MarkReviewed stamps the reviewer unconditionally; a second review
// overwrites the first stamp.
func (r *SuppressionRepository) MarkReviewed(ctx context.Context, id uuid.UUID, reviewer string, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.SuppressionRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"reviewed_at": now,
			"reviewed_by": reviewer,
			"updated_at":  now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// ClearSuppression lifts the republish block on all suppressed records for
// the subject and appends an audit note. Timestamps stay in place.
func (r *SuppressionRepository) ClearSuppression(ctx context.Context, subjectID, note string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SuppressionRecord{}).
		Where("subject_id = ? AND do_not_republish = ?", subjectID, true).
		Updates(map[string]interface{}{
			"do_not_republish": false,
			"notes":            gorm.Expr("notes || ?", note),
			"updated_at":       now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListPendingReview lists unreviewed records originating outside the admin
// gateway, newest first. Pending public requests appear here alongside
// verified ones so operators see intent before it is confirmed.
func (r *SuppressionRepository) ListPendingReview(ctx context.Context, limit, offset int) ([]*entities.SuppressionRecord, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.SuppressionRecord{}).
		Where("reviewed_at IS NULL AND reason <> ?", string(entities.ReasonAdminAction))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.SuppressionRecord
	q := query.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	records := make([]*entities.SuppressionRecord, 0, len(rows))
	for i := range rows {
		records = append(records, r.toEntity(&rows[i]))
	}
	return records, total, nil
}

// CountActivePending counts public intake requests for the subject that are
// neither redeemed nor suppressed. Only intake reasons participate; admin
// rows never gate a family member's own request. Expired tokens still count
// until the record is cleaned up.
func (r *SuppressionRepository) CountActivePending(ctx context.Context, subjectID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SuppressionRecord{}).
		Where("subject_id = ? AND verified_at IS NULL AND suppressed_at IS NULL AND reason IN ?",
			subjectID, []string{string(entities.ReasonFamilyRequest), string(entities.ReasonFuneralHome)}).
		Count(&count).Error
	return count, err
}

// IsFingerprintBlocked reports whether the fingerprint is barred from
// republication.
func (r *SuppressionRepository) IsFingerprintBlocked(ctx context.Context, fingerprint string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SuppressionRecord{}).
		Where("content_fingerprint = ? AND do_not_republish = ?", fingerprint, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *SuppressionRepository) toModel(e *entities.SuppressionRecord) *models.SuppressionRecord {
	return &models.SuppressionRecord{
		ID:                    e.ID,
		SubjectID:             e.SubjectID,
		ContentFingerprint:    e.ContentFingerprint,
		SubjectName:           e.SubjectName,
		DateOfDeath:           e.DateOfDeath.Ptr(),
		RequesterName:         e.RequesterName,
		RequesterEmail:        e.RequesterEmail,
		RequesterRelationship: e.RequesterRelationship,
		RequesterOrigin:       e.RequesterOrigin,
		Reason:                string(e.Reason),
		VerificationToken:     e.VerificationToken.Ptr(),
		TokenCreatedAt:        e.TokenCreatedAt.Ptr(),
		VerifiedAt:            e.VerifiedAt.Ptr(),
		SuppressedAt:          e.SuppressedAt.Ptr(),
		DoNotRepublish:        e.DoNotRepublish,
		ReviewedAt:            e.ReviewedAt.Ptr(),
		ReviewedBy:            e.ReviewedBy.Ptr(),
		Notes:                 e.Notes,
		CreatedAt:             e.CreatedAt,
		UpdatedAt:             e.UpdatedAt,
	}
}

func (r *SuppressionRepository) toEntity(m *models.SuppressionRecord) *entities.SuppressionRecord {
	return &entities.SuppressionRecord{
		ID:                    m.ID,
		SubjectID:             m.SubjectID,
		ContentFingerprint:    m.ContentFingerprint,
		SubjectName:           m.SubjectName,
		DateOfDeath:           null.TimeFromPtr(m.DateOfDeath),
		RequesterName:         m.RequesterName,
		RequesterEmail:        m.RequesterEmail,
		RequesterRelationship: m.RequesterRelationship,
		RequesterOrigin:       m.RequesterOrigin,
		Reason:                entities.SuppressionReason(m.Reason),
		VerificationToken:     null.StringFromPtr(m.VerificationToken),
		TokenCreatedAt:        null.TimeFromPtr(m.TokenCreatedAt),
		VerifiedAt:            null.TimeFromPtr(m.VerifiedAt),
		SuppressedAt:          null.TimeFromPtr(m.SuppressedAt),
		DoNotRepublish:        m.DoNotRepublish,
		ReviewedAt:            null.TimeFromPtr(m.ReviewedAt),
		ReviewedBy:            null.StringFromPtr(m.ReviewedBy),
		Notes:                 m.Notes,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
