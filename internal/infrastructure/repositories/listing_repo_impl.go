package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"obit-optout.backend/internal/domain/entities"
	domainerrors "obit-optout.backend/internal/domain/errors"
	"obit-optout.backend/internal/infrastructure/models"
)

// ListingRepository implements obituary listing data operations
type ListingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a new listing repository
func NewListingRepository(db *gorm.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// GetBySubjectID gets a listing by subject ID
func (r *ListingRepository) GetBySubjectID(ctx context.Context, subjectID string) (*entities.Listing, error) {
	var m models.ObituaryListing
	if err := r.db.WithContext(ctx).Where("subject_id = ?", subjectID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

// Create creates a new listing
func (r *ListingRepository) Create(ctx context.Context, listing *entities.Listing) error {
	m := &models.ObituaryListing{
		SubjectID:          listing.SubjectID,
		ContentFingerprint: listing.ContentFingerprint,
		FullName:           listing.FullName,
		DateOfDeath:        listing.DateOfDeath,
		PublishedAt:        listing.PublishedAt,
		SuppressedAt:       listing.SuppressedAt.Ptr(),
		SuppressedReason:   listing.SuppressedReason.Ptr(),
		CreatedAt:          listing.CreatedAt,
		UpdatedAt:          listing.UpdatedAt,
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// MarkSuppressed withdraws the listing from the site, recording why
func (r *ListingRepository) MarkSuppressed(ctx context.Context, subjectID string, reason entities.SuppressionReason, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.ObituaryListing{}).
		Where("subject_id = ?", subjectID).
		Updates(map[string]interface{}{
			"suppressed_at":     now,
			"suppressed_reason": string(reason),
			"updated_at":        now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// ClearSuppression restores the listing. Clearing an already visible
// listing is a no-op.
func (r *ListingRepository) ClearSuppression(ctx context.Context, subjectID string) error {
	return r.db.WithContext(ctx).
		Model(&models.ObituaryListing{}).
		Where("subject_id = ?", subjectID).
		Updates(map[string]interface{}{
			"suppressed_at":     nil,
			"suppressed_reason": nil,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *ListingRepository) toEntity(m *models.ObituaryListing) *entities.Listing {
	return &entities.Listing{
		SubjectID:          m.SubjectID,
		ContentFingerprint: m.ContentFingerprint,
		FullName:           m.FullName,
		DateOfDeath:        m.DateOfDeath,
		PublishedAt:        m.PublishedAt,
		SuppressedAt:       null.TimeFromPtr(m.SuppressedAt),
		SuppressedReason:   null.StringFromPtr(m.SuppressedReason),
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}
