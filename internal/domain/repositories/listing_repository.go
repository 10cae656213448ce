package repositories

import (
	"context"
	"time"

	"obit-optout.backend/internal/domain/entities"
)

// ListingRepository defines obituary listing data operations
type ListingRepository interface {
	GetBySubjectID(ctx context.Context, subjectID string) (*entities.Listing, error)
	Create(ctx context.Context, listing *entities.Listing) error
	MarkSuppressed(ctx context.Context, subjectID string, reason entities.SuppressionReason, now time.Time) error
	ClearSuppression(ctx context.Context, subjectID string) error
}
