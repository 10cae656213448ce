package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"obit-optout.backend/internal/domain/entities"
)

// SuppressionRepository defines suppression ledger data operations
type SuppressionRepository interface {
	// CreatePending inserts a new pending record carrying a verification
	// token. Returns errors.ErrTokenConflict when the token collides with
	// an outstanding one.
	CreatePending(ctx context.Context, record *entities.SuppressionRecord) error

	// CreateSuppressed inserts a record that is suppressed from the start,
	// used by the privileged gateway.
	CreateSuppressed(ctx context.Context, record *entities.SuppressionRecord) error

	GetByID(ctx context.Context, id uuid.UUID) (*entities.SuppressionRecord, error)

	// GetByToken fetches the unredeemed record holding the given token.
	// Redeemed tokens are indistinguishable from tokens that never existed:
	// both return errors.ErrNotFound.
	GetByToken(ctx context.Context, token string) (*entities.SuppressionRecord, error)

	// RedeemToken atomically consumes the token: it marks the record
	// verified and suppressed and clears the token, but only if the token
	// is still unredeemed. Returns errors.ErrNotFound when another caller
	// won the race.
	RedeemToken(ctx context.Context, token string, now time.Time) error

	// MarkReviewed stamps the reviewer and review time. Re-reviewing an
	// already reviewed record overwrites the earlier stamp.
	MarkReviewed(ctx context.Context, id uuid.UUID, reviewer string, now time.Time) error

	// ClearSuppression lifts the republish block on every suppressed record
	// for the subject, appending an audit note. Historical timestamps are
	// preserved. Returns the number of records lifted.
	ClearSuppression(ctx context.Context, subjectID, note string, now time.Time) (int64, error)

	// ListPendingReview returns records awaiting operator review: not yet
	// reviewed and not routine admin_action rows. Newest first, so fresh
	// requests surface at the top of the queue.
	ListPendingReview(ctx context.Context, limit, offset int) ([]*entities.SuppressionRecord, int64, error)

	// CountActivePending counts unredeemed, unsuppressed public intake
	// requests (family/funeral reasons only) for the subject.
	CountActivePending(ctx context.Context, subjectID string) (int64, error)

	// IsFingerprintBlocked reports whether any record with the fingerprint
	// still carries the republish block.
	IsFingerprintBlocked(ctx context.Context, fingerprint string) (bool, error)
}
