package usecases

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"obit-optout.backend/internal/domain/entities"
	domainerrors "obit-optout.backend/internal/domain/errors"
	"obit-optout.backend/internal/domain/repositories"
	"obit-optout.backend/internal/notifier"
	"obit-optout.backend/pkg/crypto"
	"obit-optout.backend/pkg/logger"
	"obit-optout.backend/pkg/utils"

	"github.com/volatiletech/null/v8"
)

// tokenCreateRetries bounds retries on a verification token collision.
const tokenCreateRetries = 3

// RateLimiter guards the public intake per origin.
type RateLimiter interface {
	// Allow reports whether the origin is under its window budget. It does
	// not consume budget.
	Allow(ctx context.Context, origin string) (bool, error)
	// Record consumes one unit of budget for the origin.
	Record(ctx context.Context, origin string) error
}

// OptOutConfig carries the intake policy knobs. AdminEmail receives a
// summary of every accepted submission; leave it empty to disable.
type OptOutConfig struct {
	PublicBaseURL       string
	AdminEmail          string
	TokenTTL            time.Duration
	DuplicatePendingMax int64
	NotifyTimeout       time.Duration
}

// OptOutUsecase handles the public removal request workflow
type OptOutUsecase struct {
	suppressionRepo repositories.SuppressionRepository
	listingRepo     repositories.ListingRepository
	limiter         RateLimiter
	notif           notifier.Notifier
	cfg             OptOutConfig

	now func() time.Time
}

// NewOptOutUsecase creates a new opt-out usecase
func NewOptOutUsecase(
	suppressionRepo repositories.SuppressionRepository,
	listingRepo repositories.ListingRepository,
	limiter RateLimiter,
	notif notifier.Notifier,
	cfg OptOutConfig,
) *OptOutUsecase {
	return &OptOutUsecase{
		suppressionRepo: suppressionRepo,
		listingRepo:     listingRepo,
		limiter:         limiter,
		notif:           notif,
		cfg:             cfg,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// SubmitRequest validates and persists a public removal request, then sends
// the verification email out of band. The rate counter is only charged once
// the request is durably stored, so rejected submissions never consume
// budget.
func (u *OptOutUsecase) SubmitRequest(ctx context.Context, input *entities.RemovalRequestInput) (*entities.RemovalRequestResult, error) {
	listing, appErr := u.validateSubmission(ctx, input)
	if appErr != nil {
		return nil, appErr
	}

	allowed, err := u.limiter.Allow(ctx, input.Origin)
	if err != nil {
		logger.Error(ctx, "rate limiter unavailable", zap.Error(err), zap.String("origin", input.Origin))
		return nil, domainerrors.InternalError(err)
	}
	if !allowed {
		return nil, domainerrors.RateLimited()
	}

	pending, err := u.suppressionRepo.CountActivePending(ctx, input.SubjectID)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}
	if pending >= u.cfg.DuplicatePendingMax {
		return nil, domainerrors.DuplicatePending()
	}

	record, err := u.createPendingRecord(ctx, input, listing)
	if err != nil {
		return nil, err
	}

	// Charge the origin only after the durable write.
	if err := u.limiter.Record(ctx, input.Origin); err != nil {
		logger.Warn(ctx, "failed to record rate limit charge",
			zap.Error(err), zap.String("origin", input.Origin))
	}

	u.dispatchVerification(record)

	return &entities.RemovalRequestResult{
		RequestID:         record.ID,
		VerificationToken: record.VerificationToken.String,
	}, nil
}

// VerifyToken redeems a verification token exactly once. A redeemed or
// unknown token yields the same invalid-token error; an expired token
// leaves the record untouched so the requester can start over.
func (u *OptOutUsecase) VerifyToken(ctx context.Context, token string) (*entities.SuppressionRecord, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domainerrors.InvalidToken()
	}

	record, err := u.suppressionRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.InvalidToken()
		}
		return nil, domainerrors.InternalError(err)
	}

	now := u.now()
	if record.TokenExpired(u.cfg.TokenTTL, now) {
		return nil, domainerrors.ExpiredToken()
	}

	if err := u.suppressionRepo.RedeemToken(ctx, token, now); err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			// Another redeemer won the conditional update.
			return nil, domainerrors.InvalidToken()
		}
		return nil, domainerrors.InternalError(err)
	}

	if err := u.listingRepo.MarkSuppressed(ctx, record.SubjectID, record.Reason, now); err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			logger.Warn(ctx, "verified suppression for missing listing",
				zap.String("subject_id", record.SubjectID))
		} else {
			return nil, domainerrors.InternalError(err)
		}
	}

	redeemed, err := u.suppressionRepo.GetByID(ctx, record.ID)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}
	return redeemed, nil
}

// IsRateLimited reports whether the origin has exhausted its window budget.
func (u *OptOutUsecase) IsRateLimited(ctx context.Context, origin string) (bool, error) {
	allowed, err := u.limiter.Allow(ctx, origin)
	if err != nil {
		return false, domainerrors.InternalError(err)
	}
	return !allowed, nil
}

func (u *OptOutUsecase) validateSubmission(ctx context.Context, input *entities.RemovalRequestInput) (*entities.Listing, *domainerrors.AppError) {
	input.SubjectID = strings.TrimSpace(input.SubjectID)
	if input.SubjectID == "" {
		return nil, domainerrors.Validation("subjectId is required")
	}

	listing, err := u.listingRepo.GetBySubjectID(ctx, input.SubjectID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.Validation("subjectId does not match a known listing")
		}
		return nil, domainerrors.InternalError(err)
	}
	if listing.Suppressed() {
		return nil, domainerrors.Validation("listing is already suppressed")
	}

	input.RequesterEmail = strings.TrimSpace(input.RequesterEmail)
	if _, err := mail.ParseAddress(input.RequesterEmail); err != nil {
		return nil, domainerrors.Validation("email must be a valid email address")
	}

	input.RequesterName = strings.TrimSpace(input.RequesterName)
	if input.RequesterName == "" {
		return nil, domainerrors.Validation("name is required")
	}

	if entities.ReasonFromRelationship(input.Relationship) == "" {
		return nil, domainerrors.Validation("relationship must identify family or funeral home")
	}

	input.Origin = strings.TrimSpace(input.Origin)
	if input.Origin == "" {
		return nil, domainerrors.Validation("origin is required")
	}

	return listing, nil
}

func (u *OptOutUsecase) createPendingRecord(ctx context.Context, input *entities.RemovalRequestInput, listing *entities.Listing) (*entities.SuppressionRecord, error) {
	now := u.now()

	for attempt := 0; attempt < tokenCreateRetries; attempt++ {
		token, err := crypto.GenerateVerificationToken()
		if err != nil {
			return nil, domainerrors.InternalError(err)
		}

		record := &entities.SuppressionRecord{
			ID:                    utils.GenerateUUIDv7(),
			SubjectID:             input.SubjectID,
			ContentFingerprint:    listing.ContentFingerprint,
			SubjectName:           listing.FullName,
			RequesterName:         input.RequesterName,
			RequesterEmail:        input.RequesterEmail,
			RequesterRelationship: input.Relationship,
			RequesterOrigin:       input.Origin,
			Reason:                entities.ReasonFromRelationship(input.Relationship),
			VerificationToken:     null.StringFrom(token),
			TokenCreatedAt:        null.TimeFrom(now),
			Notes:                 input.Notes,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if !listing.DateOfDeath.IsZero() {
			record.DateOfDeath = null.TimeFrom(listing.DateOfDeath)
		}

		err = u.suppressionRepo.CreatePending(ctx, record)
		if err == nil {
			return record, nil
		}
		if errors.Is(err, domainerrors.ErrTokenConflict) {
			logger.Warn(ctx, "verification token collision, retrying",
				zap.Int("attempt", attempt+1))
			continue
		}
		return nil, domainerrors.InternalError(err)
	}
	return nil, domainerrors.InternalError(domainerrors.ErrTokenConflict)
}

// dispatchVerification sends the verification email to the requester and a
// summary of the submission to the administrator, without blocking the
// request path. Both are best effort: delivery failures are logged, and the
// requester can resubmit if the message never arrives. The admin summary
// never carries the token.
func (u *OptOutUsecase) dispatchVerification(record *entities.SuppressionRecord) {
	if u.notif == nil {
		return
	}
	to := record.RequesterEmail
	subject, body := notifier.VerificationEmail(u.cfg.PublicBaseURL, record.VerificationToken.String)
	adminTo := u.cfg.AdminEmail
	adminSubject, adminBody := notifier.IntakeSummaryEmail(record.SubjectID, record.SubjectName, record.RequesterRelationship)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), u.cfg.NotifyTimeout)
		defer cancel()
		if err := u.notif.Send(ctx, to, subject, body); err != nil {
			logger.Error(ctx, "failed to send verification email",
				zap.Error(err), zap.String("request_id", record.ID.String()))
		}
		if adminTo == "" {
			return
		}
		if err := u.notif.Send(ctx, adminTo, adminSubject, adminBody); err != nil {
			logger.Error(ctx, "failed to send intake summary email",
				zap.Error(err), zap.String("request_id", record.ID.String()))
		}
	}()
}
