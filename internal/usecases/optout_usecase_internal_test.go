package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"obit-optout.backend/internal/domain/entities"
	domainerrors "obit-optout.backend/internal/domain/errors"
	"obit-optout.backend/pkg/utils"
)

func testConfig() OptOutConfig {
	return OptOutConfig{
		PublicBaseURL:       "https://obits.example.com",
		AdminEmail:          "admin@example.com",
		TokenTTL:            48 * time.Hour,
		DuplicatePendingMax: 2,
		NotifyTimeout:       time.Second,
	}
}

func validInput() *entities.RemovalRequestInput {
	return &entities.RemovalRequestInput{
		SubjectID:      "sub-1",
		RequesterName:  "Jane Doe",
		RequesterEmail: "jane@example.com",
		Relationship:   "immediate_family",
		Origin:         "203.0.113.7",
	}
}

func visibleListing() *entities.Listing {
	return &entities.Listing{
		SubjectID:          "sub-1",
		ContentFingerprint: "fp-1",
		FullName:           "John Smith",
		DateOfDeath:        time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		PublishedAt:        time.Now().UTC().Add(-24 * time.Hour),
	}
}

func newOptOutFixture() (*OptOutUsecase, *MockSuppressionRepository, *MockListingRepository, *MockRateLimiter, *fakeNotifier) {
	suppressionRepo := new(MockSuppressionRepository)
	listingRepo := new(MockListingRepository)
	limiter := new(MockRateLimiter)
	notif := newFakeNotifier()
	u := NewOptOutUsecase(suppressionRepo, listingRepo, limiter, notif, testConfig())
	return u, suppressionRepo, listingRepo, limiter, notif
}

func TestOptOutUsecase_SubmitRequest_Success(t *testing.T) {
	u, suppressionRepo, listingRepo, limiter, notif := newOptOutFixture()
	ctx := context.Background()

	listingRepo.On("GetBySubjectID", ctx, "sub-1").Return(visibleListing(), nil)
	limiter.On("Allow", ctx, "203.0.113.7").Return(true, nil)
	suppressionRepo.On("CountActivePending", ctx, "sub-1").Return(int64(0), nil)

	var created *entities.SuppressionRecord
	suppressionRepo.On("CreatePending", ctx, mock.AnythingOfType("*entities.SuppressionRecord")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*entities.SuppressionRecord)
		}).
		Return(nil)
	limiter.On("Record", ctx, "203.0.113.7").Return(nil)

	result, err := u.SubmitRequest(ctx, validInput())
	require.NoError(t, err)
	require.NotNil(t, result)

	require.NotNil(t, created)
	assert.Equal(t, created.ID, result.RequestID)
	assert.Equal(t, entities.ReasonFamilyRequest, created.Reason)
	assert.Equal(t, "fp-1", created.ContentFingerprint)
	assert.Equal(t, entities.StatePending, created.State())
	// The ledger snapshots the listing and the requester's context.
	assert.Equal(t, "John Smith", created.SubjectName)
	require.True(t, created.DateOfDeath.Valid)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), created.DateOfDeath.Time)
	assert.Equal(t, "immediate_family", created.RequesterRelationship)
	assert.Equal(t, "203.0.113.7", created.RequesterOrigin)
	// 32 random bytes hex encoded.
	assert.Len(t, result.VerificationToken, 64)
	assert.Equal(t, result.VerificationToken, created.VerificationToken.String)

	require.True(t, notif.wait(2*time.Second), "verification email was not dispatched")
	require.True(t, notif.wait(2*time.Second), "admin summary was not dispatched")
	sends := notif.sent()
	require.Len(t, sends, 2)
	assert.Equal(t, "jane@example.com", sends[0].To)
	assert.Contains(t, sends[0].Body, result.VerificationToken)
	// The admin heads-up names the request but never carries the token.
	assert.Equal(t, "admin@example.com", sends[1].To)
	assert.Contains(t, sends[1].Body, "sub-1")
	assert.NotContains(t, sends[1].Body, result.VerificationToken)

	limiter.AssertCalled(t, "Record", ctx, "203.0.113.7")
}

func TestOptOutUsecase_SubmitRequest_ValidationFailures(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(*entities.RemovalRequestInput)
		listing *entities.Listing
		getErr  error
		wantMsg string
	}{
		{
			name:    "missing subject",
			mutate:  func(in *entities.RemovalRequestInput) { in.SubjectID = "  " },
			wantMsg: "subjectId is required",
		},
		{
			name:    "unknown subject",
			mutate:  func(in *entities.RemovalRequestInput) {},
			getErr:  domainerrors.ErrNotFound,
			wantMsg: "known listing",
		},
		{
			name:   "already suppressed",
			mutate: func(in *entities.RemovalRequestInput) {},
			listing: &entities.Listing{
				SubjectID:          "sub-1",
				ContentFingerprint: "fp-1",
				SuppressedAt:       null.TimeFrom(time.Now().UTC()),
			},
			wantMsg: "already suppressed",
		},
		{
			name:    "invalid email",
			mutate:  func(in *entities.RemovalRequestInput) { in.RequesterEmail = "not-an-email" },
			listing: visibleListing(),
			wantMsg: "email",
		},
		{
			name:    "missing name",
			mutate:  func(in *entities.RemovalRequestInput) { in.RequesterName = "   " },
			listing: visibleListing(),
			wantMsg: "name is required",
		},
		{
			name:    "unknown relationship",
			mutate:  func(in *entities.RemovalRequestInput) { in.Relationship = "curious_neighbor" },
			listing: visibleListing(),
			wantMsg: "relationship",
		},
		{
			name:    "missing origin",
			mutate:  func(in *entities.RemovalRequestInput) { in.Origin = "" },
			listing: visibleListing(),
			wantMsg: "origin is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, suppressionRepo, listingRepo, limiter, _ := newOptOutFixture()

			if tc.listing != nil || tc.getErr != nil {
				listingRepo.On("GetBySubjectID", ctx, "sub-1").Return(tc.listing, tc.getErr)
			}

			input := validInput()
			tc.mutate(input)

			_, err := u.SubmitRequest(ctx, input)
			require.Error(t, err)
			require.ErrorIs(t, err, domainerrors.ErrValidation)

			var appErr *domainerrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Contains(t, appErr.Message, tc.wantMsg)

			// Rejected submissions never touch the counter or the ledger.
			limiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything)
			limiter.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
			suppressionRepo.AssertNotCalled(t, "CreatePending", mock.Anything, mock.Anything)
		})
	}
}

func TestOptOutUsecase_SubmitRequest_RateLimited(t *testing.T) {
	u, suppressionRepo, listingRepo, limiter, _ := newOptOutFixture()
	ctx := context.Background()

	listingRepo.On("GetBySubjectID", ctx, "sub-1").Return(visibleListing(), nil)
	limiter.On("Allow", ctx, "203.0.113.7").Return(false, nil)

	_, err := u.SubmitRequest(ctx, validInput())
	require.ErrorIs(t, err, domainerrors.ErrRateLimited)

	suppressionRepo.AssertNotCalled(t, "CreatePending", mock.Anything, mock.Anything)
	limiter.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestOptOutUsecase_SubmitRequest_LimiterUnavailable(t *testing.T) {
	u, _, listingRepo, limiter, _ := newOptOutFixture()
	ctx := context.Background()

	listingRepo.On("GetBySubjectID", ctx, "sub-1").Return(visibleListing(), nil)
	limiter.On("Allow", ctx, "203.0.113.7").Return(false, errors.New("redis down"))

	_, err := u.SubmitRequest(ctx, validInput())
	require.Error(t, err)

	var appErr *domainerrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, domainerrors.CodeInternalError, appErr.Code)
}

func TestOptOutUsecase_SubmitRequest_DuplicatePending(t *testing.T) {
	u, suppressionRepo, listingRepo, limiter, _ := newOptOutFixture()
	ctx := context.Background()

	listingRepo.On("GetBySubjectID", ctx, "sub-1").Return(visibleListing(), nil)
	limiter.On("Allow", ctx, "203.0.113.7").Return(true, nil)
	suppressionRepo.On("CountActivePending", ctx, "sub-1").Return(int64(2), nil)

	_, err := u.SubmitRequest(ctx, validInput())
	require.ErrorIs(t, err, domainerrors.ErrDuplicatePending)

	suppressionRepo.AssertNotCalled(t, "CreatePending", mock.Anything, mock.Anything)
	limiter.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestOptOutUsecase_SubmitRequest_TokenCollisionRetries(t *testing.T) {
	u, suppressionRepo, listingRepo, limiter, notif := newOptOutFixture()
	ctx := context.Background()

	listingRepo.On("GetBySubjectID", ctx, "sub-1").Return(visibleListing(), nil)
	limiter.On("Allow", ctx, "203.0.113.7").Return(true, nil)
	suppressionRepo.On("CountActivePending", ctx, "sub-1").Return(int64(0), nil)
	suppressionRepo.On("CreatePending", ctx, mock.Anything).Return(domainerrors.ErrTokenConflict).Twice()
	suppressionRepo.On("CreatePending", ctx, mock.Anything).Return(nil).Once()
	limiter.On("Record", ctx, "203.0.113.7").Return(nil)

	result, err := u.SubmitRequest(ctx, validInput())
	require.NoError(t, err)
	require.NotNil(t, result)
	suppressionRepo.AssertNumberOfCalls(t, "CreatePending", 3)
	require.True(t, notif.wait(2*time.Second))
}

func TestOptOutUsecase_SubmitRequest_TokenCollisionExhausted(t *testing.T) {
	u, suppressionRepo, listingRepo, limiter, _ := newOptOutFixture()
	ctx := context.Background()

	listingRepo.On("GetBySubjectID", ctx, "sub-1").Return(visibleListing(), nil)
	limiter.On("Allow", ctx, "203.0.113.7").Return(true, nil)
	suppressionRepo.On("CountActivePending", ctx, "sub-1").Return(int64(0), nil)
	suppressionRepo.On("CreatePending", ctx, mock.Anything).Return(domainerrors.ErrTokenConflict)

	_, err := u.SubmitRequest(ctx, validInput())
	require.Error(t, err)
	suppressionRepo.AssertNumberOfCalls(t, "CreatePending", tokenCreateRetries)
	limiter.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestOptOutUsecase_SubmitRequest_RecordChargeFailureTolerated(t *testing.T) {
	u, suppressionRepo, listingRepo, limiter, notif := newOptOutFixture()
	ctx := context.Background()

	listingRepo.On("GetBySubjectID", ctx, "sub-1").Return(visibleListing(), nil)
	limiter.On("Allow", ctx, "203.0.113.7").Return(true, nil)
	suppressionRepo.On("CountActivePending", ctx, "sub-1").Return(int64(0), nil)
	suppressionRepo.On("CreatePending", ctx, mock.Anything).Return(nil)
	limiter.On("Record", ctx, "203.0.113.7").Return(errors.New("redis down"))

	result, err := u.SubmitRequest(ctx, validInput())
	require.NoError(t, err)
	require.NotNil(t, result)
	require.True(t, notif.wait(2*time.Second))
}

func TestOptOutUsecase_SubmitRequest_NotifierFailureTolerated(t *testing.T) {
	u, suppressionRepo, listingRepo, limiter, notif := newOptOutFixture()
	notif.err = errors.New("smtp unreachable")
	ctx := context.Background()

	listingRepo.On("GetBySubjectID", ctx, "sub-1").Return(visibleListing(), nil)
	limiter.On("Allow", ctx, "203.0.113.7").Return(true, nil)
	suppressionRepo.On("CountActivePending", ctx, "sub-1").Return(int64(0), nil)
	suppressionRepo.On("CreatePending", ctx, mock.Anything).Return(nil)
	limiter.On("Record", ctx, "203.0.113.7").Return(nil)

	result, err := u.SubmitRequest(ctx, validInput())
	require.NoError(t, err)
	require.NotNil(t, result)
	require.True(t, notif.wait(2*time.Second))
}

func pendingRecordWithToken(token string, issued time.Time) *entities.SuppressionRecord {
	return &entities.SuppressionRecord{
		ID:                 utils.GenerateUUIDv7(),
		SubjectID:          "sub-1",
		ContentFingerprint: "fp-1",
		RequesterName:      "Jane Doe",
		RequesterEmail:     "jane@example.com",
		Reason:             entities.ReasonFamilyRequest,
		VerificationToken:  null.StringFrom(token),
		TokenCreatedAt:     null.TimeFrom(issued),
		CreatedAt:          issued,
		UpdatedAt:          issued,
	}
}

func TestOptOutUsecase_VerifyToken_Success(t *testing.T) {
	u, suppressionRepo, listingRepo, _, _ := newOptOutFixture()
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	u.now = func() time.Time { return now }

	record := pendingRecordWithToken("tok-1", now.Add(-time.Hour))
	suppressionRepo.On("GetByToken", ctx, "tok-1").Return(record, nil)
	suppressionRepo.On("RedeemToken", ctx, "tok-1", now).Return(nil)
	listingRepo.On("MarkSuppressed", ctx, "sub-1", entities.ReasonFamilyRequest, now).Return(nil)

	redeemed := *record
	redeemed.VerificationToken = null.String{}
	redeemed.VerifiedAt = null.TimeFrom(now)
	redeemed.SuppressedAt = null.TimeFrom(now)
	redeemed.DoNotRepublish = true
	suppressionRepo.On("GetByID", ctx, record.ID).Return(&redeemed, nil)

	got, err := u.VerifyToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, entities.StateVerifiedSuppressed, got.State())
	listingRepo.AssertCalled(t, "MarkSuppressed", ctx, "sub-1", entities.ReasonFamilyRequest, now)
}

func TestOptOutUsecase_VerifyToken_EmptyToken(t *testing.T) {
	u, _, _, _, _ := newOptOutFixture()
	_, err := u.VerifyToken(context.Background(), "   ")
	require.ErrorIs(t, err, domainerrors.ErrInvalidToken)
}

func TestOptOutUsecase_VerifyToken_UnknownToken(t *testing.T) {
	u, suppressionRepo, _, _, _ := newOptOutFixture()
	ctx := context.Background()

	suppressionRepo.On("GetByToken", ctx, "ghost").Return(nil, domainerrors.ErrNotFound)

	_, err := u.VerifyToken(ctx, "ghost")
	require.ErrorIs(t, err, domainerrors.ErrInvalidToken)
}

func TestOptOutUsecase_VerifyToken_Expired(t *testing.T) {
	u, suppressionRepo, _, _, _ := newOptOutFixture()
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	u.now = func() time.Time { return now }

	record := pendingRecordWithToken("tok-1", now.Add(-49*time.Hour))
	suppressionRepo.On("GetByToken", ctx, "tok-1").Return(record, nil)

	_, err := u.VerifyToken(ctx, "tok-1")
	require.ErrorIs(t, err, domainerrors.ErrExpiredToken)

	// The record stays untouched so a fresh request can be submitted.
	suppressionRepo.AssertNotCalled(t, "RedeemToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestOptOutUsecase_VerifyToken_RedemptionRaceLost(t *testing.T) {
	u, suppressionRepo, _, _, _ := newOptOutFixture()
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	u.now = func() time.Time { return now }

	record := pendingRecordWithToken("tok-1", now.Add(-time.Hour))
	suppressionRepo.On("GetByToken", ctx, "tok-1").Return(record, nil)
	suppressionRepo.On("RedeemToken", ctx, "tok-1", now).Return(domainerrors.ErrNotFound)

	// The loser sees the same error as an invalid token.
	_, err := u.VerifyToken(ctx, "tok-1")
	require.ErrorIs(t, err, domainerrors.ErrInvalidToken)
}

func TestOptOutUsecase_VerifyToken_MissingListingTolerated(t *testing.T) {
	u, suppressionRepo, listingRepo, _, _ := newOptOutFixture()
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	u.now = func() time.Time { return now }

	record := pendingRecordWithToken("tok-1", now.Add(-time.Hour))
	suppressionRepo.On("GetByToken", ctx, "tok-1").Return(record, nil)
	suppressionRepo.On("RedeemToken", ctx, "tok-1", now).Return(nil)
	listingRepo.On("MarkSuppressed", ctx, "sub-1", entities.ReasonFamilyRequest, now).Return(domainerrors.ErrNotFound)
	suppressionRepo.On("GetByID", ctx, record.ID).Return(record, nil)

	_, err := u.VerifyToken(ctx, "tok-1")
	require.NoError(t, err)
}

func TestOptOutUsecase_IsRateLimited(t *testing.T) {
	u, _, _, limiter, _ := newOptOutFixture()
	ctx := context.Background()

	limiter.On("Allow", ctx, "origin-open").Return(true, nil)
	limiter.On("Allow", ctx, "origin-capped").Return(false, nil)
	limiter.On("Allow", ctx, "origin-down").Return(false, errors.New("redis down"))

	limited, err := u.IsRateLimited(ctx, "origin-open")
	require.NoError(t, err)
	assert.False(t, limited)

	limited, err = u.IsRateLimited(ctx, "origin-capped")
	require.NoError(t, err)
	assert.True(t, limited)

	_, err = u.IsRateLimited(ctx, "origin-down")
	require.Error(t, err)
}
