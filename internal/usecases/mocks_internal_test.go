package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"obit-optout.backend/internal/domain/entities"
)

// Mock SuppressionRepository
type MockSuppressionRepository struct {
	mock.Mock
}

func (m *MockSuppressionRepository) CreatePending(ctx context.Context, record *entities.SuppressionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSuppressionRepository) CreateSuppressed(ctx context.Context, record *entities.SuppressionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSuppressionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.SuppressionRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SuppressionRecord), args.Error(1)
}

func (m *MockSuppressionRepository) GetByToken(ctx context.Context, token string) (*entities.SuppressionRecord, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SuppressionRecord), args.Error(1)
}

func (m *MockSuppressionRepository) RedeemToken(ctx context.Context, token string, now time.Time) error {
	args := m.Called(ctx, token, now)
	return args.Error(0)
}

func (m *MockSuppressionRepository) MarkReviewed(ctx context.Context, id uuid.UUID, reviewer string, now time.Time) error {
	args := m.Called(ctx, id, reviewer, now)
	return args.Error(0)
}

func (m *MockSuppressionRepository) ClearSuppression(ctx context.Context, subjectID, note string, now time.Time) (int64, error) {
	args := m.Called(ctx, subjectID, note, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSuppressionRepository) ListPendingReview(ctx context.Context, limit, offset int) ([]*entities.SuppressionRecord, int64, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*entities.SuppressionRecord), args.Get(1).(int64), args.Error(2)
}

func (m *MockSuppressionRepository) CountActivePending(ctx context.Context, subjectID string) (int64, error) {
	args := m.Called(ctx, subjectID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSuppressionRepository) IsFingerprintBlocked(ctx context.Context, fingerprint string) (bool, error) {
	args := m.Called(ctx, fingerprint)
	return args.Bool(0), args.Error(1)
}

// Mock ListingRepository
type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) GetBySubjectID(ctx context.Context, subjectID string) (*entities.Listing, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Listing), args.Error(1)
}

func (m *MockListingRepository) Create(ctx context.Context, listing *entities.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockListingRepository) MarkSuppressed(ctx context.Context, subjectID string, reason entities.SuppressionReason, now time.Time) error {
	args := m.Called(ctx, subjectID, reason, now)
	return args.Error(0)
}

func (m *MockListingRepository) ClearSuppression(ctx context.Context, subjectID string) error {
	args := m.Called(ctx, subjectID)
	return args.Error(0)
}

// Mock RateLimiter
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, origin string) (bool, error) {
	args := m.Called(ctx, origin)
	return args.Bool(0), args.Error(1)
}

func (m *MockRateLimiter) Record(ctx context.Context, origin string) error {
	args := m.Called(ctx, origin)
	return args.Error(0)
}

// fakeNotifier records sends and signals completion so async dispatch can
// be asserted without sleeping.
type fakeNotifier struct {
	mu    sync.Mutex
	sends []fakeSend
	err   error
	done  chan struct{}
}

type fakeSend struct {
	To      string
	Subject string
	Body    string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{done: make(chan struct{}, 8)}
}

func (f *fakeNotifier) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	f.sends = append(f.sends, fakeSend{To: to, Subject: subject, Body: body})
	f.mu.Unlock()
	f.done <- struct{}{}
	return f.err
}

func (f *fakeNotifier) wait(timeout time.Duration) bool {
	select {
	case <-f.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (f *fakeNotifier) sent() []fakeSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fakeSend, len(f.sends))
	copy(out, f.sends)
	return out
}
