package handlers_test

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"obit-optout.backend/internal/domain/entities"
	"obit-optout.backend/internal/infrastructure/repositories"
	"obit-optout.backend/internal/interfaces/http/handlers"
	"obit-optout.backend/internal/interfaces/http/middleware"
	"obit-optout.backend/internal/usecases"
	"obit-optout.backend/pkg/jwt"
)

// stubLimiter is an in-memory stand-in for the Redis fixed window limiter.
type stubLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
	max    int64
	err    error
}

func newStubLimiter(max int64) *stubLimiter {
	return &stubLimiter{counts: map[string]int64{}, max: max}
}

func (l *stubLimiter) Allow(_ context.Context, origin string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	return l.counts[origin] < l.max, nil
}

func (l *stubLimiter) Record(_ context.Context, origin string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[origin]++
	return nil
}

// captureNotifier records sends so tests can fish the verification token
// out of the email body. Each submission also produces a token-less admin
// summary, so token extraction counts token-bearing emails rather than
// relying on arrival order.
type captureNotifier struct {
	mu    sync.Mutex
	sends []capturedSend
	taken int
	done  chan struct{}
}

type capturedSend struct {
	to   string
	body string
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{done: make(chan struct{}, 16)}
}

func (n *captureNotifier) Send(_ context.Context, to, _, body string) error {
	n.mu.Lock()
	n.sends = append(n.sends, capturedSend{to: to, body: body})
	n.mu.Unlock()
	n.done <- struct{}{}
	return nil
}

var tokenPattern = regexp.MustCompile(`token=([0-9a-f]+)`)

// lastToken waits until a fresh verification email arrives and extracts its
// token, skipping emails without one.
func (n *captureNotifier) lastToken(t *testing.T) string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-n.done:
		case <-deadline:
			t.Fatal("no verification email dispatched")
		}
		n.mu.Lock()
		var tokens []string
		for _, s := range n.sends {
			if m := tokenPattern.FindStringSubmatch(s.body); m != nil {
				tokens = append(tokens, m[1])
			}
		}
		if len(tokens) > n.taken {
			tok := tokens[n.taken]
			n.taken++
			n.mu.Unlock()
			return tok
		}
		n.mu.Unlock()
	}
}

// waitForRecipient waits until an email addressed to the given recipient has
// been sent and returns its body.
func (n *captureNotifier) waitForRecipient(t *testing.T, to string) string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		n.mu.Lock()
		for _, s := range n.sends {
			if s.to == to {
				body := s.body
				n.mu.Unlock()
				return body
			}
		}
		n.mu.Unlock()
		select {
		case <-n.done:
		case <-deadline:
			t.Fatalf("no email sent to %s", to)
		}
	}
}

type testServer struct {
	router          *gin.Engine
	db              *gorm.DB
	suppressionRepo *repositories.SuppressionRepository
	listingRepo     *repositories.ListingRepository
	limiter         *stubLimiter
	notif           *captureNotifier
	jwtService      *jwt.JWTService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")

	require.NoError(t, db.Exec(`CREATE TABLE suppression_records (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		content_fingerprint TEXT NOT NULL,
		subject_name TEXT NOT NULL DEFAULT '',
		date_of_death DATETIME,
		requester_name TEXT NOT NULL,
		requester_email TEXT NOT NULL,
		requester_relationship TEXT NOT NULL DEFAULT '',
		requester_origin TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL,
		verification_token TEXT UNIQUE,
		token_created_at DATETIME,
		verified_at DATETIME,
		suppressed_at DATETIME,
		do_not_republish BOOLEAN NOT NULL DEFAULT 0,
		reviewed_at DATETIME,
		reviewed_by TEXT,
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME
	);`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE obituary_listings (
		subject_id TEXT PRIMARY KEY,
		content_fingerprint TEXT NOT NULL,
		full_name TEXT NOT NULL,
		date_of_death DATETIME,
		published_at DATETIME NOT NULL,
		suppressed_at DATETIME,
		suppressed_reason TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`).Error)

	suppressionRepo := repositories.NewSuppressionRepository(db)
	listingRepo := repositories.NewListingRepository(db)
	limiter := newStubLimiter(5)
	notif := newCaptureNotifier()

	optOutUsecase := usecases.NewOptOutUsecase(suppressionRepo, listingRepo, limiter, notif, usecases.OptOutConfig{
		PublicBaseURL:       "https://obits.example.com",
		AdminEmail:          "admin@obits.example.com",
		TokenTTL:            48 * time.Hour,
		DuplicatePendingMax: 2,
		NotifyTimeout:       time.Second,
	})
	adminUsecase := usecases.NewAdminUsecase(suppressionRepo, listingRepo)

	optOutHandler := handlers.NewOptOutHandler(optOutUsecase)
	adminHandler := handlers.NewAdminHandler(adminUsecase, optOutUsecase)
	ingestHandler := handlers.NewIngestHandler(adminUsecase)
	jwtService := jwt.NewJWTService("test-secret", time.Hour)

	r := gin.New()
	api := r.Group("/api/v1")
	api.POST("/optout/requests", optOutHandler.SubmitRequest)
	api.GET("/optout/verify", optOutHandler.Verify)
	api.GET("/ingest/blocklist/:fingerprint", ingestHandler.CheckBlocklist)

	admin := api.Group("/admin", middleware.OperatorAuthMiddleware(jwtService))
	admin.POST("/suppressions", adminHandler.Suppress)
	admin.DELETE("/suppressions/subject/:subjectId", adminHandler.Unsuppress)
	admin.GET("/suppressions/review-queue", adminHandler.ReviewQueue)
	admin.POST("/suppressions/:id/review", adminHandler.MarkReviewed)
	admin.GET("/blocklist/:fingerprint", adminHandler.IsBlocked)
	admin.GET("/rate-limit/:origin", adminHandler.RateLimitStatus)

	return &testServer{
		router:          r,
		db:              db,
		suppressionRepo: suppressionRepo,
		listingRepo:     listingRepo,
		limiter:         limiter,
		notif:           notif,
		jwtService:      jwtService,
	}
}

func (s *testServer) seedListing(t *testing.T, subjectID, fingerprint, name string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, s.listingRepo.Create(context.Background(), &entities.Listing{
		SubjectID:          subjectID,
		ContentFingerprint: fingerprint,
		FullName:           name,
		DateOfDeath:        now.Add(-30 * 24 * time.Hour),
		PublishedAt:        now.Add(-24 * time.Hour),
		CreatedAt:          now,
		UpdatedAt:          now,
	}))
}

func (s *testServer) operatorToken(t *testing.T, email string) string {
	t.Helper()
	token, err := s.jwtService.GenerateToken(uuid.New(), email, "admin")
	require.NoError(t, err)
	return token
}
