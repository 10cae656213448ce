package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
	"obit-optout.backend/internal/domain/repositories"
	"obit-optout.backend/internal/notifier"
	"obit-optout.backend/pkg/logger"
)

// ReviewDigestJob periodically mails operators a count of suppression
// records awaiting review. It never mutates the ledger.
type ReviewDigestJob struct {
	repo       repositories.SuppressionRepository
	notif      notifier.Notifier
	adminEmail string
	interval   time.Duration
	stop       chan struct{}
}

func NewReviewDigestJob(repo repositories.SuppressionRepository, notif notifier.Notifier, adminEmail string, interval time.Duration) *ReviewDigestJob {
	return &ReviewDigestJob{
		repo:       repo,
		notif:      notif,
		adminEmail: adminEmail,
		interval:   interval,
		stop:       make(chan struct{}),
	}
}

func (j *ReviewDigestJob) Start(ctx context.Context) {
	logger.Info(ctx, "starting review digest job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "review digest job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "review digest job stopped")
			return
		case <-ticker.C:
			j.sendDigest(ctx)
		}
	}
}

func (j *ReviewDigestJob) Stop() {
	close(j.stop)
}

func (j *ReviewDigestJob) sendDigest(ctx context.Context) {
	_, total, err := j.repo.ListPendingReview(ctx, 1, 0)
	if err != nil {
		logger.Error(ctx, "failed to count review queue", zap.Error(err))
		return
	}
	if total == 0 {
		return
	}

	subject, body := notifier.ReviewDigestEmail(total)
	if err := j.notif.Send(ctx, j.adminEmail, subject, body); err != nil {
		logger.Error(ctx, "failed to send review digest", zap.Error(err))
		return
	}
	logger.Info(ctx, "sent review digest", zap.Int64("pending", total))
}
