package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/remind/internal/telemetry"
	"github.com/go-co-op/gocron/v2"
)

// Sweeper deletes processed ledger rows older than the retention horizon.
type Sweeper interface {
	SweepRetention(ctx context.Context, now time.Time, days int) (int64, error)
}

// RetentionScheduler runs the ledger retention sweep on a cron schedule.
type RetentionScheduler struct {
	scheduler gocron.Scheduler
	sweeper   Sweeper
	days      int
	cronExpr  string
	now       func() time.Time
}

func NewRetentionScheduler(sweeper Sweeper, cronExpr string, days int) (*RetentionScheduler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.Local))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &RetentionScheduler{
		scheduler: scheduler,
		sweeper:   sweeper,
		days:      days,
		cronExpr:  cronExpr,
		now:       time.Now,
	}, nil
}

// Sweep runs one retention pass now.
func (r *RetentionScheduler) Sweep(ctx context.Context) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "sweep")
	defer span.Finish()

	n, err := r.sweeper.SweepRetention(ctx, r.now(), r.days)
	if err != nil {
		span.SetError(err)
		return 0, fmt.Errorf("retention sweep failed: %w", err)
	}
	span.SetData("deleted", n)
	return n, nil
}

// Start registers the sweep job and blocks until ctx is cancelled, then shuts
// the scheduler down, waiting for a running sweep to finish.
func (r *RetentionScheduler) Start(ctx context.Context) error {
	_, err := r.scheduler.NewJob(
		gocron.CronJob(r.cronExpr, false),
		gocron.NewTask(func() {
			n, err := r.Sweep(ctx)
			if err != nil {
				log.Printf("retention: %v", err)
				telemetry.CaptureError(ctx, err)
				return
			}
			log.Printf("retention: deleted %d processed records older than %d days", n, r.days)
		}),
		gocron.WithName("retention"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create retention job: %w", err)
	}

	r.scheduler.Start()
	log.Printf("retention: scheduled %q, keeping %d days of processed records", r.cronExpr, r.days)

	<-ctx.Done()
	if err := r.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	log.Println("retention: scheduler stopped")
	return nil
}
