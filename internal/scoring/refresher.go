package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// UserLister enumerates the users eligible for scoring.
type UserLister interface {
	ListVerified(ctx context.Context) ([]common.Address, error)
}

// Refresher periodically recomputes missing or expired scores of verified
// users, acting as the scorer identity.
type Refresher struct {
	engine    Service
	users     UserLister
	scorer    common.Address
	interval  time.Duration
	scheduler gocron.Scheduler
	log       *logrus.Entry
}

func NewRefresher(engine Service, users UserLister, scorer common.Address, interval time.Duration,
	clock clockwork.Clock, log *logrus.Entry) (*Refresher, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive, got %s", interval)
	}
	scheduler, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Refresher{
		engine:    engine,
		users:     users,
		scorer:    scorer,
		interval:  interval,
		scheduler: scheduler,
		log:       log.WithField("component", "refresher"),
	}, nil
}

// Start schedules the refresh job. The job never overlaps itself.
func (r *Refresher) Start(ctx context.Context) error {
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() {
			if _, err := r.RefreshStale(ctx); err != nil {
				r.log.WithError(err).Error("Score refresh failed")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule refresh job: %w", err)
	}
	r.scheduler.Start()
	r.log.WithField("interval", r.interval.String()).Info("Score refresher started")
	return nil
}

func (r *Refresher) Shutdown() error {
	return r.scheduler.Shutdown()
}

// RefreshStale recomputes every verified user without a valid score and
// returns how many were recomputed.
func (r *Refresher) RefreshStale(ctx context.Context) (int, error) {
	users, err := r.users.ListVerified(ctx)
	if err != nil {
		return 0, fmt.Errorf("list verified users: %w", err)
	}

	var stale []common.Address
	for _, user := range users {
		valid, err := r.engine.IsScoreValid(ctx, user)
		if err != nil {
			return 0, fmt.Errorf("check score %s: %w", user.Hex(), err)
		}
		if !valid {
			stale = append(stale, user)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	results, err := r.engine.BatchCalculateScores(ctx, r.scorer, stale)
	if err != nil {
		return 0, err
	}
	var refreshed int
	for _, res := range results {
		if res.Err != nil {
			r.log.WithError(res.Err).WithField("user", res.User.Hex()).Warn("Score refresh skipped user")
			continue
		}
		refreshed++
	}
	r.log.WithFields(logrus.Fields{"stale": len(stale), "refreshed": refreshed}).Info("Stale scores refreshed")
	return refreshed, nil
}
