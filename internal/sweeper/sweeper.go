// Package sweeper periodically forces elapsed reservations into their terminal states.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/libroom/reservations/internal/models"
)

// DefaultSchedule runs the sweep once a minute.
const DefaultSchedule = "@every 1m"

// Reconciler is the engine surface the sweeper needs.
type Reconciler interface {
	ListDue(ctx context.Context) ([]models.Reservation, error)
	Reconcile(ctx context.Context, id uuid.UUID) (models.Status, bool, error)
}

// Result summarises one sweep.
type Result struct {
	Scanned   int `json:"scanned"`
	Expired   int `json:"expired"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Sweeper runs reconciliation on demand or on a cron schedule.
type Sweeper struct {
	engine  Reconciler
	logger  *zap.Logger
	timeout time.Duration
	mu      sync.Mutex // one sweep at a time
	cron    *cron.Cron
}

// New creates a sweeper. timeout bounds a scheduled run; zero means one minute.
func New(engine Reconciler, logger *zap.Logger, timeout time.Duration) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Sweeper{engine: engine, logger: logger, timeout: timeout}
}

// Sweep reconciles every due reservation. A failure on one item is logged and counted;
// the rest still run. Running it twice back to back changes nothing the second time.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res Result
	due, err := s.engine.ListDue(ctx)
	if err != nil {
		return res, fmt.Errorf("list due: %w", err)
	}
	res.Scanned = len(due)
	for _, r := range due {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		status, changed, err := s.engine.Reconcile(ctx, r.ID)
		if err != nil {
			res.Failed++
			s.logger.Warn("reconcile failed", zap.String("reservation_id", r.ID.String()), zap.Error(err))
			continue
		}
		if !changed {
			continue
		}
		switch status {
		case models.StatusExpired:
			res.Expired++
		case models.StatusCompleted:
			res.Completed++
		}
	}
	if res.Expired+res.Completed+res.Failed > 0 {
		s.logger.Info("sweep finished",
			zap.Int("scanned", res.Scanned),
			zap.Int("expired", res.Expired),
			zap.Int("completed", res.Completed),
			zap.Int("failed", res.Failed),
		)
	}
	return res, nil
}

// Start schedules the sweep and starts the cron runner.
func (s *Sweeper) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, s.run); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("sweeper started", zap.String("schedule", schedule))
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
	}
}
