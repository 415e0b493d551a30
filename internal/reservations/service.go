package reservations

import (
	"context"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/libroom/reservations/internal/eligibility"
	"github.com/libroom/reservations/internal/models"
	"github.com/libroom/reservations/internal/notify"
)

// Policy holds the booking rules and time bounds the engine enforces.
type Policy struct {
	Location       *time.Location
	MaxAdvance     time.Duration
	MinDuration    time.Duration
	MaxDuration    time.Duration
	StartGrace     time.Duration // how far in the past a new booking may start
	MaxLivePerUser int
	StoreTimeout   time.Duration
	LockTimeout    time.Duration
	AutoArchive    bool
}

// DefaultPolicy returns the library's standard rules.
func DefaultPolicy() Policy {
	return Policy{
		Location:       time.UTC,
		MaxAdvance:     14 * 24 * time.Hour,
		MinDuration:    15 * time.Minute,
		MaxDuration:    4 * time.Hour,
		StartGrace:     15 * time.Minute,
		MaxLivePerUser: 2,
		StoreTimeout:   3 * time.Second,
		LockTimeout:    5 * time.Second,
		AutoArchive:    true,
	}
}

// Notifier is the outbound event port. Implementations must not block.
type Notifier interface {
	Notify(audience notify.Audience, event string, payload any)
}

// ArchiveQueue accepts terminal reservations for asynchronous archival.
type ArchiveQueue interface {
	EnqueueArchive(ctx context.Context, reservationID uuid.UUID) error
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Policy        Policy
	Eligibility   eligibility.Predicate
	Notifier      Notifier
	ArchiveQueue  ArchiveQueue
	// ArchiveInline archives terminal reservations in the calling goroutine when no
	// ArchiveQueue is set.
	ArchiveInline bool
	Now           func() time.Time
	Logger        *zap.Logger
}

// Service is the reservation lifecycle and availability engine.
type Service struct {
	store         Store
	locks         *KeyedLocker
	policy        Policy
	eligible      eligibility.Predicate
	notifier      Notifier
	archiveQueue  ArchiveQueue
	archiveInline bool
	now           func() time.Time
	validate      *validator.Validate
	logger        *zap.Logger
}

// NewService creates the engine over store.
func NewService(store Store, opts Options) *Service {
	policy := opts.Policy
	defaults := DefaultPolicy()
	if policy == (Policy{}) {
		policy = defaults
	}
	if policy.Location == nil {
		policy.Location = defaults.Location
	}
	if policy.MaxAdvance <= 0 {
		policy.MaxAdvance = defaults.MaxAdvance
	}
	if policy.MaxDuration <= 0 {
		policy.MaxDuration = defaults.MaxDuration
	}
	if policy.MaxLivePerUser <= 0 {
		policy.MaxLivePerUser = defaults.MaxLivePerUser
	}
	if policy.StoreTimeout <= 0 {
		policy.StoreTimeout = defaults.StoreTimeout
	}
	if policy.LockTimeout <= 0 {
		policy.LockTimeout = defaults.LockTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	eligible := opts.Eligibility
	if eligible == nil {
		eligible = eligibility.AllowAll{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:         store,
		locks:         NewKeyedLocker(),
		policy:        policy,
		eligible:      eligible,
		notifier:      notifier,
		archiveQueue:  opts.ArchiveQueue,
		archiveInline: opts.ArchiveInline,
		now:           now,
		validate:      validator.New(),
		logger:        logger,
	}
}

// Policy returns the effective rules.
func (s *Service) Policy() Policy { return s.policy }

// do runs one store call under the store timeout and classifies its error.
func (s *Service) do(ctx context.Context, fn func(ctx context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, s.policy.StoreTimeout)
	defer cancel()
	return classify(fn(cctx))
}

func (s *Service) lock(ctx context.Context, key string) (func(), error) {
	lctx, cancel := context.WithTimeout(ctx, s.policy.LockTimeout)
	defer cancel()
	unlock, err := s.locks.Lock(lctx, key)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Detail: "timed out waiting for " + key, Err: err}
	}
	return unlock, nil
}

func (s *Service) lockRoom(ctx context.Context, floor, room string) (func(), error) {
	return s.lock(ctx, roomLockKey(floor, room))
}

// roomLockKey quotes both parts so that no two distinct rooms share a key.
func roomLockKey(floor, room string) string {
	return "room:" + strconv.Quote(floor) + strconv.Quote(room)
}

// lockUser serializes per-user limit checks in this process and, when the store is shared
// between processes, across them.
func (s *Service) lockUser(ctx context.Context, userID uuid.UUID) (func(), error) {
	unlock, err := s.lock(ctx, "user:"+userID.String())
	if err != nil {
		return nil, err
	}
	ul, ok := s.store.(UserLocker)
	if !ok {
		return unlock, nil
	}
	lctx, cancel := context.WithTimeout(ctx, s.policy.LockTimeout)
	defer cancel()
	release, err := ul.LockUser(lctx, userID)
	if err != nil {
		unlock()
		return nil, &Error{Kind: KindTransient, Detail: "could not lock user " + userID.String(), Err: err}
	}
	return func() {
		release()
		unlock()
	}, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var r *models.Reservation
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.store.GetReservation(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns a live reservation by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return s.get(ctx, id)
}

// ListByUser returns the user's live-index reservations, newest first.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	var list []models.Reservation
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		list, err = s.store.ListByUser(ctx, userID)
		return err
	})
	return list, err
}

// mutation changes r in place. It runs with the room lock held on a freshly read copy.
type mutation func(ctx context.Context, r *models.Reservation, now time.Time) error

// mutate is the single check-then-write path for existing reservations: lock the room,
// re-read, apply, write with a version precondition.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, apply mutation) (*models.Reservation, error) {
	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lockRoom(ctx, current.Floor, current.Room)
	if err != nil {
		return nil, err
	}
	defer unlock()

	r, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := r.Version
	now := s.now()
	if err := apply(ctx, r, now); err != nil {
		return nil, err
	}
	r.UpdatedAt = now
	if err := s.do(ctx, func(ctx context.Context) error {
		return s.store.UpdateReservation(ctx, r, expected)
	}); err != nil {
		return nil, err
	}
	return r, nil
}

// published tells subscribers about a committed change. It never fails the change.
func (s *Service) published(r *models.Reservation, event string, audiences ...notify.Audience) {
	for _, a := range audiences {
		s.notifier.Notify(a, event, r)
	}
	s.notifier.Notify(notify.Broadcast, notify.EventAvailabilityChanged, map[string]any{
		"floor": r.Floor,
		"room":  r.Room,
		"date":  r.Start.In(s.policy.Location).Format(DateLayout),
	})
}

// queueArchive hands a terminal reservation to the archive worker, or archives it directly
// when the service runs without a queue. Callers must not hold the room lock.
func (s *Service) queueArchive(ctx context.Context, r *models.Reservation) {
	if !s.policy.AutoArchive || !r.Status.Terminal() {
		return
	}
	if s.archiveQueue == nil {
		if !s.archiveInline {
			return
		}
		if _, err := s.Archive(ctx, r.ID); err != nil {
			s.logger.Warn("inline archive failed", zap.String("reservation_id", r.ID.String()), zap.Error(err))
		}
		return
	}
	if err := s.archiveQueue.EnqueueArchive(ctx, r.ID); err != nil {
		s.logger.Warn("enqueue archive failed", zap.String("reservation_id", r.ID.String()), zap.Error(err))
	}
}
