package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/libroom/reservations/internal/models"
	"github.com/libroom/reservations/internal/notify"
)

// Create admits a new pending reservation. Validation and insert run as one unit under the
// room lock, so of two racing requests for the same slot exactly one succeeds.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Reservation, error) {
	if err := s.checkInput(p); err != nil {
		return nil, err
	}
	r, err := s.admitAndInsert(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("reservation created",
		zap.String("reservation_id", r.ID.String()),
		zap.Stringer("room", r.RoomRef()),
		zap.Time("start", r.Start),
		zap.Time("end", r.End),
	)
	s.published(r, notify.EventReservationCreated, notify.User(r.UserID), notify.Admins)
	return r, nil
}

func (s *Service) admitAndInsert(ctx context.Context, p CreateParams) (*models.Reservation, error) {
	unlockRoom, err := s.lockRoom(ctx, p.Floor, p.Room)
	if err != nil {
		return nil, err
	}
	defer unlockRoom()
	unlockUser, err := s.lockUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	defer unlockUser()

	if _, err := s.admit(ctx, candidate{
		userID:       p.UserID,
		department:   p.Department,
		floor:        p.Floor,
		room:         p.Room,
		start:        p.Start,
		end:          p.End,
		participants: len(p.Participants),
	}); err != nil {
		return nil, err
	}

	now := s.now()
	r := &models.Reservation{
		ID:           uuid.New(),
		UserID:       p.UserID,
		Department:   p.Department,
		Floor:        p.Floor,
		Room:         p.Room,
		Start:        p.Start,
		End:          p.End,
		Status:       models.StatusPending,
		Purpose:      p.Purpose,
		Participants: make([]models.Participant, 0, len(p.Participants)),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, in := range p.Participants {
		r.Participants = append(r.Participants, models.Participant{UserID: in.UserID, Name: in.Name, Email: in.Email, AddedAt: now})
	}
	if err := s.do(ctx, func(ctx context.Context) error {
		return s.store.InsertReservation(ctx, r)
	}); err != nil {
		return nil, err
	}
	return r, nil
}

func requireStatus(r *models.Reservation, allowed ...models.Status) error {
	for _, st := range allowed {
		if r.Status == st {
			return nil
		}
	}
	return newError(KindInvalidTransition, "reservation is %s", r.Status)
}

// Approve moves a pending reservation to approved.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	r, err := s.mutate(ctx, id, func(_ context.Context, r *models.Reservation, _ time.Time) error {
		if err := requireStatus(r, models.StatusPending); err != nil {
			return err
		}
		r.Status = models.StatusApproved
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.published(r, notify.EventReservationApproved, notify.User(r.UserID))
	return r, nil
}

// Deny rejects a pending reservation. Denial is a terminal cancellation.
func (s *Service) Deny(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	r, err := s.mutate(ctx, id, func(_ context.Context, r *models.Reservation, _ time.Time) error {
		if err := requireStatus(r, models.StatusPending); err != nil {
			return err
		}
		r.Status = models.StatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.published(r, notify.EventReservationDenied, notify.User(r.UserID))
	s.queueArchive(ctx, r)
	return r, nil
}

// Cancel withdraws a pending or approved reservation.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	r, err := s.mutate(ctx, id, func(_ context.Context, r *models.Reservation, _ time.Time) error {
		if err := requireStatus(r, models.StatusPending, models.StatusApproved); err != nil {
			return err
		}
		r.Status = models.StatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.published(r, notify.EventReservationCancelled, notify.User(r.UserID), notify.Admins)
	s.queueArchive(ctx, r)
	return r, nil
}

// Start checks the user in. Only allowed while now is inside [start, end).
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	r, err := s.mutate(ctx, id, func(_ context.Context, r *models.Reservation, now time.Time) error {
		if err := requireStatus(r, models.StatusApproved); err != nil {
			return err
		}
		if now.Before(r.Start) {
			return newError(KindInvalidTransition, "reservation window has not opened")
		}
		if !now.Before(r.End) {
			return newError(KindInvalidTransition, "reservation window has elapsed")
		}
		r.Status = models.StatusActive
		r.StartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.published(r, notify.EventReservationStarted, notify.User(r.UserID))
	return r, nil
}

// EndEarly checks the user out before the scheduled end and releases the room immediately.
// The scheduled end is kept; EndedAt records when the room was actually released.
func (s *Service) EndEarly(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	r, err := s.mutate(ctx, id, func(_ context.Context, r *models.Reservation, now time.Time) error {
		if err := requireStatus(r, models.StatusActive, models.StatusExtensionRequested); err != nil {
			return err
		}
		closeExtension(r, models.ExtensionDenied, now)
		r.Status = models.StatusEndedEarly
		r.EndedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.published(r, notify.EventReservationEnded, notify.User(r.UserID), notify.Admins)
	s.queueArchive(ctx, r)
	return r, nil
}

// ListDue returns live reservations whose window has elapsed.
func (s *Service) ListDue(ctx context.Context) ([]models.Reservation, error) {
	now := s.now()
	var due []models.Reservation
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		due, err = s.store.ListDue(ctx, now)
		return err
	})
	return due, err
}

// Reconcile forces one elapsed reservation into its terminal state: never-started ones
// expire, started ones complete. It reports whether a transition happened; a reservation
// that is already terminal, archived, or not yet due is left alone.
func (s *Service) Reconcile(ctx context.Context, id uuid.UUID) (models.Status, bool, error) {
	r, err := s.mutate(ctx, id, func(_ context.Context, r *models.Reservation, now time.Time) error {
		if r.Status.Terminal() || now.Before(r.End) {
			return errNoChange
		}
		switch r.Status {
		case models.StatusPending, models.StatusApproved:
			r.Status = models.StatusExpired
		case models.StatusActive, models.StatusExtensionRequested:
			closeExtension(r, models.ExtensionDenied, now)
			r.Status = models.StatusCompleted
			r.EndedAt = &now
		}
		return nil
	})
	switch {
	case err == errNoChange:
		return "", false, nil
	case KindOf(err) == KindNotFound:
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	event := notify.EventReservationExpired
	if r.Status == models.StatusCompleted {
		event = notify.EventReservationCompleted
	}
	s.published(r, event, notify.User(r.UserID), notify.Admins)
	s.queueArchive(ctx, r)
	return r.Status, true, nil
}

// errNoChange aborts a mutation without writing.
var errNoChange = &Error{Kind: KindInvalidTransition, Detail: "nothing to do"}

func closeExtension(r *models.Reservation, status models.ExtensionStatus, now time.Time) {
	if r.Extension == nil || r.Extension.Status != models.ExtensionRequested {
		return
	}
	r.Extension.Status = status
	r.Extension.DecidedAt = &now
}
