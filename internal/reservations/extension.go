package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/libroom/reservations/internal/models"
	"github.com/libroom/reservations/internal/notify"
)

// RequestExtension asks to move an active reservation's end to newEnd. Only the added
// interval [end, newEnd) is checked against other bookings of the room.
func (s *Service) RequestExtension(ctx context.Context, id, requestedBy uuid.UUID, newEnd time.Time) (*models.Reservation, error) {
	r, err := s.mutate(ctx, id, func(ctx context.Context, r *models.Reservation, now time.Time) error {
		if err := requireStatus(r, models.StatusActive); err != nil {
			return err
		}
		if !newEnd.After(r.End) {
			return newError(KindValidation, "new end must be after the current end")
		}
		if err := s.checkExtensionBounds(r, newEnd, now); err != nil {
			return err
		}
		if err := s.checkFree(ctx, r.Floor, r.Room, r.End, newEnd, r.ID); err != nil {
			return err
		}
		r.Status = models.StatusExtensionRequested
		r.Extension = &models.ExtensionRequest{
			NewEnd:      newEnd,
			RequestedBy: requestedBy,
			Status:      models.ExtensionRequested,
			RequestedAt: now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.published(r, notify.EventExtensionRequested, notify.Admins)
	return r, nil
}

// HandleExtension records the approver's decision. Approval re-checks the added interval,
// since another booking may have claimed it after the request; denial leaves End untouched.
func (s *Service) HandleExtension(ctx context.Context, id uuid.UUID, approve bool) (*models.Reservation, error) {
	r, err := s.mutate(ctx, id, func(ctx context.Context, r *models.Reservation, now time.Time) error {
		if err := requireStatus(r, models.StatusExtensionRequested); err != nil {
			return err
		}
		if r.Extension == nil {
			return newError(KindInvalidTransition, "no extension request on record")
		}
		if approve {
			if err := s.checkFree(ctx, r.Floor, r.Room, r.End, r.Extension.NewEnd, r.ID); err != nil {
				return err
			}
			r.End = r.Extension.NewEnd
			closeExtension(r, models.ExtensionApproved, now)
		} else {
			closeExtension(r, models.ExtensionDenied, now)
		}
		r.Status = models.StatusActive
		return nil
	})
	if err != nil {
		return nil, err
	}
	event := notify.EventExtensionDenied
	if approve {
		event = notify.EventExtensionApproved
	}
	s.published(r, event, notify.User(r.UserID))
	return r, nil
}

func (s *Service) checkExtensionBounds(r *models.Reservation, newEnd, now time.Time) error {
	if newEnd.After(now.Add(s.policy.MaxAdvance)) {
		return newError(KindValidation, "new end is beyond the booking horizon")
	}
	if newEnd.Sub(r.Start) > s.policy.MaxDuration {
		return newError(KindValidation, "session longer than %s", s.policy.MaxDuration)
	}
	return nil
}
