package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/libroom/reservations/internal/models"
)

// AddParticipant puts one more occupant on a live reservation's roster.
// The reservation's status and interval are not touched.
func (s *Service) AddParticipant(ctx context.Context, id uuid.UUID, in ParticipantInput) (*models.Reservation, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, &Error{Kind: KindValidation, Detail: describeValidation(err), Err: err}
	}
	return s.mutate(ctx, id, func(ctx context.Context, r *models.Reservation, now time.Time) error {
		if !r.Status.Live() {
			return newError(KindInvalidTransition, "reservation is %s", r.Status)
		}
		if r.HasParticipant(in.UserID) {
			return newError(KindDuplicate, "%s", in.UserID)
		}
		var room *models.Room
		if err := s.do(ctx, func(ctx context.Context) error {
			var err error
			room, err = s.store.GetRoom(ctx, r.Floor, r.Room)
			return err
		}); err != nil {
			return err
		}
		if len(r.Participants)+1 > room.Capacity {
			return newError(KindCapacityExceeded, "capacity %d", room.Capacity)
		}
		r.Participants = append(r.Participants, models.Participant{
			UserID:  in.UserID,
			Name:    in.Name,
			Email:   in.Email,
			AddedAt: now,
		})
		return nil
	})
}

// RemoveParticipant drops participantID from the roster.
func (s *Service) RemoveParticipant(ctx context.Context, id uuid.UUID, participantID string) (*models.Reservation, error) {
	return s.mutate(ctx, id, func(_ context.Context, r *models.Reservation, _ time.Time) error {
		if !r.Status.Live() {
			return newError(KindInvalidTransition, "reservation is %s", r.Status)
		}
		for i, p := range r.Participants {
			if p.UserID == participantID {
				r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
				return nil
			}
		}
		return newError(KindNotFound, "participant %s is not on the roster", participantID)
	})
}
