package reservations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/libroom/reservations/internal/models"
)

// ParticipantInput is a roster entry as supplied by a caller.
type ParticipantInput struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	Name   string `json:"name" validate:"required,max=100"`
	Email  string `json:"email" validate:"omitempty,email"`
}

// CreateParams is a booking request.
type CreateParams struct {
	UserID       uuid.UUID          `validate:"required"`
	Department   string             `validate:"max=100"`
	Floor        string             `validate:"required,max=32"`
	Room         string             `validate:"required,max=64"`
	Start        time.Time          `validate:"required"`
	End          time.Time          `validate:"required"`
	Purpose      string             `validate:"max=500"`
	Participants []ParticipantInput `validate:"dive"`
}

// candidate is what the admission rules are evaluated against.
type candidate struct {
	userID       uuid.UUID
	department   string
	floor        string
	room         string
	start        time.Time
	end          time.Time
	participants int
	// excludeID is ignored by the overlap check (the reservation being extended).
	excludeID uuid.UUID
}

// checkInput rejects malformed requests before any rule is evaluated.
func (s *Service) checkInput(p CreateParams) error {
	if p.UserID == uuid.Nil {
		return newError(KindValidation, "user_id is required")
	}
	if err := s.validate.Struct(p); err != nil {
		return &Error{Kind: KindValidation, Detail: describeValidation(err), Err: err}
	}
	seen := make(map[string]struct{}, len(p.Participants))
	for _, in := range p.Participants {
		if _, ok := seen[in.UserID]; ok {
			return newError(KindValidation, "participant %s listed twice", in.UserID)
		}
		seen[in.UserID] = struct{}{}
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

// admit evaluates the admission rules in order and returns the first violation.
// Callers must hold the room lock so the result stays true until the write.
func (s *Service) admit(ctx context.Context, c candidate) (*models.Room, error) {
	// 1. room exists and is active
	var room *models.Room
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		room, err = s.store.GetRoom(ctx, c.floor, c.room)
		return err
	})
	if errors.Is(err, ErrNoRows) {
		return nil, newError(KindValidation, "room %s does not exist", models.RoomRef{Floor: c.floor, Name: c.room})
	}
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, newError(KindValidation, "room %s is not active", room.Ref())
	}

	// 2. time window
	if err := s.checkWindow(c.start, c.end, s.now()); err != nil {
		return nil, err
	}

	// 3. no overlap
	if err := s.checkFree(ctx, c.floor, c.room, c.start, c.end, c.excludeID); err != nil {
		return nil, err
	}

	// 4. per-user limit
	var live int
	if err := s.do(ctx, func(ctx context.Context) error {
		var err error
		live, err = s.store.CountLiveByUser(ctx, c.userID)
		return err
	}); err != nil {
		return nil, err
	}
	if live >= s.policy.MaxLivePerUser {
		return nil, newError(KindLimitExceeded, "%d of %d reservations in use", live, s.policy.MaxLivePerUser)
	}

	// 5. floor eligibility
	if !s.eligible.IsFloorEligible(c.department, c.floor) {
		return nil, newError(KindIneligible, "floor %s", c.floor)
	}

	// 6. capacity
	if c.participants > room.Capacity {
		return nil, newError(KindCapacityExceeded, "%d participants, capacity %d", c.participants, room.Capacity)
	}
	return room, nil
}

func (s *Service) checkWindow(start, end, now time.Time) error {
	if !start.Before(end) {
		return newError(KindValidation, "start must be before end")
	}
	if start.Before(now.Add(-s.policy.StartGrace)) {
		return newError(KindValidation, "start is in the past")
	}
	if end.After(now.Add(s.policy.MaxAdvance)) {
		return newError(KindValidation, "end is beyond the booking horizon")
	}
	d := end.Sub(start)
	if d < s.policy.MinDuration {
		return newError(KindValidation, "session shorter than %s", s.policy.MinDuration)
	}
	if d > s.policy.MaxDuration {
		return newError(KindValidation, "session longer than %s", s.policy.MaxDuration)
	}
	return nil
}

// checkFree fails with a conflict if any live reservation other than exclude intersects [from, to).
func (s *Service) checkFree(ctx context.Context, floor, room string, from, to time.Time, exclude uuid.UUID) error {
	var held []models.Reservation
	if err := s.do(ctx, func(ctx context.Context) error {
		var err error
		held, err = s.store.ListLiveByRoom(ctx, floor, room, from, to)
		return err
	}); err != nil {
		return err
	}
	for _, h := range held {
		if h.ID == exclude {
			continue
		}
		if Overlaps(from, to, h.Start, h.End) {
			return newError(KindConflict, "held %s-%s", h.Start.In(s.policy.Location).Format("15:04"), h.End.In(s.policy.Location).Format("15:04"))
		}
	}
	return nil
}
