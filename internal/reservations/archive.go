package reservations

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/libroom/reservations/internal/models"
)

// Archive moves a terminal reservation out of the live index. The snapshot keeps the
// original id as a back-reference; the live record is deleted in the same store call.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) (*models.ArchivedReservation, error) {
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
	if !r.Status.Terminal() {
		return nil, newError(KindInvalidState, "reservation is %s", r.Status)
	}
	a := models.NewArchivedReservation(r, s.now())
	if err := s.do(ctx, func(ctx context.Context) error {
		return s.store.ArchiveReservation(ctx, a, r.Version)
	}); err != nil {
		return nil, err
	}
	s.logger.Info("reservation archived",
		zap.String("reservation_id", r.ID.String()),
		zap.String("archive_id", a.ID.String()),
		zap.String("status", string(r.Status)),
	)
	return a, nil
}

// Restore books the archived slot again as a brand new pending reservation. The full
// admission rules run, so a slot taken in the meantime yields a conflict.
func (s *Service) Restore(ctx context.Context, archivedID uuid.UUID) (*models.Reservation, error) {
	a, err := s.GetArchived(ctx, archivedID)
	if err != nil {
		return nil, err
	}
	p := CreateParams{
		UserID:     a.UserID,
		Department: a.Department,
		Floor:      a.Floor,
		Room:       a.Room,
		Start:      a.Start,
		End:        a.End,
		Purpose:    a.Purpose,
	}
	for _, pt := range a.Participants {
		p.Participants = append(p.Participants, ParticipantInput{UserID: pt.UserID, Name: pt.Name, Email: pt.Email})
	}
	r, err := s.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("reservation restored",
		zap.String("archive_id", a.ID.String()),
		zap.String("original_id", a.OriginalID.String()),
		zap.String("reservation_id", r.ID.String()),
	)
	return r, nil
}

// GetArchived returns one archived record.
func (s *Service) GetArchived(ctx context.Context, id uuid.UUID) (*models.ArchivedReservation, error) {
	var a *models.ArchivedReservation
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.store.GetArchived(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListArchived returns archived records, optionally only the given user's.
func (s *Service) ListArchived(ctx context.Context, userID *uuid.UUID) ([]models.ArchivedReservation, error) {
	var list []models.ArchivedReservation
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		list, err = s.store.ListArchived(ctx, userID)
		return err
	})
	return list, err
}

// DeleteArchived permanently removes an archived record.
func (s *Service) DeleteArchived(ctx context.Context, id uuid.UUID) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.store.DeleteArchived(ctx, id)
	})
}
