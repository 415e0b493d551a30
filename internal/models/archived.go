package models

import (
	"time"

	"github.com/google/uuid"
)

// ArchivedReservation is a snapshot of a terminal reservation moved out of the live index.
type ArchivedReservation struct {
	ID           uuid.UUID         `json:"id"`
	OriginalID   uuid.UUID         `json:"original_id"`
	UserID       uuid.UUID         `json:"user_id"`
	Department   string            `json:"department,omitempty"`
	Floor        string            `json:"floor"`
	Room         string            `json:"room"`
	Start        time.Time         `json:"start"`
	End          time.Time         `json:"end"`
	Status       Status            `json:"status"`
	Purpose      string            `json:"purpose"`
	Participants []Participant     `json:"participants"`
	Extension    *ExtensionRequest `json:"extension,omitempty"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	ArchivedAt   time.Time         `json:"archived_at"`
}

// NewArchivedReservation snapshots r under a fresh archive id.
func NewArchivedReservation(r *Reservation, archivedAt time.Time) *ArchivedReservation {
	c := r.Clone()
	return &ArchivedReservation{
		ID:           uuid.New(),
		OriginalID:   c.ID,
		UserID:       c.UserID,
		Department:   c.Department,
		Floor:        c.Floor,
		Room:         c.Room,
		Start:        c.Start,
		End:          c.End,
		Status:       c.Status,
		Purpose:      c.Purpose,
		Participants: c.Participants,
		Extension:    c.Extension,
		StartedAt:    c.StartedAt,
		EndedAt:      c.EndedAt,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		ArchivedAt:   archivedAt,
	}
}
