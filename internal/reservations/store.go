package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/libroom/reservations/internal/models"
)

// Store errors. Implementations return these (possibly wrapped) so the engine can classify them.
var (
	ErrNoRows       = errors.New("store: no rows")
	ErrOverlap      = errors.New("store: overlapping live reservation")
	ErrStaleVersion = errors.New("store: version precondition failed")
)

// Store is the persistence collaborator: find-by-filter, update-with-precondition, and a
// room key uniqueness constraint.
type Store interface {
	GetRoom(ctx context.Context, floor, name string) (*models.Room, error)
	ListRooms(ctx context.Context) ([]models.Room, error)

	GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	// ListLiveByRoom returns live reservations of the room intersecting [from, to), ordered by start.
	ListLiveByRoom(ctx context.Context, floor, room string, from, to time.Time) ([]models.Reservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error)
	CountLiveByUser(ctx context.Context, userID uuid.UUID) (int, error)
	// ListDue returns live reservations whose end is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]models.Reservation, error)
	InsertReservation(ctx context.Context, r *models.Reservation) error
	// UpdateReservation writes r if the stored version equals expectedVersion, then bumps r.Version.
	UpdateReservation(ctx context.Context, r *models.Reservation, expectedVersion int64) error

	// ArchiveReservation inserts the snapshot and deletes the live record in one step.
	ArchiveReservation(ctx context.Context, a *models.ArchivedReservation, expectedVersion int64) error
	GetArchived(ctx context.Context, id uuid.UUID) (*models.ArchivedReservation, error)
	ListArchived(ctx context.Context, userID *uuid.UUID) ([]models.ArchivedReservation, error)
	DeleteArchived(ctx context.Context, id uuid.UUID) error
}

// UserLocker is implemented by stores shared between processes. Create holds the lock from
// the per-user limit check until the insert is written.
type UserLocker interface {
	LockUser(ctx context.Context, userID uuid.UUID) (unlock func(), err error)
}

// Overlaps is the half-open interval intersection test.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
