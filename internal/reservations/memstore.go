package reservations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/libroom/reservations/internal/models"
)

// MemoryStore is an in-process Store for tests and single-instance deployments. It applies
// the same overlap backstop as the Postgres exclusion constraint.
type MemoryStore struct {
	mu           sync.RWMutex
	rooms        map[models.RoomRef]models.Room
	reservations map[uuid.UUID]*models.Reservation
	archived     map[uuid.UUID]*models.ArchivedReservation
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:        make(map[models.RoomRef]models.Room),
		reservations: make(map[uuid.UUID]*models.Reservation),
		archived:     make(map[uuid.UUID]*models.ArchivedReservation),
	}
}

// PutRoom inserts or replaces a room.
func (m *MemoryStore) PutRoom(room models.Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.Ref()] = room
}

// UpsertRoom creates or edits a room, keeping its original creation time.
func (m *MemoryStore) UpsertRoom(ctx context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	room.CreatedAt = now
	if cur, ok := m.rooms[room.Ref()]; ok {
		room.CreatedAt = cur.CreatedAt
	}
	room.UpdatedAt = now
	m.rooms[room.Ref()] = *room
	return nil
}

func (m *MemoryStore) GetRoom(ctx context.Context, floor, name string) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[models.RoomRef{Floor: floor, Name: name}]
	if !ok {
		return nil, ErrNoRows
	}
	return &room, nil
}

func (m *MemoryStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out, nil
}

func (m *MemoryStore) GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, ErrNoRows
	}
	return r.Clone(), nil
}

func (m *MemoryStore) ListLiveByRoom(ctx context.Context, floor, room string, from, to time.Time) ([]models.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Reservation
	for _, r := range m.reservations {
		if r.Floor == floor && r.Room == room && r.Status.Live() && Overlaps(from, to, r.Start, r.End) {
			out = append(out, *r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Reservation
	for _, r := range m.reservations {
		if r.UserID == userID {
			out = append(out, *r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CountLiveByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.reservations {
		if r.UserID == userID && r.Status.Live() {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListDue(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Reservation
	for _, r := range m.reservations {
		if r.Status.Live() && !r.End.After(now) {
			out = append(out, *r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].End.Before(out[j].End) })
	return out, nil
}

// overlapsLocked reports whether r collides with another live reservation. Caller holds mu.
func (m *MemoryStore) overlapsLocked(r *models.Reservation) bool {
	if !r.Status.Live() {
		return false
	}
	for _, o := range m.reservations {
		if o.ID == r.ID || !o.Status.Live() || o.Floor != r.Floor || o.Room != r.Room {
			continue
		}
		if Overlaps(r.Start, r.End, o.Start, o.End) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) InsertReservation(ctx context.Context, r *models.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overlapsLocked(r) {
		return ErrOverlap
	}
	m.reservations[r.ID] = r.Clone()
	return nil
}

func (m *MemoryStore) UpdateReservation(ctx context.Context, r *models.Reservation, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.reservations[r.ID]
	if !ok {
		return ErrNoRows
	}
	if cur.Version != expectedVersion {
		return ErrStaleVersion
	}
	if m.overlapsLocked(r) {
		return ErrOverlap
	}
	r.Version = expectedVersion + 1
	m.reservations[r.ID] = r.Clone()
	return nil
}

func (m *MemoryStore) ArchiveReservation(ctx context.Context, a *models.ArchivedReservation, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.reservations[a.OriginalID]
	if !ok {
		return ErrNoRows
	}
	if cur.Version != expectedVersion {
		return ErrStaleVersion
	}
	delete(m.reservations, a.OriginalID)
	snapshot := *a
	m.archived[a.ID] = &snapshot
	return nil
}

func (m *MemoryStore) GetArchived(ctx context.Context, id uuid.UUID) (*models.ArchivedReservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.archived[id]
	if !ok {
		return nil, ErrNoRows
	}
	c := *a
	return &c, nil
}

func (m *MemoryStore) ListArchived(ctx context.Context, userID *uuid.UUID) ([]models.ArchivedReservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ArchivedReservation
	for _, a := range m.archived {
		if userID != nil && a.UserID != *userID {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArchivedAt.After(out[j].ArchivedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteArchived(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.archived[id]; !ok {
		return ErrNoRows
	}
	delete(m.archived, id)
	return nil
}
