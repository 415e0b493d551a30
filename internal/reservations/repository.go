package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/libroom/reservations/internal/models"
	"github.com/libroom/reservations/internal/rooms"
)

// exclusionViolation is the SQLSTATE raised by reservations_no_overlap.
const exclusionViolation = "23P01"

const advisoryUnlockTimeout = 2 * time.Second

const reservationColumns = `id, user_id, department, floor, room, start_at, end_at, status, purpose, participants, extension, started_at, ended_at, version, created_at, updated_at`

const archivedColumns = `id, original_id, user_id, department, floor, room, start_at, end_at, status, purpose, participants, extension, started_at, ended_at, created_at, updated_at, archived_at`

// liveStatuses is the SQL list matching models.LiveStatuses.
var liveStatuses = []string{
	string(models.StatusPending),
	string(models.StatusApproved),
	string(models.StatusActive),
	string(models.StatusExtensionRequested),
}

// Repository is the PostgreSQL Store.
type Repository struct {
	pool  *pgxpool.Pool
	rooms *rooms.Repository
}

var (
	_ Store      = (*Repository)(nil)
	_ UserLocker = (*Repository)(nil)
)

// NewRepository creates a Postgres-backed store.
func NewRepository(pool *pgxpool.Pool, roomRepo *rooms.Repository) *Repository {
	return &Repository{pool: pool, rooms: roomRepo}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoRows
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
		return fmt.Errorf("%w: %s", ErrOverlap, pgErr.ConstraintName)
	}
	return err
}

func scanReservation(row pgx.Row) (*models.Reservation, error) {
	var r models.Reservation
	var status string
	err := row.Scan(&r.ID, &r.UserID, &r.Department, &r.Floor, &r.Room, &r.Start, &r.End, &status, &r.Purpose,
		&r.Participants, &r.Extension, &r.StartedAt, &r.EndedAt, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = models.Status(status)
	return &r, nil
}

func collectReservations(rows pgx.Rows) ([]models.Reservation, error) {
	defer rows.Close()
	var list []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *r)
	}
	return list, rows.Err()
}

func participantsOf(r []models.Participant) []models.Participant {
	if r == nil {
		return []models.Participant{}
	}
	return r
}

func (r *Repository) GetRoom(ctx context.Context, floor, name string) (*models.Room, error) {
	rm, err := r.rooms.GetRoom(ctx, floor, name)
	return rm, mapErr(err)
}

func (r *Repository) ListRooms(ctx context.Context) ([]models.Room, error) {
	list, err := r.rooms.ListRooms(ctx)
	return list, mapErr(err)
}

func (r *Repository) GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res, err := scanReservation(r.pool.QueryRow(ctx, q, id))
	return res, mapErr(err)
}

func (r *Repository) ListLiveByRoom(ctx context.Context, floor, room string, from, to time.Time) ([]models.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE floor = $1 AND room = $2 AND status = ANY($3) AND start_at < $5 AND $4 < end_at
		ORDER BY start_at`
	rows, err := r.pool.Query(ctx, q, floor, room, liveStatuses, from, to)
	if err != nil {
		return nil, mapErr(err)
	}
	return collectReservations(rows)
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	return collectReservations(rows)
}

func (r *Repository) CountLiveByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM reservations WHERE user_id = $1 AND status = ANY($2)`
	var n int
	err := r.pool.QueryRow(ctx, q, userID, liveStatuses).Scan(&n)
	return n, mapErr(err)
}

func (r *Repository) ListDue(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE status = ANY($1) AND end_at <= $2 ORDER BY end_at`
	rows, err := r.pool.Query(ctx, q, liveStatuses, now)
	if err != nil {
		return nil, mapErr(err)
	}
	return collectReservations(rows)
}

func (r *Repository) InsertReservation(ctx context.Context, res *models.Reservation) error {
	const q = `INSERT INTO reservations (id, user_id, department, floor, room, start_at, end_at, status, purpose, participants, extension, started_at, ended_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.pool.Exec(ctx, q, res.ID, res.UserID, res.Department, res.Floor, res.Room, res.Start, res.End,
		string(res.Status), res.Purpose, participantsOf(res.Participants), res.Extension, res.StartedAt, res.EndedAt,
		res.Version, res.CreatedAt, res.UpdatedAt)
	return mapErr(err)
}

func (r *Repository) UpdateReservation(ctx context.Context, res *models.Reservation, expectedVersion int64) error {
	const q = `UPDATE reservations SET end_at = $3, status = $4, purpose = $5, participants = $6, extension = $7,
			started_at = $8, ended_at = $9, updated_at = $10, version = version + 1
		WHERE id = $1 AND version = $2`
	tag, err := r.pool.Exec(ctx, q, res.ID, expectedVersion, res.End, string(res.Status), res.Purpose,
		participantsOf(res.Participants), res.Extension, res.StartedAt, res.EndedAt, res.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrStale(ctx, r.pool, res.ID)
	}
	res.Version = expectedVersion + 1
	return nil
}

// LockUser takes a session advisory lock for userID on a dedicated connection, so replicas
// sharing the database serialize their per-user limit checks.
func (r *Repository) LockUser(ctx context.Context, userID uuid.UUID) (func(), error) {
	key := "user:" + userID.String()
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtextextended($1, 0))`, key); err != nil {
		conn.Release()
		return nil, err
	}
	return func() {
		uctx, cancel := context.WithTimeout(context.Background(), advisoryUnlockTimeout)
		defer cancel()
		if _, err := conn.Exec(uctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key); err != nil {
			// Closing the session drops the lock with it.
			_ = conn.Conn().Close(uctx)
		}
		conn.Release()
	}, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// missingOrStale explains a zero-row precondition write.
func (r *Repository) missingOrStale(ctx context.Context, q querier, id uuid.UUID) error {
	var exists int
	err := q.QueryRow(ctx, `SELECT 1 FROM reservations WHERE id = $1`, id).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoRows
	}
	if err != nil {
		return err
	}
	return ErrStaleVersion
}

func (r *Repository) ArchiveReservation(ctx context.Context, a *models.ArchivedReservation, expectedVersion int64) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM reservations WHERE id = $1 AND version = $2`, a.OriginalID, expectedVersion)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return r.missingOrStale(ctx, tx, a.OriginalID)
		}
		const q = `INSERT INTO archived_reservations (id, original_id, user_id, department, floor, room, start_at, end_at, status, purpose, participants, extension, started_at, ended_at, created_at, updated_at, archived_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
		_, err = tx.Exec(ctx, q, a.ID, a.OriginalID, a.UserID, a.Department, a.Floor, a.Room, a.Start, a.End,
			string(a.Status), a.Purpose, participantsOf(a.Participants), a.Extension, a.StartedAt, a.EndedAt,
			a.CreatedAt, a.UpdatedAt, a.ArchivedAt)
		return err
	})
	return mapErr(err)
}

func scanArchived(row pgx.Row) (*models.ArchivedReservation, error) {
	var a models.ArchivedReservation
	var status string
	err := row.Scan(&a.ID, &a.OriginalID, &a.UserID, &a.Department, &a.Floor, &a.Room, &a.Start, &a.End, &status,
		&a.Purpose, &a.Participants, &a.Extension, &a.StartedAt, &a.EndedAt, &a.CreatedAt, &a.UpdatedAt, &a.ArchivedAt)
	if err != nil {
		return nil, err
	}
	a.Status = models.Status(status)
	return &a, nil
}

func (r *Repository) GetArchived(ctx context.Context, id uuid.UUID) (*models.ArchivedReservation, error) {
	q := `SELECT ` + archivedColumns + ` FROM archived_reservations WHERE id = $1`
	a, err := scanArchived(r.pool.QueryRow(ctx, q, id))
	return a, mapErr(err)
}

func (r *Repository) ListArchived(ctx context.Context, userID *uuid.UUID) ([]models.ArchivedReservation, error) {
	base := `SELECT ` + archivedColumns + ` FROM archived_reservations`
	var args []interface{}
	if userID != nil {
		base += ` WHERE user_id = $1`
		args = append(args, *userID)
	}
	rows, err := r.pool.Query(ctx, base+` ORDER BY archived_at DESC`, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var list []models.ArchivedReservation
	for rows.Next() {
		a, err := scanArchived(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

func (r *Repository) DeleteArchived(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM archived_reservations WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}
