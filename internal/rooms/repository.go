package rooms

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/libroom/reservations/internal/models"
)

const roomColumns = `floor, name, capacity, is_active, has_wifi, has_aircon, has_projector, has_monitor, description, image_url, created_at, updated_at`

// Repository handles room registry persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a room repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRoom(row pgx.Row) (*models.Room, error) {
	var rm models.Room
	err := row.Scan(&rm.Floor, &rm.Name, &rm.Capacity, &rm.IsActive,
		&rm.Features.Wifi, &rm.Features.AirConditioner, &rm.Features.Projector, &rm.Features.Monitor,
		&rm.Description, &rm.ImageURL, &rm.CreatedAt, &rm.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rm, nil
}

// GetRoom returns a room by its (floor, name) key. Returns pgx.ErrNoRows when absent.
func (r *Repository) GetRoom(ctx context.Context, floor, name string) (*models.Room, error) {
	q := `SELECT ` + roomColumns + ` FROM rooms WHERE floor = $1 AND name = $2`
	return scanRoom(r.pool.QueryRow(ctx, q, floor, name))
}

// ListRooms returns every room, active or not, ordered by floor then name.
func (r *Repository) ListRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY floor, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rm)
	}
	return list, rows.Err()
}

// UpsertRoom creates or edits a room. The (floor, name) primary key keeps rooms unique.
func (r *Repository) UpsertRoom(ctx context.Context, rm *models.Room) error {
	const q = `INSERT INTO rooms (floor, name, capacity, is_active, has_wifi, has_aircon, has_projector, has_monitor, description, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (floor, name) DO UPDATE SET
			capacity = EXCLUDED.capacity, is_active = EXCLUDED.is_active,
			has_wifi = EXCLUDED.has_wifi, has_aircon = EXCLUDED.has_aircon,
			has_projector = EXCLUDED.has_projector, has_monitor = EXCLUDED.has_monitor,
			description = EXCLUDED.description, image_url = EXCLUDED.image_url, updated_at = NOW()
		RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, q, rm.Floor, rm.Name, rm.Capacity, rm.IsActive,
		rm.Features.Wifi, rm.Features.AirConditioner, rm.Features.Projector, rm.Features.Monitor,
		rm.Description, rm.ImageURL).Scan(&rm.CreatedAt, &rm.UpdatedAt)
}
