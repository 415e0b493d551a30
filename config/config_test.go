package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RESERVATION_TIMEZONE", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("RESERVATION_MAX_ACTIVE_PER_USER", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, "@every 1m", cfg.Sweep.Schedule)
	assert.Equal(t, 14*24*time.Hour, cfg.Reservations.MaxAdvance())
	assert.Equal(t, 4*time.Hour, cfg.Reservations.MaxDuration())
	assert.Equal(t, 15*time.Minute, cfg.Reservations.MinDuration())
	assert.Equal(t, 2, cfg.Reservations.MaxActivePerUser)
	assert.True(t, cfg.Reservations.AutoArchive)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RESERVATION_TIMEZONE", "Asia/Seoul")
	t.Setenv("RESERVATION_MAX_ACTIVE_PER_USER", "5")
	t.Setenv("RESERVATION_AUTO_ARCHIVE", "false")
	t.Setenv("STORE_BACKEND", "MEMORY")

	cfg, err := Load()
	require.NoError(t, err)
	loc, err := cfg.Reservations.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", loc.String())
	assert.Equal(t, 5, cfg.Reservations.MaxActivePerUser)
	assert.False(t, cfg.Reservations.AutoArchive)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	t.Setenv("RESERVATION_TIMEZONE", "Mars/Olympus")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESERVATION_TIMEZONE")

	cfg := &Config{
		StoreBackend: "sqlite",
		Reservations: ReservationConfig{Timezone: "UTC", MaxAdvanceDays: 1, MaxDurationMinutes: 10, MinDurationMinutes: 30, MaxActivePerUser: 0, StoreTimeoutMS: 1, LockTimeoutMS: 1},
	}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_BACKEND")
	assert.Contains(t, err.Error(), "RESERVATION_MAX_ACTIVE_PER_USER")
	assert.Contains(t, err.Error(), "exceeds")
}

func TestDatabasePoolSettings(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://lib:pw@db:5432/library?sslmode=disable")
	t.Setenv("DB_MAX_CONNS", "4")
	t.Setenv("DB_MIN_CONNS", "8")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_MIN_CONNS")

	t.Setenv("DB_MIN_CONNS", "2")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://lib:pw@db:5432/library?sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, 4, cfg.Database.MaxConns)
	assert.Equal(t, 2, cfg.Database.MinConns)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.env")
	require.NoError(t, os.WriteFile(path, []byte("RESERVATION_MAX_ACTIVE_PER_USER=7\nFLOOR_ELIGIBILITY_FILE=/etc/library/floors.yaml\n"), 0o600))
	t.Setenv("RESERVATION_MAX_ACTIVE_PER_USER", "")
	t.Setenv("FLOOR_ELIGIBILITY_FILE", "")
	os.Unsetenv("RESERVATION_MAX_ACTIVE_PER_USER")
	os.Unsetenv("FLOOR_ELIGIBILITY_FILE")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Reservations.MaxActivePerUser)
	assert.Equal(t, "/etc/library/floors.yaml", cfg.FloorEligibilityFile)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
