package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Admin        AdminConfig
	Reservations ReservationConfig
	Sweep        SweepConfig
	StoreBackend string

	// FloorEligibility is DEPT:floor|floor;DEPT2:* (empty allows everyone everywhere).
	FloorEligibility string
	// FloorEligibilityFile points at a YAML policy; it wins over FloorEligibility.
	FloorEligibilityFile string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/library?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AdminConfig seeds an administrator account on startup when both fields are set.
type AdminConfig struct {
	Email    string
	Password string
}

// ReservationConfig holds the booking policy.
type ReservationConfig struct {
	Timezone           string
	MaxAdvanceDays     int
	MaxDurationMinutes int
	MinDurationMinutes int
	MaxActivePerUser   int
	StoreTimeoutMS     int
	LockTimeoutMS      int
	AutoArchive        bool
}

// SweepConfig holds the expiry sweeper schedule.
type SweepConfig struct {
	Schedule string // robfig/cron spec, e.g. "@every 1m" or "*/5 * * * *"
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Location resolves the configured IANA timezone.
func (c ReservationConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c ReservationConfig) MaxAdvance() time.Duration {
	return time.Duration(c.MaxAdvanceDays) * 24 * time.Hour
}

func (c ReservationConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationMinutes) * time.Minute
}

func (c ReservationConfig) MinDuration() time.Duration {
	return time.Duration(c.MinDurationMinutes) * time.Minute
}

func (c ReservationConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}

func (c ReservationConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMS) * time.Millisecond
}

// Load reads configuration from environment. With no files it picks up an optional
// .env (or env) in the working directory; named files must exist.
func Load(files ...string) (*Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return nil, fmt.Errorf("load env files: %w", err)
		}
	} else {
		_ = godotenv.Load()      // .env
		_ = godotenv.Load("env") // env (no leading dot)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "library"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
			MinConns: getEnvInt("DB_MIN_CONNS", 1),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Admin: AdminConfig{
			Email:    getEnv("BOOTSTRAP_ADMIN_EMAIL", ""),
			Password: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
		Reservations: ReservationConfig{
			Timezone:           getEnv("RESERVATION_TIMEZONE", "UTC"),
			MaxAdvanceDays:     getEnvInt("RESERVATION_MAX_ADVANCE_DAYS", 14),
			MaxDurationMinutes: getEnvInt("RESERVATION_MAX_DURATION_MINUTES", 240),
			MinDurationMinutes: getEnvInt("RESERVATION_MIN_DURATION_MINUTES", 15),
			MaxActivePerUser:   getEnvInt("RESERVATION_MAX_ACTIVE_PER_USER", 2),
			StoreTimeoutMS:     getEnvInt("RESERVATION_STORE_TIMEOUT_MS", 3000),
			LockTimeoutMS:      getEnvInt("RESERVATION_LOCK_TIMEOUT_MS", 5000),
			AutoArchive:        getEnvBool("RESERVATION_AUTO_ARCHIVE", true),
		},
		Sweep: SweepConfig{
			Schedule: getEnv("SWEEP_SCHEDULE", "@every 1m"),
		},
		StoreBackend:         strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
		FloorEligibility:     getEnv("FLOOR_ELIGIBILITY", ""),
		FloorEligibilityFile: getEnv("FLOOR_ELIGIBILITY_FILE", ""),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	r := c.Reservations
	if _, err := r.Location(); err != nil {
		errs = append(errs, fmt.Errorf("RESERVATION_TIMEZONE %q: %w", r.Timezone, err))
	}
	for name, v := range map[string]int{
		"RESERVATION_MAX_ADVANCE_DAYS":     r.MaxAdvanceDays,
		"RESERVATION_MAX_DURATION_MINUTES": r.MaxDurationMinutes,
		"RESERVATION_MIN_DURATION_MINUTES": r.MinDurationMinutes,
		"RESERVATION_MAX_ACTIVE_PER_USER":  r.MaxActivePerUser,
		"RESERVATION_STORE_TIMEOUT_MS":     r.StoreTimeoutMS,
		"RESERVATION_LOCK_TIMEOUT_MS":      r.LockTimeoutMS,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	if c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, errors.New("DB_MIN_CONNS exceeds DB_MAX_CONNS"))
	}
	if r.MinDurationMinutes > r.MaxDurationMinutes {
		errs = append(errs, errors.New("RESERVATION_MIN_DURATION_MINUTES exceeds RESERVATION_MAX_DURATION_MINUTES"))
	}
	switch c.StoreBackend {
	case BackendPostgres, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q: want postgres or memory", c.StoreBackend))
	}
	return errors.Join(errs...)
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
