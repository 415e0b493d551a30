// Package main runs the library reservation HTTP server with the expiry sweeper, the
// archive worker and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/libroom/reservations/config"
	"github.com/libroom/reservations/internal/auth"
	"github.com/libroom/reservations/internal/eligibility"
	"github.com/libroom/reservations/internal/middleware"
	"github.com/libroom/reservations/internal/notify"
	"github.com/libroom/reservations/internal/reservations"
	"github.com/libroom/reservations/internal/rooms"
	"github.com/libroom/reservations/internal/sweeper"
	"github.com/libroom/reservations/internal/worker"
	"github.com/libroom/reservations/pkg/database"
	"github.com/libroom/reservations/pkg/queue"
	"github.com/libroom/reservations/pkg/redis"
	"github.com/libroom/reservations/pkg/response"
)

func main() {
	envFiles := pflag.StringSlice("env-file", nil, "env files to load instead of ./.env (repeatable)")
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	pflag.Parse()

	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load(*envFiles...)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	var (
		store    reservations.Store
		registry rooms.Registry
		users    auth.Users
		checks   = map[string]func(context.Context) error{}
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		mem := reservations.NewMemoryStore()
		store, registry, users = mem, mem, auth.NewMemoryUsers()
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		pool, err := database.NewPostgresPool(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		checks["postgres"] = pool.Ping
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		if *migrateOnly {
			logger.Info("migrations applied, exiting")
			return
		}
		roomRepo := rooms.NewRepository(pool)
		store, registry, users = reservations.NewRepository(pool, roomRepo), roomRepo, auth.NewRepository(pool)
	}

	var (
		notifier reservations.Notifier = notify.Nop{}
		jobQueue *queue.Queue
	)
	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	switch {
	case err == nil:
		defer rdb.Close()
		checks["redis"] = rdb.Healthy
		redisNotifier := notify.NewRedisNotifier(rdb.Client, logger)
		defer redisNotifier.Wait()
		notifier = redisNotifier
		jobQueue = queue.NewQueue(rdb.Client, logger)
	case cfg.StoreBackend == config.BackendMemory:
		logger.Warn("redis unavailable; notifications disabled, archiving inline", zap.Error(err))
	default:
		logger.Fatal("redis", zap.Error(err))
	}

	floors, err := newEligibility(cfg)
	if err != nil {
		logger.Fatal("floor eligibility", zap.Error(err))
	}

	opts := reservations.Options{
		Policy:      newPolicy(cfg.Reservations),
		Eligibility: floors,
		Notifier:    notifier,
		Logger:      logger,
	}
	if jobQueue != nil {
		opts.ArchiveQueue = jobQueue
	} else {
		opts.ArchiveInline = true
	}
	svc := reservations.NewService(store, opts)

	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		created, err := auth.EnsureAdmin(ctx, users, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			logger.Fatal("bootstrap admin", zap.Error(err))
		}
		if created {
			logger.Info("bootstrap admin created", zap.String("email", cfg.Admin.Email))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authHandler := auth.NewHandler(users, jwtService, logger)
	roomHandler := rooms.NewHandler(registry, logger)
	reservationHandler := reservations.NewHandler(svc, logger)

	sweep := sweeper.New(svc, logger, 0)
	maintenanceHandler := sweeper.NewHandler(sweep, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", health(checks))

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	admin := middleware.RequireRole(auth.RoleAdmin)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users", admin, authHandler.List)

		api.GET("/rooms", roomHandler.List)
		api.PUT("/rooms/:floor/:name", admin, roomHandler.Upsert)

		reservationHandler.Register(api, admin)

		api.POST("/maintenance/check-expired", admin, maintenanceHandler.CheckExpired)
		if jobQueue != nil {
			api.GET("/maintenance/archive-queue", admin, worker.NewHandler(jobQueue, logger).QueueStats)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	if err := sweep.Start(cfg.Sweep.Schedule); err != nil {
		logger.Fatal("sweeper", zap.Error(err))
	}

	// Background worker (archival of terminal reservations)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if jobQueue != nil {
		processor := worker.NewArchiveProcessor(svc, jobQueue, logger)
		go processor.Run(workerCtx)
		logger.Info("archive worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	sweep.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// health reports each backing service; any failure turns the endpoint into a 503.
func health(checks map[string]func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := gin.H{}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, response.Body{Success: false, Data: status, Error: "degraded"})
			return
		}
		status["status"] = "ok"
		response.OK(c, status)
	}
}

func newEligibility(cfg *config.Config) (*eligibility.FloorPolicy, error) {
	if cfg.FloorEligibilityFile != "" {
		return eligibility.LoadFloorPolicyFile(cfg.FloorEligibilityFile)
	}
	return eligibility.ParseFloorPolicy(cfg.FloorEligibility)
}

func newPolicy(c config.ReservationConfig) reservations.Policy {
	p := reservations.DefaultPolicy()
	if loc, err := c.Location(); err == nil {
		p.Location = loc
	}
	p.MaxAdvance = c.MaxAdvance()
	p.MinDuration = c.MinDuration()
	p.MaxDuration = c.MaxDuration()
	p.MaxLivePerUser = c.MaxActivePerUser
	p.StoreTimeout = c.StoreTimeout()
	p.LockTimeout = c.LockTimeout()
	p.AutoArchive = c.AutoArchive
	return p
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
