// Package main runs the background jobs standalone: the expiry sweeper and the archive worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/libroom/reservations/config"
	"github.com/libroom/reservations/internal/eligibility"
	"github.com/libroom/reservations/internal/notify"
	"github.com/libroom/reservations/internal/reservations"
	"github.com/libroom/reservations/internal/rooms"
	"github.com/libroom/reservations/internal/sweeper"
	"github.com/libroom/reservations/internal/worker"
	"github.com/libroom/reservations/pkg/database"
	"github.com/libroom/reservations/pkg/queue"
	"github.com/libroom/reservations/pkg/redis"
)

func main() {
	envFiles := pflag.StringSlice("env-file", nil, "env files to load instead of ./.env (repeatable)")
	noSweep := pflag.Bool("no-sweep", false, "run only the archive worker; another process owns the sweep")
	pflag.Parse()

	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load(*envFiles...)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.StoreBackend != config.BackendPostgres {
		logger.Fatal("worker needs the postgres backend", zap.String("store", cfg.StoreBackend))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	floors, err := newEligibility(cfg)
	if err != nil {
		logger.Fatal("floor eligibility", zap.Error(err))
	}

	notifier := notify.NewRedisNotifier(rdb.Client, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	store := reservations.NewRepository(pool, rooms.NewRepository(pool))
	svc := reservations.NewService(store, reservations.Options{
		Policy:       newPolicy(cfg.Reservations),
		Eligibility:  floors,
		Notifier:     notifier,
		ArchiveQueue: jobQueue,
		Logger:       logger,
	})

	sweep := sweeper.New(svc, logger, 0)
	if !*noSweep {
		if err := sweep.Start(cfg.Sweep.Schedule); err != nil {
			logger.Fatal("sweeper", zap.Error(err))
		}
	}

	processor := worker.NewArchiveProcessor(svc, jobQueue, logger)
	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	sweep.Stop()
	select {
	case <-done:
	case <-time.After(queue.PollTimeout + time.Second):
	}
	notifier.Wait()
	logger.Info("worker stopped")
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
