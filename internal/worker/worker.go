package worker

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/libroom/reservations/internal/models"
	"github.com/libroom/reservations/internal/reservations"
	"github.com/libroom/reservations/pkg/queue"
)

// Archiver moves a terminal reservation into the archive.
type Archiver interface {
	Archive(ctx context.Context, id uuid.UUID) (*models.ArchivedReservation, error)
}

// JobQueue is the subset of the Redis queue the worker drives.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
	Ack(ctx context.Context, job *queue.Job) error
}

// ArchiveProcessor processes archival jobs queued after terminal transitions.
type ArchiveProcessor struct {
	archiver Archiver
	queue    JobQueue
	logger   *zap.Logger
	backoff  time.Duration
}

// NewArchiveProcessor creates an archival processor.
func NewArchiveProcessor(archiver Archiver, q JobQueue, logger *zap.Logger) *ArchiveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveProcessor{archiver: archiver, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one archival job. Jobs for reservations that are already archived or
// were never terminal are dropped; only transient failures are returned for retry.
func (p *ArchiveProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeArchive {
		p.logger.Warn("dropping job of unknown type", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		return nil
	}
	var payload queue.ArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.logger.Warn("dropping malformed archive job", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}

	a, err := p.archiver.Archive(ctx, payload.ReservationID)
	switch reservations.KindOf(err) {
	case "":
		if err != nil {
			return fmt.Errorf("archive %s: %w", payload.ReservationID, err)
		}
	case reservations.KindNotFound:
		p.logger.Info("reservation already archived", zap.String("reservation_id", payload.ReservationID.String()))
		return nil
	case reservations.KindInvalidState:
		p.logger.Warn("reservation not terminal, skipping archive", zap.String("reservation_id", payload.ReservationID.String()))
		return nil
	default:
		return fmt.Errorf("archive %s: %w", payload.ReservationID, err)
	}

	p.logger.Info("archive job completed", zap.String("reservation_id", payload.ReservationID.String()), zap.String("archive_id", a.ID.String()))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ArchiveProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("archive worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
			continue
		}
		if err := p.queue.Ack(ctx, job); err != nil {
			p.logger.Warn("ack failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

func (p *ArchiveProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
