package worker

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/libroom/reservations/pkg/queue"
	"github.com/libroom/reservations/pkg/response"
)

// StatsSource reports archive queue depths.
type StatsSource interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

// Handler exposes archive queue state to operators.
type Handler struct {
	source StatsSource
	logger *zap.Logger
}

func NewHandler(source StatsSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{source: source, logger: logger}
}

// QueueStats handles GET /maintenance/archive-queue (admin).
func (h *Handler) QueueStats(c *gin.Context) {
	stats, err := h.source.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("archive queue stats failed", zap.Error(err))
		response.ServiceUnavailable(c, "queue unavailable, retry")
		return
	}
	response.OK(c, stats)
}
