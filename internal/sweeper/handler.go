package sweeper

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/libroom/reservations/pkg/response"
)

// Handler exposes an on-demand sweep for operators.
type Handler struct {
	sweeper *Sweeper
	logger  *zap.Logger
}

// NewHandler creates a maintenance handler.
func NewHandler(s *Sweeper, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sweeper: s, logger: logger}
}

// CheckExpired handles POST /maintenance/check-expired (admin).
func (h *Handler) CheckExpired(c *gin.Context) {
	res, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		h.logger.Error("manual sweep failed", zap.Error(err))
		response.ServiceUnavailable(c, "sweep failed, retry")
		return
	}
	response.OK(c, res)
}
