package rooms

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/libroom/reservations/internal/models"
	"github.com/libroom/reservations/pkg/response"
)

// Registry is the room store the admin endpoints read and write.
type Registry interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	UpsertRoom(ctx context.Context, rm *models.Room) error
}

// UpsertRequest is the body for PUT /rooms/:floor/:name.
type UpsertRequest struct {
	Capacity    int                 `json:"capacity" binding:"min=0,max=500"`
	IsActive    *bool               `json:"is_active" binding:"required"`
	Features    models.RoomFeatures `json:"features"`
	Description string              `json:"description" binding:"max=1000"`
	ImageURL    string              `json:"image_url" binding:"omitempty,url"`
}

// Handler serves the room registry endpoints.
type Handler struct {
	registry Registry
	logger   *zap.Logger
}

// NewHandler creates a rooms handler.
func NewHandler(registry Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, logger: logger}
}

// List handles GET /rooms.
func (h *Handler) List(c *gin.Context) {
	list, err := h.registry.ListRooms(c.Request.Context())
	if err != nil {
		h.logger.Error("list rooms failed", zap.Error(err))
		response.Internal(c, "failed to list rooms")
		return
	}
	if list == nil {
		list = []models.Room{}
	}
	response.OK(c, list)
}

// Upsert handles PUT /rooms/:floor/:name (admin).
func (h *Handler) Upsert(c *gin.Context) {
	floor := strings.TrimSpace(c.Param("floor"))
	name := strings.TrimSpace(c.Param("name"))
	if floor == "" || name == "" {
		response.BadRequest(c, "floor and name are required")
		return
	}
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rm := &models.Room{
		Floor:       floor,
		Name:        name,
		Capacity:    req.Capacity,
		IsActive:    *req.IsActive,
		Features:    req.Features,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	}
	if err := h.registry.UpsertRoom(c.Request.Context(), rm); err != nil {
		h.logger.Error("upsert room failed", zap.Error(err), zap.Stringer("room", rm.Ref()))
		response.Internal(c, "failed to save room")
		return
	}
	h.logger.Info("room saved", zap.Stringer("room", rm.Ref()), zap.Bool("is_active", rm.IsActive))
	response.OK(c, rm)
}
