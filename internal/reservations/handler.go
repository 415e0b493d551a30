package reservations

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/libroom/reservations/internal/middleware"
	"github.com/libroom/reservations/internal/models"
	"github.com/libroom/reservations/pkg/response"
)

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// CreateRequest is the body for POST /reservations.
type CreateRequest struct {
	Floor        string             `json:"floor" binding:"required"`
	Room         string             `json:"room" binding:"required"`
	Start        string             `json:"start" binding:"required"`
	End          string             `json:"end" binding:"required"`
	Purpose      string             `json:"purpose"`
	Participants []ParticipantInput `json:"participants"`
}

// StatusRequest is the body for PATCH /reservations/:id/status.
type StatusRequest struct {
	Action string `json:"action" binding:"required,oneof=approve deny cancel"`
}

// ExtensionRequestBody is the body for PUT /reservations/:id/extension.
type ExtensionRequestBody struct {
	NewEnd string `json:"new_end" binding:"required"`
}

// DecisionRequest is the body for PUT /reservations/:id/extension/decision.
type DecisionRequest struct {
	Approve *bool `json:"approve" binding:"required"`
}

// Handler serves the reservation endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a reservation handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

var statusByKind = map[Kind]int{
	KindValidation:        http.StatusBadRequest,
	KindNotFound:          http.StatusNotFound,
	KindConflict:          http.StatusConflict,
	KindDuplicate:         http.StatusConflict,
	KindLimitExceeded:     http.StatusForbidden,
	KindIneligible:        http.StatusForbidden,
	KindCapacityExceeded:  http.StatusUnprocessableEntity,
	KindInvalidTransition: http.StatusConflict,
	KindInvalidState:      http.StatusConflict,
	KindTransient:         http.StatusServiceUnavailable,
}

// fail writes an engine error with its mapped status.
func (h *Handler) fail(c *gin.Context, err error) {
	var e *Error
	if !errors.As(err, &e) {
		h.logger.Error("unclassified error", zap.Error(err), zap.String("path", c.FullPath()))
		response.Internal(c, "internal error")
		return
	}
	status, ok := statusByKind[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if e.Kind == KindTransient {
		h.logger.Warn("transient failure", zap.Error(err), zap.String("path", c.FullPath()))
	}
	response.Fail(c, status, string(e.Kind), e.Message())
}

func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func caller(c *gin.Context) uuid.UUID {
	return c.MustGet(middleware.ContextUserID).(uuid.UUID)
}

// owned loads the reservation and checks the caller owns it (admins pass).
func (h *Handler) owned(c *gin.Context) (*models.Reservation, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	r, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if r.UserID != caller(c) && !middleware.IsAdmin(c) {
		// Hide other users' reservations entirely.
		h.fail(c, newError(KindNotFound, "%s", id))
		return nil, false
	}
	return r, true
}

// Availability handles GET /availability?date=YYYY-MM-DD.
func (h *Handler) Availability(c *gin.Context) {
	date, err := ParseDate(c.Query("date"), h.svc.Policy().Location)
	if err != nil {
		response.BadRequest(c, "invalid date, want YYYY-MM-DD")
		return
	}
	userID := caller(c)
	if q := c.Query("user_id"); q != "" && middleware.IsAdmin(c) {
		if userID, err = uuid.Parse(q); err != nil {
			response.BadRequest(c, "invalid user_id")
			return
		}
	}
	list, err := h.svc.ComputeAvailability(c.Request.Context(), date, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /reservations.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	start, err := parseTime(req.Start)
	if err != nil {
		response.BadRequest(c, "invalid start")
		return
	}
	end, err := parseTime(req.End)
	if err != nil {
		response.BadRequest(c, "invalid end")
		return
	}
	r, err := h.svc.Create(c.Request.Context(), CreateParams{
		UserID:       caller(c),
		Department:   middleware.Department(c),
		Floor:        req.Floor,
		Room:         req.Room,
		Start:        start,
		End:          end,
		Purpose:      req.Purpose,
		Participants: req.Participants,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, r)
}

// Get handles GET /reservations/:id.
func (h *Handler) Get(c *gin.Context) {
	r, ok := h.owned(c)
	if !ok {
		return
	}
	response.OK(c, r)
}

// Mine handles GET /reservations/mine.
func (h *Handler) Mine(c *gin.Context) {
	list, err := h.svc.ListByUser(c.Request.Context(), caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []models.Reservation{}
	}
	response.OK(c, list)
}

// UpdateStatus handles PATCH /reservations/:id/status. Approve and deny are admin-only.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Action != "cancel" && !middleware.IsAdmin(c) {
		response.Forbidden(c, "insufficient permissions")
		return
	}
	current, ok := h.owned(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var (
		r   *models.Reservation
		err error
	)
	switch req.Action {
	case "approve":
		r, err = h.svc.Approve(ctx, current.ID)
	case "deny":
		r, err = h.svc.Deny(ctx, current.ID)
	default:
		r, err = h.svc.Cancel(ctx, current.ID)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, r)
}

// Start handles POST /reservations/:id/start.
func (h *Handler) Start(c *gin.Context) {
	current, ok := h.owned(c)
	if !ok {
		return
	}
	r, err := h.svc.Start(c.Request.Context(), current.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, r)
}

// EndEarly handles POST /reservations/:id/end-early.
func (h *Handler) EndEarly(c *gin.Context) {
	current, ok := h.owned(c)
	if !ok {
		return
	}
	r, err := h.svc.EndEarly(c.Request.Context(), current.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, r)
}

// RequestExtension handles PUT /reservations/:id/extension.
func (h *Handler) RequestExtension(c *gin.Context) {
	var req ExtensionRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	newEnd, err := parseTime(req.NewEnd)
	if err != nil {
		response.BadRequest(c, "invalid new_end")
		return
	}
	current, ok := h.owned(c)
	if !ok {
		return
	}
	r, err := h.svc.RequestExtension(c.Request.Context(), current.ID, caller(c), newEnd)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, r)
}

// DecideExtension handles PUT /reservations/:id/extension/decision (admin).
func (h *Handler) DecideExtension(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	r, err := h.svc.HandleExtension(c.Request.Context(), id, *req.Approve)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, r)
}

// AddParticipant handles POST /reservations/:id/participants.
func (h *Handler) AddParticipant(c *gin.Context) {
	var req ParticipantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	current, ok := h.owned(c)
	if !ok {
		return
	}
	r, err := h.svc.AddParticipant(c.Request.Context(), current.ID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, r)
}

// RemoveParticipant handles DELETE /reservations/:id/participants/:userId.
func (h *Handler) RemoveParticipant(c *gin.Context) {
	current, ok := h.owned(c)
	if !ok {
		return
	}
	r, err := h.svc.RemoveParticipant(c.Request.Context(), current.ID, c.Param("userId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, r)
}

// Archive handles POST /reservations/:id/archive (admin).
func (h *Handler) Archive(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	a, err := h.svc.Archive(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, a)
}

// ListArchived handles GET /archived. Members see their own; admins see all or filter by user_id.
func (h *Handler) ListArchived(c *gin.Context) {
	var filter *uuid.UUID
	if middleware.IsAdmin(c) {
		if q := c.Query("user_id"); q != "" {
			id, err := uuid.Parse(q)
			if err != nil {
				response.BadRequest(c, "invalid user_id")
				return
			}
			filter = &id
		}
	} else {
		id := caller(c)
		filter = &id
	}
	list, err := h.svc.ListArchived(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []models.ArchivedReservation{}
	}
	response.OK(c, list)
}

// Restore handles POST /archived/:id/restore.
func (h *Handler) Restore(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	a, err := h.svc.GetArchived(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if a.UserID != caller(c) && !middleware.IsAdmin(c) {
		h.fail(c, newError(KindNotFound, "%s", id))
		return
	}
	r, err := h.svc.Restore(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, r)
}

// DeleteArchived handles DELETE /archived/:id (admin).
func (h *Handler) DeleteArchived(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteArchived(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

// Register mounts the reservation routes on an authenticated group. admin guards the
// admin-only routes.
func (h *Handler) Register(api *gin.RouterGroup, admin gin.HandlerFunc) {
	api.GET("/availability", h.Availability)

	res := api.Group("/reservations")
	res.POST("", h.Create)
	res.GET("/mine", h.Mine)
	res.GET("/:id", h.Get)
	res.PATCH("/:id/status", h.UpdateStatus)
	res.POST("/:id/start", h.Start)
	res.POST("/:id/end-early", h.EndEarly)
	res.PUT("/:id/extension", h.RequestExtension)
	res.PUT("/:id/extension/decision", admin, h.DecideExtension)
	res.POST("/:id/participants", h.AddParticipant)
	res.DELETE("/:id/participants/:userId", h.RemoveParticipant)
	res.POST("/:id/archive", admin, h.Archive)

	arch := api.Group("/archived")
	arch.GET("", h.ListArchived)
	arch.POST("/:id/restore", h.Restore)
	arch.DELETE("/:id", admin, h.DeleteArchived)
}
