package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/internal/service"
	"ideaflow/pkg/outbox"
)

type AdminService interface {
	CreateUser(ctx context.Context, actor model.Actor, in service.CreateUserInput) (*model.Profile, error)
	DeleteUser(ctx context.Context, actor model.Actor, id uuid.UUID) error
	ResetPassword(ctx context.Context, actor model.Actor, id uuid.UUID, password string) error
	ConfirmEmail(ctx context.Context, actor model.Actor, id uuid.UUID) error
	UpdateRole(ctx context.Context, actor model.Actor, id uuid.UUID, role model.Role) error
	ToggleStatus(ctx context.Context, actor model.Actor, id uuid.UUID) (bool, error)
	SetSpecializations(ctx context.Context, actor model.Actor, id uuid.UUID, specs []model.RubricCategory) error
	List(ctx context.Context, actor model.Actor, filter model.ProfileFilter) ([]model.Profile, error)
}

type OutboxReplayer interface {
	ReplayEvent(ctx context.Context, eventID int64) error
	ReplayFailedEvents(ctx context.Context, limit int) (int, error)
	ListFailed(ctx context.Context, limit int) ([]*outbox.Event, error)
}

type AdminHandler struct {
	admin  AdminService
	replay OutboxReplayer
	logger *zap.Logger
}

func NewAdminHandler(admin AdminService, replay OutboxReplayer, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, replay: replay, logger: logger}
}

// GET /admin/users?role=&q=&active=true&limit=&offset=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	users, err := h.admin.List(c.Request.Context(), a, model.ProfileFilter{
		Role:       model.Role(c.Query("role")),
		ActiveOnly: c.Query("active") == "true",
		Search:     c.Query("q"),
		Limit:      intQuery(c, "limit", 0),
		Offset:     intQuery(c, "offset", 0),
	})
	if err != nil {
		respondError(c, h.logger, "Failed to list users", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// POST /admin/users
func (h *AdminHandler) CreateUser(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.CreateUserInput
	if !bindJSON(c, &req) {
		return
	}
	h.logger.Info("Create user request received", zap.String("role", string(req.Role)))
	p, err := h.admin.CreateUser(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, h.logger, "Failed to create user", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// DELETE /admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.admin.DeleteUser(c.Request.Context(), a, id); err != nil {
		respondError(c, h.logger, "Failed to delete user", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /admin/users/:id/password
func (h *AdminHandler) ResetPassword(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.admin.ResetPassword(c.Request.Context(), a, id, req.Password); err != nil {
		respondError(c, h.logger, "Failed to reset password", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /admin/users/:id/confirm-email
func (h *AdminHandler) ConfirmEmail(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.admin.ConfirmEmail(c.Request.Context(), a, id); err != nil {
		respondError(c, h.logger, "Failed to confirm email", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PUT /admin/users/:id/role
func (h *AdminHandler) UpdateRole(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Role model.Role `json:"role" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.admin.UpdateRole(c.Request.Context(), a, id, req.Role); err != nil {
		respondError(c, h.logger, "Failed to update role", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id, "role": req.Role})
}

// POST /admin/users/:id/toggle-status
func (h *AdminHandler) ToggleStatus(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	active, err := h.admin.ToggleStatus(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, h.logger, "Failed to toggle user status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id, "is_active": active})
}

// PUT /admin/users/:id/specializations
func (h *AdminHandler) SetSpecializations(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Specializations []model.RubricCategory `json:"specializations"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.admin.SetSpecializations(c.Request.Context(), a, id, req.Specializations); err != nil {
		respondError(c, h.logger, "Failed to set specializations", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /admin/outbox/replay?id=xxx
func (h *AdminHandler) ReplayOutboxEvent(c *gin.Context) {
	idStr := c.Query("id")
	if idStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id parameter"})
		return
	}
	eventID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id parameter"})
		return
	}

	if err := h.replay.ReplayEvent(c.Request.Context(), eventID); err != nil {
		if errors.Is(err, outbox.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to replay event", zap.Int64("event_id", eventID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay event"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "replayed", "event_id": eventID})
}

// POST /admin/outbox/replay-failed?limit=100
func (h *AdminHandler) ReplayFailedEvents(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	if limit == 0 {
		limit = 100
	}
	n, err := h.replay.ReplayFailedEvents(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to replay failed events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay failed events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed", "success_count": n, "limit": limit})
}

// GET /admin/outbox/failed?limit=100
func (h *AdminHandler) ListFailedEvents(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	if limit == 0 {
		limit = 100
	}
	events, err := h.replay.ListFailed(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list failed events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list failed events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
