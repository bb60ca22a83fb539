package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/internal/service"
)

type IdeaService interface {
	Create(ctx context.Context, actor model.Actor, in service.IdeaInput) (*model.Idea, error)
	Update(ctx context.Context, actor model.Actor, id uuid.UUID, in service.IdeaInput) (*model.Idea, error)
	Submit(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Idea, error)
	MarkImplemented(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Idea, error)
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Idea, error)
	ListMine(ctx context.Context, actor model.Actor, filter model.IdeaFilter) ([]model.Idea, error)
	List(ctx context.Context, actor model.Actor, filter model.IdeaFilter) ([]model.Idea, error)
}

type IdeaHandler struct {
	ideas  IdeaService
	logger *zap.Logger
}

func NewIdeaHandler(ideas IdeaService, logger *zap.Logger) *IdeaHandler {
	return &IdeaHandler{ideas: ideas, logger: logger}
}

// filterFrom reads ?status=a,b&category=&q=&limit=&offset=.
func filterFrom(c *gin.Context) model.IdeaFilter {
	var statuses []model.IdeaStatus
	for _, raw := range c.QueryArray("status") {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, model.IdeaStatus(s))
			}
		}
	}
	return model.IdeaFilter{
		Statuses: statuses,
		Category: model.IdeaCategory(c.Query("category")),
		Search:   c.Query("q"),
		Limit:    intQuery(c, "limit", 0),
		Offset:   intQuery(c, "offset", 0),
	}
}

// POST /ideas
func (h *IdeaHandler) Create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.IdeaInput
	if !bindJSON(c, &req) {
		return
	}
	h.logger.Info("Create idea request received", zap.String("user_id", a.ID.String()))

	idea, err := h.ideas.Create(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, h.logger, "Failed to create idea", err)
		return
	}
	c.JSON(http.StatusCreated, idea)
}

// PUT /ideas/:id
func (h *IdeaHandler) Update(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.IdeaInput
	if !bindJSON(c, &req) {
		return
	}
	idea, err := h.ideas.Update(c.Request.Context(), a, id, req)
	if err != nil {
		respondError(c, h.logger, "Failed to update idea", err)
		return
	}
	c.JSON(http.StatusOK, idea)
}

// POST /ideas/:id/submit
func (h *IdeaHandler) Submit(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	h.logger.Info("Submit idea request received",
		zap.String("user_id", a.ID.String()),
		zap.String("idea_id", id.String()),
	)
	idea, err := h.ideas.Submit(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, h.logger, "Failed to submit idea", err)
		return
	}
	c.JSON(http.StatusOK, idea)
}

// POST /ideas/:id/implemented
func (h *IdeaHandler) MarkImplemented(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	idea, err := h.ideas.MarkImplemented(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, h.logger, "Failed to mark idea implemented", err)
		return
	}
	c.JSON(http.StatusOK, idea)
}

// GET /ideas/:id
func (h *IdeaHandler) Get(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	idea, err := h.ideas.Get(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, h.logger, "Failed to load idea", err)
		return
	}
	c.JSON(http.StatusOK, idea)
}

// GET /ideas/mine
func (h *IdeaHandler) ListMine(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	ideas, err := h.ideas.ListMine(c.Request.Context(), a, filterFrom(c))
	if err != nil {
		respondError(c, h.logger, "Failed to list own ideas", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ideas": ideas})
}

// GET /ideas
func (h *IdeaHandler) List(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	ideas, err := h.ideas.List(c.Request.Context(), a, filterFrom(c))
	if err != nil {
		respondError(c, h.logger, "Failed to list ideas", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ideas": ideas})
}
