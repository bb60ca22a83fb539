package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ideaflow/internal/matching"
	"ideaflow/internal/model"
	"ideaflow/internal/progress"
	"ideaflow/internal/service"
	"ideaflow/internal/workflow"
)

type AssignmentService interface {
	Assign(ctx context.Context, actor model.Actor, ideaID uuid.UUID, category model.RubricCategory, evaluatorID uuid.UUID) (*model.Assignment, error)
	Unassign(ctx context.Context, actor model.Actor, ideaID uuid.UUID, category model.RubricCategory) error
	ListForIdea(ctx context.Context, ideaID uuid.UUID, activeOnly bool) ([]model.Assignment, error)
	ListForEvaluator(ctx context.Context, evaluatorID uuid.UUID, activeOnly bool) ([]model.AssignmentDetail, error)
	Suggest(ctx context.Context, ideaID uuid.UUID, category model.RubricCategory) ([]matching.Candidate, error)
}

type EvaluationService interface {
	Submit(ctx context.Context, actor model.Actor, ideaID uuid.UUID, in service.EvaluationInput) (*model.Evaluation, error)
	ListForIdea(ctx context.Context, actor model.Actor, ideaID uuid.UUID) ([]model.Evaluation, error)
}

type ReviewService interface {
	Progress(ctx context.Context, ideaID uuid.UUID) (progress.IdeaProgress, error)
	Queue(ctx context.Context) (progress.Queue, error)
}

type DecisionService interface {
	Decide(ctx context.Context, actor model.Actor, ideaID uuid.UUID, kind workflow.DecisionKind, feedback string) (*model.Idea, error)
	History(ctx context.Context, ideaID uuid.UUID) (model.History, error)
	LogAction(ctx context.Context, actor model.Actor, ideaID uuid.UUID, in service.ActionInput) (*model.ActionLog, error)
}

// ReviewHandler serves the evaluation workflow: assignments, evaluations,
// progress and decisions.
type ReviewHandler struct {
	assignments AssignmentService
	evaluations EvaluationService
	reviews     ReviewService
	decisions   DecisionService
	logger      *zap.Logger
}

func NewReviewHandler(assignments AssignmentService, evaluations EvaluationService, reviews ReviewService, decisions DecisionService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{
		assignments: assignments,
		evaluations: evaluations,
		reviews:     reviews,
		decisions:   decisions,
		logger:      logger,
	}
}

// POST /ideas/:id/assignments
func (h *ReviewHandler) Assign(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	ideaID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		EvaluationType model.RubricCategory `json:"evaluation_type" binding:"required"`
		EvaluatorID    uuid.UUID            `json:"evaluator_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	h.logger.Info("Assign evaluator request received",
		zap.String("idea_id", ideaID.String()),
		zap.String("evaluation_type", string(req.EvaluationType)),
		zap.String("evaluator_id", req.EvaluatorID.String()),
	)
	assignment, err := h.assignments.Assign(c.Request.Context(), a, ideaID, req.EvaluationType, req.EvaluatorID)
	if err != nil {
		respondError(c, h.logger, "Failed to assign evaluator", err)
		return
	}
	c.JSON(http.StatusCreated, assignment)
}

// DELETE /ideas/:id/assignments/:category
func (h *ReviewHandler) Unassign(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	ideaID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	category := model.RubricCategory(c.Param("category"))
	if err := h.assignments.Unassign(c.Request.Context(), a, ideaID, category); err != nil {
		respondError(c, h.logger, "Failed to remove evaluator", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /ideas/:id/assignments?all=true
func (h *ReviewHandler) ListAssignments(c *gin.Context) {
	ideaID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	activeOnly := c.Query("all") != "true"
	list, err := h.assignments.ListForIdea(c.Request.Context(), ideaID, activeOnly)
	if err != nil {
		respondError(c, h.logger, "Failed to list assignments", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": list})
}

// GET /ideas/:id/assignments/suggest?category=
func (h *ReviewHandler) Suggest(c *gin.Context) {
	ideaID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	category := model.RubricCategory(c.Query("category"))
	candidates, err := h.assignments.Suggest(c.Request.Context(), ideaID, category)
	if err != nil {
		respondError(c, h.logger, "Failed to suggest evaluators", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates})
}

// GET /evaluator/assignments?all=true
func (h *ReviewHandler) MyAssignments(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	activeOnly := c.Query("all") != "true"
	list, err := h.assignments.ListForEvaluator(c.Request.Context(), a.ID, activeOnly)
	if err != nil {
		respondError(c, h.logger, "Failed to list evaluator assignments", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": list})
}

// POST /ideas/:id/evaluations
func (h *ReviewHandler) SubmitEvaluation(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	ideaID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.EvaluationInput
	if !bindJSON(c, &req) {
		return
	}
	h.logger.Info("Submit evaluation request received",
		zap.String("idea_id", ideaID.String()),
		zap.String("evaluator_id", a.ID.String()),
		zap.String("evaluation_type", string(req.EvaluationType)),
	)
	ev, err := h.evaluations.Submit(c.Request.Context(), a, ideaID, req)
	if err != nil {
		respondError(c, h.logger, "Failed to submit evaluation", err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

// GET /ideas/:id/evaluations
func (h *ReviewHandler) ListEvaluations(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	ideaID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	list, err := h.evaluations.ListForIdea(c.Request.Context(), a, ideaID)
	if err != nil {
		respondError(c, h.logger, "Failed to list evaluations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"evaluations": list})
}

// GET /ideas/:id/progress
func (h *ReviewHandler) Progress(c *gin.Context) {
	ideaID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, err := h.reviews.Progress(c.Request.Context(), ideaID)
	if err != nil {
		respondError(c, h.logger, "Failed to compute progress", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GET /review/queue
func (h *ReviewHandler) Queue(c *gin.Context) {
	q, err := h.reviews.Queue(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to build review queue", err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// POST /ideas/:id/decision
func (h *ReviewHandler) Decide(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	ideaID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Decision workflow.DecisionKind `json:"decision" binding:"required"`
		Feedback string                `json:"feedback"`
	}
	if !bindJSON(c, &req) {
		return
	}
	h.logger.Info("Decision request received",
		zap.String("idea_id", ideaID.String()),
		zap.String("decision", string(req.Decision)),
		zap.String("decided_by", a.ID.String()),
	)
	idea, err := h.decisions.Decide(c.Request.Context(), a, ideaID, req.Decision, req.Feedback)
	if err != nil {
		respondError(c, h.logger, "Failed to record decision", err)
		return
	}
	c.JSON(http.StatusOK, idea)
}

// GET /ideas/:id/history
func (h *ReviewHandler) History(c *gin.Context) {
	ideaID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	hist, err := h.decisions.History(c.Request.Context(), ideaID)
	if err != nil {
		respondError(c, h.logger, "Failed to load idea history", err)
		return
	}
	c.JSON(http.StatusOK, hist)
}

// POST /ideas/:id/actions
func (h *ReviewHandler) LogAction(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	ideaID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.ActionInput
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.decisions.LogAction(c.Request.Context(), a, ideaID, req)
	if err != nil {
		respondError(c, h.logger, "Failed to log idea action", err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}
