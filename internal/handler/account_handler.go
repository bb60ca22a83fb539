package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ideaflow/internal/model"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (string, *model.Profile, error)
	Me(ctx context.Context, id uuid.UUID) (*model.Profile, error)
}

type GamificationService interface {
	SubmitterMetrics(ctx context.Context, userID uuid.UUID) (model.SubmitterMetrics, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

type DashboardService interface {
	Overview(ctx context.Context) (*model.DashboardOverview, error)
}

type NotificationLister interface {
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.Notification, error)
}

// AccountHandler covers login, the caller's own data and the dashboards.
type AccountHandler struct {
	auth          AuthService
	gamification  GamificationService
	dashboard     DashboardService
	notifications NotificationLister
	logger        *zap.Logger
}

func NewAccountHandler(auth AuthService, gamification GamificationService, dashboard DashboardService, notifications NotificationLister, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		auth:          auth,
		gamification:  gamification,
		dashboard:     dashboard,
		notifications: notifications,
		logger:        logger,
	}
}

// POST /login
func (h *AccountHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	h.logger.Info("Login request received")

	token, p, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, "Login failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": p})
}

// GET /me
func (h *AccountHandler) Me(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	p, err := h.auth.Me(c.Request.Context(), a.ID)
	if err != nil {
		respondError(c, h.logger, "Failed to load profile", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GET /me/metrics
func (h *AccountHandler) MyMetrics(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	m, err := h.gamification.SubmitterMetrics(c.Request.Context(), a.ID)
	if err != nil {
		respondError(c, h.logger, "Failed to compute submitter metrics", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// GET /me/notifications?limit=
func (h *AccountHandler) MyNotifications(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	limit := intQuery(c, "limit", 50)
	if limit == 0 || limit > 200 {
		limit = 50
	}
	list, err := h.notifications.ListForUser(c.Request.Context(), a.ID, limit)
	if err != nil {
		respondError(c, h.logger, "Failed to list notifications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// GET /dashboard/overview
func (h *AccountHandler) Overview(c *gin.Context) {
	o, err := h.dashboard.Overview(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to build dashboard overview", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// GET /dashboard/leaderboard?limit=
func (h *AccountHandler) Leaderboard(c *gin.Context) {
	limit := intQuery(c, "limit", 10)
	entries, err := h.gamification.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, "Failed to load leaderboard", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
