package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ideaflow/internal/handler"
	"ideaflow/pkg/otel"
	"ideaflow/pkg/rbac"
)

type Router struct {
	Engine *gin.Engine
}

type Handlers struct {
	Ideas   *handler.IdeaHandler
	Review  *handler.ReviewHandler
	Admin   *handler.AdminHandler
	Account *handler.AccountHandler
}

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func NewRouter(h Handlers, jwtSecret string, logger *zap.Logger, checks ...ReadinessCheck) *Router {
	r := newEngine(logger, checks)

	// Public
	r.POST("/login", h.Account.Login)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))

	auth.GET("/me", h.Account.Me)
	auth.GET("/me/metrics", h.Account.MyMetrics)
	auth.GET("/me/notifications", h.Account.MyNotifications)

	write := auth.Group("/", RequirePermission(rbac.PermissionIdeaWrite))
	{
		write.POST("/ideas", h.Ideas.Create)
		write.PUT("/ideas/:id", h.Ideas.Update)
		write.POST("/ideas/:id/submit", h.Ideas.Submit)
		write.GET("/ideas/mine", h.Ideas.ListMine)
	}

	read := auth.Group("/", RequirePermission(rbac.PermissionIdeaRead))
	{
		read.GET("/ideas", h.Ideas.List)
		read.GET("/ideas/:id", h.Ideas.Get)
	}

	review := auth.Group("/", RequirePermission(rbac.PermissionReviewRead))
	{
		review.GET("/ideas/:id/progress", h.Review.Progress)
		review.GET("/ideas/:id/assignments", h.Review.ListAssignments)
		review.GET("/review/queue", h.Review.Queue)
	}

	assign := auth.Group("/", RequirePermission(rbac.PermissionAssignmentWrite))
	{
		assign.POST("/ideas/:id/assignments", h.Review.Assign)
		assign.DELETE("/ideas/:id/assignments/:category", h.Review.Unassign)
		assign.GET("/ideas/:id/assignments/suggest", h.Review.Suggest)
	}

	evaluate := auth.Group("/", RequirePermission(rbac.PermissionEvaluationWrite))
	{
		evaluate.GET("/evaluator/assignments", h.Review.MyAssignments)
		evaluate.POST("/ideas/:id/evaluations", h.Review.SubmitEvaluation)
	}

	auth.GET("/ideas/:id/evaluations", RequirePermission(rbac.PermissionEvaluationRead), h.Review.ListEvaluations)

	decide := auth.Group("/", RequirePermission(rbac.PermissionDecisionWrite))
	{
		decide.POST("/ideas/:id/decision", h.Review.Decide)
		decide.POST("/ideas/:id/implemented", h.Ideas.MarkImplemented)
		decide.GET("/ideas/:id/history", h.Review.History)
		decide.POST("/ideas/:id/actions", h.Review.LogAction)
	}

	dashboard := auth.Group("/dashboard", RequirePermission(rbac.PermissionDashboardRead))
	{
		dashboard.GET("/overview", h.Account.Overview)
		dashboard.GET("/leaderboard", h.Account.Leaderboard)
	}

	admin := auth.Group("/admin", RequirePermission(rbac.PermissionAdmin))
	{
		admin.GET("/users", h.Admin.ListUsers)
		admin.POST("/users", h.Admin.CreateUser)
		admin.DELETE("/users/:id", h.Admin.DeleteUser)
		admin.POST("/users/:id/password", h.Admin.ResetPassword)
		admin.POST("/users/:id/confirm-email", h.Admin.ConfirmEmail)
		admin.PUT("/users/:id/role", h.Admin.UpdateRole)
		admin.POST("/users/:id/toggle-status", h.Admin.ToggleStatus)
		admin.PUT("/users/:id/specializations", h.Admin.SetSpecializations)

		admin.GET("/outbox/failed", h.Admin.ListFailedEvents)
		admin.POST("/outbox/replay", h.Admin.ReplayOutboxEvent)
		admin.POST("/outbox/replay-failed", h.Admin.ReplayFailedEvents)
	}

	return &Router{Engine: r}
}

// NewProbeRouter serves only health, readiness and metrics. The worker and
// runner processes expose it.
func NewProbeRouter(logger *zap.Logger, checks ...ReadinessCheck) *Router {
	return &Router{Engine: newEngine(logger, checks)}
}

func newEngine(logger *zap.Logger, checks []ReadinessCheck) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), RequestLogger(logger), MetricsMiddleware())

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", readyHandler(checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func readyHandler(checks []ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		for _, chk := range checks {
			if err := chk.Check(ctx); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"status": chk.Name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
