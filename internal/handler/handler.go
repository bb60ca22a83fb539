package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/pkg/logger"
)

// Context keys written by the auth middleware.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// actor reads the authenticated caller. It writes the 401 itself when missing.
func actor(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(ContextUserID)
	id, isUUID := v.(uuid.UUID)
	if !ok || !isUUID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return model.Actor{}, false
	}
	role, _ := c.Get(ContextRole)
	r, _ := role.(string)
	return model.Actor{ID: id, Role: model.Role(r)}, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// intQuery returns def when the parameter is absent or malformed.
func intQuery(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrForbidden), errors.Is(err, model.ErrUserBlocked):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrConflict),
		errors.Is(err, model.ErrAlreadyEvaluated),
		errors.Is(err, model.ErrNotAssigned):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError maps a service error onto a status. Internal errors are logged
// and hidden from the caller.
func respondError(c *gin.Context, log *zap.Logger, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithTrace(c.Request.Context(), log).Error(msg,
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}
