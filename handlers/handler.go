package handlers

import (
	"errors"
	"net/http"

	"bitbucket.org/mmdatafocus/integrity_backend/config"
	"bitbucket.org/mmdatafocus/integrity_backend/models"
	"bitbucket.org/mmdatafocus/integrity_backend/utils"
	"bitbucket.org/mmdatafocus/integrity_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// Handler serves dependency injection for the HTTP layer.
type Handler struct {
	Tracer  trace.Tracer
	Logger  *logrus.Logger
	Reports *models.ReportStore
	Ledger  *models.TamperDetector
	Outbox  *workflow.Outbox
}

// actor is the session identity as a report submitter / ledger actor.
func actor(c *gin.Context) models.Submitter {
	id, _ := utils.GetUserIdFromContext(c.Request.Context())
	name, _ := utils.GetUserNameFromContext(c.Request.Context())
	return models.Submitter{ID: id, Name: name}
}

// respondError maps core sentinels to 4xx. Anything else is a 500 and gets logged.
func (h *Handler) respondError(c *gin.Context, funcName string, data any, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorUnknownField), errors.Is(err, utils.ErrorInvalidFieldValue):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		config.LogError(h.logger(), "handlers", funcName, "request failed", data, err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
		return false
	}
	return true
}

func (h *Handler) logger() *logrus.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return config.GetLogger()
}
