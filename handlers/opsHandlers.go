package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/integrity_backend/workflow"
	"github.com/gin-gonic/gin"
)

// OutboxStatus reports delivery counters and the dead records awaiting attention.
func (h *Handler) OutboxStatus(c *gin.Context) {
	if h.Outbox == nil {
		c.JSON(http.StatusOK, gin.H{"stats": workflow.OutboxStats{}, "dead": []workflow.OutboxRecord{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats": h.Outbox.Stats(),
		"dead":  h.Outbox.Records(workflow.OutboxStatusDead),
	})
}
