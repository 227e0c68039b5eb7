package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/integrity_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type updateStatusRequest struct {
	Status models.ReportStatus `json:"status" binding:"required"`
}

type assignRequest struct {
	AssigneeId string `json:"assignee_id"`
}

type addNoteRequest struct {
	Content string `json:"content" binding:"required,notblank"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "UpdateStatus")
	defer span.End()

	var req updateStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	report, err := h.Reports.UpdateStatus(c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, "UpdateStatus", c.Param("id"), err)
		return
	}
	h.logger().WithFields(logrus.Fields{
		"field":     "UpdateStatus",
		"report_id": report.ID,
		"status":    report.Status,
		"moderator": actor(c).ID,
	}).Info("report status changed")
	c.JSON(http.StatusOK, report)
}

// AssignReport sets the assignee; an empty assignee_id clears it.
func (h *Handler) AssignReport(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "AssignReport")
	defer span.End()

	var req assignRequest
	if !h.bindJSON(c, &req) {
		return
	}
	report, err := h.Reports.Assign(c.Param("id"), req.AssigneeId)
	if err != nil {
		h.respondError(c, "AssignReport", c.Param("id"), err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) AddNote(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "AddNote")
	defer span.End()

	var req addNoteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	note, err := h.Reports.AddNote(c.Param("id"), actor(c), req.Content)
	if err != nil {
		h.respondError(c, "AddNote", c.Param("id"), err)
		return
	}
	c.JSON(http.StatusCreated, note)
}
