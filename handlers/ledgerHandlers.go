package handlers

import (
	"context"
	"net/http"

	"bitbucket.org/mmdatafocus/integrity_backend/models"
	"bitbucket.org/mmdatafocus/integrity_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type updateLedgerFieldRequest struct {
	Field models.LedgerField `json:"field" binding:"required"`
	Value string             `json:"value"`
}

func (h *Handler) ListLedger(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "ListLedger")
	defer span.End()

	c.JSON(http.StatusOK, h.Ledger.Entries())
}

func (h *Handler) AddLedgerEntry(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "AddLedgerEntry")
	defer span.End()

	var input models.NewLedgerEntry
	if !h.bindJSON(c, &input) {
		return
	}
	c.JSON(http.StatusCreated, h.Ledger.AddEntry(&input))
}

// UpdateLedgerEntry edits one field. A changed value comes back with the tamper log
// and the id of the automated report it raised.
func (h *Handler) UpdateLedgerEntry(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "UpdateLedgerEntry")
	defer span.End()

	var req updateLedgerFieldRequest
	if !h.bindJSON(c, &req) {
		return
	}
	entryId := c.Param("id")
	span.SetAttributes(attribute.String("ledger.entry_id", entryId), attribute.String("ledger.field", string(req.Field)))

	release := utils.ObtainLedgerLock(ctx, entryId)
	defer release()

	log, err := h.Ledger.UpdateField(actor(c), entryId, req.Field, req.Value)
	if err != nil {
		h.respondError(c, "UpdateLedgerEntry", entryId, err)
		return
	}
	entry, err := h.Ledger.Entry(entryId)
	if err != nil {
		h.respondError(c, "UpdateLedgerEntry", entryId, err)
		return
	}
	if log != nil {
		h.logTamper(ctx, log)
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry, "tamper_log": log})
}

func (h *Handler) DeleteLedgerEntry(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "DeleteLedgerEntry")
	defer span.End()

	entryId := c.Param("id")
	release := utils.ObtainLedgerLock(ctx, entryId)
	defer release()

	log, err := h.Ledger.DeleteEntry(actor(c), entryId)
	if err != nil {
		h.respondError(c, "DeleteLedgerEntry", entryId, err)
		return
	}
	h.logTamper(ctx, log)
	c.JSON(http.StatusOK, gin.H{"tamper_log": log})
}

func (h *Handler) TamperLogs(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "TamperLogs")
	defer span.End()

	c.JSON(http.StatusOK, h.Ledger.TamperLogs())
}

func (h *Handler) logTamper(ctx context.Context, log *models.TamperLog) {
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	h.logger().WithFields(logrus.Fields{
		"field":          "TamperDetector",
		"entry_id":       log.EntryId,
		"ledger_field":   log.Field,
		"report_id":      log.ReportId,
		"user_id":        log.UserId,
		"correlation_id": cid,
	}).Warn("ledger tampering detected")
}
