package handlers

import (
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/integrity_backend/config"
	"bitbucket.org/mmdatafocus/integrity_backend/middlewares"
	"bitbucket.org/mmdatafocus/integrity_backend/models"
	"bitbucket.org/mmdatafocus/integrity_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// SubmitReport files a report for the session user. Anonymous reports drop the identity.
func (h *Handler) SubmitReport(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "SubmitReport")
	defer span.End()

	var input models.NewReport
	if !h.bindJSON(c, &input) {
		return
	}
	if !input.Anonymous {
		me := actor(c)
		input.SubmitterId = me.ID
		input.SubmitterName = me.Name
	}
	input.IsAutomatedFlag = false
	input.SubmittedAt = nil

	report := h.Reports.CreateReport(&input)
	span.SetAttributes(attribute.String("report.id", report.ID))

	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	h.logger().WithFields(logrus.Fields{
		"field":          "SubmitReport",
		"report_id":      report.ID,
		"category":       report.Category,
		"correlation_id": cid,
	}).Info("report submitted")

	c.JSON(http.StatusCreated, gin.H{"id": report.ID})
}

func (h *Handler) MyReports(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "MyReports")
	defer span.End()

	me := actor(c)
	c.JSON(http.StatusOK, h.Reports.ListBySubmitter(me.ID, me.Name))
}

func (h *Handler) ListReports(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "ListReports")
	defer span.End()

	c.JSON(http.StatusOK, h.Reports.All())
}

func (h *Handler) GetReport(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "GetReport")
	defer span.End()

	report, err := h.Reports.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, "GetReport", c.Param("id"), err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetRiskScore scores the report against the current snapshot; scores are never stored.
func (h *Handler) GetRiskScore(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "GetRiskScore")
	defer span.End()

	id := c.Param("id")
	all := h.Reports.All()
	var target *models.Report
	for _, r := range all {
		if r.ID == id {
			target = r
			break
		}
	}
	if target == nil {
		h.respondError(c, "GetRiskScore", id, utils.ErrorRecordNotFound)
		return
	}
	scored := models.ScoreReport(target, all)
	c.JSON(http.StatusOK, gin.H{
		"report_id":                target.ID,
		"risk":                     scored.Risk,
		"formatted":                models.FormatRiskScore(scored.Risk),
		"corroborating_report_ids": scored.Corroborations,
	})
}

// RevokeSession blacklists the caller's token until it would have expired anyway.
func (h *Handler) RevokeSession(c *gin.Context) {
	ctx := c.Request.Context()
	if config.GetRedisDB() == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "token revocation unavailable"})
		return
	}
	token, _ := utils.GetTokenFromContext(ctx)
	claims, err := utils.ParseClaims(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	if ttl <= 0 {
		c.JSON(http.StatusOK, gin.H{"revoked": true})
		return
	}
	if err := config.SetRedisValue(middlewares.RevokedTokenKey(token), claims.ID, ttl); err != nil {
		h.respondError(c, "RevokeSession", claims.ID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}
