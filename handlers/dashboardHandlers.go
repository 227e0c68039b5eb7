package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/integrity_backend/models"
	"bitbucket.org/mmdatafocus/integrity_backend/models/reports"
	"bitbucket.org/mmdatafocus/integrity_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	defaultStatisticsMonths = 6
	maxStatisticsMonths     = 24
)

// Statistics returns the dashboard counters plus monthly volume (?months=, default 6).
func (h *Handler) Statistics(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "Statistics")
	defer span.End()

	months := defaultStatisticsMonths
	if raw := c.Query("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxStatisticsMonths {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("months must be between 1 and %d", maxStatisticsMonths)})
			return
		}
		months = n
	}

	all := h.Reports.All()
	now := h.Reports.Now()
	stats := models.ComputeStatistics(all, now)
	stats.Monthly = models.MonthlyVolume(all, now, months)
	c.JSON(http.StatusOK, stats)
}

// parseTriageFilter reads status, severity, level and automated from the query string.
func parseTriageFilter(c *gin.Context) (models.TriageFilter, error) {
	var filter models.TriageFilter
	if v := c.Query("status"); v != "" {
		status := models.ReportStatus(v)
		if !status.IsValid() {
			return filter, fmt.Errorf("invalid status %q", v)
		}
		filter.Status = &status
	}
	if v := c.Query("severity"); v != "" {
		severity := models.ReportSeverity(v)
		if !severity.IsValid() {
			return filter, fmt.Errorf("invalid severity %q", v)
		}
		filter.Severity = &severity
	}
	if v := c.Query("level"); v != "" {
		level := models.RiskLevel(v)
		if !level.IsValid() {
			return filter, fmt.Errorf("invalid level %q", v)
		}
		filter.Level = &level
	}
	if v := c.Query("automated"); v != "" {
		automated, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("invalid automated %q", v)
		}
		filter.AutomatedOnly = &automated
	}
	return filter, nil
}

func (h *Handler) TriageQueue(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "TriageQueue")
	defer span.End()

	filter, err := parseTriageFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.BuildTriageQueue(h.Reports.All(), filter))
}

// ExportTriage streams the filtered queue as an xlsx workbook. With ?upload=true
// the workbook is also archived to GCS and its URI returned in X-Export-Uri.
func (h *Handler) ExportTriage(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "ExportTriage")
	defer span.End()

	filter, err := parseTriageFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	all := h.Reports.All()
	now := h.Reports.Now()
	stats := models.ComputeStatistics(all, now)
	data, err := reports.TriageWorkbookBytes(models.BuildTriageQueue(all, filter), &stats)
	if err != nil {
		h.respondError(c, "ExportTriage", nil, err)
		return
	}

	filename := fmt.Sprintf("triage-%s.xlsx", now.UTC().Format("20060102-150405"))
	if upload, _ := strconv.ParseBool(c.Query("upload")); upload {
		if !utils.GCSEnabled() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export storage is not configured"})
			return
		}
		uri, err := utils.UploadBytesToGCS(ctx, "exports/"+filename, data, utils.ContentTypeXLSX)
		if err != nil {
			h.respondError(c, "ExportTriage", filename, err)
			return
		}
		h.logger().WithFields(logrus.Fields{
			"field": "ExportTriage",
			"uri":   uri,
		}).Info("triage export archived")
		c.Header("X-Export-Uri", uri)
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, utils.ContentTypeXLSX, data)
}
