package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/integrity_backend/middlewares"
	"bitbucket.org/mmdatafocus/integrity_backend/utils"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
)

// Register mounts every route on r. Global middleware is installed by the caller.
func (h *Handler) Register(r *gin.Engine) {
	utils.RegisterValidators()
	if h.Tracer == nil {
		h.Tracer = otel.Tracer("integrity-backend")
	}

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	api := r.Group("/api", middlewares.SessionMiddleware())
	{
		api.POST("/reports", h.SubmitReport)
		api.GET("/reports/mine", h.MyReports)
		api.POST("/session/revoke", h.RevokeSession)

		api.GET("/ledger", h.ListLedger)
		api.POST("/ledger", h.AddLedgerEntry)
		api.PATCH("/ledger/:id", h.UpdateLedgerEntry)
		api.DELETE("/ledger/:id", h.DeleteLedgerEntry)
	}

	mod := api.Group("", middlewares.RequireModerator())
	{
		mod.GET("/reports", h.ListReports)
		mod.GET("/reports/:id", h.GetReport)
		mod.GET("/reports/:id/risk", h.GetRiskScore)
		mod.POST("/reports/:id/status", h.UpdateStatus)
		mod.POST("/reports/:id/assign", h.AssignReport)
		mod.POST("/reports/:id/notes", h.AddNote)

		mod.GET("/triage", h.TriageQueue)
		mod.GET("/triage/export", h.ExportTriage)
		mod.GET("/statistics", h.Statistics)
		mod.GET("/ledger/tamper-logs", h.TamperLogs)
		mod.POST("/query", middlewares.LoaderMiddleware(h.Reports), h.GraphQL())
	}

	ops := r.Group("/internal/ops", middlewares.SessionMiddleware(), middlewares.RequireAdmin())
	{
		ops.GET("/outbox", h.OutboxStatus)
	}
}

// NewRouter builds a bare engine with the routes only; handy for tests and tools.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(gin.Recovery())
	h.Register(r)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}
