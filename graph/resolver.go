package graph

import (
	"context"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/integrity_backend/middlewares"
	"bitbucket.org/mmdatafocus/integrity_backend/models"
	"bitbucket.org/mmdatafocus/integrity_backend/utils"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultStatisticsMonths = 6
	maxStatisticsMonths     = 24
)

// Resolver serves dependency injection for the moderator GraphQL API.
type Resolver struct {
	Tracer  trace.Tracer
	Reports *models.ReportStore
	Ledger  *models.TamperDetector
}

func (r *Resolver) fields() map[string]fieldResolver {
	if r.Tracer == nil {
		r.Tracer = otel.Tracer("integrity-backend")
	}
	return map[string]fieldResolver{
		"Query.reports":       r.queryReports,
		"Query.report":        r.queryReport,
		"Query.triageQueue":   r.queryTriageQueue,
		"Query.statistics":    r.queryStatistics,
		"Query.ledgerEntries": r.queryLedgerEntries,
		"Query.tamperLogs":    r.queryTamperLogs,

		"Mutation.updateReportStatus": r.updateReportStatus,
		"Mutation.assignReport":       r.assignReport,
		"Mutation.addReportNote":      r.addReportNote,

		"Report.risk":                   reportRisk,
		"Report.corroboratingReportIds": reportCorroborations,
		"RiskScore.formatted":           riskScoreFormatted,
		"LedgerEntry.amount":            ledgerEntryAmount,
	}
}

func (r *Resolver) queryReports(ctx context.Context, _ any, _ map[string]any) (any, error) {
	_, span := r.Tracer.Start(ctx, "Query.reports")
	defer span.End()

	return r.Reports.All(), nil
}

func (r *Resolver) queryReport(ctx context.Context, _ any, args map[string]any) (any, error) {
	_, span := r.Tracer.Start(ctx, "Query.report")
	defer span.End()

	report, err := r.Reports.Get(argString(args, "id"))
	if err != nil {
		return nil, presentError(err)
	}
	return report, nil
}

func (r *Resolver) queryTriageQueue(ctx context.Context, _ any, args map[string]any) (any, error) {
	_, span := r.Tracer.Start(ctx, "Query.triageQueue")
	defer span.End()

	filter, err := triageFilterArg(args, "filter")
	if err != nil {
		return nil, presentError(err)
	}
	return models.BuildTriageQueue(r.Reports.All(), filter), nil
}

func (r *Resolver) queryStatistics(ctx context.Context, _ any, args map[string]any) (any, error) {
	_, span := r.Tracer.Start(ctx, "Query.statistics")
	defer span.End()

	months, err := argInt(args, "months", defaultStatisticsMonths)
	if err != nil {
		return nil, presentError(err)
	}
	if months < 1 || months > maxStatisticsMonths {
		return nil, &gqlerror.Error{Message: fmt.Sprintf("months must be between 1 and %d", maxStatisticsMonths)}
	}
	all := r.Reports.All()
	now := r.Reports.Now()
	stats := models.ComputeStatistics(all, now)
	stats.Monthly = models.MonthlyVolume(all, now, months)
	return newStatisticsView(stats), nil
}

func (r *Resolver) queryLedgerEntries(ctx context.Context, _ any, _ map[string]any) (any, error) {
	_, span := r.Tracer.Start(ctx, "Query.ledgerEntries")
	defer span.End()

	return r.Ledger.Entries(), nil
}

func (r *Resolver) queryTamperLogs(ctx context.Context, _ any, _ map[string]any) (any, error) {
	_, span := r.Tracer.Start(ctx, "Query.tamperLogs")
	defer span.End()

	return r.Ledger.TamperLogs(), nil
}

func (r *Resolver) updateReportStatus(ctx context.Context, _ any, args map[string]any) (any, error) {
	_, span := r.Tracer.Start(ctx, "Mutation.updateReportStatus")
	defer span.End()

	status := models.ReportStatus(argString(args, "status"))
	if !status.IsValid() {
		return nil, &gqlerror.Error{Message: fmt.Sprintf("invalid status %q", status)}
	}
	report, err := r.Reports.UpdateStatus(argString(args, "id"), status)
	if err != nil {
		return nil, presentError(err)
	}
	return report, nil
}

func (r *Resolver) assignReport(ctx context.Context, _ any, args map[string]any) (any, error) {
	_, span := r.Tracer.Start(ctx, "Mutation.assignReport")
	defer span.End()

	report, err := r.Reports.Assign(argString(args, "id"), argString(args, "assigneeId"))
	if err != nil {
		return nil, presentError(err)
	}
	return report, nil
}

func (r *Resolver) addReportNote(ctx context.Context, _ any, args map[string]any) (any, error) {
	_, span := r.Tracer.Start(ctx, "Mutation.addReportNote")
	defer span.End()

	content := argString(args, "content")
	if strings.TrimSpace(content) == "" {
		return nil, &gqlerror.Error{Message: "content is required"}
	}
	id, _ := utils.GetUserIdFromContext(ctx)
	name, _ := utils.GetUserNameFromContext(ctx)
	note, err := r.Reports.AddNote(argString(args, "id"), models.Submitter{ID: id, Name: name}, content)
	if err != nil {
		return nil, presentError(err)
	}
	return note, nil
}

// reportRisk reuses the score already on a triage row and batches the rest.
func reportRisk(ctx context.Context, obj any, _ map[string]any) (any, error) {
	if scored, ok := obj.(*models.ScoredReport); ok {
		return scored.Risk, nil
	}
	scored, err := loadScored(ctx, obj)
	if err != nil {
		return nil, err
	}
	return scored.Risk, nil
}

func reportCorroborations(ctx context.Context, obj any, _ map[string]any) (any, error) {
	if scored, ok := obj.(*models.ScoredReport); ok {
		return scored.Corroborations, nil
	}
	scored, err := loadScored(ctx, obj)
	if err != nil {
		return nil, err
	}
	return scored.Corroborations, nil
}

func loadScored(ctx context.Context, obj any) (*models.ScoredReport, error) {
	report, ok := obj.(*models.Report)
	if !ok {
		return nil, fmt.Errorf("cannot score %T", obj)
	}
	scored, err := middlewares.GetScoredReport(ctx, report.ID)
	if err != nil {
		return nil, presentError(err)
	}
	return scored, nil
}

func riskScoreFormatted(_ context.Context, obj any, _ map[string]any) (any, error) {
	switch score := obj.(type) {
	case models.RiskScore:
		return models.FormatRiskScore(score), nil
	case *models.RiskScore:
		return models.FormatRiskScore(*score), nil
	}
	return nil, fmt.Errorf("cannot format %T", obj)
}

func ledgerEntryAmount(_ context.Context, obj any, _ map[string]any) (any, error) {
	switch entry := obj.(type) {
	case models.LedgerEntry:
		return entry.Amount.StringFixed(2), nil
	case *models.LedgerEntry:
		return entry.Amount.StringFixed(2), nil
	}
	return nil, fmt.Errorf("cannot read amount of %T", obj)
}
