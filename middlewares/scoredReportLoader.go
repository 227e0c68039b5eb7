package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/integrity_backend/models"
	"bitbucket.org/mmdatafocus/integrity_backend/utils"
	"github.com/graph-gophers/dataloader/v7"
)

type scoredReportReader struct {
	reports *models.ReportStore
}

// getScoredReports scores every requested report against one store snapshot.
func (r *scoredReportReader) getScoredReports(ctx context.Context, ids []string) []*dataloader.Result[*models.ScoredReport] {
	all := r.reports.All()
	byId := make(map[string]*models.Report, len(all))
	for _, report := range all {
		byId[report.ID] = report
	}

	results := make([]*dataloader.Result[*models.ScoredReport], len(ids))
	for i, id := range ids {
		report, ok := byId[id]
		if !ok {
			results[i] = &dataloader.Result[*models.ScoredReport]{Error: utils.ErrorRecordNotFound}
			continue
		}
		results[i] = &dataloader.Result[*models.ScoredReport]{Data: models.ScoreReport(report, all)}
	}
	return results
}
