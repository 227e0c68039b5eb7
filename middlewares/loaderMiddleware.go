package middlewares

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/integrity_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders wrap the per-request data loaders used by the GraphQL resolvers
type Loaders struct {
	scoredReportLoader *dataloader.Loader[string, *models.ScoredReport]
}

// NewLoaders instantiates data loaders for the middleware
func NewLoaders(reports *models.ReportStore) *Loaders {
	sr := &scoredReportReader{reports: reports}
	return &Loaders{
		scoredReportLoader: dataloader.NewBatchedLoader(sr.getScoredReports, dataloader.WithWait[string, *models.ScoredReport](time.Millisecond)),
	}
}

// LoaderMiddleware injects fresh data loaders into the request context
func LoaderMiddleware(reports *models.ReportStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithLoaders(c.Request.Context(), NewLoaders(reports))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// For returns the dataloader for a given context, or nil outside a loader request
func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(loadersKey).(*Loaders)
	return loaders
}

func GetScoredReport(ctx context.Context, reportId string) (*models.ScoredReport, error) {
	loaders := For(ctx)
	if loaders == nil {
		return nil, errors.New("data loaders are missing from the request context")
	}
	return loaders.scoredReportLoader.Load(ctx, reportId)()
}
