package graph

import "bitbucket.org/mmdatafocus/integrity_backend/models"

type CategoryCount struct {
	Category models.ReportCategory
	Count    int
}

type SeverityCount struct {
	Severity models.ReportSeverity
	Count    int
}

type StatusCount struct {
	Status models.ReportStatus
	Count  int
}

// ReportStatistics is models.ReportStatistics with the count maps as ordered lists.
type ReportStatistics struct {
	Total          int
	New            int
	InProgress     int
	Resolved       int
	Critical       int
	ThisMonth      int
	ResolutionRate int
	ByCategory     []CategoryCount
	BySeverity     []SeverityCount
	ByStatus       []StatusCount
	Monthly        []models.MonthlyCount
}

func newStatisticsView(stats models.ReportStatistics) *ReportStatistics {
	view := &ReportStatistics{
		Total:          stats.Total,
		New:            stats.NewCount,
		InProgress:     stats.InProgress,
		Resolved:       stats.Resolved,
		Critical:       stats.Critical,
		ThisMonth:      stats.ThisMonth,
		ResolutionRate: stats.ResolutionRate,
		Monthly:        stats.Monthly,
	}
	for _, c := range models.AllReportCategories {
		view.ByCategory = append(view.ByCategory, CategoryCount{Category: c, Count: stats.ByCategory[c]})
	}
	for _, s := range models.AllReportSeverities {
		view.BySeverity = append(view.BySeverity, SeverityCount{Severity: s, Count: stats.BySeverity[s]})
	}
	for _, s := range models.AllReportStatuses {
		view.ByStatus = append(view.ByStatus, StatusCount{Status: s, Count: stats.ByStatus[s]})
	}
	return view
}
