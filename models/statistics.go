package models

import (
	"math"
	"time"

	"bitbucket.org/mmdatafocus/integrity_backend/utils"
)

type MonthlyCount struct {
	Month string `json:"month"` // 2006-01
	Count int    `json:"count"`
}

type ReportStatistics struct {
	Total          int                    `json:"total"`
	NewCount       int                    `json:"new"`
	InProgress     int                    `json:"in_progress"`
	Resolved       int                    `json:"resolved"`
	Critical       int                    `json:"critical"`
	ThisMonth      int                    `json:"this_month"`
	ResolutionRate int                    `json:"resolution_rate"`
	ByCategory     map[ReportCategory]int `json:"by_category"`
	BySeverity     map[ReportSeverity]int `json:"by_severity"`
	ByStatus       map[ReportStatus]int   `json:"by_status"`
	Monthly        []MonthlyCount         `json:"monthly,omitempty"`
}

// ComputeStatistics derives the dashboard counters from a report snapshot.
// Nothing is cached; callers recompute on every read.
func ComputeStatistics(reports []*Report, now time.Time) ReportStatistics {
	stats := ReportStatistics{
		ByCategory: CountByCategory(reports),
		BySeverity: CountBySeverity(reports),
		ByStatus:   CountByStatus(reports),
	}
	monthStart := utils.MonthStart(now)
	nextMonth := monthStart.AddDate(0, 1, 0)

	for _, r := range reports {
		stats.Total++
		switch {
		case r.Status == ReportStatusNew:
			stats.NewCount++
		case r.Status.IsInProgress():
			stats.InProgress++
		case r.Status == ReportStatusResolved:
			stats.Resolved++
		}
		if r.Severity == ReportSeverityCritical && !r.Status.IsTerminal() {
			stats.Critical++
		}
		submitted := r.SubmittedAt.In(now.Location())
		if !submitted.Before(monthStart) && submitted.Before(nextMonth) {
			stats.ThisMonth++
		}
	}
	if stats.Total > 0 {
		stats.ResolutionRate = int(math.Round(float64(stats.Resolved) / float64(stats.Total) * 100))
	}
	return stats
}

// MonthlyVolume counts submissions for the last months calendar months (current month
// included), oldest first. Months with no reports are present with a zero count.
func MonthlyVolume(reports []*Report, now time.Time, months int) []MonthlyCount {
	if months <= 0 {
		return []MonthlyCount{}
	}
	first := utils.MonthStart(now).AddDate(0, -(months - 1), 0)
	results := make([]MonthlyCount, months)
	for i := range results {
		results[i].Month = first.AddDate(0, i, 0).Format("2006-01")
	}
	for _, r := range reports {
		submitted := r.SubmittedAt.In(now.Location())
		idx := (submitted.Year()-first.Year())*12 + int(submitted.Month()) - int(first.Month())
		if idx >= 0 && idx < months {
			results[idx].Count++
		}
	}
	return results
}

func CountByCategory(reports []*Report) map[ReportCategory]int {
	results := make(map[ReportCategory]int, len(AllReportCategories))
	for _, c := range AllReportCategories {
		results[c] = 0
	}
	for _, r := range reports {
		results[r.Category]++
	}
	return results
}

func CountBySeverity(reports []*Report) map[ReportSeverity]int {
	results := make(map[ReportSeverity]int, len(AllReportSeverities))
	for _, s := range AllReportSeverities {
		results[s] = 0
	}
	for _, r := range reports {
		results[r.Severity]++
	}
	return results
}

func CountByStatus(reports []*Report) map[ReportStatus]int {
	results := make(map[ReportStatus]int, len(AllReportStatuses))
	for _, s := range AllReportStatuses {
		results[s] = 0
	}
	for _, r := range reports {
		results[r.Status]++
	}
	return results
}
