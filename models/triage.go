package models

import "sort"

type ScoredReport struct {
	*Report
	Risk           RiskScore `json:"risk"`
	Corroborations []string  `json:"corroborating_report_ids"`
}

// TriageFilter narrows the moderator queue. Zero values match everything.
type TriageFilter struct {
	Status        *ReportStatus
	Severity      *ReportSeverity
	Level         *RiskLevel
	AutomatedOnly *bool
}

func (f TriageFilter) matches(r *Report) bool {
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if f.Severity != nil && r.Severity != *f.Severity {
		return false
	}
	if f.AutomatedOnly != nil && r.IsAutomatedFlag != *f.AutomatedOnly {
		return false
	}
	return true
}

// ScoreReport scores one report against the snapshot it came from.
func ScoreReport(report *Report, all []*Report) *ScoredReport {
	corroborating := FindCorroboratingReports(report, all)
	ids := make([]string, 0, len(corroborating))
	for _, c := range corroborating {
		ids = append(ids, c.ID)
	}
	return &ScoredReport{
		Report:         report,
		Risk:           CalculateRiskScore(report, all, report.IsAutomatedFlag),
		Corroborations: ids,
	}
}

// BuildTriageQueue scores every report in the snapshot, filters, and orders by score
// descending. Ties keep snapshot (creation) order.
func BuildTriageQueue(reports []*Report, filter TriageFilter) []*ScoredReport {
	queue := make([]*ScoredReport, 0, len(reports))
	for _, r := range reports {
		if !filter.matches(r) {
			continue
		}
		scored := ScoreReport(r, reports)
		if filter.Level != nil && scored.Risk.Level != *filter.Level {
			continue
		}
		queue = append(queue, scored)
	}
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].Risk.Score > queue[j].Risk.Score
	})
	return queue
}
