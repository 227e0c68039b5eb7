package models

import (
	"strings"
	"time"
)

// reports of the same category submitted closer than this corroborate each other
const CorroborationWindow = 14 * 24 * time.Hour

// FindCorroboratingReports returns the reports in all, other than target, that either share
// its category within the corroboration window or name the same involved party.
// Input order is kept.
func FindCorroboratingReports(target *Report, all []*Report) []*Report {
	results := make([]*Report, 0)
	if target == nil {
		return results
	}
	for _, r := range all {
		if r == nil || r.ID == target.ID {
			continue
		}
		if sameCategoryWithinWindow(target, r) || sharesInvolvedParty(target, r) {
			results = append(results, r)
		}
	}
	return results
}

func sameCategoryWithinWindow(target *Report, r *Report) bool {
	if r.Category != target.Category {
		return false
	}
	diff := target.SubmittedAt.Sub(r.SubmittedAt)
	if diff < 0 {
		diff = -diff
	}
	return diff < CorroborationWindow
}

// the first word of r's involved parties must appear in target's
func sharesInvolvedParty(target *Report, r *Report) bool {
	if strings.TrimSpace(target.InvolvedParties) == "" || strings.TrimSpace(r.InvolvedParties) == "" {
		return false
	}
	tokens := strings.Fields(strings.ToLower(r.InvolvedParties))
	if len(tokens) == 0 {
		return false
	}
	return strings.Contains(strings.ToLower(target.InvolvedParties), tokens[0])
}
