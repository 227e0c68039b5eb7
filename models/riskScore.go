package models

import (
	"fmt"
	"math"
	"strings"

	"bitbucket.org/mmdatafocus/integrity_backend/utils"
)

type RiskFactor struct {
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Description  string  `json:"description"`
}

type RiskScore struct {
	Score      int          `json:"score"`
	Level      RiskLevel    `json:"level"`
	Confidence int          `json:"confidence"`
	Factors    []RiskFactor `json:"factors"`
}

const (
	baseConfidence = 50.0

	automatedSourcePoints   = 15.0
	employeeSourcePoints    = 25.0
	automatedMultiplier     = 0.7
	employeeMultiplier      = 1.0
	sensitiveDeptPoints     = 15.0
	sensitiveDeptWeight     = 0.15
	sensitiveDeptConfidence = 10.0
	rarityScale             = 10.0
	rareThreshold           = 0.6

	corroborationPointsEach     = 5.0
	corroborationPointsMax      = 20.0
	corroborationConfidenceEach = 10.0
	corroborationConfidenceMax  = 30.0
)

var severityPoints = map[ReportSeverity]float64{
	ReportSeverityLow:      10,
	ReportSeverityMedium:   25,
	ReportSeverityHigh:     50,
	ReportSeverityCritical: 80,
}

// how unusual a category is across the organisation, 0..1
var rarityCoefficients = map[ReportCategory]float64{
	ReportCategoryCorruption:     0.9,
	ReportCategoryFraud:          0.8,
	ReportCategoryData:           0.7,
	ReportCategoryConflict:       0.6,
	ReportCategoryDiscrimination: 0.5,
	ReportCategorySafety:         0.5,
	ReportCategoryHarassment:     0.4,
	ReportCategoryOther:          0.3,
}

var sensitiveDepartments = []string{"finance", "executive", "hr", "legal", "compliance", "security"}

// CalculateRiskScore scores report against the other reports in all. It is a pure function:
// the same inputs always give the same score, level, confidence and factor list.
func CalculateRiskScore(report *Report, all []*Report, isAutomatedFlag bool) RiskScore {
	score := 0.0
	confidence := baseConfidence
	factors := make([]RiskFactor, 0, 5)

	sourcePoints := employeeSourcePoints
	multiplier := employeeMultiplier
	sourceDescription := "Employee report (higher weight)"
	if isAutomatedFlag {
		sourcePoints = automatedSourcePoints
		multiplier = automatedMultiplier
		sourceDescription = "Automated detection (lower weight)"
	}
	score += sourcePoints
	factors = append(factors, RiskFactor{
		Name:         "Source Type",
		Weight:       multiplier,
		Contribution: sourcePoints,
		Description:  sourceDescription,
	})

	base := severityPoints[report.Severity]
	severityContribution := base * multiplier
	score += severityContribution
	factors = append(factors, RiskFactor{
		Name:         "Severity Level",
		Weight:       base / 100,
		Contribution: severityContribution,
		Description:  fmt.Sprintf("%s severity report", utils.UppercaseFirst(string(report.Severity))),
	})

	if involvesSensitiveDepartment(report) {
		contribution := sensitiveDeptPoints * multiplier
		score += contribution
		confidence += sensitiveDeptConfidence
		factors = append(factors, RiskFactor{
			Name:         "Sensitive Department",
			Weight:       sensitiveDeptWeight,
			Contribution: contribution,
			Description:  "Involves sensitive department (Finance, Executive, HR, etc.)",
		})
	}

	rarity := rarityCoefficients[report.Category]
	rarityContribution := rarity * rarityScale * multiplier
	score += rarityContribution
	frequency := "common"
	if rarity > rareThreshold {
		frequency = "rare"
	}
	factors = append(factors, RiskFactor{
		Name:         "Event Rarity",
		Weight:       rarity,
		Contribution: rarityContribution,
		Description:  fmt.Sprintf("%s events are %s", report.Category, frequency),
	})

	corroborating := len(FindCorroboratingReports(report, all))
	if corroborating > 0 {
		n := float64(corroborating)
		contribution := math.Min(n*corroborationPointsEach, corroborationPointsMax)
		score += contribution
		confidence += math.Min(n*corroborationConfidenceEach, corroborationConfidenceMax)
		factors = append(factors, RiskFactor{
			Name:         "Corroboration",
			Weight:       n / 5,
			Contribution: contribution,
			Description:  fmt.Sprintf("%d related report(s) found", corroborating),
		})
	}

	finalScore := int(math.Min(math.Round(score), 100))
	return RiskScore{
		Score:      finalScore,
		Level:      RiskLevelFromScore(finalScore),
		Confidence: int(math.Min(math.Round(confidence), 100)),
		Factors:    factors,
	}
}

func involvesSensitiveDepartment(report *Report) bool {
	parties := strings.ToLower(report.InvolvedParties)
	description := strings.ToLower(report.Description)
	for _, dept := range sensitiveDepartments {
		if strings.Contains(parties, dept) || strings.Contains(description, dept) {
			return true
		}
	}
	return false
}

func RiskLevelFromScore(score int) RiskLevel {
	switch {
	case score >= 70:
		return RiskLevelCritical
	case score >= 50:
		return RiskLevelHigh
	case score >= 30:
		return RiskLevelMedium
	}
	return RiskLevelLow
}

// FormatRiskScore renders "82/100 (CRITICAL)".
func FormatRiskScore(score RiskScore) string {
	return fmt.Sprintf("%d/100 (%s)", score.Score, strings.ToUpper(string(score.Level)))
}
