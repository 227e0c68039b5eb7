package models

import (
	"encoding/json"
	"errors"
)

type ReportCategory string

const (
	ReportCategoryHarassment     ReportCategory = "harassment"
	ReportCategoryDiscrimination ReportCategory = "discrimination"
	ReportCategoryFraud          ReportCategory = "fraud"
	ReportCategoryCorruption     ReportCategory = "corruption"
	ReportCategorySafety         ReportCategory = "safety"
	ReportCategoryConflict       ReportCategory = "conflict"
	ReportCategoryData           ReportCategory = "data"
	ReportCategoryOther          ReportCategory = "other"
)

var AllReportCategories = []ReportCategory{
	ReportCategoryHarassment,
	ReportCategoryDiscrimination,
	ReportCategoryFraud,
	ReportCategoryCorruption,
	ReportCategorySafety,
	ReportCategoryConflict,
	ReportCategoryData,
	ReportCategoryOther,
}

func (t ReportCategory) IsValid() bool {
	switch t {
	case ReportCategoryHarassment, ReportCategoryDiscrimination, ReportCategoryFraud, ReportCategoryCorruption,
		ReportCategorySafety, ReportCategoryConflict, ReportCategoryData, ReportCategoryOther:
		return true
	}
	return false
}

// convert input to enum type
func (t *ReportCategory) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("report category must be string")
	}
	v := ReportCategory(str)
	if !v.IsValid() {
		return errors.New("invalid report category")
	}
	*t = v
	return nil
}

type ReportSeverity string

const (
	ReportSeverityLow      ReportSeverity = "low"
	ReportSeverityMedium   ReportSeverity = "medium"
	ReportSeverityHigh     ReportSeverity = "high"
	ReportSeverityCritical ReportSeverity = "critical"
)

var AllReportSeverities = []ReportSeverity{
	ReportSeverityLow,
	ReportSeverityMedium,
	ReportSeverityHigh,
	ReportSeverityCritical,
}

func (t ReportSeverity) IsValid() bool {
	switch t {
	case ReportSeverityLow, ReportSeverityMedium, ReportSeverityHigh, ReportSeverityCritical:
		return true
	}
	return false
}

func (t *ReportSeverity) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("report severity must be string")
	}
	v := ReportSeverity(str)
	if !v.IsValid() {
		return errors.New("invalid report severity")
	}
	*t = v
	return nil
}

type ReportStatus string

const (
	ReportStatusNew       ReportStatus = "new"
	ReportStatusReviewing ReportStatus = "reviewing"
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusEscalated ReportStatus = "escalated"
	ReportStatusResolved  ReportStatus = "resolved"
	ReportStatusDismissed ReportStatus = "dismissed"
)

var AllReportStatuses = []ReportStatus{
	ReportStatusNew,
	ReportStatusReviewing,
	ReportStatusPending,
	ReportStatusEscalated,
	ReportStatusResolved,
	ReportStatusDismissed,
}

func (t ReportStatus) IsValid() bool {
	switch t {
	case ReportStatusNew, ReportStatusReviewing, ReportStatusPending, ReportStatusEscalated,
		ReportStatusResolved, ReportStatusDismissed:
		return true
	}
	return false
}

// resolved and dismissed are final
func (t ReportStatus) IsTerminal() bool {
	return t == ReportStatusResolved || t == ReportStatusDismissed
}

// reviewing, pending and escalated count as "in progress" on the dashboard
func (t ReportStatus) IsInProgress() bool {
	return t == ReportStatusReviewing || t == ReportStatusPending || t == ReportStatusEscalated
}

func (t *ReportStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("report status must be string")
	}
	v := ReportStatus(str)
	if !v.IsValid() {
		return errors.New("invalid report status")
	}
	*t = v
	return nil
}

type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

func (t RiskLevel) IsValid() bool {
	switch t {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical:
		return true
	}
	return false
}

type LedgerField string

const (
	LedgerFieldDate        LedgerField = "date"
	LedgerFieldDescription LedgerField = "description"
	LedgerFieldAmount      LedgerField = "amount"
	LedgerFieldCategory    LedgerField = "category"

	// recorded as the field of a tamper log when a whole entry is deleted
	LedgerFieldEntry LedgerField = "entry"
)

func (t LedgerField) IsValid() bool {
	switch t {
	case LedgerFieldDate, LedgerFieldDescription, LedgerFieldAmount, LedgerFieldCategory:
		return true
	}
	return false
}

type EventKind string

const (
	EventKindReportCreated EventKind = "report.created"
	EventKindReportUpdated EventKind = "report.updated"
	EventKindTamperLogged  EventKind = "tamper.logged"
)
