package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/integrity_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportRecord is the archived copy of a report. The archive is a mirror fed by the
// event dispatcher; the in-memory store stays the source of truth.
type ReportRecord struct {
	ID              string         `gorm:"primary_key;size:32" json:"id"`
	Title           string         `gorm:"size:255;not null" json:"title"`
	Category        ReportCategory `gorm:"size:32;not null;index" json:"category"`
	Severity        ReportSeverity `gorm:"size:16;not null;index" json:"severity"`
	Status          ReportStatus   `gorm:"size:16;not null;index" json:"status"`
	IsAutomatedFlag bool           `gorm:"not null;default:false" json:"is_automated_flag"`
	Anonymous       bool           `gorm:"not null;default:false" json:"anonymous"`
	SubmitterId     *string        `gorm:"size:64;index" json:"submitter_id"`
	AssigneeId      *string        `gorm:"size:64" json:"assignee_id"`
	NoteCount       int            `gorm:"not null;default:0" json:"note_count"`
	Payload         string         `gorm:"type:text;not null" json:"payload"`
	SubmittedAt     time.Time      `gorm:"not null;index" json:"submitted_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
	ArchivedAt      time.Time      `gorm:"autoUpdateTime" json:"archived_at"`
}

// TamperLogRecord is append-only; a redelivered event is ignored.
type TamperLogRecord struct {
	ID            string      `gorm:"primary_key;size:32" json:"id"`
	EntryId       string      `gorm:"size:32;not null;index" json:"entry_id"`
	UserId        string      `gorm:"size:64;not null;index" json:"user_id"`
	UserName      string      `gorm:"size:255" json:"user_name"`
	Field         LedgerField `gorm:"size:16;not null" json:"field"`
	OriginalValue string      `gorm:"type:text" json:"original_value"`
	NewValue      string      `gorm:"type:text" json:"new_value"`
	ReportId      string      `gorm:"size:32;index" json:"report_id"`
	Timestamp     time.Time   `gorm:"not null;index" json:"timestamp"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(&ReportRecord{}, &TamperLogRecord{})
}

func NewReportRecord(report *Report) (*ReportRecord, error) {
	payload, err := utils.MarshalToJSON(report)
	if err != nil {
		return nil, err
	}
	record := &ReportRecord{
		ID:              report.ID,
		Title:           report.Title,
		Category:        report.Category,
		Severity:        report.Severity,
		Status:          report.Status,
		IsAutomatedFlag: report.IsAutomatedFlag,
		Anonymous:       report.Anonymous,
		AssigneeId:      report.AssigneeId,
		NoteCount:       len(report.Notes),
		Payload:         payload,
		SubmittedAt:     report.SubmittedAt,
		UpdatedAt:       report.UpdatedAt,
	}
	if report.Submitter != nil {
		record.SubmitterId = utils.NilIfEmpty(report.Submitter.ID)
	}
	return record, nil
}

func NewTamperLogRecord(log *TamperLog) *TamperLogRecord {
	return &TamperLogRecord{
		ID:            log.ID,
		EntryId:       log.EntryId,
		UserId:        log.UserId,
		UserName:      log.UserName,
		Field:         log.Field,
		OriginalValue: log.OriginalValue,
		NewValue:      log.NewValue,
		ReportId:      log.ReportId,
		Timestamp:     log.Timestamp,
	}
}

// Archiver writes events into the archive database.
type Archiver struct {
	db *gorm.DB
}

func NewArchiver(db *gorm.DB) *Archiver {
	return &Archiver{db: db}
}

// ArchiveReport upserts the latest snapshot, skipping snapshots older than the stored one.
func (a *Archiver) ArchiveReport(ctx context.Context, report *Report) error {
	record, err := NewReportRecord(report)
	if err != nil {
		return err
	}
	var existing ReportRecord
	err = a.db.WithContext(ctx).Select("updated_at").Where("id = ?", record.ID).Take(&existing).Error
	if err == nil && existing.UpdatedAt.After(record.UpdatedAt) {
		return nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return a.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error
}

// ArchiveTamperLog inserts the log once; a duplicate key means an earlier delivery already landed.
func (a *Archiver) ArchiveTamperLog(ctx context.Context, log *TamperLog) error {
	err := a.db.WithContext(ctx).Create(NewTamperLogRecord(log)).Error
	if err != nil && isDuplicateKeyErr(err) {
		return nil
	}
	return err
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
