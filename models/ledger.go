package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/integrity_backend/utils"
	"github.com/shopspring/decimal"
)

const (
	LedgerDateLayout = "2006-01-02"

	// NewValue recorded when a whole entry is deleted
	TamperValueDeleted = "DELETED"
)

// LedgerDate is a calendar date serialized as YYYY-MM-DD.
type LedgerDate struct {
	time.Time
}

func ParseLedgerDate(value string) (LedgerDate, error) {
	t, err := time.Parse(LedgerDateLayout, strings.TrimSpace(value))
	if err != nil {
		return LedgerDate{}, err
	}
	return LedgerDate{Time: t}, nil
}

func (d LedgerDate) String() string {
	return d.Format(LedgerDateLayout)
}

func (d LedgerDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *LedgerDate) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("ledger date must be string")
	}
	parsed, err := ParseLedgerDate(str)
	if err != nil {
		return errors.New("ledger date must be YYYY-MM-DD")
	}
	*d = parsed
	return nil
}

type LedgerEntry struct {
	ID          string          `json:"id"`
	Date        LedgerDate      `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	IsOriginal  bool            `json:"is_original"`
}

type NewLedgerEntry struct {
	Date        LedgerDate      `json:"date"`
	Description string          `json:"description" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
}

// TamperLog is an immutable audit record of one ledger mutation.
type TamperLog struct {
	ID            string      `json:"id"`
	EntryId       string      `json:"entry_id"`
	UserId        string      `json:"user_id"`
	UserName      string      `json:"user_name"`
	Timestamp     time.Time   `json:"timestamp"`
	Field         LedgerField `json:"field"`
	OriginalValue string      `json:"original_value"`
	NewValue      string      `json:"new_value"`
	ReportId      string      `json:"report_id"`
}

// fieldString is the textual form used to decide whether a write changed anything.
func (e *LedgerEntry) fieldString(field LedgerField) string {
	switch field {
	case LedgerFieldDate:
		return e.Date.String()
	case LedgerFieldDescription:
		return e.Description
	case LedgerFieldAmount:
		return e.Amount.String()
	case LedgerFieldCategory:
		return e.Category
	}
	return ""
}

// parseFieldValue types a raw value for the field and returns its textual form.
func parseFieldValue(field LedgerField, value string) (any, string, error) {
	switch field {
	case LedgerFieldDate:
		d, err := ParseLedgerDate(value)
		if err != nil {
			return nil, "", utils.ErrorInvalidFieldValue
		}
		return d, d.String(), nil
	case LedgerFieldAmount:
		amount, err := utils.ParseDecimal(value)
		if err != nil {
			return nil, "", utils.ErrorInvalidFieldValue
		}
		return amount, amount.String(), nil
	case LedgerFieldDescription, LedgerFieldCategory:
		return value, value, nil
	}
	return nil, "", utils.ErrorUnknownField
}

func (e *LedgerEntry) setField(field LedgerField, typed any) {
	switch field {
	case LedgerFieldDate:
		e.Date = typed.(LedgerDate)
	case LedgerFieldDescription:
		e.Description = typed.(string)
	case LedgerFieldAmount:
		e.Amount = typed.(decimal.Decimal)
	case LedgerFieldCategory:
		e.Category = typed.(string)
	}
}

// TamperDetector owns the ledger and its tamper log. Every field change and every
// delete is logged and turned into an automated fraud report.
type TamperDetector struct {
	mu       sync.RWMutex
	entries  []*LedgerEntry
	logs     []TamperLog
	reports  *ReportStore
	now      Clock
	sink     EventSink
	entrySeq int
	logSeq   int
}

// NewTamperDetector wraps an empty ledger. reports is required; clock and sink may be nil.
func NewTamperDetector(reports *ReportStore, clock Clock, sink EventSink) *TamperDetector {
	if clock == nil {
		clock = time.Now
	}
	return &TamperDetector{
		reports: reports,
		now:     clock,
		sink:    sink,
	}
}

// LoadEntries seeds the ledger as-is (ids and IsOriginal flags kept). Seeding is not tampering.
func (d *TamperDetector) LoadEntries(entries []LedgerEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range entries {
		entry := entries[i]
		d.entries = append(d.entries, &entry)
		if n, err := strconv.Atoi(strings.TrimPrefix(entry.ID, "LED-")); err == nil && n > d.entrySeq {
			d.entrySeq = n
		}
	}
}

// UpdateField writes value into the entry field. The entry always loses its original
// status; a tamper log and automated report are produced only when the textual value changes.
func (d *TamperDetector) UpdateField(actor Submitter, entryId string, field LedgerField, value string) (*TamperLog, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry := d.find(entryId)
	if entry == nil {
		return nil, utils.ErrorRecordNotFound
	}
	if !field.IsValid() {
		return nil, utils.ErrorUnknownField
	}
	typed, newValue, err := parseFieldValue(field, value)
	if err != nil {
		return nil, err
	}
	originalValue := entry.fieldString(field)

	var log *TamperLog
	if originalValue != newValue {
		log = d.recordTamper(actor, entryId, field, originalValue, newValue)
	}
	entry.setField(field, typed)
	entry.IsOriginal = false
	return log, nil
}

// AddEntry appends a new entry. New entries are never original and are not reported.
func (d *TamperDetector) AddEntry(input *NewLedgerEntry) *LedgerEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entrySeq++
	entry := &LedgerEntry{
		ID:          fmt.Sprintf("LED-%03d", d.entrySeq),
		Date:        input.Date,
		Description: input.Description,
		Amount:      input.Amount,
		Category:    input.Category,
		IsOriginal:  false,
	}
	d.entries = append(d.entries, entry)
	c := *entry
	return &c
}

// DeleteEntry removes the entry after logging its full serialized form.
func (d *TamperDetector) DeleteEntry(actor Submitter, entryId string) (*TamperLog, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := -1
	for i, e := range d.entries {
		if e.ID == entryId {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, utils.ErrorRecordNotFound
	}
	serialized, err := utils.MarshalToJSON(d.entries[idx])
	if err != nil {
		return nil, err
	}
	log := d.recordTamper(actor, entryId, LedgerFieldEntry, serialized, TamperValueDeleted)
	d.entries = append(d.entries[:idx], d.entries[idx+1:]...)
	return log, nil
}

func (d *TamperDetector) Entries() []LedgerEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	results := make([]LedgerEntry, 0, len(d.entries))
	for _, e := range d.entries {
		results = append(results, *e)
	}
	return results
}

func (d *TamperDetector) Entry(entryId string) (*LedgerEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry := d.find(entryId)
	if entry == nil {
		return nil, utils.ErrorRecordNotFound
	}
	c := *entry
	return &c, nil
}

// TamperLogs returns the audit trail in creation order.
func (d *TamperDetector) TamperLogs() []TamperLog {
	d.mu.RLock()
	defer d.mu.RUnlock()

	results := make([]TamperLog, len(d.logs))
	copy(results, d.logs)
	return results
}

// caller holds d.mu
func (d *TamperDetector) find(entryId string) *LedgerEntry {
	for _, e := range d.entries {
		if e.ID == entryId {
			return e
		}
	}
	return nil
}

// caller holds d.mu; lock order is ledger then report store.
func (d *TamperDetector) recordTamper(actor Submitter, entryId string, field LedgerField, originalValue string, newValue string) *TamperLog {
	now := d.now()
	d.logSeq++
	log := TamperLog{
		ID:            fmt.Sprintf("TAMP-%010d", d.logSeq),
		EntryId:       entryId,
		UserId:        actor.ID,
		UserName:      actor.Name,
		Timestamp:     now,
		Field:         field,
		OriginalValue: originalValue,
		NewValue:      newValue,
	}

	report := d.reports.CreateReport(&NewReport{
		Title:           fmt.Sprintf("Ledger Tampering Detected - Entry %s", entryId),
		Description:     describeTamper(log),
		Category:        ReportCategoryFraud,
		Severity:        ReportSeverityHigh,
		InvolvedParties: actor.Name,
		IsAutomatedFlag: true,
		SubmittedAt:     &now,
	})
	log.ReportId = report.ID

	d.logs = append(d.logs, log)
	if d.sink != nil {
		c := log
		d.sink.Enqueue(NewTamperEvent(&c, now))
	}
	return &log
}

func describeTamper(log TamperLog) string {
	return fmt.Sprintf("User %q (ID: %s) has modified the ledger entry %s.\n\n"+
		"Field Modified: %s\nOriginal Value: %s\nNew Value: %s\nTimestamp: %s\n\n"+
		"This modification was automatically detected and reported for review.",
		log.UserName, log.UserId, log.EntryId,
		log.Field, log.OriginalValue, log.NewValue, log.Timestamp.UTC().Format(time.RFC3339))
}

// DefaultLedgerEntries is the demo ledger loaded on startup.
func DefaultLedgerEntries() []LedgerEntry {
	entry := func(id string, date string, description string, amount string, category string) LedgerEntry {
		d, _ := ParseLedgerDate(date)
		return LedgerEntry{
			ID:          id,
			Date:        d,
			Description: description,
			Amount:      decimal.RequireFromString(amount),
			Category:    category,
			IsOriginal:  true,
		}
	}
	return []LedgerEntry{
		entry("LED-001", "2025-01-15", "Office Supplies Purchase", "245.50", "Operations"),
		entry("LED-002", "2025-01-18", "Client Lunch Meeting", "125.00", "Entertainment"),
		entry("LED-003", "2025-01-22", "Software Subscription", "599.99", "Technology"),
		entry("LED-004", "2025-01-25", "Travel Reimbursement", "450.00", "Travel"),
		entry("LED-005", "2025-01-28", "Training Materials", "175.25", "Education"),
	}
}
