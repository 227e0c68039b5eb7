package workflow

import (
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/integrity_backend/models"
)

const (
	OutboxStatusPending    = "PENDING"
	OutboxStatusProcessing = "PROCESSING"
	OutboxStatusSent       = "SENT"
	OutboxStatusFailed     = "FAILED"
	OutboxStatusDead       = "DEAD"
)

// OutboxRecord tracks delivery of one store event to every handler.
type OutboxRecord struct {
	ID            int             `json:"id"`
	Event         models.Event    `json:"event"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	Delivered     map[string]bool `json:"delivered"`
	LastError     *string         `json:"last_error"`
	NextAttemptAt *time.Time      `json:"next_attempt_at"`
	LockedAt      *time.Time      `json:"locked_at"`
	LockedBy      *string         `json:"locked_by"`
	CreatedAt     time.Time       `json:"created_at"`
	SentAt        *time.Time      `json:"sent_at"`
}

type OutboxStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Dead       int `json:"dead"`
}

// Outbox is an in-memory queue of store events. It implements models.EventSink:
// Enqueue only appends under its own mutex so the stores can call it while locked.
type Outbox struct {
	mu      sync.Mutex
	records []*OutboxRecord
	seq     int
	now     models.Clock
}

func NewOutbox(clock models.Clock) *Outbox {
	if clock == nil {
		clock = time.Now
	}
	return &Outbox{now: clock}
}

// Enqueue appends event as a PENDING record. A report.updated event replaces the
// snapshot of an untouched report.updated record for the same report, so the queue
// holds at most one waiting update per report while no sink is draining it.
func (o *Outbox) Enqueue(event models.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if rec := o.pendingUpdate(event); rec != nil {
		rec.Event = event
		return
	}
	o.seq++
	o.records = append(o.records, &OutboxRecord{
		ID:        o.seq,
		Event:     event,
		Status:    OutboxStatusPending,
		Delivered: make(map[string]bool),
		CreatedAt: o.now(),
	})
}

// Claim marks up to limit eligible records as PROCESSING for dispatcherID and returns copies.
// Eligible: PENDING or FAILED whose retry time has come, or PROCESSING with a lock older
// than staleBefore. Records already at maxAttempts go DEAD instead.
func (o *Outbox) Claim(now time.Time, staleBefore time.Time, limit int, dispatcherID string, maxAttempts int) []OutboxRecord {
	o.mu.Lock()
	defer o.mu.Unlock()

	claimed := make([]OutboxRecord, 0)
	for _, rec := range o.records {
		if limit > 0 && len(claimed) >= limit {
			break
		}
		eligible := false
		switch rec.Status {
		case OutboxStatusPending, OutboxStatusFailed:
			eligible = rec.NextAttemptAt == nil || !rec.NextAttemptAt.After(now)
		case OutboxStatusProcessing:
			eligible = rec.LockedAt != nil && !rec.LockedAt.After(staleBefore)
		}
		if !eligible {
			continue
		}
		if maxAttempts > 0 && rec.Attempts >= maxAttempts {
			msg := "max delivery attempts exceeded"
			rec.Status = OutboxStatusDead
			rec.LastError = &msg
			rec.NextAttemptAt = nil
			rec.LockedAt = nil
			rec.LockedBy = nil
			continue
		}

		lockedAt := now
		lockedBy := dispatcherID
		rec.Status = OutboxStatusProcessing
		rec.LockedAt = &lockedAt
		rec.LockedBy = &lockedBy
		rec.Attempts++
		rec.LastError = nil
		rec.NextAttemptAt = nil
		claimed = append(claimed, rec.copy())
	}
	return claimed
}

// MarkDelivered records that handler processed the record, so retries skip it.
func (o *Outbox) MarkDelivered(id int, handler string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if rec := o.find(id); rec != nil {
		rec.Delivered[handler] = true
	}
}

func (o *Outbox) MarkSent(id int, now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec := o.find(id)
	if rec == nil {
		return
	}
	sentAt := now
	rec.Status = OutboxStatusSent
	rec.SentAt = &sentAt
	rec.LockedAt = nil
	rec.LockedBy = nil
	rec.NextAttemptAt = nil
}

// MarkFailed schedules a retry at next, or moves the record to DEAD when next is nil.
func (o *Outbox) MarkFailed(id int, err error, next *time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec := o.find(id)
	if rec == nil {
		return
	}
	msg := err.Error()
	rec.LastError = &msg
	rec.LockedAt = nil
	rec.LockedBy = nil
	if next == nil {
		rec.Status = OutboxStatusDead
		rec.NextAttemptAt = nil
		return
	}
	n := *next
	rec.Status = OutboxStatusFailed
	rec.NextAttemptAt = &n
}

// PruneSent drops SENT records delivered before cutoff and returns how many were removed.
func (o *Outbox) PruneSent(cutoff time.Time) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	kept := o.records[:0]
	removed := 0
	for _, rec := range o.records {
		if rec.Status == OutboxStatusSent && rec.SentAt != nil && rec.SentAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	for i := len(kept); i < len(o.records); i++ {
		o.records[i] = nil
	}
	o.records = kept
	return removed
}

func (o *Outbox) Stats() OutboxStats {
	o.mu.Lock()
	defer o.mu.Unlock()

	var stats OutboxStats
	for _, rec := range o.records {
		switch rec.Status {
		case OutboxStatusPending:
			stats.Pending++
		case OutboxStatusProcessing:
			stats.Processing++
		case OutboxStatusSent:
			stats.Sent++
		case OutboxStatusFailed:
			stats.Failed++
		case OutboxStatusDead:
			stats.Dead++
		}
	}
	return stats
}

// Records returns copies of every record with the given status, or all when status is empty.
func (o *Outbox) Records(status string) []OutboxRecord {
	o.mu.Lock()
	defer o.mu.Unlock()

	results := make([]OutboxRecord, 0)
	for _, rec := range o.records {
		if status == "" || rec.Status == status {
			results = append(results, rec.copy())
		}
	}
	return results
}

// caller holds o.mu
func (o *Outbox) pendingUpdate(event models.Event) *OutboxRecord {
	if event.Kind != models.EventKindReportUpdated || event.Report == nil {
		return nil
	}
	for i := len(o.records) - 1; i >= 0; i-- {
		rec := o.records[i]
		if rec.Event.Report == nil || rec.Event.Report.ID != event.Report.ID {
			continue
		}
		if rec.Event.Kind == models.EventKindReportUpdated && rec.Status == OutboxStatusPending && rec.Attempts == 0 {
			return rec
		}
		// an older record is in flight or already sent; keep ordering
		return nil
	}
	return nil
}

// caller holds o.mu
func (o *Outbox) find(id int) *OutboxRecord {
	for _, rec := range o.records {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

func (r *OutboxRecord) copy() OutboxRecord {
	c := *r
	c.Delivered = make(map[string]bool, len(r.Delivered))
	for k, v := range r.Delivered {
		c.Delivered[k] = v
	}
	return c
}
