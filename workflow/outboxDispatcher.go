package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/integrity_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Handler consumes store events. Handle must be idempotent: a record is redelivered to
// a handler until that handler succeeds once.
type Handler interface {
	Name() string
	Handle(ctx context.Context, event models.Event) error
}

type OutboxDispatcher struct {
	Outbox       *Outbox
	Handlers     []Handler
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Retention      time.Duration

	now func() time.Time
}

func NewOutboxDispatcher(outbox *Outbox, logger *logrus.Logger, handlers ...Handler) *OutboxDispatcher {
	return &OutboxDispatcher{
		Outbox:         outbox,
		Handlers:       handlers,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     10 * time.Minute,
		Retention:      10 * time.Minute,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DispatchOnce delivers one batch and returns the number of records claimed.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) int {
	if d.Outbox == nil {
		return 0
	}
	now := d.now()
	staleBefore := now.Add(-d.LockTimeout)

	claimed := d.Outbox.Claim(now, staleBefore, d.BatchSize, d.DispatcherID, d.MaxAttempts)
	for _, rec := range claimed {
		var errs []error
		for _, h := range d.Handlers {
			if rec.Delivered[h.Name()] {
				continue
			}
			if err := h.Handle(ctx, rec.Event); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", h.Name(), err))
				continue
			}
			d.Outbox.MarkDelivered(rec.ID, h.Name())
		}
		if len(errs) > 0 {
			d.markFailed(rec, errors.Join(errs...))
			continue
		}
		d.Outbox.MarkSent(rec.ID, d.now())
	}

	if d.Retention > 0 {
		d.Outbox.PruneSent(now.Add(-d.Retention))
	}
	return len(claimed)
}

func (d *OutboxDispatcher) markFailed(rec OutboxRecord, err error) {
	// Terminal after MaxAttempts (DLQ equivalent).
	if d.MaxAttempts > 0 && rec.Attempts >= d.MaxAttempts {
		d.Outbox.MarkFailed(rec.ID, err, nil)
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":      "OutboxDispatcher",
				"record_id":  rec.ID,
				"event_id":   rec.Event.ID,
				"event_kind": rec.Event.Kind,
				"attempt":    rec.Attempts,
			}).Error("outbox delivery moved to DEAD after max attempts: " + err.Error())
		}
		return
	}

	next := d.now().Add(d.backoff(rec.Attempts))
	d.Outbox.MarkFailed(rec.ID, err, &next)
	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "OutboxDispatcher",
			"record_id":       rec.ID,
			"event_id":        rec.Event.ID,
			"event_kind":      rec.Event.Kind,
			"attempt":         rec.Attempts,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).Error("outbox delivery failed: " + err.Error())
	}
}

// backoff doubles from InitialBackoff per attempt, capped at MaxBackoff.
func (d *OutboxDispatcher) backoff(attempt int) time.Duration {
	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if d.MaxBackoff > 0 && backoff > d.MaxBackoff {
			return d.MaxBackoff
		}
	}
	return backoff
}
