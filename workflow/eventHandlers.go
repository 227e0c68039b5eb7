package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/integrity_backend/config"
	"bitbucket.org/mmdatafocus/integrity_backend/models"
	"github.com/sirupsen/logrus"
)

// ArchiveHandler mirrors reports and tamper logs into the archive database.
type ArchiveHandler struct {
	Archiver *models.Archiver
}

func (h *ArchiveHandler) Name() string { return "archive" }

func (h *ArchiveHandler) Handle(ctx context.Context, event models.Event) error {
	switch event.Kind {
	case models.EventKindReportCreated, models.EventKindReportUpdated:
		if event.Report == nil {
			return nil
		}
		return h.Archiver.ArchiveReport(ctx, event.Report)
	case models.EventKindTamperLogged:
		if event.TamperLog == nil {
			return nil
		}
		return h.Archiver.ArchiveTamperLog(ctx, event.TamperLog)
	}
	return nil
}

// PublishFunc sends a tamper alert and returns the broker message id.
type PublishFunc func(ctx context.Context, msg config.TamperAlertMessage) (string, error)

// AlertPublisher forwards tamper logs to Pub/Sub. Other events are ignored.
type AlertPublisher struct {
	Publish PublishFunc
	Logger  *logrus.Logger
}

func NewAlertPublisher(logger *logrus.Logger) *AlertPublisher {
	return &AlertPublisher{
		Publish: config.PublishTamperAlertWithResult,
		Logger:  logger,
	}
}

func (h *AlertPublisher) Name() string { return "tamper-alert" }

func (h *AlertPublisher) Handle(ctx context.Context, event models.Event) error {
	if event.Kind != models.EventKindTamperLogged || event.TamperLog == nil {
		return nil
	}
	msgID, err := h.Publish(ctx, NewTamperAlertMessage(event))
	if err != nil {
		return err
	}
	if h.Logger != nil {
		h.Logger.WithFields(logrus.Fields{
			"field":         "AlertPublisher",
			"tamper_log_id": event.TamperLog.ID,
			"entry_id":      event.TamperLog.EntryId,
			"message_id":    msgID,
		}).Info("tamper alert published")
	}
	return nil
}

func NewTamperAlertMessage(event models.Event) config.TamperAlertMessage {
	log := event.TamperLog
	return config.TamperAlertMessage{
		EventId:       event.ID,
		TamperLogId:   log.ID,
		EntryId:       log.EntryId,
		Field:         string(log.Field),
		OriginalValue: log.OriginalValue,
		NewValue:      log.NewValue,
		UserId:        log.UserId,
		UserName:      log.UserName,
		ReportId:      log.ReportId,
		Timestamp:     log.Timestamp,
	}
}
