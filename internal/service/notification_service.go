package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/examcell/duty-roster/internal/config"
	"github.com/examcell/duty-roster/internal/events"
)

// NotificationService handles emitting notifications for duty events.
// Staff hear about their own duties by email; the exam cell hears about
// shortfalls and stuck transfers through the webhook.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventDutyAssigned, n.handleDutyAssigned)
	n.dispatcher.Subscribe(events.EventSlotUnderfilled, n.handleSlotUnderfilled)
	n.dispatcher.Subscribe(events.EventDutyRedistributed, n.handleDutyRedistributed)
	n.dispatcher.Subscribe(events.EventDutyTransferred, n.handleDutyTransferred)
	n.dispatcher.Subscribe(events.EventTransferIncomplete, n.handleTransferIncomplete)
	n.dispatcher.Subscribe(events.EventPastDutiesCleared, n.handleRosterMaintenance)
	n.dispatcher.Subscribe(events.EventRosterPopulated, n.handleRosterMaintenance)
}

func (n *NotificationService) handleDutyAssigned(ctx context.Context, event events.Event) error {
	n.logger.Debug("DutyAssigned", zap.String("staff_id", event.StaffID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleSlotUnderfilled(ctx context.Context, event events.Event) error {
	n.logger.Warn("SlotUnderfilled", zap.String("run_id", event.RunID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleDutyRedistributed(ctx context.Context, event events.Event) error {
	n.logger.Info("DutyRedistributed", zap.String("staff_id", event.StaffID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleDutyTransferred(ctx context.Context, event events.Event) error {
	n.logger.Info("DutyTransferred", zap.String("staff_id", event.StaffID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTransferIncomplete(ctx context.Context, event events.Event) error {
	n.logger.Error("TransferIncomplete", zap.String("staff_id", event.StaffID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleRosterMaintenance(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || event.StaffID == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("staff_id", event.StaffID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("run_id", event.RunID),
		zap.String("event_type", string(event.Type)))
}
