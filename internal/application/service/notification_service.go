package service

import (
	"context"
	"fmt"

	"github.com/garyjia/order-workflow/internal/application/dispatcher"
	"github.com/garyjia/order-workflow/internal/application/port"
	"github.com/garyjia/order-workflow/internal/domain/event"
)

// NotificationService turns order events into chat messages
type NotificationService interface {
	// Register subscribes the service to every event type it notifies on
	Register(d dispatcher.Dispatcher)

	// Handle delivers the notification for one event
	Handle(ctx context.Context, evt *event.Event) error
}

// notifiedEvents are the event types that reach a person
var notifiedEvents = []event.Type{
	event.TypeOrderAssigned,
	event.TypeOrderRejected,
	event.TypeOrderOnHold,
	event.TypeOrderResumed,
	event.TypeOrderReclaimed,
	event.TypeUserFlaggedInactive,
}

type notificationServiceImpl struct {
	userRepo      port.UserRepository
	messageSender port.MessageSender
	logger        Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	userRepo port.UserRepository,
	messageSender port.MessageSender,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		userRepo:      userRepo,
		messageSender: messageSender,
		logger:        logger,
	}
}

// Register subscribes the service to the dispatcher
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeMany(notifiedEvents, "notification", s.Handle)
}

// Handle resolves the recipient and sends the message. Events without a
// recipient, and recipients without a chat address, are skipped.
func (s *notificationServiceImpl) Handle(ctx context.Context, evt *event.Event) error {
	recipientID := evt.GetPayloadInt(event.PayloadRecipientID)
	if recipientID == 0 {
		return nil
	}

	text, ok := buildMessage(evt)
	if !ok {
		return nil
	}

	user, err := s.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		s.logger.Error("Failed to load notification recipient", "user_id", recipientID, "event", evt.Type.String(), "error", err)
		return fmt.Errorf("get recipient: %w", err)
	}
	if user == nil || user.LarkOpenID == "" {
		s.logger.Info("Notification skipped, recipient has no chat address", "user_id", recipientID, "event", evt.Type.String())
		return nil
	}

	if err := s.messageSender.SendText(ctx, user.LarkOpenID, text); err != nil {
		s.logger.Error("Failed to send notification",
			"user_id", recipientID,
			"open_id", user.LarkOpenID,
			"event", evt.Type.String(),
			"error", err)
		return fmt.Errorf("send message: %w", err)
	}

	s.logger.Info("Notification sent",
		"user_id", recipientID,
		"event", evt.Type.String(),
		"order_id", evt.OrderID,
		"message_length", len(text))
	return nil
}

// buildMessage renders the text for an event type
func buildMessage(evt *event.Event) (string, bool) {
	number := evt.GetPayloadString(event.PayloadOrderNumber)
	state := evt.GetPayloadString(event.PayloadState)
	reason := evt.GetPayloadString(event.PayloadReason)

	switch evt.Type {
	case event.TypeOrderAssigned:
		return fmt.Sprintf("Order %s is now assigned to you (%s).", number, state), true
	case event.TypeOrderRejected:
		return fmt.Sprintf("Order %s was sent back for rework (%s): %s\nIt is waiting in %s.",
			number, evt.GetPayloadString(event.PayloadCode), reason, state), true
	case event.TypeOrderOnHold:
		return fmt.Sprintf("Order %s was put on hold and removed from your queue: %s", number, reason), true
	case event.TypeOrderResumed:
		return fmt.Sprintf("Order %s has been resumed into %s.", number, state), true
	case event.TypeOrderReclaimed:
		msg := fmt.Sprintf("Order %s was taken back from you and returned to %s.", number, state)
		if reason != "" {
			msg += "\nReason: " + reason
		}
		return msg, true
	case event.TypeUserFlaggedInactive:
		return fmt.Sprintf("You were marked absent after %d inactive days. %d orders were returned to their queues.",
			evt.GetPayloadInt(event.PayloadInactiveDays), evt.GetPayloadInt(event.PayloadReclaimCount)), true
	default:
		return "", false
	}
}
