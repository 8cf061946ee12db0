package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/order-workflow/internal/application/dispatcher"
	"github.com/garyjia/order-workflow/internal/application/port"
	"github.com/garyjia/order-workflow/internal/domain/entity"
	"github.com/garyjia/order-workflow/internal/domain/event"
	"github.com/garyjia/order-workflow/internal/domain/workflow"
)

// Logger interface for service logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DefaultHeartbeatWindow is how recently a user must have been seen to count as online
const DefaultHeartbeatWindow = 15 * time.Minute

type settings struct {
	now             func() time.Time
	heartbeatWindow time.Duration
}

func newSettings(opts []Option) settings {
	s := settings{
		now:             func() time.Time { return time.Now().UTC() },
		heartbeatWindow: DefaultHeartbeatWindow,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures a service
type Option func(*settings)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// WithHeartbeatWindow sets how recent a heartbeat must be for FindBestUser
func WithHeartbeatWindow(window time.Duration) Option {
	return func(s *settings) {
		if window > 0 {
			s.heartbeatWindow = window
		}
	}
}

// publish fires events after commit. Handler failures never reach the caller.
func publish(ctx context.Context, d dispatcher.Dispatcher, events ...*event.Event) {
	if d == nil {
		return
	}
	event.Correlate(events...)
	for _, evt := range events {
		d.DispatchAsync(ctx, evt)
	}
}

func orderEvent(typ event.Type, order *entity.Order, userID int64, payload map[string]interface{}) *event.Event {
	evt := event.NewEvent(typ, order.ID, order.ProjectID, userID, payload)
	evt.Payload[event.PayloadOrderNumber] = order.OrderNumber
	evt.Payload[event.PayloadState] = order.WorkflowState.String()
	return evt
}

// requireProject rejects an actor outside projectID. Org-wide roles pass.
func requireProject(actor *entity.User, projectID int64) error {
	if actor.CanAccessProject(projectID) {
		return nil
	}
	return fmt.Errorf("%w: user %d has no access to project %d", workflow.ErrForbidden, actor.ID, projectID)
}

// loadMember loads the acting user and checks they belong to projectID
func loadMember(ctx context.Context, users port.UserRepository, userID, projectID int64) (*entity.User, error) {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get actor: %w", err)
	}
	if user == nil {
		return nil, notFound("user", userID)
	}
	if err := requireProject(user, projectID); err != nil {
		return nil, err
	}
	return user, nil
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%w: %s %d", workflow.ErrNotFound, kind, id)
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", workflow.ErrValidation, fmt.Sprintf(format, args...))
}

// stageOf resolves the stage of an in-progress order
func stageOf(order *entity.Order) (workflow.Stage, error) {
	stage, ok := workflow.StageOf(order.WorkflowState)
	if !ok || !order.WorkflowState.IsInProgress() {
		return "", fmt.Errorf("%w: order %d is %s, not in progress", workflow.ErrInvalidState, order.ID, order.WorkflowState)
	}
	return stage, nil
}
