package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/order-workflow/internal/application/port"
	"github.com/garyjia/order-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/order-workflow/internal/domain/workflow"
)

// stateMachineImpl is the concrete implementation of StateMachineService
type stateMachineImpl struct {
	orderRepo port.OrderRepository
	audit     port.AuditSink
	logger    Logger
	now       func() time.Time
}

// Option configures the state machine service
type Option func(*stateMachineImpl)

// WithClock overrides the time source used for side-effect timestamps
func WithClock(now func() time.Time) Option {
	return func(s *stateMachineImpl) {
		s.now = now
	}
}

// NewStateMachineService creates a new state machine service
func NewStateMachineService(
	orderRepo port.OrderRepository,
	audit port.AuditSink,
	logger Logger,
	opts ...Option,
) StateMachineService {
	s := &stateMachineImpl{
		orderRepo: orderRepo,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *stateMachineImpl) Table(workflowType domainwf.WorkflowType) (domainwf.Table, error) {
	return TableFor(workflowType)
}

// CanTransition reports whether the order may move to the target state
func (s *stateMachineImpl) CanTransition(order *entity.Order, to domainwf.State) bool {
	if order == nil {
		return false
	}
	table, err := TableFor(order.WorkflowType)
	if err != nil {
		return false
	}
	return table.CanTransition(order.WorkflowState, to)
}

// Transition performs a validated state change
func (s *stateMachineImpl) Transition(ctx context.Context, order *entity.Order, to domainwf.State, actorID int64, meta map[string]interface{}) error {
	if order == nil {
		return fmt.Errorf("%w: order is nil", domainwf.ErrNotFound)
	}

	table, err := TableFor(order.WorkflowType)
	if err != nil {
		return err
	}

	if !table.CanTransition(order.WorkflowState, to) {
		return fmt.Errorf("%w: %s -> %s (allowed: %v)",
			domainwf.ErrInvalidTransition, order.WorkflowState, to, table.Allowed(order.WorkflowState))
	}

	return s.apply(ctx, order, to, actorID, entity.AuditActionStateChange, meta)
}

// ForceSet moves the order without adjacency validation
func (s *stateMachineImpl) ForceSet(ctx context.Context, order *entity.Order, to domainwf.State, actorID int64, action string, meta map[string]interface{}) error {
	if order == nil {
		return fmt.Errorf("%w: order is nil", domainwf.ErrNotFound)
	}

	table, err := TableFor(order.WorkflowType)
	if err != nil {
		return err
	}

	if !table.Has(to) {
		return fmt.Errorf("%w: %s is not a %s state", domainwf.ErrInvalidState, to, order.WorkflowType)
	}

	if action == "" {
		action = entity.AuditActionAdminReassign
	}

	return s.apply(ctx, order, to, actorID, action, meta)
}

// apply mutates a copy so the caller's order is only changed once the update succeeded
func (s *stateMachineImpl) apply(ctx context.Context, order *entity.Order, to domainwf.State, actorID int64, action string, meta map[string]interface{}) error {
	before := order.Snapshot()
	from := order.WorkflowState

	updated := *order
	updated.ApplyTransition(to, actorID, meta, s.now())

	if err := s.orderRepo.Update(ctx, &updated); err != nil {
		return fmt.Errorf("failed to persist transition %s -> %s: %w", from, to, err)
	}
	*order = updated

	after := order.Snapshot()
	for k, v := range meta {
		after[k] = v
	}

	s.recordAudit(ctx, entity.NewOrderAudit(actorID, action, order, before, after))

	s.logger.Info("Order transitioned",
		"order_id", order.ID,
		"from", from.String(),
		"to", to.String(),
		"action", action,
		"actor_id", actorID)

	return nil
}

// recordAudit writes the audit entry; failures never fail the transition
func (s *stateMachineImpl) recordAudit(ctx context.Context, record *entity.AuditRecord) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, record); err != nil {
		s.logger.Error("Failed to record audit entry",
			"action", record.Action,
			"entity_id", record.EntityID,
			"error", err)
	}
}
