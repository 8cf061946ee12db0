package workflow

import (
	"context"

	"github.com/garyjia/order-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/order-workflow/internal/domain/workflow"
)

// StateMachineService is the only writer of Order.WorkflowState
type StateMachineService interface {
	// Transition validates from -> to against the order's workflow table, applies the
	// state side effects, persists the order and records a STATE_CHANGE audit entry.
	// Callers run it inside their own transaction.
	Transition(ctx context.Context, order *entity.Order, to domainwf.State, actorID int64, meta map[string]interface{}) error

	// CanTransition reports whether the order may move to the target state
	CanTransition(order *entity.Order, to domainwf.State) bool

	// ForceSet is the administrative override. It skips adjacency validation but
	// applies the same side effects and audits under the given action.
	ForceSet(ctx context.Context, order *entity.Order, to domainwf.State, actorID int64, action string, meta map[string]interface{}) error

	// Table returns the transition table of a workflow type
	Table(workflowType domainwf.WorkflowType) (domainwf.Table, error)
}

// Logger interface for state machine logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
