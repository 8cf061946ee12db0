package workflow

import (
	"fmt"

	domainwf "github.com/garyjia/order-workflow/internal/domain/workflow"
)

// BuildFPTable creates the transition table for the 3-layer floor-plan workflow
func BuildFPTable() domainwf.Table {
	builder := domainwf.NewBuilder(domainwf.WorkflowFP3Layer)

	builder.Configure(domainwf.StateReceived).
		Permit(domainwf.StateQueuedDraw, domainwf.StateOnHold, domainwf.StateCancelled)

	// Draw stage
	builder.Configure(domainwf.StateQueuedDraw).
		Permit(domainwf.StateInDraw, domainwf.StateOnHold, domainwf.StateCancelled)
	builder.Configure(domainwf.StateInDraw).
		Permit(domainwf.StateSubmittedDraw, domainwf.StateOnHold, domainwf.StateCancelled)
	builder.Configure(domainwf.StateSubmittedDraw).
		Permit(domainwf.StateQueuedCheck)

	// Check stage
	builder.Configure(domainwf.StateQueuedCheck).
		Permit(domainwf.StateInCheck, domainwf.StateOnHold, domainwf.StateCancelled)
	builder.Configure(domainwf.StateInCheck).
		Permit(domainwf.StateSubmittedCheck, domainwf.StateRejectedByCheck, domainwf.StateOnHold, domainwf.StateCancelled)
	builder.Configure(domainwf.StateRejectedByCheck).
		Permit(domainwf.StateQueuedDraw)
	builder.Configure(domainwf.StateSubmittedCheck).
		Permit(domainwf.StateQueuedQA)

	// QA stage
	builder.Configure(domainwf.StateQueuedQA).
		Permit(domainwf.StateInQA, domainwf.StateOnHold, domainwf.StateCancelled)
	builder.Configure(domainwf.StateInQA).
		Permit(domainwf.StateApprovedQA, domainwf.StateRejectedByQA, domainwf.StateOnHold, domainwf.StateCancelled)
	builder.Configure(domainwf.StateRejectedByQA).
		Permit(domainwf.StateQueuedCheck, domainwf.StateQueuedDraw)
	builder.Configure(domainwf.StateApprovedQA).
		Permit(domainwf.StateDelivered)

	builder.Configure(domainwf.StateOnHold).
		Permit(domainwf.StateQueuedDraw, domainwf.StateQueuedCheck, domainwf.StateQueuedQA)

	// DELIVERED and CANCELLED are terminal states - no outgoing transitions
	builder.Configure(domainwf.StateDelivered)
	builder.Configure(domainwf.StateCancelled)

	return builder.Build()
}

// BuildPHTable creates the transition table for the 2-layer photo-enhancement workflow
func BuildPHTable() domainwf.Table {
	builder := domainwf.NewBuilder(domainwf.WorkflowPH2Layer)

	builder.Configure(domainwf.StateReceived).
		Permit(domainwf.StateQueuedDesign, domainwf.StateOnHold, domainwf.StateCancelled)

	// Design stage
	builder.Configure(domainwf.StateQueuedDesign).
		Permit(domainwf.StateInDesign, domainwf.StateOnHold, domainwf.StateCancelled)
	builder.Configure(domainwf.StateInDesign).
		Permit(domainwf.StateSubmittedDesign, domainwf.StateOnHold, domainwf.StateCancelled)
	builder.Configure(domainwf.StateSubmittedDesign).
		Permit(domainwf.StateQueuedQA)

	// QA stage
	builder.Configure(domainwf.StateQueuedQA).
		Permit(domainwf.StateInQA, domainwf.StateOnHold, domainwf.StateCancelled)
	builder.Configure(domainwf.StateInQA).
		Permit(domainwf.StateApprovedQA, domainwf.StateRejectedByQA, domainwf.StateOnHold, domainwf.StateCancelled)
	builder.Configure(domainwf.StateRejectedByQA).
		Permit(domainwf.StateQueuedDesign)
	builder.Configure(domainwf.StateApprovedQA).
		Permit(domainwf.StateDelivered)

	builder.Configure(domainwf.StateOnHold).
		Permit(domainwf.StateQueuedDesign, domainwf.StateQueuedQA)

	builder.Configure(domainwf.StateDelivered)
	builder.Configure(domainwf.StateCancelled)

	return builder.Build()
}

var (
	fpTable = BuildFPTable()
	phTable = BuildPHTable()
)

// TableFor returns the shared read-only table of a workflow type
func TableFor(workflowType domainwf.WorkflowType) (domainwf.Table, error) {
	switch workflowType {
	case domainwf.WorkflowFP3Layer:
		return fpTable, nil
	case domainwf.WorkflowPH2Layer:
		return phTable, nil
	default:
		return nil, fmt.Errorf("%w: unknown workflow type %q", domainwf.ErrValidation, workflowType)
	}
}
