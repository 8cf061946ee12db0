package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/order-workflow/internal/domain/workflow"
)

func newTestOrder(state workflow.State) *Order {
	return &Order{
		ID:            1,
		ProjectID:     10,
		OrderNumber:   "ORD-TEST",
		WorkflowType:  workflow.WorkflowFP3Layer,
		WorkflowState: state,
		Priority:      PriorityNormal,
		Status:        OrderStatusPending,
	}
}

func TestPriority_Rank(t *testing.T) {
	assert.Equal(t, 1, PriorityUrgent.Rank())
	assert.Equal(t, 2, PriorityHigh.Rank())
	assert.Equal(t, 3, PriorityNormal.Rank())
	assert.Equal(t, 4, PriorityLow.Rank())
	assert.Equal(t, UnrankedPriority, Priority("whenever").Rank())
	assert.False(t, Priority("").IsValid())
}

func TestOrder_ApplyTransition_InProgress(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	order := newTestOrder(workflow.StateQueuedDraw)
	userID := int64(5)
	order.AssignedTo = &userID

	order.ApplyTransition(workflow.StateInDraw, userID, nil, now)

	assert.Equal(t, workflow.StateInDraw, order.WorkflowState)
	assert.Equal(t, OrderStatusInProgress, order.Status)
	require.NotNil(t, order.StartedAt)
	assert.Equal(t, now, *order.StartedAt)
	assert.True(t, order.IsAssignedTo(userID), "entering IN_* keeps the claim")
}

func TestOrder_ApplyTransition_ClearsAssignmentOutsideInProgress(t *testing.T) {
	targets := []workflow.State{
		workflow.StateSubmittedDraw,
		workflow.StateRejectedByCheck,
		workflow.StateQueuedCheck,
		workflow.StateOnHold,
		workflow.StateCancelled,
	}

	for _, to := range targets {
		t.Run(to.String(), func(t *testing.T) {
			order := newTestOrder(workflow.StateInCheck)
			userID := int64(9)
			order.AssignedTo = &userID

			order.ApplyTransition(to, userID, nil, time.Now())

			assert.Nil(t, order.AssignedTo)
		})
	}
}

func TestOrder_ApplyTransition_Delivered(t *testing.T) {
	now := time.Now()
	order := newTestOrder(workflow.StateApprovedQA)

	order.ApplyTransition(workflow.StateDelivered, 0, nil, now)

	assert.Equal(t, OrderStatusCompleted, order.Status)
	require.NotNil(t, order.DeliveredAt)
	require.NotNil(t, order.CompletedAt)
	assert.Equal(t, now, *order.DeliveredAt)
}

func TestOrder_ApplyTransition_StatusByCategory(t *testing.T) {
	tests := []struct {
		from   workflow.State
		to     workflow.State
		status string
	}{
		{workflow.StateReceived, workflow.StateQueuedDraw, OrderStatusPending},
		{workflow.StateInDraw, workflow.StateSubmittedDraw, OrderStatusPending},
		{workflow.StateInQA, workflow.StateApprovedQA, OrderStatusPending},
		{workflow.StateQueuedQA, workflow.StateCancelled, OrderStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.to.String(), func(t *testing.T) {
			order := newTestOrder(tt.from)
			order.Status = "stale"
			order.ApplyTransition(tt.to, 0, nil, time.Now())
			assert.Equal(t, tt.status, order.Status)
		})
	}
}

func TestOrder_ApplyTransition_HoldBookkeeping(t *testing.T) {
	order := newTestOrder(workflow.StateQueuedCheck)
	order.Status = OrderStatusPending

	order.ApplyTransition(workflow.StateOnHold, 3, map[string]interface{}{MetaHoldReason: "client query"}, time.Now())

	assert.True(t, order.IsOnHold)
	assert.Equal(t, "client query", order.HoldReason)
	require.NotNil(t, order.HoldSetBy)
	assert.Equal(t, int64(3), *order.HoldSetBy)
	assert.Equal(t, OrderStatusPending, order.Status, "hold keeps the previous status")

	order.ApplyTransition(workflow.StateQueuedCheck, 4, nil, time.Now())

	assert.False(t, order.IsOnHold)
	assert.Empty(t, order.HoldReason)
	assert.Nil(t, order.HoldSetBy)
}

func TestOrder_ApplyTransition_AttemptCounters(t *testing.T) {
	order := newTestOrder(workflow.StateInCheck)

	order.ApplyTransition(workflow.StateRejectedByCheck, 1, nil, time.Now())
	assert.Equal(t, 1, order.AttemptCheck)

	order.ApplyTransition(workflow.StateQueuedDraw, 1, nil, time.Now())
	assert.Equal(t, 1, order.AttemptDraw)

	// A plain hold resume into the draw queue is not a rework attempt
	order.WorkflowState = workflow.StateOnHold
	order.ApplyTransition(workflow.StateQueuedDraw, 1, nil, time.Now())
	assert.Equal(t, 1, order.AttemptDraw)

	order.WorkflowState = workflow.StateInQA
	order.ApplyTransition(workflow.StateRejectedByQA, 1, nil, time.Now())
	assert.Equal(t, 1, order.AttemptQA)

	order.ApplyTransition(workflow.StateQueuedCheck, 1, nil, time.Now())
	assert.Equal(t, 1, order.AttemptDraw, "QA rejection to check does not count a draw attempt")
}

func TestOrder_StampRejection(t *testing.T) {
	now := time.Now()
	order := newTestOrder(workflow.StateInCheck)

	order.StampRejection(8, "missing wall", RejectionIncomplete, now)
	order.StampRejection(8, "still missing", RejectionIncomplete, now)

	assert.Equal(t, 2, order.RecheckCount)
	assert.Equal(t, "still missing", order.RejectionReason)
	assert.Equal(t, RejectionIncomplete, order.RejectionType)
	require.NotNil(t, order.RejectedBy)
	assert.Equal(t, int64(8), *order.RejectedBy)
}

func TestOrder_Snapshot(t *testing.T) {
	order := newTestOrder(workflow.StateQueuedQA)
	snap := order.Snapshot()
	assert.Equal(t, "QUEUED_QA", snap["state"])
	assert.Nil(t, snap["assigned_to"])

	userID := int64(2)
	order.AssignedTo = &userID
	assert.Equal(t, int64(2), order.Snapshot()["assigned_to"])
}

func TestActorRef(t *testing.T) {
	assert.Nil(t, ActorRef(0))
	require.NotNil(t, ActorRef(12))
	assert.Equal(t, int64(12), *ActorRef(12))
}
