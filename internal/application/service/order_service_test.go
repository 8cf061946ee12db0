package service

import (
	"testing"
	"time"

	"github.com/garyjia/order-workflow/internal/domain/entity"
	"github.com/garyjia/order-workflow/internal/domain/event"
	"github.com/garyjia/order-workflow/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderService_Receive(t *testing.T) {
	h := newHarness(t, workflow.WorkflowFP3Layer, 1)
	due := h.now.Add(48 * time.Hour)

	order, err := h.orderSvc.Receive(h.ctx, ReceiveRequest{
		ProjectID:       h.project.ID,
		ClientReference: "  ACME/2026-03/17  ",
		DueDate:         &due,
	}, 0)
	require.NoError(t, err)

	assert.NotZero(t, order.ID)
	assert.Regexp(t, `^ORD-[0-9A-F]{12}$`, order.OrderNumber)
	assert.Equal(t, "ACME/2026-03/17", order.ClientReference)
	assert.Equal(t, entity.PriorityNormal, order.Priority)
	assert.Equal(t, workflow.StateQueuedDraw, order.WorkflowState)
	assert.Equal(t, workflow.WorkflowFP3Layer, order.WorkflowType)
	assert.True(t, order.ReceivedAt.Equal(h.now))

	stored := h.reload(order.ID)
	assert.Equal(t, workflow.StateQueuedDraw, stored.WorkflowState)
	require.NotNil(t, stored.DueDate)
	assert.True(t, stored.DueDate.Equal(due))

	trail, err := h.audit.Trail(h.ctx, entity.AuditEntityOrder, order.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, entity.AuditActionOrderReceived, trail[0].Action)
	assert.Equal(t, entity.AuditActionStateChange, trail[1].Action)
	assert.Nil(t, trail[0].ActorID, "system receipt")
}

func TestOrderService_ReceiveErrors(t *testing.T) {
	h := newHarness(t, workflow.WorkflowPH2Layer, 1)
	h.receive("PH-dup", entity.PriorityHigh)

	tests := []struct {
		name    string
		req     ReceiveRequest
		wantErr error
	}{
		{name: "duplicate reference", req: ReceiveRequest{ProjectID: h.project.ID, ClientReference: "PH-dup"}, wantErr: workflow.ErrDuplicate},
		{name: "empty reference", req: ReceiveRequest{ProjectID: h.project.ID, ClientReference: "   "}, wantErr: workflow.ErrValidation},
		{name: "bad characters", req: ReceiveRequest{ProjectID: h.project.ID, ClientReference: "a b"}, wantErr: workflow.ErrValidation},
		{name: "unknown priority", req: ReceiveRequest{ProjectID: h.project.ID, ClientReference: "PH-2", Priority: "asap"}, wantErr: workflow.ErrValidation},
		{name: "unknown project", req: ReceiveRequest{ProjectID: 777, ClientReference: "PH-3"}, wantErr: workflow.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.orderSvc.Receive(h.ctx, tt.req, 0)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOrderService_HoldResumeInProgress(t *testing.T) {
	h := newHarness(t, workflow.WorkflowFP3Layer, 1)
	drawer := h.user("dana", workflow.RoleDrawer)
	checker := h.user("carl", workflow.RoleChecker)
	manager := h.user("mona", workflow.RoleOperationsManager)

	order := h.receive("FP-H1", entity.PriorityNormal)
	h.submit(h.startNext(drawer), drawer)
	h.startNext(checker)

	held, err := h.orderSvc.Hold(h.ctx, order.ID, manager.ID, "client changed the brief")
	require.NoError(t, err)
	assert.Equal(t, workflow.StateOnHold, held.WorkflowState)
	assert.Equal(t, workflow.StateInCheck, held.PreHoldState)
	assert.True(t, held.IsOnHold)
	assert.Equal(t, "client changed the brief", held.HoldReason)
	require.NotNil(t, held.HoldSetBy)
	assert.Equal(t, manager.ID, *held.HoldSetBy)
	assert.Nil(t, held.AssignedTo)
	assert.Equal(t, 0, h.reloadUser(checker.ID).WIPCount)
	h.requireConsistent([]int64{order.ID}, []*entity.User{drawer, checker})

	holds := h.events.ofType(event.TypeOrderOnHold)
	require.Len(t, holds, 1)
	assert.Equal(t, checker.ID, holds[0].GetPayloadInt(event.PayloadRecipientID))

	resumed, err := h.orderSvc.Resume(h.ctx, order.ID, manager.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateQueuedCheck, resumed.WorkflowState)
	assert.Equal(t, workflow.State(""), resumed.PreHoldState)
	assert.False(t, resumed.IsOnHold)
	assert.Nil(t, resumed.HoldSetBy)

	stored := h.reload(order.ID)
	assert.Equal(t, workflow.StateQueuedCheck, stored.WorkflowState)
	assert.Equal(t, workflow.State(""), stored.PreHoldState)

	resumes := h.events.ofType(event.TypeOrderResumed)
	require.Len(t, resumes, 1)
	assert.Zero(t, resumes[0].GetPayloadInt(event.PayloadRecipientID), "the hold setter resumed it")

	h.startNext(checker)
	h.requireConsistent([]int64{order.ID}, []*entity.User{drawer, checker})
}

func TestOrderService_HoldResumeQueued(t *testing.T) {
	h := newHarness(t, workflow.WorkflowFP3Layer, 1)
	drawer := h.user("dana", workflow.RoleDrawer)
	checker := h.user("carl", workflow.RoleChecker)
	qa := h.user("quinn", workflow.RoleQA)
	director := h.user("dora", workflow.RoleDirector)

	order := h.receive("FP-H2", entity.PriorityNormal)
	h.submit(h.startNext(drawer), drawer)
	h.submit(h.startNext(checker), checker)

	_, err := h.orderSvc.Hold(h.ctx, order.ID, qa.ID, "waiting on client")
	require.NoError(t, err, "QA may hold")

	resumed, err := h.orderSvc.Resume(h.ctx, order.ID, director.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateQueuedQA, resumed.WorkflowState)

	resumes := h.events.ofType(event.TypeOrderResumed)
	require.Len(t, resumes, 1)
	assert.Equal(t, qa.ID, resumes[0].GetPayloadInt(event.PayloadRecipientID))
	assert.Empty(t, h.events.ofType(event.TypeOrderOnHold)[0].Payload[event.PayloadRecipientID])
}

func TestOrderService_HoldResumeErrors(t *testing.T) {
	h := newHarness(t, workflow.WorkflowFP3Layer, 1)
	drawer := h.user("dana", workflow.RoleDrawer)
	qa := h.user("quinn", workflow.RoleQA)
	manager := h.user("mona", workflow.RoleOperationsManager)

	order := h.receive("FP-H3", entity.PriorityNormal)

	_, err := h.orderSvc.Hold(h.ctx, order.ID, drawer.ID, "cannot do")
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	_, err = h.orderSvc.Hold(h.ctx, order.ID, manager.ID, "no")
	assert.ErrorIs(t, err, workflow.ErrValidation)

	_, err = h.orderSvc.Resume(h.ctx, order.ID, manager.ID)
	assert.ErrorIs(t, err, workflow.ErrInvalidState)

	_, err = h.orderSvc.Hold(h.ctx, order.ID, qa.ID, "missing info")
	require.NoError(t, err)

	_, err = h.orderSvc.Hold(h.ctx, order.ID, manager.ID, "again please")
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = h.orderSvc.Resume(h.ctx, order.ID, qa.ID)
	assert.ErrorIs(t, err, workflow.ErrForbidden, "only managers resume")

	_, err = h.orderSvc.Hold(h.ctx, 999, manager.ID, "missing info")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestOrderService_HoldDeliveredFails(t *testing.T) {
	h := newHarness(t, workflow.WorkflowPH2Layer, 1)
	designer := h.user("dee", workflow.RoleDesigner)
	qa := h.user("quinn", workflow.RoleQA)
	manager := h.user("mona", workflow.RoleCEO)

	order := h.receive("PH-H4", entity.PriorityNormal)
	h.submit(h.startNext(designer), designer)
	h.submit(h.startNext(qa), qa)

	_, err := h.orderSvc.Hold(h.ctx, order.ID, manager.ID, "too late")
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	_, err = h.orderSvc.Cancel(h.ctx, order.ID, manager.ID, "too late")
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
}

func TestOrderService_Release(t *testing.T) {
	h := newHarness(t, workflow.WorkflowFP3Layer, 1)
	drawer := h.user("dana", workflow.RoleDrawer)
	rival := h.user("dave", workflow.RoleDrawer)

	order := h.receive("FP-R1", entity.PriorityNormal)
	h.startNext(drawer)

	_, err := h.orderSvc.Release(h.ctx, order.ID, rival.ID)
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	released, err := h.orderSvc.Release(h.ctx, order.ID, drawer.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateQueuedDraw, released.WorkflowState)
	assert.Equal(t, 0, h.reloadUser(drawer.ID).WIPCount)

	trail, err := h.audit.Trail(h.ctx, entity.AuditEntityOrder, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AuditActionReleasedToQueue, trail[len(trail)-1].Action)

	_, err = h.orderSvc.Release(h.ctx, order.ID, drawer.ID)
	assert.ErrorIs(t, err, workflow.ErrInvalidState)

	got := h.startNext(rival)
	assert.Equal(t, order.ID, got.ID)
	h.requireConsistent([]int64{order.ID}, []*entity.User{drawer, rival})
}

func TestOrderService_ReassignToQueue(t *testing.T) {
	h := newHarness(t, workflow.WorkflowFP3Layer, 1)
	drawer := h.user("dana", workflow.RoleDrawer)
	manager := h.user("mona", workflow.RoleOperationsManager)

	order := h.receive("FP-A1", entity.PriorityNormal)
	h.startNext(drawer)

	got, err := h.orderSvc.Reassign(h.ctx, order.ID, manager.ID, nil, "rebalancing")
	require.NoError(t, err)
	assert.Equal(t, workflow.StateQueuedDraw, got.WorkflowState)
	assert.Nil(t, got.AssignedTo)

	trail, err := h.audit.Trail(h.ctx, entity.AuditEntityOrder, order.ID)
	require.NoError(t, err)
	last := trail[len(trail)-1]
	assert.Equal(t, entity.AuditActionAdminReassign, last.Action)
	assert.Equal(t, "rebalancing", last.After[entity.MetaReason])

	reclaimed := h.events.ofType(event.TypeOrderReclaimed)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, drawer.ID, reclaimed[0].GetPayloadInt(event.PayloadRecipientID))

	h.requireConsistent([]int64{order.ID}, []*entity.User{drawer})
}

func TestOrderService_ReassignToUser(t *testing.T) {
	h := newHarness(t, workflow.WorkflowFP3Layer, 1)
	drawer := h.user("dana", workflow.RoleDrawer)
	target := h.user("dave", workflow.RoleDrawer)
	checker := h.user("carl", workflow.RoleChecker)
	manager := h.user("mona", workflow.RoleOperationsManager)

	order := h.receive("FP-A2", entity.PriorityNormal)
	h.startNext(drawer)

	got, err := h.orderSvc.Reassign(h.ctx, order.ID, manager.ID, &target.ID, "dana is out")
	require.NoError(t, err)
	assert.Equal(t, workflow.StateInDraw, got.WorkflowState, "state is unchanged")
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, target.ID, *got.AssignedTo)

	assert.Equal(t, 0, h.reloadUser(drawer.ID).WIPCount)
	assert.Equal(t, 1, h.reloadUser(target.ID).WIPCount)

	items, err := h.workItems.ListByOrder(h.ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, entity.WorkItemStatusAbandoned, items[0].Status)
	assert.Equal(t, target.ID, items[1].AssignedUserID)
	assert.True(t, items[1].IsOpen())

	reclaimed := h.events.ofType(event.TypeOrderReclaimed)
	require.Len(t, reclaimed, 1)
	assigned := h.events.ofType(event.TypeOrderAssigned)
	assert.Equal(t, target.ID, assigned[len(assigned)-1].GetPayloadInt(event.PayloadRecipientID))
	assert.Equal(t, reclaimed[0].CorrelationID, assigned[len(assigned)-1].CorrelationID, "one reassignment, one chain")

	_, err = h.orderSvc.Reassign(h.ctx, order.ID, manager.ID, &checker.ID, "")
	assert.ErrorIs(t, err, workflow.ErrValidation, "role must match the stage")

	_, err = h.orderSvc.Reassign(h.ctx, order.ID, manager.ID, &target.ID, "")
	assert.ErrorIs(t, err, workflow.ErrValidation, "already assigned")

	second := h.receive("FP-A3", entity.PriorityNormal)
	h.startNext(drawer)
	_, err = h.orderSvc.Reassign(h.ctx, second.ID, manager.ID, &target.ID, "")
	assert.ErrorIs(t, err, workflow.ErrValidation, "target at the WIP cap")

	_, err = h.orderSvc.Reassign(h.ctx, second.ID, drawer.ID, nil, "")
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	h.requireConsistent([]int64{order.ID, second.ID}, []*entity.User{drawer, target, checker})
}

func TestOrderService_Cancel(t *testing.T) {
	h := newHarness(t, workflow.WorkflowFP3Layer, 1)
	drawer := h.user("dana", workflow.RoleDrawer)
	manager := h.user("mona", workflow.RoleOperationsManager)

	queued := h.receive("FP-C1", entity.PriorityNormal)
	inDraw := h.receive("FP-C2", entity.PriorityUrgent)
	h.startNext(drawer)

	got, err := h.orderSvc.Cancel(h.ctx, inDraw.ID, manager.ID, "client withdrew")
	require.NoError(t, err)
	assert.Equal(t, workflow.StateCancelled, got.WorkflowState)
	assert.Equal(t, entity.OrderStatusCancelled, got.Status)
	assert.Nil(t, got.AssignedTo)
	assert.Equal(t, 0, h.reloadUser(drawer.ID).WIPCount)

	items, err := h.workItems.ListByOrder(h.ctx, inDraw.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, entity.WorkItemStatusAbandoned, items[0].Status)

	got, err = h.orderSvc.Cancel(h.ctx, queued.ID, manager.ID, "")
	require.NoError(t, err)
	assert.Equal(t, workflow.StateCancelled, got.WorkflowState)

	_, err = h.orderSvc.Cancel(h.ctx, queued.ID, manager.ID, "")
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = h.orderSvc.Cancel(h.ctx, queued.ID, drawer.ID, "")
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	h.requireConsistent([]int64{queued.ID, inDraw.ID}, []*entity.User{drawer})
}

func TestOrderService_Get(t *testing.T) {
	h := newHarness(t, workflow.WorkflowFP3Layer, 1)
	order := h.receive("FP-G1", entity.PriorityNormal)

	got, err := h.orderSvc.Get(h.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)

	_, err = h.orderSvc.Get(h.ctx, 404)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestOrderService_ProjectIsolation(t *testing.T) {
	h := newHarness(t, workflow.WorkflowFP3Layer, 1)
	drawer := h.user("dana", workflow.RoleDrawer)
	checker := h.outsider("olga", workflow.RoleChecker)
	manager := h.outsider("otto", workflow.RoleOperationsManager)
	director := h.outsider("dora", workflow.RoleDirector)

	order := h.receive("FP-ISO1", entity.PriorityNormal)
	h.startNext(drawer)

	_, err := h.orderSvc.Hold(h.ctx, order.ID, checker.ID, "waiting on the client")
	assert.ErrorIs(t, err, workflow.ErrForbidden)
	_, err = h.orderSvc.Reassign(h.ctx, order.ID, manager.ID, nil, "rebalance")
	assert.ErrorIs(t, err, workflow.ErrForbidden)
	_, err = h.orderSvc.Cancel(h.ctx, order.ID, manager.ID, "duplicate")
	assert.ErrorIs(t, err, workflow.ErrForbidden)
	_, err = h.assignment.ReassignFromUser(h.ctx, drawer.ID, manager.ID)
	assert.ErrorIs(t, err, workflow.ErrForbidden)
	_, err = h.orderSvc.Receive(h.ctx, ReceiveRequest{ProjectID: h.project.ID, ClientReference: "FP-ISO2"}, manager.ID)
	assert.ErrorIs(t, err, workflow.ErrForbidden)

	untouched := h.reload(order.ID)
	assert.Equal(t, workflow.StateInDraw, untouched.WorkflowState)
	assert.True(t, untouched.IsAssignedTo(drawer.ID))
	h.requireConsistent([]int64{order.ID}, []*entity.User{drawer})

	held, err := h.orderSvc.Hold(h.ctx, order.ID, director.ID, "waiting on the client")
	require.NoError(t, err, "directors reach every project")
	assert.Equal(t, workflow.StateOnHold, held.WorkflowState)

	_, err = h.orderSvc.Resume(h.ctx, order.ID, manager.ID)
	assert.ErrorIs(t, err, workflow.ErrForbidden)
	assert.Equal(t, workflow.StateOnHold, h.reload(order.ID).WorkflowState)

	resumed, err := h.orderSvc.Resume(h.ctx, order.ID, director.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateQueuedDraw, resumed.WorkflowState)

	cancelled, err := h.orderSvc.Cancel(h.ctx, order.ID, director.ID, "client withdrew")
	require.NoError(t, err)
	assert.Equal(t, workflow.StateCancelled, cancelled.WorkflowState)
}
