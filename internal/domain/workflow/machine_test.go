package workflow

import (
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateReceived, false},
		{StateQueuedDraw, false},
		{StateInCheck, false},
		{StateRejectedByQA, false},
		{StateApprovedQA, false},
		{StateOnHold, false},
		{StateDelivered, true},
		{StateCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"valid state", StateReceived, true},
		{"valid state", StateSubmittedDesign, true},
		{"invalid state", State("IN_REVIEW"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_Categories(t *testing.T) {
	tests := []struct {
		state      State
		inProgress bool
		queued     bool
		submitted  bool
		rejected   bool
	}{
		{StateInDraw, true, false, false, false},
		{StateInQA, true, false, false, false},
		{StateQueuedDesign, false, true, false, false},
		{StateSubmittedCheck, false, false, true, false},
		{StateRejectedByCheck, false, false, false, true},
		{StateApprovedQA, false, false, false, false},
		{StateOnHold, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := tt.state.IsInProgress(); got != tt.inProgress {
				t.Errorf("IsInProgress() = %v, want %v", got, tt.inProgress)
			}
			if got := tt.state.IsQueued(); got != tt.queued {
				t.Errorf("IsQueued() = %v, want %v", got, tt.queued)
			}
			if got := tt.state.IsSubmitted(); got != tt.submitted {
				t.Errorf("IsSubmitted() = %v, want %v", got, tt.submitted)
			}
			if got := tt.state.IsRejected(); got != tt.rejected {
				t.Errorf("IsRejected() = %v, want %v", got, tt.rejected)
			}
		})
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	builder := NewBuilder(WorkflowFP3Layer)

	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	builder.Configure(State("INVALID"))
}

func TestBuilder_PermitPanicsOnInvalidTarget(t *testing.T) {
	builder := NewBuilder(WorkflowFP3Layer)

	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic on invalid target state")
		}
	}()

	builder.Configure(StateReceived).Permit(State("INVALID"))
}

func TestBuilder_NewBuilderPanicsOnInvalidWorkflowType(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewBuilder() should panic on invalid workflow type")
		}
	}()

	NewBuilder(WorkflowType("XX_9_LAYER"))
}

func TestTable_CanTransition(t *testing.T) {
	builder := NewBuilder(WorkflowFP3Layer)
	builder.Configure(StateReceived).Permit(StateQueuedDraw, StateCancelled)
	builder.Configure(StateQueuedDraw).Permit(StateInDraw)
	builder.Configure(StateCancelled)

	table := builder.Build()

	tests := []struct {
		from, to State
		expected bool
	}{
		{StateReceived, StateQueuedDraw, true},
		{StateReceived, StateCancelled, true},
		{StateReceived, StateInDraw, false},
		{StateQueuedDraw, StateInDraw, true},
		{StateCancelled, StateReceived, false},
		{StateInDraw, StateSubmittedDraw, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if got := table.CanTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("CanTransition() = %v, want %v", got, tt.expected)
			}
		})
	}

	if !table.Has(StateCancelled) {
		t.Error("Has() should include states configured without targets")
	}
	if table.Has(StateInDraw) {
		t.Error("Has() should not include unconfigured states")
	}
	if table.WorkflowType() != WorkflowFP3Layer {
		t.Errorf("WorkflowType() = %v, want %v", table.WorkflowType(), WorkflowFP3Layer)
	}
}

func TestTable_Immutability(t *testing.T) {
	builder := NewBuilder(WorkflowPH2Layer)
	builder.Configure(StateReceived).Permit(StateQueuedDesign)

	table := builder.Build()

	// Configuring after Build must not leak into the built table
	builder.Configure(StateReceived).Permit(StateCancelled)
	if table.CanTransition(StateReceived, StateCancelled) {
		t.Error("built table changed after further Configure calls")
	}

	allowed := table.Allowed(StateReceived)
	allowed[0] = StateDelivered
	if table.Allowed(StateReceived)[0] != StateQueuedDesign {
		t.Error("Allowed() must return a copy")
	}
}

func TestRouting_QueueStateForRole(t *testing.T) {
	tests := []struct {
		wt       WorkflowType
		role     Role
		expected State
		ok       bool
	}{
		{WorkflowFP3Layer, RoleDrawer, StateQueuedDraw, true},
		{WorkflowFP3Layer, RoleChecker, StateQueuedCheck, true},
		{WorkflowFP3Layer, RoleQA, StateQueuedQA, true},
		{WorkflowFP3Layer, RoleDesigner, "", false},
		{WorkflowPH2Layer, RoleDesigner, StateQueuedDesign, true},
		{WorkflowPH2Layer, RoleQA, StateQueuedQA, true},
		{WorkflowPH2Layer, RoleDrawer, "", false},
		{WorkflowPH2Layer, RoleOperationsManager, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.wt.String()+"/"+tt.role.String(), func(t *testing.T) {
			got, ok := QueueStateForRole(tt.wt, tt.role)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("QueueStateForRole() = (%v, %v), want (%v, %v)", got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestRouting_SubmittedAndNextQueue(t *testing.T) {
	tests := []struct {
		wt        WorkflowType
		in        State
		submitted State
		next      State
	}{
		{WorkflowFP3Layer, StateInDraw, StateSubmittedDraw, StateQueuedCheck},
		{WorkflowFP3Layer, StateInCheck, StateSubmittedCheck, StateQueuedQA},
		{WorkflowFP3Layer, StateInQA, StateApprovedQA, StateDelivered},
		{WorkflowPH2Layer, StateInDesign, StateSubmittedDesign, StateQueuedQA},
		{WorkflowPH2Layer, StateInQA, StateApprovedQA, StateDelivered},
	}

	for _, tt := range tests {
		t.Run(tt.wt.String()+"/"+tt.in.String(), func(t *testing.T) {
			submitted, ok := SubmittedState(tt.in)
			if !ok || submitted != tt.submitted {
				t.Fatalf("SubmittedState() = (%v, %v), want %v", submitted, ok, tt.submitted)
			}
			next, ok := NextQueueState(tt.wt, submitted)
			if !ok || next != tt.next {
				t.Errorf("NextQueueState() = (%v, %v), want %v", next, ok, tt.next)
			}
		})
	}

	if _, ok := SubmittedState(StateQueuedDraw); ok {
		t.Error("SubmittedState() should reject non in-progress states")
	}
}

func TestRouting_ResumeState(t *testing.T) {
	tests := []struct {
		wt       WorkflowType
		preHold  State
		expected State
	}{
		{WorkflowFP3Layer, StateInCheck, StateQueuedCheck},
		{WorkflowFP3Layer, StateQueuedQA, StateQueuedQA},
		{WorkflowFP3Layer, StateInDraw, StateQueuedDraw},
		{WorkflowFP3Layer, StateReceived, StateQueuedDraw},
		{WorkflowFP3Layer, State(""), StateQueuedDraw},
		{WorkflowPH2Layer, StateInDesign, StateQueuedDesign},
		{WorkflowPH2Layer, StateQueuedQA, StateQueuedQA},
		{WorkflowPH2Layer, StateReceived, StateQueuedDesign},
	}

	for _, tt := range tests {
		t.Run(tt.wt.String()+"/"+tt.preHold.String(), func(t *testing.T) {
			if got := ResumeState(tt.wt, tt.preHold); got != tt.expected {
				t.Errorf("ResumeState() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRouting_RejectionRoute(t *testing.T) {
	tests := []struct {
		name     string
		wt       WorkflowType
		from     State
		routeTo  RouteTarget
		rejected State
		queue    State
	}{
		{"check always to draw", WorkflowFP3Layer, StateInCheck, RouteCheck, StateRejectedByCheck, StateQueuedDraw},
		{"qa default to check", WorkflowFP3Layer, StateInQA, RouteDefault, StateRejectedByQA, StateQueuedCheck},
		{"qa routed to draw", WorkflowFP3Layer, StateInQA, RouteDraw, StateRejectedByQA, StateQueuedDraw},
		{"ph qa ignores route", WorkflowPH2Layer, StateInQA, RouteDraw, StateRejectedByQA, StateQueuedDesign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rejected, queue, err := RejectionRoute(tt.wt, tt.from, tt.routeTo)
			if err != nil {
				t.Fatalf("RejectionRoute() error = %v", err)
			}
			if rejected != tt.rejected || queue != tt.queue {
				t.Errorf("RejectionRoute() = (%v, %v), want (%v, %v)", rejected, queue, tt.rejected, tt.queue)
			}
		})
	}

	_, _, err := RejectionRoute(WorkflowFP3Layer, StateInDraw, RouteDefault)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("RejectionRoute() from IN_DRAW error = %v, want %v", err, ErrInvalidState)
	}
}

func TestRole_Privileges(t *testing.T) {
	if !RoleChecker.CanHold() || !RoleCEO.CanHold() {
		t.Error("checker and ceo should be allowed to hold")
	}
	if RoleDrawer.CanHold() {
		t.Error("drawer should not be allowed to hold")
	}
	if !RoleDirector.IsManager() || RoleQA.IsManager() {
		t.Error("IsManager() mismatch")
	}
	if !RoleDirector.IsOrgWide() || !RoleCEO.IsOrgWide() || RoleOperationsManager.IsOrgWide() || RoleDrawer.IsOrgWide() {
		t.Error("IsOrgWide() mismatch")
	}
	if !RoleDesigner.IsProduction() || RoleOperationsManager.IsProduction() {
		t.Error("IsProduction() mismatch")
	}
	if StageCheck.Role() != RoleChecker {
		t.Errorf("StageCheck.Role() = %v, want %v", StageCheck.Role(), RoleChecker)
	}
}
