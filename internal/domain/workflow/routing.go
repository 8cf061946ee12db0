package workflow

import "fmt"

// RouteTarget is the caller's hint for where a QA rejection sends the order
type RouteTarget string

const (
	RouteDefault RouteTarget = ""
	RouteDraw    RouteTarget = "draw"
	RouteCheck   RouteTarget = "check"
	RouteDesign  RouteTarget = "design"
)

// IsValid reports whether the route hint is one of the accepted values
func (r RouteTarget) IsValid() bool {
	switch r {
	case RouteDefault, RouteDraw, RouteCheck, RouteDesign:
		return true
	default:
		return false
	}
}

var queueStates = map[Stage]State{
	StageDraw:   StateQueuedDraw,
	StageCheck:  StateQueuedCheck,
	StageDesign: StateQueuedDesign,
	StageQA:     StateQueuedQA,
}

var inProgressStates = map[Stage]State{
	StageDraw:   StateInDraw,
	StageCheck:  StateInCheck,
	StageDesign: StateInDesign,
	StageQA:     StateInQA,
}

var submittedStates = map[State]State{
	StateInDraw:   StateSubmittedDraw,
	StateInCheck:  StateSubmittedCheck,
	StateInDesign: StateSubmittedDesign,
	StateInQA:     StateApprovedQA,
}

var nextQueue = map[WorkflowType]map[State]State{
	WorkflowFP3Layer: {
		StateSubmittedDraw:  StateQueuedCheck,
		StateSubmittedCheck: StateQueuedQA,
		StateApprovedQA:     StateDelivered,
	},
	WorkflowPH2Layer: {
		StateSubmittedDesign: StateQueuedQA,
		StateApprovedQA:      StateDelivered,
	},
}

// QueueState returns the QUEUED_* state of a stage
func QueueState(stage Stage) State {
	return queueStates[stage]
}

// InProgressState returns the IN_* state of a stage
func InProgressState(stage Stage) State {
	return inProgressStates[stage]
}

// QueueStateForRole resolves the queue a production role pulls from.
// It returns false when the role has no stage in the workflow type.
func QueueStateForRole(workflowType WorkflowType, role Role) (State, bool) {
	stage, ok := role.Stage()
	if !ok || !HasStage(workflowType, stage) {
		return "", false
	}
	return QueueState(stage), true
}

// SubmittedState returns the hand-off state reached by submitting an IN_* state
func SubmittedState(inProgress State) (State, bool) {
	s, ok := submittedStates[inProgress]
	return s, ok
}

// NextQueueState returns the state an order auto-advances to after submission
func NextQueueState(workflowType WorkflowType, submitted State) (State, bool) {
	s, ok := nextQueue[workflowType][submitted]
	return s, ok
}

// FirstQueueState returns the entry queue of a workflow type
func FirstQueueState(workflowType WorkflowType) State {
	if workflowType == WorkflowPH2Layer {
		return StateQueuedDesign
	}
	return StateQueuedDraw
}

// ReclaimState returns the queue an IN_* order goes back to when its worker loses it
func ReclaimState(inProgress State) (State, bool) {
	stage, ok := StageOf(inProgress)
	if !ok || !inProgress.IsInProgress() {
		return "", false
	}
	return QueueState(stage), true
}

// ResumeState returns the queue an order re-enters when released from hold.
// IN_X resumes into QUEUED_X, QUEUED_X stays put, anything else restarts at the first queue.
func ResumeState(workflowType WorkflowType, preHold State) State {
	if preHold.IsInProgress() {
		if q, ok := ReclaimState(preHold); ok {
			return q
		}
	}
	if preHold.IsQueued() {
		if stage, ok := StageOf(preHold); ok && HasStage(workflowType, stage) {
			return preHold
		}
	}
	return FirstQueueState(workflowType)
}

// RejectionRoute returns the REJECTED_BY_* state and the queue a rejection routes to.
// Check rejections always return to drawing. QA rejections return to design on 2-layer
// projects, otherwise to check unless the caller asks for draw.
func RejectionRoute(workflowType WorkflowType, from State, routeTo RouteTarget) (rejected State, queue State, err error) {
	switch from {
	case StateInCheck:
		return StateRejectedByCheck, StateQueuedDraw, nil
	case StateInQA:
		if workflowType == WorkflowPH2Layer {
			return StateRejectedByQA, StateQueuedDesign, nil
		}
		if routeTo == RouteDraw {
			return StateRejectedByQA, StateQueuedDraw, nil
		}
		return StateRejectedByQA, StateQueuedCheck, nil
	default:
		return "", "", fmt.Errorf("%w: cannot reject from %s", ErrInvalidState, from)
	}
}
