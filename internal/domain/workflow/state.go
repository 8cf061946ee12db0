package workflow

import "strings"

// State represents a workflow state of a production order
type State string

const (
	StateReceived        State = "RECEIVED"
	StateQueuedDraw      State = "QUEUED_DRAW"
	StateInDraw          State = "IN_DRAW"
	StateSubmittedDraw   State = "SUBMITTED_DRAW"
	StateQueuedCheck     State = "QUEUED_CHECK"
	StateInCheck         State = "IN_CHECK"
	StateRejectedByCheck State = "REJECTED_BY_CHECK"
	StateSubmittedCheck  State = "SUBMITTED_CHECK"
	StateQueuedDesign    State = "QUEUED_DESIGN"
	StateInDesign        State = "IN_DESIGN"
	StateSubmittedDesign State = "SUBMITTED_DESIGN"
	StateQueuedQA        State = "QUEUED_QA"
	StateInQA            State = "IN_QA"
	StateRejectedByQA    State = "REJECTED_BY_QA"
	StateApprovedQA      State = "APPROVED_QA"
	StateDelivered       State = "DELIVERED"
	StateOnHold          State = "ON_HOLD"
	StateCancelled       State = "CANCELLED"
)

var validStates = map[State]bool{
	StateReceived:        true,
	StateQueuedDraw:      true,
	StateInDraw:          true,
	StateSubmittedDraw:   true,
	StateQueuedCheck:     true,
	StateInCheck:         true,
	StateRejectedByCheck: true,
	StateSubmittedCheck:  true,
	StateQueuedDesign:    true,
	StateInDesign:        true,
	StateSubmittedDesign: true,
	StateQueuedQA:        true,
	StateInQA:            true,
	StateRejectedByQA:    true,
	StateApprovedQA:      true,
	StateDelivered:       true,
	StateOnHold:          true,
	StateCancelled:       true,
}

var terminalStates = map[State]bool{
	StateDelivered: true,
	StateCancelled: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known workflow state
func (s State) IsValid() bool {
	return validStates[s]
}

// IsInProgress reports whether a worker currently owns the order (IN_*)
func (s State) IsInProgress() bool {
	return strings.HasPrefix(string(s), "IN_")
}

// IsQueued reports whether the order waits unowned in a stage queue (QUEUED_*)
func (s State) IsQueued() bool {
	return strings.HasPrefix(string(s), "QUEUED_")
}

// IsSubmitted reports whether the state is a SUBMITTED_* hand-off state
func (s State) IsSubmitted() bool {
	return strings.HasPrefix(string(s), "SUBMITTED_")
}

// IsRejected reports whether the state is a REJECTED_BY_* state
func (s State) IsRejected() bool {
	return strings.HasPrefix(string(s), "REJECTED_")
}

// WorkflowType selects the state set and transition table of a project
type WorkflowType string

const (
	WorkflowFP3Layer WorkflowType = "FP_3_LAYER"
	WorkflowPH2Layer WorkflowType = "PH_2_LAYER"
)

// String returns the string representation of the workflow type
func (t WorkflowType) String() string {
	return string(t)
}

// IsValid returns true for the supported workflow types
func (t WorkflowType) IsValid() bool {
	return t == WorkflowFP3Layer || t == WorkflowPH2Layer
}
