package entity

import (
	"time"

	"github.com/garyjia/order-workflow/internal/domain/workflow"
)

// Order is one production job moving through the pipeline
type Order struct {
	ID              int64                 `json:"id"`
	OrderNumber     string                `json:"order_number"`
	ProjectID       int64                 `json:"project_id"`
	ClientReference string                `json:"client_reference"`
	WorkflowState   workflow.State        `json:"workflow_state"`
	WorkflowType    workflow.WorkflowType `json:"workflow_type"`
	AssignedTo      *int64                `json:"assigned_to,omitempty"`
	TeamID          *int64                `json:"team_id,omitempty"`
	Priority        Priority              `json:"priority"`
	Status          string                `json:"status"`

	AttemptDraw  int `json:"attempt_draw"`
	AttemptCheck int `json:"attempt_check"`
	AttemptQA    int `json:"attempt_qa"`
	RecheckCount int `json:"recheck_count"`

	RejectedBy      *int64     `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	RejectionType   string     `json:"rejection_type,omitempty"`

	IsOnHold     bool           `json:"is_on_hold"`
	HoldReason   string         `json:"hold_reason,omitempty"`
	HoldSetBy    *int64         `json:"hold_set_by,omitempty"`
	PreHoldState workflow.State `json:"pre_hold_state,omitempty"`

	ReceivedAt  time.Time  `json:"received_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsAssignedTo reports whether the order is currently owned by userID
func (o *Order) IsAssignedTo(userID int64) bool {
	return o.AssignedTo != nil && *o.AssignedTo == userID
}

// AttemptFor returns the attempt counter that feeds a stage's WorkItem numbering.
// Design shares the draw counter.
func (o *Order) AttemptFor(stage workflow.Stage) int {
	switch stage {
	case workflow.StageCheck:
		return o.AttemptCheck
	case workflow.StageQA:
		return o.AttemptQA
	default:
		return o.AttemptDraw
	}
}

// Snapshot returns the state and assignment captured in audit records
func (o *Order) Snapshot() map[string]interface{} {
	var assigned interface{}
	if o.AssignedTo != nil {
		assigned = *o.AssignedTo
	}
	return map[string]interface{}{
		"state":       o.WorkflowState.String(),
		"assigned_to": assigned,
	}
}

// ApplyTransition moves the order to state `to` and applies the field side effects
// tied to the target state. It does not validate adjacency.
func (o *Order) ApplyTransition(to workflow.State, actorID int64, meta map[string]interface{}, now time.Time) {
	from := o.WorkflowState
	o.WorkflowState = to
	o.UpdatedAt = now

	if !to.IsInProgress() {
		o.AssignedTo = nil
	}

	switch {
	case to.IsInProgress():
		o.StartedAt = timePtr(now)
		o.Status = OrderStatusInProgress
	case to == workflow.StateDelivered:
		o.DeliveredAt = timePtr(now)
		o.CompletedAt = timePtr(now)
		o.Status = OrderStatusCompleted
	case to == workflow.StateCancelled:
		o.Status = OrderStatusCancelled
	case to.IsQueued(), to.IsSubmitted(), to == workflow.StateReceived, to == workflow.StateApprovedQA:
		o.Status = OrderStatusPending
	}

	if to == workflow.StateOnHold && from != workflow.StateOnHold {
		o.IsOnHold = true
		o.HoldReason = metaString(meta, MetaHoldReason)
		o.HoldSetBy = ActorRef(actorID)
	}
	if from == workflow.StateOnHold && to != workflow.StateOnHold {
		o.IsOnHold = false
		o.HoldReason = ""
		o.HoldSetBy = nil
	}

	switch to {
	case workflow.StateRejectedByCheck:
		o.AttemptCheck++
	case workflow.StateRejectedByQA:
		o.AttemptQA++
	case workflow.StateQueuedDraw, workflow.StateQueuedDesign:
		if from.IsRejected() {
			o.AttemptDraw++
		}
	}
}

// StampRejection records who rejected the order and why
func (o *Order) StampRejection(actorID int64, reason, code string, now time.Time) {
	o.RejectedBy = ActorRef(actorID)
	o.RejectedAt = timePtr(now)
	o.RejectionReason = reason
	o.RejectionType = code
	o.RecheckCount++
}

// ActorRef converts an actor ID to a nullable reference. Zero means the system.
func ActorRef(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func metaString(meta map[string]interface{}, key string) string {
	if meta == nil {
		return ""
	}
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func timePtr(t time.Time) *time.Time {
	return &t
}
