package entity

// Priority is the queue priority of an order
type Priority string

// Priority constants, ranked urgent first
const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

var priorityRanks = map[Priority]int{
	PriorityUrgent: 1,
	PriorityHigh:   2,
	PriorityNormal: 3,
	PriorityLow:    4,
}

// UnrankedPriority is the rank of any unknown priority value
const UnrankedPriority = 5

// Rank returns the ordinal used for queue ordering (lower runs first)
func (p Priority) Rank() int {
	if r, ok := priorityRanks[p]; ok {
		return r
	}
	return UnrankedPriority
}

// IsValid returns true for the four known priorities
func (p Priority) IsValid() bool {
	_, ok := priorityRanks[p]
	return ok
}

// Order status constants, derived from the workflow state category
const (
	OrderStatusPending    = "pending"
	OrderStatusInProgress = "in-progress"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// WorkItem status constants
const (
	WorkItemStatusInProgress = "in_progress"
	WorkItemStatusCompleted  = "completed"
	WorkItemStatusAbandoned  = "abandoned"
)

// Rejection codes accepted by RejectOrder
const (
	RejectionQuality     = "quality"
	RejectionIncomplete  = "incomplete"
	RejectionWrongSpecs  = "wrong_specs"
	RejectionRework      = "rework"
	RejectionFormatting  = "formatting"
	RejectionMissingInfo = "missing_info"
)

var rejectionCodes = map[string]bool{
	RejectionQuality:     true,
	RejectionIncomplete:  true,
	RejectionWrongSpecs:  true,
	RejectionRework:      true,
	RejectionFormatting:  true,
	RejectionMissingInfo: true,
}

// IsValidRejectionCode reports whether code is a known rejection code
func IsValidRejectionCode(code string) bool {
	return rejectionCodes[code]
}

// Audit action constants
const (
	AuditActionStateChange          = "STATE_CHANGE"
	AuditActionAdminReassign        = "admin_reassign"
	AuditActionReleasedToQueue      = "released_to_queue"
	AuditActionAutoReassigned       = "ORDER_AUTO_REASSIGNED"
	AuditActionUserFlaggedInactive  = "USER_FLAGGED_INACTIVE"
	AuditActionOrderReceived        = "ORDER_RECEIVED"
	AuditActionDailyCountersCleared = "DAILY_COUNTERS_RESET"
)

// Audit entity type constants
const (
	AuditEntityOrder   = "Order"
	AuditEntityUser    = "User"
	AuditEntityProject = "Project"
)

// Meta keys understood by the order transition side effects
const (
	MetaHoldReason      = "hold_reason"
	MetaRejectionReason = "rejection_reason"
	MetaRejectionCode   = "rejection_code"
	MetaResumedFromHold = "resumed_from_hold"
	MetaReason          = "reason"
)
