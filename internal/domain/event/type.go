package event

// Type identifies the type of domain event
type Type string

const (
	TypeOrderReceived       Type = "order.received"
	TypeOrderAssigned       Type = "order.assigned"
	TypeWorkSubmitted       Type = "work.submitted"
	TypeOrderDelivered      Type = "order.delivered"
	TypeOrderRejected       Type = "order.rejected"
	TypeOrderOnHold         Type = "order.on_hold"
	TypeOrderResumed        Type = "order.resumed"
	TypeOrderReclaimed      Type = "order.reclaimed"
	TypeUserFlaggedInactive Type = "user.flagged_inactive"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

var allTypes = []Type{
	TypeOrderReceived,
	TypeOrderAssigned,
	TypeWorkSubmitted,
	TypeOrderDelivered,
	TypeOrderRejected,
	TypeOrderOnHold,
	TypeOrderResumed,
	TypeOrderReclaimed,
	TypeUserFlaggedInactive,
}

// Types returns every defined event type
func Types() []Type {
	return append([]Type(nil), allTypes...)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	for _, known := range allTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Payload keys shared by producers and subscribers
const (
	PayloadOrderNumber  = "order_number"
	PayloadState        = "state"
	PayloadFromState    = "from_state"
	PayloadReason       = "reason"
	PayloadCode         = "code"
	PayloadRecipientID  = "recipient_id"
	PayloadReclaimCount = "reclaimed"
	PayloadInactiveDays = "inactive_days"
)
