package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	OrderID       int64                  `json:"order_id,omitempty"`
	ProjectID     int64                  `json:"project_id,omitempty"`
	UserID        int64                  `json:"user_id,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, orderID, projectID, userID int64, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, orderID, projectID, userID, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to a correlation chain
func NewEventWithCorrelation(eventType Type, orderID, projectID, userID int64, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		OrderID:       orderID,
		ProjectID:     projectID,
		UserID:        userID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// Correlate stamps every event with the correlation ID of the first one.
// Events published by one operation share a chain.
func Correlate(events ...*Event) {
	if len(events) < 2 {
		return
	}
	id := events[0].CorrelationID
	for _, e := range events[1:] {
		e.CorrelationID = id
	}
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}
