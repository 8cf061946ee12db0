package entity

import "time"

// AuditRecord is one append-only audit log row
type AuditRecord struct {
	ID         int64                  `json:"id"`
	ActorID    *int64                 `json:"actor_id,omitempty"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   int64                  `json:"entity_id"`
	ProjectID  *int64                 `json:"project_id,omitempty"`
	Before     map[string]interface{} `json:"before,omitempty"`
	After      map[string]interface{} `json:"after,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// NewOrderAudit builds an audit record for an order change
func NewOrderAudit(actorID int64, action string, order *Order, before, after map[string]interface{}) *AuditRecord {
	projectID := order.ProjectID
	return &AuditRecord{
		ActorID:    ActorRef(actorID),
		Action:     action,
		EntityType: AuditEntityOrder,
		EntityID:   order.ID,
		ProjectID:  &projectID,
		Before:     before,
		After:      after,
	}
}
