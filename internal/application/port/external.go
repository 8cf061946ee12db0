package port

import (
	"context"

	"github.com/garyjia/order-workflow/internal/domain/entity"
)

// MessageSender delivers a plain text notification to a user address
type MessageSender interface {
	SendText(ctx context.Context, openID string, text string) error
}

// AuditSink records audit entries. Callers treat failures as non-fatal.
type AuditSink interface {
	Record(ctx context.Context, record *entity.AuditRecord) error
}
