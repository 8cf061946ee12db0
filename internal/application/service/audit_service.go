package service

import (
	"context"
	"fmt"

	"github.com/garyjia/order-workflow/internal/application/port"
	"github.com/garyjia/order-workflow/internal/domain/entity"
)

// AuditService is the audit sink backed by the audit_logs table
type AuditService interface {
	port.AuditSink

	// Trail returns the audit entries of an entity, oldest first
	Trail(ctx context.Context, entityType string, entityID int64) ([]*entity.AuditRecord, error)
}

type auditServiceImpl struct {
	auditRepo port.AuditRepository
	logger    Logger
	settings
}

// NewAuditService creates a new AuditService
func NewAuditService(auditRepo port.AuditRepository, logger Logger, opts ...Option) AuditService {
	return &auditServiceImpl{
		auditRepo: auditRepo,
		logger:    logger,
		settings:  newSettings(opts),
	}
}

// Record appends an audit entry. It joins the caller's transaction when there is one.
func (s *auditServiceImpl) Record(ctx context.Context, record *entity.AuditRecord) error {
	if record == nil {
		return nil
	}
	if record.Action == "" || record.EntityType == "" {
		return validationError("audit record needs an action and an entity type")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	if err := s.auditRepo.Create(ctx, record); err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

// Trail returns the audit entries of an entity
func (s *auditServiceImpl) Trail(ctx context.Context, entityType string, entityID int64) ([]*entity.AuditRecord, error) {
	records, err := s.auditRepo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		s.logger.Error("Failed to load audit trail", "entity_type", entityType, "entity_id", entityID, "error", err)
		return nil, fmt.Errorf("load audit trail: %w", err)
	}
	return records, nil
}
