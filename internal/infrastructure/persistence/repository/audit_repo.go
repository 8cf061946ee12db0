package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/order-workflow/internal/application/port"
	"github.com/garyjia/order-workflow/internal/domain/entity"
	"github.com/garyjia/order-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// AuditRepository implements port.AuditRepository over the append-only audit_logs table
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit record
func (r *AuditRepository) Create(ctx context.Context, record *entity.AuditRecord) error {
	before, err := marshalSnapshot(record.Before)
	if err != nil {
		return fmt.Errorf("failed to marshal before snapshot: %w", err)
	}
	after, err := marshalSnapshot(record.After)
	if err != nil {
		return fmt.Errorf("failed to marshal after snapshot: %w", err)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, project_id, before_json, after_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		nullInt64(record.ActorID),
		record.Action,
		record.EntityType,
		record.EntityID,
		nullInt64(record.ProjectID),
		before,
		after,
		record.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create audit record",
			zap.String("action", record.Action),
			zap.String("entity_type", record.EntityType),
			zap.Int64("entity_id", record.EntityID),
			zap.Error(err))
		return fmt.Errorf("failed to create audit record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// ListByEntity returns the audit trail of one entity, oldest first
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.AuditRecord, error) {
	query := `
		SELECT id, actor_id, action, entity_type, entity_id, project_id, before_json, after_json, created_at
		FROM audit_logs
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY id
	`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		r.logger.Error("Failed to list audit records",
			zap.String("entity_type", entityType),
			zap.Int64("entity_id", entityID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	var records []*entity.AuditRecord
	for rows.Next() {
		var (
			rec                   entity.AuditRecord
			actorID, projectID    sql.NullInt64
			beforeJSON, afterJSON sql.NullString
		)
		if err := rows.Scan(&rec.ID, &actorID, &rec.Action, &rec.EntityType, &rec.EntityID,
			&projectID, &beforeJSON, &afterJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.ActorID = int64Ptr(actorID)
		rec.ProjectID = int64Ptr(projectID)
		if rec.Before, err = unmarshalSnapshot(beforeJSON); err != nil {
			return nil, err
		}
		if rec.After, err = unmarshalSnapshot(afterJSON); err != nil {
			return nil, err
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		records = append(records, &rec)
	}

	return records, rows.Err()
}

func marshalSnapshot(m map[string]interface{}) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalSnapshot(s sql.NullString) (map[string]interface{}, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit snapshot: %w", err)
	}
	return m, nil
}

// Verify interface compliance
var _ port.AuditRepository = (*AuditRepository)(nil)
