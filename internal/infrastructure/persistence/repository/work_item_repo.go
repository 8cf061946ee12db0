package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/order-workflow/internal/application/port"
	"github.com/garyjia/order-workflow/internal/domain/entity"
	"github.com/garyjia/order-workflow/internal/domain/workflow"
	"github.com/garyjia/order-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const workItemColumns = `
	id, order_id, project_id, stage, assigned_user_id, team_id, status,
	assigned_at, started_at, completed_at, time_spent_seconds, last_timer_start,
	comments, rework_reason, rejection_code, attempt_number,
	created_at, updated_at`

// WorkItemRepository implements port.WorkItemRepository
type WorkItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkItemRepository creates a new work item repository
func NewWorkItemRepository(db *sql.DB, logger *zap.Logger) port.WorkItemRepository {
	return &WorkItemRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a WorkItem. A second open item for the same (order, stage)
// violates idx_work_items_open and fails.
func (r *WorkItemRepository) Create(ctx context.Context, item *entity.WorkItem) error {
	query := `
		INSERT INTO work_items (
			order_id, project_id, stage, assigned_user_id, team_id, status,
			assigned_at, started_at, completed_at, time_spent_seconds, last_timer_start,
			comments, rework_reason, rejection_code, attempt_number,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		item.OrderID,
		item.ProjectID,
		item.Stage,
		item.AssignedUserID,
		nullInt64(item.TeamID),
		item.Status,
		item.AssignedAt.UTC(),
		nullTime(item.StartedAt),
		nullTime(item.CompletedAt),
		item.TimeSpentSeconds,
		nullTime(item.LastTimerStart),
		nullString(item.Comments),
		nullString(item.ReworkReason),
		nullString(item.RejectionCode),
		item.AttemptNumber,
		item.CreatedAt.UTC(),
		item.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create work item",
			zap.Int64("order_id", item.OrderID),
			zap.String("stage", item.Stage.String()),
			zap.Int64("user_id", item.AssignedUserID),
			zap.Error(err))
		return fmt.Errorf("failed to create work item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	item.ID = id
	return nil
}

// Update writes the mutable columns of a WorkItem
func (r *WorkItemRepository) Update(ctx context.Context, item *entity.WorkItem) error {
	query := `
		UPDATE work_items SET
			status = ?, started_at = ?, completed_at = ?,
			time_spent_seconds = ?, last_timer_start = ?,
			comments = ?, rework_reason = ?, rejection_code = ?,
			updated_at = ?
		WHERE id = ?
	`

	_, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		item.Status,
		nullTime(item.StartedAt),
		nullTime(item.CompletedAt),
		item.TimeSpentSeconds,
		nullTime(item.LastTimerStart),
		nullString(item.Comments),
		nullString(item.ReworkReason),
		nullString(item.RejectionCode),
		item.UpdatedAt.UTC(),
		item.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update work item",
			zap.Int64("id", item.ID),
			zap.String("status", item.Status),
			zap.Error(err))
		return fmt.Errorf("failed to update work item: %w", err)
	}

	return nil
}

// GetOpen returns the in_progress WorkItem for (order, stage), or nil
func (r *WorkItemRepository) GetOpen(ctx context.Context, orderID int64, stage workflow.Stage) (*entity.WorkItem, error) {
	query := `SELECT ` + workItemColumns + `
		FROM work_items
		WHERE order_id = ? AND stage = ? AND status = ?`

	item, err := scanWorkItem(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query,
		orderID, stage, entity.WorkItemStatusInProgress))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get open work item",
			zap.Int64("order_id", orderID),
			zap.String("stage", stage.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get open work item: %w", err)
	}

	return item, nil
}

// ListByOrder returns the order's WorkItems, oldest first
func (r *WorkItemRepository) ListByOrder(ctx context.Context, orderID int64) ([]*entity.WorkItem, error) {
	query := `SELECT ` + workItemColumns + `
		FROM work_items
		WHERE order_id = ?
		ORDER BY assigned_at, id`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to list work items by order",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer rows.Close()

	return scanWorkItems(rows)
}

// ListByProject returns WorkItems assigned within [from, to)
func (r *WorkItemRepository) ListByProject(ctx context.Context, projectID int64, from, to time.Time) ([]*entity.WorkItem, error) {
	query := `SELECT ` + workItemColumns + `
		FROM work_items
		WHERE project_id = ? AND assigned_at >= ? AND assigned_at < ?
		ORDER BY assigned_at, id`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, projectID, from.UTC(), to.UTC())
	if err != nil {
		r.logger.Error("Failed to list work items by project",
			zap.Int64("project_id", projectID),
			zap.Time("from", from),
			zap.Time("to", to),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer rows.Close()

	return scanWorkItems(rows)
}

func scanWorkItems(rows *sql.Rows) ([]*entity.WorkItem, error) {
	var items []*entity.WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// scanWorkItem scans a single work item row
func scanWorkItem(row rowScanner) (*entity.WorkItem, error) {
	var (
		w                                 entity.WorkItem
		teamID                            sql.NullInt64
		startedAt, completedAt, timerFrom sql.NullTime
		comments, rework, code            sql.NullString
	)

	err := row.Scan(
		&w.ID, &w.OrderID, &w.ProjectID, &w.Stage, &w.AssignedUserID, &teamID, &w.Status,
		&w.AssignedAt, &startedAt, &completedAt, &w.TimeSpentSeconds, &timerFrom,
		&comments, &rework, &code, &w.AttemptNumber,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	w.TeamID = int64Ptr(teamID)
	w.StartedAt = timePtr(startedAt)
	w.CompletedAt = timePtr(completedAt)
	w.LastTimerStart = timePtr(timerFrom)
	w.Comments = comments.String
	w.ReworkReason = rework.String
	w.RejectionCode = code.String
	w.AssignedAt = w.AssignedAt.UTC()
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()

	return &w, nil
}

// Verify interface compliance
var _ port.WorkItemRepository = (*WorkItemRepository)(nil)
