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

const orderColumns = `
	id, order_number, project_id, client_reference, workflow_state, workflow_type,
	assigned_to, team_id, priority, status,
	attempt_draw, attempt_check, attempt_qa, recheck_count,
	rejected_by, rejected_at, rejection_reason, rejection_type,
	is_on_hold, hold_reason, hold_set_by, pre_hold_state,
	received_at, started_at, completed_at, delivered_at, due_date,
	created_at, updated_at`

// priorityRank orders the queue urgent → high → normal → low, unknown values last
const priorityRank = `CASE priority
	WHEN 'urgent' THEN 1 WHEN 'high' THEN 2 WHEN 'normal' THEN 3 WHEN 'low' THEN 4
	ELSE 5 END`

// OrderRepository implements port.OrderRepository
type OrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB, logger *zap.Logger) port.OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new order and sets its ID
func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	query := `
		INSERT INTO orders (
			order_number, project_id, client_reference, workflow_state, workflow_type,
			assigned_to, team_id, priority, status,
			attempt_draw, attempt_check, attempt_qa, recheck_count,
			rejected_by, rejected_at, rejection_reason, rejection_type,
			is_on_hold, hold_reason, hold_set_by, pre_hold_state,
			received_at, started_at, completed_at, delivered_at, due_date,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		order.OrderNumber,
		order.ProjectID,
		order.ClientReference,
		order.WorkflowState,
		order.WorkflowType,
		nullInt64(order.AssignedTo),
		nullInt64(order.TeamID),
		order.Priority,
		order.Status,
		order.AttemptDraw,
		order.AttemptCheck,
		order.AttemptQA,
		order.RecheckCount,
		nullInt64(order.RejectedBy),
		nullTime(order.RejectedAt),
		nullString(order.RejectionReason),
		nullString(order.RejectionType),
		order.IsOnHold,
		nullString(order.HoldReason),
		nullInt64(order.HoldSetBy),
		nullString(string(order.PreHoldState)),
		order.ReceivedAt.UTC(),
		nullTime(order.StartedAt),
		nullTime(order.CompletedAt),
		nullTime(order.DeliveredAt),
		nullTime(order.DueDate),
		order.CreatedAt.UTC(),
		order.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create order",
			zap.String("order_number", order.OrderNumber),
			zap.Int64("project_id", order.ProjectID),
			zap.Error(err))
		return fmt.Errorf("failed to create order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	order.ID = id
	return nil
}

// GetByID retrieves an order by ID
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	order, err := scanOrder(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get order by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

// GetByClientReference retrieves an order by its per-project external reference
func (r *OrderRepository) GetByClientReference(ctx context.Context, projectID int64, clientReference string) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE project_id = ? AND client_reference = ?`

	order, err := scanOrder(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, projectID, clientReference))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get order by client reference",
			zap.Int64("project_id", projectID),
			zap.String("client_reference", clientReference),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

// Update writes every mutable column of the order
func (r *OrderRepository) Update(ctx context.Context, order *entity.Order) error {
	query := `
		UPDATE orders SET
			workflow_state = ?, assigned_to = ?, team_id = ?, priority = ?, status = ?,
			attempt_draw = ?, attempt_check = ?, attempt_qa = ?, recheck_count = ?,
			rejected_by = ?, rejected_at = ?, rejection_reason = ?, rejection_type = ?,
			is_on_hold = ?, hold_reason = ?, hold_set_by = ?, pre_hold_state = ?,
			started_at = ?, completed_at = ?, delivered_at = ?, due_date = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		order.WorkflowState,
		nullInt64(order.AssignedTo),
		nullInt64(order.TeamID),
		order.Priority,
		order.Status,
		order.AttemptDraw,
		order.AttemptCheck,
		order.AttemptQA,
		order.RecheckCount,
		nullInt64(order.RejectedBy),
		nullTime(order.RejectedAt),
		nullString(order.RejectionReason),
		nullString(order.RejectionType),
		order.IsOnHold,
		nullString(order.HoldReason),
		nullInt64(order.HoldSetBy),
		nullString(string(order.PreHoldState)),
		nullTime(order.StartedAt),
		nullTime(order.CompletedAt),
		nullTime(order.DeliveredAt),
		nullTime(order.DueDate),
		order.UpdatedAt.UTC(),
		order.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update order",
			zap.Int64("id", order.ID),
			zap.String("state", order.WorkflowState.String()),
			zap.Error(err))
		return fmt.Errorf("failed to update order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("order %d: %w", order.ID, workflow.ErrNotFound)
	}

	return nil
}

// NextQueued returns the highest-priority, oldest unassigned order in the queue state
func (r *OrderRepository) NextQueued(ctx context.Context, projectID int64, queue workflow.State) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE project_id = ? AND workflow_state = ? AND assigned_to IS NULL
		ORDER BY ` + priorityRank + `, received_at ASC, id ASC
		LIMIT 1`

	order, err := scanOrder(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, projectID, queue))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to select next queued order",
			zap.Int64("project_id", projectID),
			zap.String("queue", queue.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to select next queued order: %w", err)
	}

	return order, nil
}

// Claim assigns the order to userID only if it is still unassigned in the queue state
func (r *OrderRepository) Claim(ctx context.Context, orderID int64, queue workflow.State, userID int64, teamID *int64) (bool, error) {
	query := `
		UPDATE orders SET assigned_to = ?, team_id = ?, updated_at = ?
		WHERE id = ? AND assigned_to IS NULL AND workflow_state = ?
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		userID, nullInt64(teamID), time.Now().UTC(), orderID, queue)
	if err != nil {
		r.logger.Error("Failed to claim order",
			zap.Int64("order_id", orderID),
			zap.Int64("user_id", userID),
			zap.Error(err))
		return false, fmt.Errorf("failed to claim order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// CountAssigned counts orders assigned to userID in the given state
func (r *OrderRepository) CountAssigned(ctx context.Context, userID int64, state workflow.State) (int, error) {
	query := `SELECT COUNT(*) FROM orders WHERE assigned_to = ? AND workflow_state = ?`

	var count int
	if err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, userID, state).Scan(&count); err != nil {
		r.logger.Error("Failed to count assigned orders",
			zap.Int64("user_id", userID),
			zap.String("state", state.String()),
			zap.Error(err))
		return 0, fmt.Errorf("failed to count assigned orders: %w", err)
	}

	return count, nil
}

// ListAssignedInProgress returns every IN_* order assigned to userID
func (r *OrderRepository) ListAssignedInProgress(ctx context.Context, userID int64) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE assigned_to = ? AND workflow_state LIKE 'IN\_%' ESCAPE '\'
		ORDER BY id`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list in-progress orders",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list in-progress orders: %w", err)
	}
	defer rows.Close()

	var orders []*entity.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// StateSummary returns per-state counts and the oldest received_at for a project
func (r *OrderRepository) StateSummary(ctx context.Context, projectID int64) ([]port.StateCount, error) {
	query := `
		SELECT workflow_state, COUNT(*), MIN(received_at)
		FROM orders
		WHERE project_id = ?
		GROUP BY workflow_state
	`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to summarize order states",
			zap.Int64("project_id", projectID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to summarize order states: %w", err)
	}
	defer rows.Close()

	var summary []port.StateCount
	for rows.Next() {
		var (
			sc     port.StateCount
			oldest sql.NullString
		)
		if err := rows.Scan(&sc.State, &sc.Count, &oldest); err != nil {
			return nil, fmt.Errorf("failed to scan state count: %w", err)
		}
		// Aggregates lose the column's declared type, so the driver hands back text
		if oldest.Valid {
			if t, err := parseTimestamp(oldest.String); err == nil {
				sc.OldestReceived = &t
			}
		}
		summary = append(summary, sc)
	}

	return summary, rows.Err()
}

// CountOverdue counts non-terminal orders whose due date is before now
func (r *OrderRepository) CountOverdue(ctx context.Context, projectID int64, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM orders
		WHERE project_id = ? AND due_date IS NOT NULL AND due_date < ?
			AND workflow_state NOT IN (?, ?)
	`

	var count int
	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query,
		projectID, now.UTC(), workflow.StateDelivered, workflow.StateCancelled).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count overdue orders",
			zap.Int64("project_id", projectID),
			zap.Error(err))
		return 0, fmt.Errorf("failed to count overdue orders: %w", err)
	}

	return count, nil
}

// scanOrder scans a single order row
func scanOrder(row rowScanner) (*entity.Order, error) {
	var (
		o                                      entity.Order
		assignedTo, teamID, rejectedBy, holdBy sql.NullInt64
		rejectionReason, rejectionType         sql.NullString
		holdReason, preHoldState               sql.NullString
		rejectedAt, startedAt, completedAt     sql.NullTime
		deliveredAt, dueDate                   sql.NullTime
	)

	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.ProjectID, &o.ClientReference, &o.WorkflowState, &o.WorkflowType,
		&assignedTo, &teamID, &o.Priority, &o.Status,
		&o.AttemptDraw, &o.AttemptCheck, &o.AttemptQA, &o.RecheckCount,
		&rejectedBy, &rejectedAt, &rejectionReason, &rejectionType,
		&o.IsOnHold, &holdReason, &holdBy, &preHoldState,
		&o.ReceivedAt, &startedAt, &completedAt, &deliveredAt, &dueDate,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.AssignedTo = int64Ptr(assignedTo)
	o.TeamID = int64Ptr(teamID)
	o.RejectedBy = int64Ptr(rejectedBy)
	o.RejectedAt = timePtr(rejectedAt)
	o.RejectionReason = rejectionReason.String
	o.RejectionType = rejectionType.String
	o.HoldReason = holdReason.String
	o.HoldSetBy = int64Ptr(holdBy)
	o.PreHoldState = workflow.State(preHoldState.String)
	o.StartedAt = timePtr(startedAt)
	o.CompletedAt = timePtr(completedAt)
	o.DeliveredAt = timePtr(deliveredAt)
	o.DueDate = timePtr(dueDate)
	o.ReceivedAt = o.ReceivedAt.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()

	return &o, nil
}

// timestampFormats are the layouts go-sqlite3 writes time.Time values in
var timestampFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Verify interface compliance
var _ port.OrderRepository = (*OrderRepository)(nil)
