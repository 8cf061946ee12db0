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

const userColumns = `
	id, name, email, role, project_id, team_id, wip_count, today_completed,
	is_active, is_absent, inactive_days, last_activity, lark_open_id,
	created_at, updated_at`

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a user and sets its ID
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (
			name, email, role, project_id, team_id, wip_count, today_completed,
			is_active, is_absent, inactive_days, last_activity, lark_open_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		user.Name,
		user.Email,
		user.Role,
		nullInt64(user.ProjectID),
		nullInt64(user.TeamID),
		user.WIPCount,
		user.TodayCompleted,
		user.IsActive,
		user.IsAbsent,
		user.InactiveDays,
		nullTime(user.LastActivity),
		nullString(user.LarkOpenID),
		user.CreatedAt.UTC(),
		user.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create user",
			zap.String("email", user.Email),
			zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	user.ID = id
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// ListByProject returns every user of a project
func (r *UserRepository) ListByProject(ctx context.Context, projectID int64) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE project_id = ? ORDER BY role, id`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to list users by project",
			zap.Int64("project_id", projectID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// AdjustWIP adds delta to wip_count, clamped at zero
func (r *UserRepository) AdjustWIP(ctx context.Context, id int64, delta int) error {
	query := `UPDATE users SET wip_count = MAX(wip_count + ?, 0), updated_at = ? WHERE id = ?`

	if _, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query, delta, time.Now().UTC(), id); err != nil {
		r.logger.Error("Failed to adjust user WIP",
			zap.Int64("id", id),
			zap.Int("delta", delta),
			zap.Error(err))
		return fmt.Errorf("failed to adjust wip: %w", err)
	}

	return nil
}

// SetWIP overwrites wip_count
func (r *UserRepository) SetWIP(ctx context.Context, id int64, wip int) error {
	if wip < 0 {
		wip = 0
	}
	query := `UPDATE users SET wip_count = ?, updated_at = ? WHERE id = ?`

	if _, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query, wip, time.Now().UTC(), id); err != nil {
		r.logger.Error("Failed to set user WIP",
			zap.Int64("id", id),
			zap.Int("wip", wip),
			zap.Error(err))
		return fmt.Errorf("failed to set wip: %w", err)
	}

	return nil
}

// IncrementCompleted bumps today_completed
func (r *UserRepository) IncrementCompleted(ctx context.Context, id int64) error {
	query := `UPDATE users SET today_completed = today_completed + 1, updated_at = ? WHERE id = ?`

	if _, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		r.logger.Error("Failed to increment completed count",
			zap.Int64("id", id),
			zap.Error(err))
		return fmt.Errorf("failed to increment completed: %w", err)
	}

	return nil
}

// ResetDailyCounters zeroes today_completed for every user and returns the rows touched
func (r *UserRepository) ResetDailyCounters(ctx context.Context) (int64, error) {
	query := `UPDATE users SET today_completed = 0, updated_at = ? WHERE today_completed <> 0`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to reset daily counters", zap.Error(err))
		return 0, fmt.Errorf("failed to reset daily counters: %w", err)
	}

	return result.RowsAffected()
}

// Touch stamps last_activity
func (r *UserRepository) Touch(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE users SET last_activity = ? WHERE id = ?`

	if _, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query, at.UTC(), id); err != nil {
		r.logger.Error("Failed to touch user",
			zap.Int64("id", id),
			zap.Error(err))
		return fmt.Errorf("failed to touch user: %w", err)
	}

	return nil
}

// FindBest returns the least-loaded available user of role seen since `since`.
// Ties break on fewer completions today, then the longest idle.
func (r *UserRepository) FindBest(ctx context.Context, projectID int64, role workflow.Role, since time.Time) (*entity.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE project_id = ? AND role = ? AND is_active = 1 AND is_absent = 0
			AND last_activity IS NOT NULL AND last_activity >= ?
		ORDER BY wip_count ASC, today_completed ASC, last_activity ASC, id ASC
		LIMIT 1`

	user, err := scanUser(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, projectID, role, since.UTC()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find best user",
			zap.Int64("project_id", projectID),
			zap.String("role", role.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find best user: %w", err)
	}

	return user, nil
}

// ListInactive returns active, non-absent users last seen before cutoff (or never)
func (r *UserRepository) ListInactive(ctx context.Context, cutoff time.Time) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE is_active = 1 AND is_absent = 0
			AND (last_activity IS NULL OR last_activity < ?)
		ORDER BY id`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, cutoff.UTC())
	if err != nil {
		r.logger.Error("Failed to list inactive users",
			zap.Time("cutoff", cutoff),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list inactive users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// MarkAbsent flags the user absent with the observed inactivity
func (r *UserRepository) MarkAbsent(ctx context.Context, id int64, inactiveDays int) error {
	query := `UPDATE users SET is_absent = 1, inactive_days = ?, updated_at = ? WHERE id = ?`

	if _, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query, inactiveDays, time.Now().UTC(), id); err != nil {
		r.logger.Error("Failed to mark user absent",
			zap.Int64("id", id),
			zap.Error(err))
		return fmt.Errorf("failed to mark user absent: %w", err)
	}

	return nil
}

func scanUsers(rows *sql.Rows) ([]*entity.User, error) {
	var users []*entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// scanUser scans a single user row
func scanUser(row rowScanner) (*entity.User, error) {
	var (
		u                 entity.User
		projectID, teamID sql.NullInt64
		lastActivity      sql.NullTime
		larkOpenID        sql.NullString
	)

	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Role, &projectID, &teamID, &u.WIPCount, &u.TodayCompleted,
		&u.IsActive, &u.IsAbsent, &u.InactiveDays, &lastActivity, &larkOpenID,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.ProjectID = int64Ptr(projectID)
	u.TeamID = int64Ptr(teamID)
	u.LastActivity = timePtr(lastActivity)
	u.LarkOpenID = larkOpenID.String
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()

	return &u, nil
}

// Verify interface compliance
var _ port.UserRepository = (*UserRepository)(nil)
