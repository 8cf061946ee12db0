package port

import (
	"context"
	"time"

	"github.com/garyjia/order-workflow/internal/domain/entity"
	"github.com/garyjia/order-workflow/internal/domain/workflow"
)

// OrderRepository defines persistence operations for Order
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	GetByClientReference(ctx context.Context, projectID int64, clientReference string) (*entity.Order, error)

	// Update writes every mutable column of the order
	Update(ctx context.Context, order *entity.Order) error

	// NextQueued returns the highest-priority, oldest unassigned order in the queue state
	NextQueued(ctx context.Context, projectID int64, queue workflow.State) (*entity.Order, error)

	// Claim assigns the order to userID if it is still unassigned in the queue state.
	// It returns false when another claimant got there first.
	Claim(ctx context.Context, orderID int64, queue workflow.State, userID int64, teamID *int64) (bool, error)

	// CountAssigned counts orders assigned to userID in the given state
	CountAssigned(ctx context.Context, userID int64, state workflow.State) (int, error)

	// ListAssignedInProgress returns every IN_* order assigned to userID
	ListAssignedInProgress(ctx context.Context, userID int64) ([]*entity.Order, error)

	// StateSummary returns per-state counts and the oldest received_at for a project
	StateSummary(ctx context.Context, projectID int64) ([]StateCount, error)

	// CountOverdue counts non-terminal orders whose due date is before now
	CountOverdue(ctx context.Context, projectID int64, now time.Time) (int, error)
}

// StateCount is one row of a queue health summary
type StateCount struct {
	State          workflow.State `json:"state"`
	Count          int            `json:"count"`
	OldestReceived *time.Time     `json:"oldest_received_at,omitempty"`
}

// WorkItemRepository defines persistence operations for WorkItem
type WorkItemRepository interface {
	Create(ctx context.Context, item *entity.WorkItem) error
	Update(ctx context.Context, item *entity.WorkItem) error

	// GetOpen returns the in_progress WorkItem for (order, stage), or nil
	GetOpen(ctx context.Context, orderID int64, stage workflow.Stage) (*entity.WorkItem, error)

	ListByOrder(ctx context.Context, orderID int64) ([]*entity.WorkItem, error)

	// ListByProject returns WorkItems assigned within [from, to)
	ListByProject(ctx context.Context, projectID int64, from, to time.Time) ([]*entity.WorkItem, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	ListByProject(ctx context.Context, projectID int64) ([]*entity.User, error)

	// AdjustWIP adds delta to wip_count, never going below zero
	AdjustWIP(ctx context.Context, id int64, delta int) error
	SetWIP(ctx context.Context, id int64, wip int) error
	IncrementCompleted(ctx context.Context, id int64) error
	ResetDailyCounters(ctx context.Context) (int64, error)

	// Touch stamps last_activity
	Touch(ctx context.Context, id int64, at time.Time) error

	// FindBest returns the least-loaded available user of role seen since `since`
	FindBest(ctx context.Context, projectID int64, role workflow.Role, since time.Time) (*entity.User, error)

	// ListInactive returns active, non-absent users last seen before cutoff (or never)
	ListInactive(ctx context.Context, cutoff time.Time) ([]*entity.User, error)
	MarkAbsent(ctx context.Context, id int64, inactiveDays int) error
}

// ProjectRepository defines persistence operations for Project
type ProjectRepository interface {
	Create(ctx context.Context, project *entity.Project) error
	GetByID(ctx context.Context, id int64) (*entity.Project, error)
	List(ctx context.Context) ([]*entity.Project, error)
}

// AuditRepository defines persistence operations for AuditRecord
type AuditRepository interface {
	Create(ctx context.Context, record *entity.AuditRecord) error
	ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.AuditRecord, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
