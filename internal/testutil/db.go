// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/order-workflow/internal/domain/entity"
	"github.com/garyjia/order-workflow/internal/domain/workflow"
	"github.com/garyjia/order-workflow/pkg/database"
	"go.uber.org/zap"
)

// NewDB opens a migrated SQLite database in a temp dir that is closed on cleanup
func NewDB(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "workflow.db"),
		MaxOpenConns: 8,
		BusyTimeout:  10 * time.Second,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := database.NewMigrator(db, zap.NewNop()).Run(); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db
}

// projectCreator and userCreator are the repository subsets the seed helpers need
type projectCreator interface {
	Create(ctx context.Context, p *entity.Project) error
}

type userCreator interface {
	Create(ctx context.Context, u *entity.User) error
}

// SeedProject inserts a project of the given workflow type
func SeedProject(t testing.TB, repo projectCreator, code string, wt workflow.WorkflowType, wipCap int) *entity.Project {
	t.Helper()
	now := time.Now().UTC()
	p := &entity.Project{Code: code, Name: code, WorkflowType: wt, WIPCap: wipCap, CreatedAt: now, UpdatedAt: now}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return p
}

// SeedUser inserts an active user seen just now
func SeedUser(t testing.TB, repo userCreator, name string, role workflow.Role, projectID int64) *entity.User {
	t.Helper()
	now := time.Now().UTC()
	u := &entity.User{
		Name:         name,
		Email:        name + "@studio.example",
		Role:         role,
		ProjectID:    &projectID,
		IsActive:     true,
		LastActivity: &now,
		LarkOpenID:   "ou_" + name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// NewQueuedOrder builds an unsaved order sitting in queue
func NewQueuedOrder(projectID int64, wt workflow.WorkflowType, ref string, queue workflow.State, priority entity.Priority, receivedAt time.Time) *entity.Order {
	return &entity.Order{
		OrderNumber:     "ORD-" + ref,
		ProjectID:       projectID,
		ClientReference: ref,
		WorkflowState:   queue,
		WorkflowType:    wt,
		Priority:        priority,
		Status:          entity.OrderStatusPending,
		ReceivedAt:      receivedAt.UTC(),
		CreatedAt:       receivedAt.UTC(),
		UpdatedAt:       receivedAt.UTC(),
	}
}
