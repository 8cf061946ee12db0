package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/order-workflow/internal/application/service"
	"github.com/garyjia/order-workflow/internal/domain/entity"
	"github.com/garyjia/order-workflow/internal/domain/workflow"
	"github.com/garyjia/order-workflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *Config {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "db", "workflow.db")
	cfg.Workflow.LockPath = filepath.Join(dir, "locks", "sweep.lock")
	cfg.Export.OutputDir = filepath.Join(dir, "exports")
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Lark.Enabled = true
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err, "lark enabled without credentials")
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, c.Ready())
	assert.Nil(t, c.Services())

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(context.Background()), "second start")

	health := c.Health()
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	assert.Equal(t, "schema version 1", health.Components["database"].Message)
	assert.True(t, health.Components["workers"].Healthy)
	assert.Equal(t, "worker count: 2", health.Components["workers"].Message)
	assert.True(t, health.Components["dispatcher"].Healthy)
	assert.Equal(t, "handlers: 6, dispatched: 0, failed: 0", health.Components["dispatcher"].Message)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "second close")
	assert.Error(t, c.Start(context.Background()), "start after close")
}

func TestContainer_ServesWorkflow(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop(), WithoutWorkers())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	_, hasWorkers := c.Health().Components["workers"]
	assert.False(t, hasWorkers)

	ctx := context.Background()
	repos := c.Repositories()
	project := testutil.SeedProject(t, repos.Project, "FPX", workflow.WorkflowFP3Layer, 1)
	drawer := testutil.SeedUser(t, repos.User, "dana", workflow.RoleDrawer, project.ID)

	svc := c.Services()
	order, err := svc.Order.Receive(ctx, service.ReceiveRequest{ProjectID: project.ID, ClientReference: "FP-C1"}, 0)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateQueuedDraw, order.WorkflowState)

	claimed, err := svc.Assignment.StartNext(ctx, drawer.ID)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, order.ID, claimed.ID)

	result, err := svc.Sweep.FlagInactive(ctx, 15)
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	path, err := svc.Report.ExportLedger(ctx, project.ID, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Contains(t, path, "FPX")

	trail, err := svc.Audit.Trail(ctx, entity.AuditEntityOrder, order.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, trail)
}
