package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/order-workflow/internal/application/dispatcher"
	"github.com/garyjia/order-workflow/internal/application/port"
	appwf "github.com/garyjia/order-workflow/internal/application/workflow"
	"github.com/garyjia/order-workflow/internal/domain/entity"
	"github.com/garyjia/order-workflow/internal/domain/event"
	"github.com/garyjia/order-workflow/internal/domain/workflow"
	"github.com/garyjia/order-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/order-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/order-workflow/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// recordingDispatcher captures published events synchronously
type recordingDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (d *recordingDispatcher) Subscribe(event.Type, dispatcher.Handler)               {}
func (d *recordingDispatcher) SubscribeNamed(event.Type, string, dispatcher.Handler)  {}
func (d *recordingDispatcher) SubscribeMany([]event.Type, string, dispatcher.Handler) {}
func (d *recordingDispatcher) ListHandlers(event.Type) []dispatcher.HandlerInfo       { return nil }
func (d *recordingDispatcher) Stats() dispatcher.Stats                                { return dispatcher.Stats{} }
func (d *recordingDispatcher) Close() error                                           { return nil }
func (d *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error   { d.record(evt); return nil }
func (d *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event)    { d.record(evt) }

func (d *recordingDispatcher) record(evt *event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
}

// ofType returns the captured events of one type in publish order
func (d *recordingDispatcher) ofType(typ event.Type) []*event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*event.Event
	for _, evt := range d.events {
		if evt.Type == typ {
			out = append(out, evt)
		}
	}
	return out
}

// harness wires every service over a real migrated SQLite database
type harness struct {
	t       *testing.T
	ctx     context.Context
	now     time.Time
	project *entity.Project
	other   *entity.Project

	orders    port.OrderRepository
	workItems port.WorkItemRepository
	users     port.UserRepository
	projects  port.ProjectRepository
	auditRepo port.AuditRepository

	tx     port.TransactionManager
	events *recordingDispatcher

	assignment AssignmentService
	orderSvc   OrderService
	workSvc    WorkItemService
	audit      AuditService
}

func newHarness(t *testing.T, wt workflow.WorkflowType, wipCap int) *harness {
	t.Helper()

	db := testutil.NewDB(t)
	logger := zap.NewNop()
	h := &harness{
		t:         t,
		ctx:       context.Background(),
		now:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		orders:    repository.NewOrderRepository(db.DB, logger),
		workItems: repository.NewWorkItemRepository(db.DB, logger),
		users:     repository.NewUserRepository(db.DB, logger),
		projects:  repository.NewProjectRepository(db.DB, logger),
		auditRepo: repository.NewAuditRepository(db.DB, logger),
		events:    &recordingDispatcher{},
	}
	h.project = testutil.SeedProject(t, h.projects, "P"+string(wt)[:2], wt, wipCap)

	clock := WithClock(h.clock)
	txManager := sqlite.NewDB(db.DB, logger)
	h.tx = txManager
	h.audit = NewAuditService(h.auditRepo, &mockLogger{}, clock)
	machine := appwf.NewStateMachineService(h.orders, h.audit, &mockLogger{}, appwf.WithClock(h.clock))

	h.assignment = NewAssignmentService(h.orders, h.workItems, h.users, h.projects, machine, txManager, h.events, &mockLogger{}, clock)
	h.orderSvc = NewOrderService(h.orders, h.workItems, h.users, h.projects, machine, h.audit, txManager, h.events, &mockLogger{}, clock)
	h.workSvc = NewWorkItemService(h.orders, h.workItems, txManager, &mockLogger{}, clock)
	return h
}

func (h *harness) clock() time.Time {
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func (h *harness) user(name string, role workflow.Role) *entity.User {
	return testutil.SeedUser(h.t, h.users, name, role, h.project.ID)
}

// outsider seeds a user in a second project of the same workflow type
func (h *harness) outsider(name string, role workflow.Role) *entity.User {
	h.t.Helper()
	if h.other == nil {
		h.other = testutil.SeedProject(h.t, h.projects, "OTHER", h.project.WorkflowType, 1)
	}
	return testutil.SeedUser(h.t, h.users, name, role, h.other.ID)
}

func (h *harness) receive(ref string, priority entity.Priority) *entity.Order {
	h.t.Helper()
	order, err := h.orderSvc.Receive(h.ctx, ReceiveRequest{ProjectID: h.project.ID, ClientReference: ref, Priority: priority}, 0)
	require.NoError(h.t, err)
	return order
}

func (h *harness) reload(orderID int64) *entity.Order {
	h.t.Helper()
	order, err := h.orders.GetByID(h.ctx, orderID)
	require.NoError(h.t, err)
	require.NotNil(h.t, order)
	return order
}

func (h *harness) reloadUser(userID int64) *entity.User {
	h.t.Helper()
	u, err := h.users.GetByID(h.ctx, userID)
	require.NoError(h.t, err)
	require.NotNil(h.t, u)
	return u
}

func (h *harness) startNext(worker *entity.User) *entity.Order {
	h.t.Helper()
	order, err := h.assignment.StartNext(h.ctx, worker.ID)
	require.NoError(h.t, err)
	require.NotNil(h.t, order, "expected %s to get an order", worker.Name)
	return order
}

func (h *harness) submit(order *entity.Order, worker *entity.User) *entity.Order {
	h.t.Helper()
	updated, err := h.assignment.SubmitWork(h.ctx, order.ID, worker.ID, "done")
	require.NoError(h.t, err)
	return updated
}

// openItems counts the in_progress WorkItems of an order
func (h *harness) openItems(orderID int64) int {
	h.t.Helper()
	items, err := h.workItems.ListByOrder(h.ctx, orderID)
	require.NoError(h.t, err)
	n := 0
	for _, item := range items {
		if item.IsOpen() {
			n++
		}
	}
	return n
}

// requireConsistent checks the ledger invariants for a set of orders and users:
// assignment iff IN_*, exactly one open WorkItem per IN_* order, and every
// wip_count equal to the number of IN_* orders assigned to that user.
func (h *harness) requireConsistent(orderIDs []int64, users []*entity.User) {
	h.t.Helper()

	assigned := map[int64]int{}
	for _, id := range orderIDs {
		order := h.reload(id)
		if order.WorkflowState.IsInProgress() {
			require.NotNil(h.t, order.AssignedTo, "order %d in %s has no assignee", id, order.WorkflowState)
			require.Equal(h.t, 1, h.openItems(id), "order %d in %s", id, order.WorkflowState)
			assigned[*order.AssignedTo]++
		} else {
			require.Nil(h.t, order.AssignedTo, "order %d in %s keeps an assignee", id, order.WorkflowState)
			require.Equal(h.t, 0, h.openItems(id), "order %d in %s", id, order.WorkflowState)
		}
	}
	for _, u := range users {
		require.Equal(h.t, assigned[u.ID], h.reloadUser(u.ID).WIPCount, "wip_count of %s", u.Name)
	}
}
