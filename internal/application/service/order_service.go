package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/order-workflow/internal/application/dispatcher"
	"github.com/garyjia/order-workflow/internal/application/port"
	appwf "github.com/garyjia/order-workflow/internal/application/workflow"
	"github.com/garyjia/order-workflow/internal/domain/entity"
	"github.com/garyjia/order-workflow/internal/domain/event"
	"github.com/garyjia/order-workflow/internal/domain/workflow"
	"github.com/garyjia/order-workflow/pkg/utils"
	"github.com/google/uuid"
)

// MinHoldReasonLength is the shortest accepted hold reason
const MinHoldReasonLength = 3

// ReceiveRequest describes an incoming order
type ReceiveRequest struct {
	ProjectID       int64           `json:"project_id"`
	ClientReference string          `json:"client_reference"`
	Priority        entity.Priority `json:"priority"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
}

// OrderService manages the order lifecycle around the assignment engine
type OrderService interface {
	// Receive creates an order and queues it for the first stage
	Receive(ctx context.Context, req ReceiveRequest, actorID int64) (*entity.Order, error)

	// Hold parks an order. An IN_* order loses its worker.
	Hold(ctx context.Context, orderID, actorID int64, reason string) (*entity.Order, error)

	// Resume returns a held order to the queue it was taken from
	Resume(ctx context.Context, orderID, actorID int64) (*entity.Order, error)

	// Release lets a worker hand their own IN_* order back to the queue
	Release(ctx context.Context, orderID, workerID int64) (*entity.Order, error)

	// Reassign moves an IN_* order to another worker, or back to the queue when targetID is nil
	Reassign(ctx context.Context, orderID, managerID int64, targetID *int64, reason string) (*entity.Order, error)

	// Cancel ends an order
	Cancel(ctx context.Context, orderID, managerID int64, reason string) (*entity.Order, error)

	// Get returns an order by ID
	Get(ctx context.Context, orderID int64) (*entity.Order, error)
}

type orderServiceImpl struct {
	orderRepo    port.OrderRepository
	workItemRepo port.WorkItemRepository
	userRepo     port.UserRepository
	projectRepo  port.ProjectRepository
	stateMachine appwf.StateMachineService
	audit        port.AuditSink
	txManager    port.TransactionManager
	dispatcher   dispatcher.Dispatcher
	logger       Logger
	ledger       *ledger
	settings
}

// NewOrderService creates a new OrderService
func NewOrderService(
	orderRepo port.OrderRepository,
	workItemRepo port.WorkItemRepository,
	userRepo port.UserRepository,
	projectRepo port.ProjectRepository,
	stateMachine appwf.StateMachineService,
	audit port.AuditSink,
	txManager port.TransactionManager,
	eventDispatcher dispatcher.Dispatcher,
	logger Logger,
	opts ...Option,
) OrderService {
	return &orderServiceImpl{
		orderRepo:    orderRepo,
		workItemRepo: workItemRepo,
		userRepo:     userRepo,
		projectRepo:  projectRepo,
		stateMachine: stateMachine,
		audit:        audit,
		txManager:    txManager,
		dispatcher:   eventDispatcher,
		logger:       logger,
		ledger: &ledger{
			stateMachine: stateMachine,
			workItemRepo: workItemRepo,
			userRepo:     userRepo,
			logger:       logger,
		},
		settings: newSettings(opts),
	}
}

// Receive creates an order in RECEIVED and advances it to the first queue
func (s *orderServiceImpl) Receive(ctx context.Context, req ReceiveRequest, actorID int64) (*entity.Order, error) {
	req.ClientReference = strings.TrimSpace(req.ClientReference)
	if err := utils.ValidateClientReference(req.ClientReference); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}
	if req.Priority == "" {
		req.Priority = entity.PriorityNormal
	}
	if !req.Priority.IsValid() {
		return nil, validationError("unknown priority %q", req.Priority)
	}

	var order *entity.Order

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		project, err := s.projectRepo.GetByID(txCtx, req.ProjectID)
		if err != nil {
			return fmt.Errorf("get project: %w", err)
		}
		if project == nil {
			return notFound("project", req.ProjectID)
		}
		if actorID != 0 {
			if _, err := loadMember(txCtx, s.userRepo, actorID, project.ID); err != nil {
				return err
			}
		}

		existing, err := s.orderRepo.GetByClientReference(txCtx, project.ID, req.ClientReference)
		if err != nil {
			return fmt.Errorf("check client reference: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("%w: client reference %q already received as order %d",
				workflow.ErrDuplicate, req.ClientReference, existing.ID)
		}

		now := s.now()
		order = &entity.Order{
			OrderNumber:     newOrderNumber(),
			ProjectID:       project.ID,
			ClientReference: req.ClientReference,
			WorkflowState:   workflow.StateReceived,
			WorkflowType:    project.WorkflowType,
			Priority:        req.Priority,
			Status:          entity.OrderStatusPending,
			ReceivedAt:      now,
			DueDate:         req.DueDate,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.orderRepo.Create(txCtx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		s.recordAudit(txCtx, entity.NewOrderAudit(actorID, entity.AuditActionOrderReceived, order, nil, order.Snapshot()))

		return s.stateMachine.Transition(txCtx, order, workflow.FirstQueueState(project.WorkflowType), actorID, nil)
	})
	if err != nil {
		s.logger.Error("Failed to receive order", "project_id", req.ProjectID, "client_reference", req.ClientReference, "error", err)
		return nil, err
	}

	s.logger.Info("Order received", "order_id", order.ID, "order_number", order.OrderNumber, "state", order.WorkflowState.String())
	publish(ctx, s.dispatcher, orderEvent(event.TypeOrderReceived, order, actorID, nil))

	return order, nil
}

// Hold parks an order and remembers where it was
func (s *orderServiceImpl) Hold(ctx context.Context, orderID, actorID int64, reason string) (*entity.Order, error) {
	reason = utils.SanitizeString(reason)
	if err := utils.ValidateMinLength("hold reason", reason, MinHoldReasonLength); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}

	var (
		order    *entity.Order
		assignee int64
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		actor, err := s.requireActor(txCtx, actorID, workflow.Role.CanHold)
		if err != nil {
			return err
		}

		order, err = s.loadOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		if err := requireProject(actor, order.ProjectID); err != nil {
			return err
		}
		if !s.stateMachine.CanTransition(order, workflow.StateOnHold) {
			return fmt.Errorf("%w: %s -> %s", workflow.ErrInvalidTransition, order.WorkflowState, workflow.StateOnHold)
		}

		preHold := order.WorkflowState
		if preHold.IsInProgress() {
			stage, _ := workflow.StageOf(preHold)
			if order.AssignedTo != nil {
				assignee = *order.AssignedTo
			}
			if err := s.ledger.abandonOpen(txCtx, order.ID, stage, s.now()); err != nil {
				return err
			}
			if assignee != 0 {
				if err := s.userRepo.AdjustWIP(txCtx, assignee, -1); err != nil {
					return fmt.Errorf("release wip: %w", err)
				}
			}
		}

		order.PreHoldState = preHold
		return s.stateMachine.Transition(txCtx, order, workflow.StateOnHold, actor.ID, map[string]interface{}{
			entity.MetaHoldReason: reason,
		})
	})
	if err != nil {
		s.logger.Error("Failed to hold order", "order_id", orderID, "actor_id", actorID, "error", err)
		return nil, err
	}

	s.logger.Info("Order put on hold", "order_id", orderID, "actor_id", actorID, "pre_hold_state", order.PreHoldState.String())

	payload := map[string]interface{}{
		event.PayloadFromState: order.PreHoldState.String(),
		event.PayloadReason:    reason,
	}
	if assignee != 0 {
		payload[event.PayloadRecipientID] = assignee
	}
	publish(ctx, s.dispatcher, orderEvent(event.TypeOrderOnHold, order, actorID, payload))

	return order, nil
}

// Resume returns a held order to the queue matching its pre-hold state
func (s *orderServiceImpl) Resume(ctx context.Context, orderID, actorID int64) (*entity.Order, error) {
	var (
		order     *entity.Order
		holdSetBy int64
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		actor, err := s.requireActor(txCtx, actorID, workflow.Role.IsManager)
		if err != nil {
			return err
		}

		order, err = s.loadOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		if err := requireProject(actor, order.ProjectID); err != nil {
			return err
		}
		if order.WorkflowState != workflow.StateOnHold {
			return fmt.Errorf("%w: order %d is %s, not on hold", workflow.ErrInvalidState, order.ID, order.WorkflowState)
		}
		if order.HoldSetBy != nil {
			holdSetBy = *order.HoldSetBy
		}

		target := workflow.ResumeState(order.WorkflowType, order.PreHoldState)
		order.PreHoldState = ""
		return s.stateMachine.Transition(txCtx, order, target, actor.ID, map[string]interface{}{
			entity.MetaResumedFromHold: true,
		})
	})
	if err != nil {
		s.logger.Error("Failed to resume order", "order_id", orderID, "actor_id", actorID, "error", err)
		return nil, err
	}

	s.logger.Info("Order resumed", "order_id", orderID, "actor_id", actorID, "state", order.WorkflowState.String())

	payload := map[string]interface{}{}
	if holdSetBy != 0 && holdSetBy != actorID {
		payload[event.PayloadRecipientID] = holdSetBy
	}
	publish(ctx, s.dispatcher, orderEvent(event.TypeOrderResumed, order, actorID, payload))

	return order, nil
}

// Release hands the worker's own IN_* order back to its queue
func (s *orderServiceImpl) Release(ctx context.Context, orderID, workerID int64) (*entity.Order, error) {
	var order *entity.Order

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.loadOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		if !order.WorkflowState.IsInProgress() {
			return fmt.Errorf("%w: order %d is %s, not in progress", workflow.ErrInvalidState, order.ID, order.WorkflowState)
		}
		if !order.IsAssignedTo(workerID) {
			return fmt.Errorf("%w: order %d is not assigned to user %d", workflow.ErrForbidden, orderID, workerID)
		}
		if _, err := loadMember(txCtx, s.userRepo, workerID, order.ProjectID); err != nil {
			return err
		}

		_, err = s.ledger.reclaim(txCtx, order, workerID, entity.AuditActionReleasedToQueue, nil, s.now())
		return err
	})
	if err != nil {
		s.logger.Error("Failed to release order", "order_id", orderID, "user_id", workerID, "error", err)
		return nil, err
	}

	s.logger.Info("Order released to queue", "order_id", orderID, "user_id", workerID, "state", order.WorkflowState.String())
	return order, nil
}

// Reassign moves an IN_* order to targetID, or back to the queue when targetID is nil
func (s *orderServiceImpl) Reassign(ctx context.Context, orderID, managerID int64, targetID *int64, reason string) (*entity.Order, error) {
	reason = utils.SanitizeString(reason)

	var (
		order    *entity.Order
		previous int64
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		manager, err := s.requireActor(txCtx, managerID, workflow.Role.IsManager)
		if err != nil {
			return err
		}

		order, err = s.loadOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		if err := requireProject(manager, order.ProjectID); err != nil {
			return err
		}
		stage, err := stageOf(order)
		if err != nil {
			return err
		}

		meta := map[string]interface{}{}
		if reason != "" {
			meta[entity.MetaReason] = reason
		}

		if targetID == nil {
			previous, err = s.ledger.reclaim(txCtx, order, manager.ID, entity.AuditActionAdminReassign, meta, s.now())
			return err
		}

		target, err := s.eligibleAssignee(txCtx, order, stage, *targetID)
		if err != nil {
			return err
		}
		if order.IsAssignedTo(target.ID) {
			return validationError("order %d is already assigned to user %d", order.ID, target.ID)
		}
		if order.AssignedTo != nil {
			previous = *order.AssignedTo
		}

		now := s.now()
		if err := s.ledger.abandonOpen(txCtx, order.ID, stage, now); err != nil {
			return err
		}

		before := order.Snapshot()
		updated := *order
		updated.AssignedTo = &target.ID
		updated.TeamID = target.TeamID
		updated.UpdatedAt = now
		if err := s.orderRepo.Update(txCtx, &updated); err != nil {
			return fmt.Errorf("reassign order: %w", err)
		}
		*order = updated

		after := order.Snapshot()
		for k, v := range meta {
			after[k] = v
		}
		s.recordAudit(txCtx, entity.NewOrderAudit(manager.ID, entity.AuditActionAdminReassign, order, before, after))

		if err := s.workItemRepo.Create(txCtx, entity.NewWorkItem(order, stage, target.ID, target.TeamID, now)); err != nil {
			return fmt.Errorf("open work item: %w", err)
		}
		if previous != 0 {
			if err := s.userRepo.AdjustWIP(txCtx, previous, -1); err != nil {
				return fmt.Errorf("release wip: %w", err)
			}
		}
		if err := s.userRepo.AdjustWIP(txCtx, target.ID, 1); err != nil {
			return fmt.Errorf("increment wip: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to reassign order", "order_id", orderID, "manager_id", managerID, "error", err)
		return nil, err
	}

	s.logger.Info("Order reassigned", "order_id", orderID, "manager_id", managerID, "from_user", previous, "state", order.WorkflowState.String())

	var events []*event.Event
	if previous != 0 {
		events = append(events, orderEvent(event.TypeOrderReclaimed, order, managerID, map[string]interface{}{
			event.PayloadRecipientID: previous,
			event.PayloadReason:      reason,
		}))
	}
	if order.AssignedTo != nil {
		events = append(events, orderEvent(event.TypeOrderAssigned, order, managerID, map[string]interface{}{
			event.PayloadRecipientID: *order.AssignedTo,
		}))
	}
	publish(ctx, s.dispatcher, events...)

	return order, nil
}

// eligibleAssignee checks the target can take the order's stage right now
func (s *orderServiceImpl) eligibleAssignee(ctx context.Context, order *entity.Order, stage workflow.Stage, userID int64) (*entity.User, error) {
	target, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get target user: %w", err)
	}
	if target == nil {
		return nil, notFound("user", userID)
	}
	if target.Role != stage.Role() {
		return nil, validationError("user %d is a %s, stage %s needs a %s", target.ID, target.Role, stage, stage.Role())
	}
	if !target.InProject(order.ProjectID) {
		return nil, validationError("user %d is not in project %d", target.ID, order.ProjectID)
	}
	if !target.IsAvailable() {
		return nil, validationError("user %d is not available", target.ID)
	}

	project, err := s.projectRepo.GetByID(ctx, order.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if project == nil {
		return nil, notFound("project", order.ProjectID)
	}
	wip, err := s.orderRepo.CountAssigned(ctx, target.ID, workflow.InProgressState(stage))
	if err != nil {
		return nil, fmt.Errorf("count wip: %w", err)
	}
	if wip >= project.EffectiveWIPCap() {
		return nil, validationError("user %d is at the WIP cap (%d)", target.ID, project.EffectiveWIPCap())
	}
	return target, nil
}

// Cancel ends an order. An IN_* order releases its worker first.
func (s *orderServiceImpl) Cancel(ctx context.Context, orderID, managerID int64, reason string) (*entity.Order, error) {
	reason = utils.SanitizeString(reason)

	var (
		order    *entity.Order
		assignee int64
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		manager, err := s.requireActor(txCtx, managerID, workflow.Role.IsManager)
		if err != nil {
			return err
		}

		order, err = s.loadOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		if err := requireProject(manager, order.ProjectID); err != nil {
			return err
		}
		if !s.stateMachine.CanTransition(order, workflow.StateCancelled) {
			return fmt.Errorf("%w: %s -> %s", workflow.ErrInvalidTransition, order.WorkflowState, workflow.StateCancelled)
		}

		if order.WorkflowState.IsInProgress() {
			stage, _ := workflow.StageOf(order.WorkflowState)
			if order.AssignedTo != nil {
				assignee = *order.AssignedTo
			}
			if err := s.ledger.abandonOpen(txCtx, order.ID, stage, s.now()); err != nil {
				return err
			}
			if assignee != 0 {
				if err := s.userRepo.AdjustWIP(txCtx, assignee, -1); err != nil {
					return fmt.Errorf("release wip: %w", err)
				}
			}
		}

		meta := map[string]interface{}{}
		if reason != "" {
			meta[entity.MetaReason] = reason
		}
		return s.stateMachine.Transition(txCtx, order, workflow.StateCancelled, manager.ID, meta)
	})
	if err != nil {
		s.logger.Error("Failed to cancel order", "order_id", orderID, "manager_id", managerID, "error", err)
		return nil, err
	}

	s.logger.Info("Order cancelled", "order_id", orderID, "manager_id", managerID)
	if assignee != 0 {
		publish(ctx, s.dispatcher, orderEvent(event.TypeOrderReclaimed, order, managerID, map[string]interface{}{
			event.PayloadRecipientID: assignee,
			event.PayloadReason:      reason,
		}))
	}

	return order, nil
}

// Get returns an order by ID
func (s *orderServiceImpl) Get(ctx context.Context, orderID int64) (*entity.Order, error) {
	return s.loadOrder(ctx, orderID)
}

func (s *orderServiceImpl) loadOrder(ctx context.Context, orderID int64) (*entity.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, notFound("order", orderID)
	}
	return order, nil
}

// requireActor loads the actor and checks the role predicate
func (s *orderServiceImpl) requireActor(ctx context.Context, actorID int64, allowed func(workflow.Role) bool) (*entity.User, error) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("get actor: %w", err)
	}
	if actor == nil {
		return nil, notFound("user", actorID)
	}
	if !allowed(actor.Role) {
		return nil, fmt.Errorf("%w: role %s may not perform this action", workflow.ErrForbidden, actor.Role)
	}
	return actor, nil
}

func (s *orderServiceImpl) recordAudit(ctx context.Context, record *entity.AuditRecord) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, record); err != nil {
		s.logger.Error("Failed to record audit entry", "action", record.Action, "entity_id", record.EntityID, "error", err)
	}
}

// newOrderNumber returns a short unique order number
func newOrderNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "ORD-" + id[:12]
}
