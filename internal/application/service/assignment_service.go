package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/order-workflow/internal/application/dispatcher"
	"github.com/garyjia/order-workflow/internal/application/port"
	appwf "github.com/garyjia/order-workflow/internal/application/workflow"
	"github.com/garyjia/order-workflow/internal/domain/entity"
	"github.com/garyjia/order-workflow/internal/domain/event"
	"github.com/garyjia/order-workflow/internal/domain/workflow"
	"github.com/garyjia/order-workflow/pkg/utils"
)

// MinRejectionReasonLength is the shortest accepted rejection reason
const MinRejectionReasonLength = 5

// AssignmentService moves orders between queues and workers
type AssignmentService interface {
	// StartNext claims the next order of the worker's queue. A nil order with a nil
	// error means there is nothing to hand out (empty queue, no queue for the role,
	// or the worker is at the WIP cap). Losing a claim race is ErrConcurrencyConflict.
	StartNext(ctx context.Context, workerID int64) (*entity.Order, error)

	// SubmitWork completes the worker's stage and advances the order
	SubmitWork(ctx context.Context, orderID, workerID int64, comments string) (*entity.Order, error)

	// RejectOrder sends an IN_CHECK or IN_QA order back for rework
	RejectOrder(ctx context.Context, orderID, actorID int64, reason, code string, routeTo workflow.RouteTarget) (*entity.Order, error)

	// ReassignFromUser returns every IN_* order of the user to its queue and
	// reports how many were reclaimed
	ReassignFromUser(ctx context.Context, userID, actorID int64) (int, error)

	// FindBestUser returns the least-loaded online user of the role, or nil
	FindBestUser(ctx context.Context, projectID int64, role workflow.Role) (*entity.User, error)

	// Heartbeat records user activity
	Heartbeat(ctx context.Context, userID int64) error
}

type assignmentServiceImpl struct {
	orderRepo    port.OrderRepository
	workItemRepo port.WorkItemRepository
	userRepo     port.UserRepository
	projectRepo  port.ProjectRepository
	stateMachine appwf.StateMachineService
	txManager    port.TransactionManager
	dispatcher   dispatcher.Dispatcher
	logger       Logger
	ledger       *ledger
	settings
}

// NewAssignmentService creates a new AssignmentService
func NewAssignmentService(
	orderRepo port.OrderRepository,
	workItemRepo port.WorkItemRepository,
	userRepo port.UserRepository,
	projectRepo port.ProjectRepository,
	stateMachine appwf.StateMachineService,
	txManager port.TransactionManager,
	eventDispatcher dispatcher.Dispatcher,
	logger Logger,
	opts ...Option,
) AssignmentService {
	return &assignmentServiceImpl{
		orderRepo:    orderRepo,
		workItemRepo: workItemRepo,
		userRepo:     userRepo,
		projectRepo:  projectRepo,
		stateMachine: stateMachine,
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

// StartNext claims the next order of the worker's queue
func (s *assignmentServiceImpl) StartNext(ctx context.Context, workerID int64) (*entity.Order, error) {
	var claimed *entity.Order

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		worker, err := s.userRepo.GetByID(txCtx, workerID)
		if err != nil {
			return fmt.Errorf("get worker: %w", err)
		}
		if worker == nil {
			return notFound("user", workerID)
		}
		if worker.ProjectID == nil || !worker.IsAvailable() {
			return nil
		}

		project, err := s.projectRepo.GetByID(txCtx, *worker.ProjectID)
		if err != nil {
			return fmt.Errorf("get project: %w", err)
		}
		if project == nil {
			return notFound("project", *worker.ProjectID)
		}

		queue, ok := workflow.QueueStateForRole(project.WorkflowType, worker.Role)
		if !ok {
			return nil
		}
		stage, _ := workflow.StageOf(queue)
		inProgress := workflow.InProgressState(stage)

		// WIP must be read inside the same write transaction as the claim
		wip, err := s.orderRepo.CountAssigned(txCtx, worker.ID, inProgress)
		if err != nil {
			return fmt.Errorf("count wip: %w", err)
		}
		if wip >= project.EffectiveWIPCap() {
			s.logger.Info("Worker at WIP cap", "user_id", worker.ID, "wip", wip, "cap", project.EffectiveWIPCap())
			return nil
		}

		order, err := s.orderRepo.NextQueued(txCtx, project.ID, queue)
		if err != nil {
			return fmt.Errorf("select next order: %w", err)
		}
		if order == nil {
			return nil
		}

		ok, err = s.orderRepo.Claim(txCtx, order.ID, queue, worker.ID, worker.TeamID)
		if err != nil {
			return fmt.Errorf("claim order: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: order %d was claimed by another worker", workflow.ErrConcurrencyConflict, order.ID)
		}
		order.AssignedTo = &worker.ID
		order.TeamID = worker.TeamID

		if err := s.stateMachine.Transition(txCtx, order, inProgress, worker.ID, nil); err != nil {
			return err
		}

		item := entity.NewWorkItem(order, stage, worker.ID, worker.TeamID, s.now())
		if err := s.workItemRepo.Create(txCtx, item); err != nil {
			return fmt.Errorf("open work item: %w", err)
		}

		if err := s.userRepo.AdjustWIP(txCtx, worker.ID, 1); err != nil {
			return fmt.Errorf("increment wip: %w", err)
		}

		claimed = order
		return nil
	})
	if err != nil {
		if !errors.Is(err, workflow.ErrConcurrencyConflict) {
			s.logger.Error("Failed to start next order", "user_id", workerID, "error", err)
		}
		return nil, err
	}
	if claimed == nil {
		return nil, nil
	}

	s.logger.Info("Order assigned", "order_id", claimed.ID, "user_id", workerID, "state", claimed.WorkflowState.String())
	publish(ctx, s.dispatcher, orderEvent(event.TypeOrderAssigned, claimed, workerID, map[string]interface{}{
		event.PayloadRecipientID: workerID,
	}))

	return claimed, nil
}

// SubmitWork completes the worker's stage and advances the order
func (s *assignmentServiceImpl) SubmitWork(ctx context.Context, orderID, workerID int64, comments string) (*entity.Order, error) {
	comments = utils.SanitizeString(comments)

	var order *entity.Order
	var from workflow.State

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orderRepo.GetByID(txCtx, orderID)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if order == nil {
			return notFound("order", orderID)
		}

		stage, err := stageOf(order)
		if err != nil {
			return err
		}
		submitted, ok := workflow.SubmittedState(order.WorkflowState)
		if !ok {
			return fmt.Errorf("%w: %s cannot be submitted", workflow.ErrInvalidState, order.WorkflowState)
		}
		if !order.IsAssignedTo(workerID) {
			return fmt.Errorf("%w: order %d is not assigned to user %d", workflow.ErrForbidden, orderID, workerID)
		}
		if _, err := loadMember(txCtx, s.userRepo, workerID, order.ProjectID); err != nil {
			return err
		}
		from = order.WorkflowState

		now := s.now()
		if err := s.ledger.completeOpen(txCtx, order.ID, stage, func(item *entity.WorkItem) {
			item.Complete(comments, now)
		}); err != nil {
			return err
		}

		if err := s.stateMachine.Transition(txCtx, order, submitted, workerID, nil); err != nil {
			return err
		}
		if next, ok := workflow.NextQueueState(order.WorkflowType, submitted); ok {
			if err := s.stateMachine.Transition(txCtx, order, next, workerID, nil); err != nil {
				return err
			}
		}

		if err := s.userRepo.AdjustWIP(txCtx, workerID, -1); err != nil {
			return fmt.Errorf("decrement wip: %w", err)
		}
		if err := s.userRepo.IncrementCompleted(txCtx, workerID); err != nil {
			return fmt.Errorf("increment completed: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to submit work", "order_id", orderID, "user_id", workerID, "error", err)
		return nil, err
	}

	s.logger.Info("Work submitted", "order_id", orderID, "user_id", workerID, "from", from.String(), "to", order.WorkflowState.String())

	events := []*event.Event{orderEvent(event.TypeWorkSubmitted, order, workerID, map[string]interface{}{
		event.PayloadFromState: from.String(),
	})}
	if order.WorkflowState == workflow.StateDelivered {
		events = append(events, orderEvent(event.TypeOrderDelivered, order, workerID, nil))
	}
	publish(ctx, s.dispatcher, events...)

	return order, nil
}

// RejectOrder sends an IN_CHECK or IN_QA order back for rework
func (s *assignmentServiceImpl) RejectOrder(ctx context.Context, orderID, actorID int64, reason, code string, routeTo workflow.RouteTarget) (*entity.Order, error) {
	reason = utils.SanitizeString(reason)
	if err := utils.ValidateMinLength("reason", reason, MinRejectionReasonLength); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}
	if !entity.IsValidRejectionCode(code) {
		return nil, validationError("unknown rejection code %q", code)
	}
	if !routeTo.IsValid() {
		return nil, validationError("unknown route %q", routeTo)
	}

	var (
		order     *entity.Order
		from      workflow.State
		recipient int64
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orderRepo.GetByID(txCtx, orderID)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if order == nil {
			return notFound("order", orderID)
		}

		rejected, queue, err := workflow.RejectionRoute(order.WorkflowType, order.WorkflowState, routeTo)
		if err != nil {
			return err
		}
		if !order.IsAssignedTo(actorID) {
			return fmt.Errorf("%w: order %d is not assigned to user %d", workflow.ErrForbidden, orderID, actorID)
		}
		if _, err := loadMember(txCtx, s.userRepo, actorID, order.ProjectID); err != nil {
			return err
		}
		stage, err := stageOf(order)
		if err != nil {
			return err
		}
		from = order.WorkflowState

		now := s.now()
		if err := s.ledger.completeOpen(txCtx, order.ID, stage, func(item *entity.WorkItem) {
			item.CompleteWithRejection(reason, code, now)
		}); err != nil {
			return err
		}

		order.StampRejection(actorID, reason, code, now)
		meta := map[string]interface{}{
			entity.MetaRejectionReason: reason,
			entity.MetaRejectionCode:   code,
		}
		if err := s.stateMachine.Transition(txCtx, order, rejected, actorID, meta); err != nil {
			return err
		}
		if err := s.stateMachine.Transition(txCtx, order, queue, actorID, nil); err != nil {
			return err
		}

		if err := s.userRepo.AdjustWIP(txCtx, actorID, -1); err != nil {
			return fmt.Errorf("decrement wip: %w", err)
		}
		if err := s.userRepo.IncrementCompleted(txCtx, actorID); err != nil {
			return fmt.Errorf("increment completed: %w", err)
		}

		recipient, err = s.lastWorkerOf(txCtx, order.ID, queue)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to reject order", "order_id", orderID, "actor_id", actorID, "error", err)
		return nil, err
	}

	s.logger.Info("Order rejected", "order_id", orderID, "actor_id", actorID, "code", code, "to", order.WorkflowState.String())

	payload := map[string]interface{}{
		event.PayloadFromState: from.String(),
		event.PayloadReason:    reason,
		event.PayloadCode:      code,
	}
	if recipient != 0 {
		payload[event.PayloadRecipientID] = recipient
	}
	publish(ctx, s.dispatcher, orderEvent(event.TypeOrderRejected, order, actorID, payload))

	return order, nil
}

// lastWorkerOf returns who last worked the stage of the queue an order went back to
func (s *assignmentServiceImpl) lastWorkerOf(ctx context.Context, orderID int64, queue workflow.State) (int64, error) {
	stage, ok := workflow.StageOf(queue)
	if !ok {
		return 0, nil
	}
	items, err := s.workItemRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("list work items: %w", err)
	}
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Stage == stage {
			return items[i].AssignedUserID, nil
		}
	}
	return 0, nil
}

// ReassignFromUser returns every IN_* order of the user to its queue
func (s *assignmentServiceImpl) ReassignFromUser(ctx context.Context, userID, actorID int64) (int, error) {
	action := entity.AuditActionAdminReassign
	if actorID == 0 {
		action = entity.AuditActionAutoReassigned
	}

	var reclaimed []*entity.Order

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		user, err := s.userRepo.GetByID(txCtx, userID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if user == nil {
			return notFound("user", userID)
		}
		if actorID != 0 {
			if _, err := loadMember(txCtx, s.userRepo, actorID, projectOf(user)); err != nil {
				return err
			}
		}

		orders, err := s.orderRepo.ListAssignedInProgress(txCtx, userID)
		if err != nil {
			return fmt.Errorf("list assigned orders: %w", err)
		}

		now := s.now()
		meta := map[string]interface{}{entity.MetaReason: "reassigned from user"}
		for _, order := range orders {
			if _, err := s.ledger.reclaim(txCtx, order, actorID, action, meta, now); err != nil {
				return err
			}
			reclaimed = append(reclaimed, order)
		}

		// Zero regardless of drift
		return s.userRepo.SetWIP(txCtx, userID, 0)
	})
	if err != nil {
		s.logger.Error("Failed to reassign orders from user", "user_id", userID, "actor_id", actorID, "error", err)
		return 0, err
	}

	s.logger.Info("Orders reclaimed from user", "user_id", userID, "actor_id", actorID, "count", len(reclaimed))

	events := make([]*event.Event, 0, len(reclaimed))
	for _, order := range reclaimed {
		events = append(events, orderEvent(event.TypeOrderReclaimed, order, actorID, map[string]interface{}{
			event.PayloadRecipientID: userID,
		}))
	}
	publish(ctx, s.dispatcher, events...)

	return len(reclaimed), nil
}

// FindBestUser returns the least-loaded online user of the role
func (s *assignmentServiceImpl) FindBestUser(ctx context.Context, projectID int64, role workflow.Role) (*entity.User, error) {
	if !role.IsProduction() {
		return nil, validationError("%q is not a production role", role)
	}
	since := s.now().Add(-s.heartbeatWindow)
	user, err := s.userRepo.FindBest(ctx, projectID, role, since)
	if err != nil {
		return nil, fmt.Errorf("find best user: %w", err)
	}
	return user, nil
}

// Heartbeat records user activity
func (s *assignmentServiceImpl) Heartbeat(ctx context.Context, userID int64) error {
	if err := s.userRepo.Touch(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}
