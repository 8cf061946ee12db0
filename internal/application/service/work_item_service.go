package service

import (
	"context"
	"fmt"

	"github.com/garyjia/order-workflow/internal/application/port"
	"github.com/garyjia/order-workflow/internal/domain/entity"
	"github.com/garyjia/order-workflow/internal/domain/workflow"
)

// WorkItemService exposes the per-stage time tracker and the ledger history
type WorkItemService interface {
	StartTimer(ctx context.Context, orderID, workerID int64) (*entity.WorkItem, error)
	StopTimer(ctx context.Context, orderID, workerID int64) (*entity.WorkItem, error)
	History(ctx context.Context, orderID int64) ([]*entity.WorkItem, error)
}

type workItemServiceImpl struct {
	orderRepo    port.OrderRepository
	workItemRepo port.WorkItemRepository
	txManager    port.TransactionManager
	logger       Logger
	settings
}

// NewWorkItemService creates a new WorkItemService
func NewWorkItemService(
	orderRepo port.OrderRepository,
	workItemRepo port.WorkItemRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...Option,
) WorkItemService {
	return &workItemServiceImpl{
		orderRepo:    orderRepo,
		workItemRepo: workItemRepo,
		txManager:    txManager,
		logger:       logger,
		settings:     newSettings(opts),
	}
}

// StartTimer starts the worker's timer on the order's open WorkItem
func (s *workItemServiceImpl) StartTimer(ctx context.Context, orderID, workerID int64) (*entity.WorkItem, error) {
	return s.withOpenItem(ctx, orderID, workerID, func(item *entity.WorkItem) {
		item.StartTimer(s.now())
	})
}

// StopTimer folds the elapsed time into the open WorkItem
func (s *workItemServiceImpl) StopTimer(ctx context.Context, orderID, workerID int64) (*entity.WorkItem, error) {
	return s.withOpenItem(ctx, orderID, workerID, func(item *entity.WorkItem) {
		item.StopTimer(s.now())
	})
}

func (s *workItemServiceImpl) withOpenItem(ctx context.Context, orderID, workerID int64, fn func(*entity.WorkItem)) (*entity.WorkItem, error) {
	var item *entity.WorkItem

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		order, err := s.orderRepo.GetByID(txCtx, orderID)
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
		if !order.IsAssignedTo(workerID) {
			return fmt.Errorf("%w: order %d is not assigned to user %d", workflow.ErrForbidden, orderID, workerID)
		}

		item, err = s.workItemRepo.GetOpen(txCtx, orderID, stage)
		if err != nil {
			return fmt.Errorf("get open work item: %w", err)
		}
		if item == nil {
			return fmt.Errorf("%w: no open work item for order %d", workflow.ErrNotFound, orderID)
		}

		fn(item)
		return s.workItemRepo.Update(txCtx, item)
	})
	if err != nil {
		s.logger.Error("Failed to update work item timer", "order_id", orderID, "user_id", workerID, "error", err)
		return nil, err
	}
	return item, nil
}

// History lists every WorkItem of the order, oldest first
func (s *workItemServiceImpl) History(ctx context.Context, orderID int64) ([]*entity.WorkItem, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, notFound("order", orderID)
	}
	items, err := s.workItemRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	return items, nil
}
