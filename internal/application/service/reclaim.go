package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/order-workflow/internal/application/port"
	appwf "github.com/garyjia/order-workflow/internal/application/workflow"
	"github.com/garyjia/order-workflow/internal/domain/entity"
	"github.com/garyjia/order-workflow/internal/domain/workflow"
)

// ledger bundles the writes that must move together whenever an order leaves
// its worker: the open WorkItem, the order itself and the worker's WIP counter.
type ledger struct {
	stateMachine appwf.StateMachineService
	workItemRepo port.WorkItemRepository
	userRepo     port.UserRepository
	logger       Logger
}

// abandonOpen closes the open WorkItem of (order, stage) as abandoned, if any
func (l *ledger) abandonOpen(ctx context.Context, orderID int64, stage workflow.Stage, now time.Time) error {
	item, err := l.workItemRepo.GetOpen(ctx, orderID, stage)
	if err != nil {
		return fmt.Errorf("get open work item: %w", err)
	}
	if item == nil {
		l.logger.Error("No open work item for in-progress order", "order_id", orderID, "stage", stage.String())
		return nil
	}
	item.Abandon(now)
	if err := l.workItemRepo.Update(ctx, item); err != nil {
		return fmt.Errorf("abandon work item: %w", err)
	}
	return nil
}

// completeOpen closes the open WorkItem of (order, stage) through fn
func (l *ledger) completeOpen(ctx context.Context, orderID int64, stage workflow.Stage, fn func(*entity.WorkItem)) error {
	item, err := l.workItemRepo.GetOpen(ctx, orderID, stage)
	if err != nil {
		return fmt.Errorf("get open work item: %w", err)
	}
	if item == nil {
		l.logger.Error("No open work item for in-progress order", "order_id", orderID, "stage", stage.String())
		return nil
	}
	fn(item)
	if err := l.workItemRepo.Update(ctx, item); err != nil {
		return fmt.Errorf("close work item: %w", err)
	}
	return nil
}

// reclaim returns an IN_* order to its queue through the administrative override.
// It returns the worker who lost the order.
func (l *ledger) reclaim(ctx context.Context, order *entity.Order, actorID int64, action string, meta map[string]interface{}, now time.Time) (int64, error) {
	stage, err := stageOf(order)
	if err != nil {
		return 0, err
	}
	queue, _ := workflow.ReclaimState(order.WorkflowState)

	var assignee int64
	if order.AssignedTo != nil {
		assignee = *order.AssignedTo
	}

	if err := l.abandonOpen(ctx, order.ID, stage, now); err != nil {
		return 0, err
	}
	if err := l.stateMachine.ForceSet(ctx, order, queue, actorID, action, meta); err != nil {
		return 0, fmt.Errorf("force %s: %w", queue, err)
	}
	if assignee != 0 {
		if err := l.userRepo.AdjustWIP(ctx, assignee, -1); err != nil {
			return 0, fmt.Errorf("release wip: %w", err)
		}
	}
	return assignee, nil
}
