package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/order-workflow/internal/application/dispatcher"
	"github.com/garyjia/order-workflow/internal/application/port"
	"github.com/garyjia/order-workflow/internal/domain/entity"
	"github.com/garyjia/order-workflow/internal/domain/event"
)

// DefaultInactivityDays is how long a user may go unseen before being flagged absent
const DefaultInactivityDays = 15

// SweepResult summarizes one inactivity sweep
type SweepResult struct {
	Skipped   bool    `json:"skipped"`
	Flagged   []int64 `json:"flagged_user_ids"`
	Reclaimed int     `json:"reclaimed_orders"`
}

// SweepService flags inactive users and frees their work
type SweepService interface {
	// FlagInactive marks users unseen for inactivityDays as absent and reclaims
	// their IN_* orders. It is skipped when another process holds the sweep lock.
	FlagInactive(ctx context.Context, inactivityDays int) (*SweepResult, error)

	// ResetDailyCounters zeroes every user's today_completed
	ResetDailyCounters(ctx context.Context) (int64, error)
}

type sweepServiceImpl struct {
	userRepo   port.UserRepository
	assignment AssignmentService
	audit      port.AuditSink
	txManager  port.TransactionManager
	lock       port.ProcessLock
	dispatcher dispatcher.Dispatcher
	logger     Logger
	settings
}

// NewSweepService creates a new SweepService. lock may be nil for single-process use.
func NewSweepService(
	userRepo port.UserRepository,
	assignment AssignmentService,
	audit port.AuditSink,
	txManager port.TransactionManager,
	lock port.ProcessLock,
	eventDispatcher dispatcher.Dispatcher,
	logger Logger,
	opts ...Option,
) SweepService {
	return &sweepServiceImpl{
		userRepo:   userRepo,
		assignment: assignment,
		audit:      audit,
		txManager:  txManager,
		lock:       lock,
		dispatcher: eventDispatcher,
		logger:     logger,
		settings:   newSettings(opts),
	}
}

// FlagInactive runs one inactivity sweep
func (s *sweepServiceImpl) FlagInactive(ctx context.Context, inactivityDays int) (*SweepResult, error) {
	if inactivityDays <= 0 {
		inactivityDays = DefaultInactivityDays
	}

	if s.lock != nil {
		locked, err := s.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !locked {
			s.logger.Info("Inactivity sweep already running elsewhere, skipping")
			return &SweepResult{Skipped: true}, nil
		}
		defer func() {
			if err := s.lock.Unlock(); err != nil {
				s.logger.Error("Failed to release sweep lock", "error", err)
			}
		}()
	}

	now := s.now()
	cutoff := now.AddDate(0, 0, -inactivityDays)

	users, err := s.userRepo.ListInactive(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list inactive users: %w", err)
	}

	result := &SweepResult{}
	for _, user := range users {
		days := inactiveDays(user, now, inactivityDays)

		// A failed reclaim leaves the user unflagged so the next sweep retries
		var reclaimed int
		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.userRepo.MarkAbsent(txCtx, user.ID, days); err != nil {
				return err
			}
			s.recordAudit(txCtx, &entity.AuditRecord{
				Action:     entity.AuditActionUserFlaggedInactive,
				EntityType: entity.AuditEntityUser,
				EntityID:   user.ID,
				ProjectID:  user.ProjectID,
				Before:     map[string]interface{}{"is_absent": false},
				After:      map[string]interface{}{"is_absent": true, "inactive_days": days},
				CreatedAt:  now,
			})

			n, err := s.assignment.ReassignFromUser(txCtx, user.ID, 0)
			if err != nil {
				return fmt.Errorf("reclaim orders: %w", err)
			}
			reclaimed = n
			return nil
		})
		if err != nil {
			s.logger.Error("Failed to flag inactive user", "user_id", user.ID, "error", err)
			continue
		}

		result.Flagged = append(result.Flagged, user.ID)
		result.Reclaimed += reclaimed

		s.logger.Info("User flagged inactive", "user_id", user.ID, "inactive_days", days, "reclaimed", reclaimed)

		evt := event.NewEvent(event.TypeUserFlaggedInactive, 0, projectOf(user), user.ID, map[string]interface{}{
			event.PayloadRecipientID:  user.ID,
			event.PayloadInactiveDays: days,
			event.PayloadReclaimCount: reclaimed,
		})
		publish(ctx, s.dispatcher, evt)
	}

	return result, nil
}

// ResetDailyCounters zeroes today_completed for every user
func (s *sweepServiceImpl) ResetDailyCounters(ctx context.Context) (int64, error) {
	n, err := s.userRepo.ResetDailyCounters(ctx)
	if err != nil {
		s.logger.Error("Failed to reset daily counters", "error", err)
		return 0, fmt.Errorf("reset daily counters: %w", err)
	}
	s.recordAudit(ctx, &entity.AuditRecord{
		Action:     entity.AuditActionDailyCountersCleared,
		EntityType: entity.AuditEntityUser,
		After:      map[string]interface{}{"users_reset": n},
		CreatedAt:  s.now(),
	})
	s.logger.Info("Daily counters reset", "users", n)
	return n, nil
}

func (s *sweepServiceImpl) recordAudit(ctx context.Context, record *entity.AuditRecord) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, record); err != nil {
		s.logger.Error("Failed to record audit entry", "action", record.Action, "entity_id", record.EntityID, "error", err)
	}
}

// inactiveDays counts whole days since the user's last activity
func inactiveDays(user *entity.User, now time.Time, fallback int) int {
	if user.LastActivity == nil {
		return fallback
	}
	return int(now.Sub(*user.LastActivity).Hours() / 24)
}

func projectOf(user *entity.User) int64 {
	if user.ProjectID == nil {
		return 0
	}
	return *user.ProjectID
}
