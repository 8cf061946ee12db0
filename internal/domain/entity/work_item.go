package entity

import (
	"time"

	"github.com/garyjia/order-workflow/internal/domain/workflow"
)

// WorkItem is the ledger record of one worker's attempt at one stage of one order
type WorkItem struct {
	ID               int64          `json:"id"`
	OrderID          int64          `json:"order_id"`
	ProjectID        int64          `json:"project_id"`
	Stage            workflow.Stage `json:"stage"`
	AssignedUserID   int64          `json:"assigned_user_id"`
	TeamID           *int64         `json:"team_id,omitempty"`
	Status           string         `json:"status"`
	AssignedAt       time.Time      `json:"assigned_at"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	TimeSpentSeconds int64          `json:"time_spent_seconds"`
	LastTimerStart   *time.Time     `json:"last_timer_start,omitempty"`
	Comments         string         `json:"comments,omitempty"`
	ReworkReason     string         `json:"rework_reason,omitempty"`
	RejectionCode    string         `json:"rejection_code,omitempty"`
	AttemptNumber    int            `json:"attempt_number"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// NewWorkItem opens a WorkItem for the order's current attempt at stage
func NewWorkItem(order *Order, stage workflow.Stage, userID int64, teamID *int64, now time.Time) *WorkItem {
	return &WorkItem{
		OrderID:        order.ID,
		ProjectID:      order.ProjectID,
		Stage:          stage,
		AssignedUserID: userID,
		TeamID:         teamID,
		Status:         WorkItemStatusInProgress,
		AssignedAt:     now,
		StartedAt:      timePtr(now),
		AttemptNumber:  order.AttemptFor(stage) + 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsOpen reports whether the WorkItem is still in progress
func (w *WorkItem) IsOpen() bool {
	return w.Status == WorkItemStatusInProgress
}

// TimerRunning reports whether the time tracker is running
func (w *WorkItem) TimerRunning() bool {
	return w.LastTimerStart != nil
}

// StartTimer starts the time tracker. Starting a running timer is a no-op.
func (w *WorkItem) StartTimer(now time.Time) {
	if w.TimerRunning() {
		return
	}
	w.LastTimerStart = timePtr(now)
	w.UpdatedAt = now
}

// StopTimer folds the elapsed time into the accumulator
func (w *WorkItem) StopTimer(now time.Time) {
	if !w.TimerRunning() {
		return
	}
	if elapsed := now.Sub(*w.LastTimerStart); elapsed > 0 {
		w.TimeSpentSeconds += int64(elapsed / time.Second)
	}
	w.LastTimerStart = nil
	w.UpdatedAt = now
}

// Complete closes the WorkItem as completed
func (w *WorkItem) Complete(comments string, now time.Time) {
	w.StopTimer(now)
	w.Status = WorkItemStatusCompleted
	w.CompletedAt = timePtr(now)
	if comments != "" {
		w.Comments = comments
	}
	w.UpdatedAt = now
}

// CompleteWithRejection closes the WorkItem recording the rework request
func (w *WorkItem) CompleteWithRejection(reason, code string, now time.Time) {
	w.Complete("", now)
	w.ReworkReason = reason
	w.RejectionCode = code
}

// Abandon closes the WorkItem without completing it
func (w *WorkItem) Abandon(now time.Time) {
	w.StopTimer(now)
	w.Status = WorkItemStatusAbandoned
	w.CompletedAt = timePtr(now)
	w.UpdatedAt = now
}
