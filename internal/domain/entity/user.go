package entity

import (
	"time"

	"github.com/garyjia/order-workflow/internal/domain/workflow"
)

// User is a production worker or a manager
type User struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	Role           workflow.Role `json:"role"`
	ProjectID      *int64        `json:"project_id,omitempty"`
	TeamID         *int64        `json:"team_id,omitempty"`
	WIPCount       int           `json:"wip_count"`
	TodayCompleted int           `json:"today_completed"`
	IsActive       bool          `json:"is_active"`
	IsAbsent       bool          `json:"is_absent"`
	InactiveDays   int           `json:"inactive_days"`
	LastActivity   *time.Time    `json:"last_activity,omitempty"`
	LarkOpenID     string        `json:"lark_open_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// InProject reports whether the user belongs to projectID
func (u *User) InProject(projectID int64) bool {
	return u.ProjectID != nil && *u.ProjectID == projectID
}

// CanAccessProject reports whether the user may act on projectID's orders
func (u *User) CanAccessProject(projectID int64) bool {
	return u.Role.IsOrgWide() || u.InProject(projectID)
}

// IsAvailable reports whether the user can take work right now
func (u *User) IsAvailable() bool {
	return u.IsActive && !u.IsAbsent
}

// Project is a tenant with its own workflow type and WIP cap
type Project struct {
	ID           int64                 `json:"id"`
	Code         string                `json:"code"`
	Name         string                `json:"name"`
	WorkflowType workflow.WorkflowType `json:"workflow_type"`
	WIPCap       int                   `json:"wip_cap"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// DefaultWIPCap is the WIP cap of a project that does not set one
const DefaultWIPCap = 1

// EffectiveWIPCap returns the configured cap, falling back to the default
func (p *Project) EffectiveWIPCap() int {
	if p.WIPCap <= 0 {
		return DefaultWIPCap
	}
	return p.WIPCap
}
