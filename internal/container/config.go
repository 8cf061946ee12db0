// Package container provides dependency injection and lifecycle management
// for the order workflow service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Lark API configuration
	Lark LarkConfig

	// Workflow configuration
	Workflow WorkflowConfig

	// Export configuration
	Export ExportConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long a writer waits for the database lock
	BusyTimeout time.Duration
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	// Enabled switches from logged notifications to Lark messages
	Enabled bool

	AppID     string
	AppSecret string

	// BaseURL overrides the open platform endpoint
	BaseURL string

	// APITimeout is the timeout for API calls
	APITimeout time.Duration
}

// WorkflowConfig holds assignment and sweep settings.
type WorkflowConfig struct {
	// HeartbeatWindow is how recently a user must have been seen to count as online
	HeartbeatWindow time.Duration

	// InactivityDays before a user is flagged absent
	InactivityDays int

	// SweepInterval between inactivity sweeps
	SweepInterval time.Duration

	// LockPath is the file lock shared by every sweeping process
	LockPath string

	// NotifyTimeout bounds each async notification handler. Zero disables the bound.
	NotifyTimeout time.Duration
}

// ExportConfig holds report export settings.
type ExportConfig struct {
	// OutputDir is the root for exported workbooks
	OutputDir string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/workflow.db",
			MaxOpenConns:    8,
			MaxIdleConns:    4,
			ConnMaxLifetime: 30 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Lark: LarkConfig{
			APITimeout: 30 * time.Second,
		},
		Workflow: WorkflowConfig{
			HeartbeatWindow: 10 * time.Minute,
			InactivityDays:  15,
			SweepInterval:   time.Hour,
			LockPath:        "data/sweep.lock",
			NotifyTimeout:   30 * time.Second,
		},
		Export: ExportConfig{
			OutputDir: "exports",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required")
		}
	}

	if c.Workflow.LockPath == "" {
		return fmt.Errorf("workflow.lock_path is required")
	}
	if c.Export.OutputDir == "" {
		return fmt.Errorf("export.output_dir is required")
	}

	return nil
}
