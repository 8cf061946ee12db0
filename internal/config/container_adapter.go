package config

import (
	"github.com/garyjia/order-workflow/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// Server and auth settings stay with the HTTP layer.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
		},
		Lark: container.LarkConfig{
			Enabled:    c.Lark.Enabled,
			AppID:      c.Lark.AppID,
			AppSecret:  c.Lark.AppSecret,
			BaseURL:    c.Lark.BaseURL,
			APITimeout: c.Lark.APITimeout,
		},
		Workflow: container.WorkflowConfig{
			HeartbeatWindow: c.Workflow.HeartbeatWindow,
			InactivityDays:  c.Workflow.InactivityDays,
			SweepInterval:   c.Workflow.SweepInterval,
			LockPath:        c.Workflow.LockPath,
			NotifyTimeout:   c.Workflow.NotifyTimeout,
		},
		Export: container.ExportConfig{
			OutputDir: c.Export.OutputDir,
		},
	}
}
