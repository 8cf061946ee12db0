package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/order-workflow/internal/config"
	"github.com/garyjia/order-workflow/internal/container"
	"github.com/garyjia/order-workflow/pkg/utils"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := defaultConfigPath
		if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withContainer runs fn against a started container without background workers.
// Logs go to stderr so command output stays clean.
func (c *commandContext) withContainer(ctx context.Context, fn func(*container.Container) error) (err error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stderr",
		Format:     "console",
		Service:    "wfctl",
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctr, err := container.NewContainer(cfg.ToContainerConfig(), logger, container.WithoutWorkers())
	if err != nil {
		return err
	}
	if err := ctr.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if closeErr := ctr.Close(); closeErr != nil {
			logger.Error("Container shutdown error", zap.Error(closeErr))
			err = errors.Join(err, closeErr)
		}
	}()

	return fn(ctr)
}
