package container

import (
	"fmt"

	"github.com/garyjia/order-workflow/internal/application/dispatcher"
	"github.com/garyjia/order-workflow/internal/application/port"
	"github.com/garyjia/order-workflow/internal/application/service"
	appwf "github.com/garyjia/order-workflow/internal/application/workflow"
	"github.com/garyjia/order-workflow/internal/infrastructure/export"
	infraLark "github.com/garyjia/order-workflow/internal/infrastructure/external/lark"
	"github.com/garyjia/order-workflow/internal/infrastructure/lock"
	"github.com/garyjia/order-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/order-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/order-workflow/internal/infrastructure/storage"
	"github.com/garyjia/order-workflow/internal/infrastructure/worker"
	"github.com/garyjia/order-workflow/pkg/database"
	"github.com/garyjia/order-workflow/pkg/utils"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// StorageBundle holds the export pipeline.
type StorageBundle struct {
	FileStorage port.FileStorage
	Renderer    port.LedgerRenderer
}

// ServiceDeps holds everything the application services are built from.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Messenger  port.MessageSender
	SweepLock  port.ProcessLock
	Storage    *StorageBundle
	Workflow   WorkflowConfig
	Logger     *zap.Logger
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if _, err := database.NewMigrator(db, logger).Run(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Order:    repository.NewOrderRepository(db.DB, logger),
		WorkItem: repository.NewWorkItemRepository(db.DB, logger),
		User:     repository.NewUserRepository(db.DB, logger),
		Project:  repository.NewProjectRepository(db.DB, logger),
		Audit:    repository.NewAuditRepository(db.DB, logger),
	}, nil
}

// ProvideMessenger returns the Lark messenger, or a logging sender when Lark is disabled.
func ProvideMessenger(cfg *LarkConfig, logger *zap.Logger) (port.MessageSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if !cfg.Enabled {
		logger.Info("Lark disabled, notifications will only be logged")
		return infraLark.NewLogSender(logger), nil
	}

	client := infraLark.NewClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.APITimeout,
	})
	return infraLark.NewMessenger(client, logger), nil
}

// ProvideStorage creates the export storage and the ledger renderer.
func ProvideStorage(cfg *ExportConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("export config is required")
	}

	fileStorage, err := storage.NewExportStorage(cfg.OutputDir, logger)
	if err != nil {
		return nil, err
	}

	return &StorageBundle{
		FileStorage: fileStorage,
		Renderer:    export.NewXLSXRenderer(),
	}, nil
}

// ProvideSweepLock creates the cross-process sweep lock.
func ProvideSweepLock(cfg *WorkflowConfig) (port.ProcessLock, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow config is required")
	}
	return lock.NewFileLock(cfg.LockPath)
}

// ProvideDispatcher creates the event dispatcher. Async handlers are bounded by cfg.NotifyTimeout.
func ProvideDispatcher(cfg *WorkflowConfig, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewKVLogger(logger)),
		dispatcher.WithHandlerTimeout(cfg.NotifyTimeout),
	), nil
}

// ProvideServices wires the state machine and every application service, and
// subscribes notifications to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}

	kv := utils.NewKVLogger(deps.Logger)
	repos := deps.Repos

	var opts []service.Option
	if deps.Workflow.HeartbeatWindow > 0 {
		opts = append(opts, service.WithHeartbeatWindow(deps.Workflow.HeartbeatWindow))
	}

	audit := service.NewAuditService(repos.Audit, kv)
	machine := appwf.NewStateMachineService(repos.Order, audit, kv)

	assignment := service.NewAssignmentService(repos.Order, repos.WorkItem, repos.User, repos.Project,
		machine, deps.TxManager, deps.Dispatcher, kv, opts...)

	notification := service.NewNotificationService(repos.User, deps.Messenger, kv)
	notification.Register(deps.Dispatcher)

	return &ServiceBundle{
		StateMachine: machine,
		Audit:        audit,
		Assignment:   assignment,
		Order: service.NewOrderService(repos.Order, repos.WorkItem, repos.User, repos.Project,
			machine, audit, deps.TxManager, deps.Dispatcher, kv, opts...),
		WorkItem: service.NewWorkItemService(repos.Order, repos.WorkItem, deps.TxManager, kv),
		Sweep: service.NewSweepService(repos.User, assignment, audit, deps.TxManager,
			deps.SweepLock, deps.Dispatcher, kv),
		Report: service.NewReportService(repos.Order, repos.WorkItem, repos.User, repos.Project,
			deps.Storage.Renderer, deps.Storage.FileStorage, kv),
		Notification: notification,
	}, nil
}

// ProvideWorkers registers the inactivity sweep and the daily counter reset.
func ProvideWorkers(cfg *WorkflowConfig, services *ServiceBundle, logger *zap.Logger) (*worker.Manager, error) {
	if cfg == nil || services == nil {
		return nil, fmt.Errorf("workflow config and services are required")
	}

	manager := worker.NewManager(logger)
	manager.Register(worker.NewInactivityWorker(worker.InactivityConfig{
		Interval:       cfg.SweepInterval,
		InactivityDays: cfg.InactivityDays,
	}, services.Sweep, logger))
	manager.Register(worker.NewDailyResetWorker(services.Sweep, logger))

	return manager, nil
}
