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

// QueueHealth is a per-state snapshot of one project
type QueueHealth struct {
	ProjectID    int64                 `json:"project_id"`
	WorkflowType workflow.WorkflowType `json:"workflow_type"`
	States       []port.StateCount     `json:"states"`
	SLABreaches  int                   `json:"sla_breaches"`
	Pending      int                   `json:"pending"`
	Delivered    int                   `json:"delivered"`
	GeneratedAt  time.Time             `json:"generated_at"`
}

// StageStaffing summarizes the workers of one stage
type StageStaffing struct {
	Stage    workflow.Stage `json:"stage"`
	Role     workflow.Role  `json:"role"`
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Absent   int            `json:"absent"`
	TotalWIP int            `json:"total_wip"`
	WIPCap   int            `json:"wip_cap"`
}

// ReportService produces read-only views of a project
type ReportService interface {
	QueueHealth(ctx context.Context, projectID int64) (*QueueHealth, error)
	Staffing(ctx context.Context, projectID int64) ([]StageStaffing, error)

	// ExportLedger writes the WorkItems assigned within [from, to) to a spreadsheet
	// and returns its path relative to the export storage
	ExportLedger(ctx context.Context, projectID int64, from, to time.Time) (string, error)
}

type reportServiceImpl struct {
	orderRepo    port.OrderRepository
	workItemRepo port.WorkItemRepository
	userRepo     port.UserRepository
	projectRepo  port.ProjectRepository
	renderer     port.LedgerRenderer
	storage      port.FileStorage
	logger       Logger
	settings
}

// NewReportService creates a new ReportService
func NewReportService(
	orderRepo port.OrderRepository,
	workItemRepo port.WorkItemRepository,
	userRepo port.UserRepository,
	projectRepo port.ProjectRepository,
	renderer port.LedgerRenderer,
	storage port.FileStorage,
	logger Logger,
	opts ...Option,
) ReportService {
	return &reportServiceImpl{
		orderRepo:    orderRepo,
		workItemRepo: workItemRepo,
		userRepo:     userRepo,
		projectRepo:  projectRepo,
		renderer:     renderer,
		storage:      storage,
		logger:       logger,
		settings:     newSettings(opts),
	}
}

// QueueHealth reports every state of the project's workflow, including empty ones
func (s *reportServiceImpl) QueueHealth(ctx context.Context, projectID int64) (*QueueHealth, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	table, err := appwf.TableFor(project.WorkflowType)
	if err != nil {
		return nil, err
	}

	summary, err := s.orderRepo.StateSummary(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("summarize states: %w", err)
	}
	byState := make(map[workflow.State]port.StateCount, len(summary))
	for _, sc := range summary {
		byState[sc.State] = sc
	}

	now := s.now()
	overdue, err := s.orderRepo.CountOverdue(ctx, projectID, now)
	if err != nil {
		return nil, fmt.Errorf("count overdue: %w", err)
	}

	health := &QueueHealth{
		ProjectID:    projectID,
		WorkflowType: project.WorkflowType,
		SLABreaches:  overdue,
		GeneratedAt:  now,
	}
	for _, state := range table.States() {
		sc, ok := byState[state]
		if !ok {
			sc = port.StateCount{State: state}
		}
		health.States = append(health.States, sc)

		switch {
		case state == workflow.StateDelivered:
			health.Delivered += sc.Count
		case !state.IsTerminal():
			health.Pending += sc.Count
		}
	}

	return health, nil
}

// Staffing summarizes the workers of each stage of the project
func (s *reportServiceImpl) Staffing(ctx context.Context, projectID int64) ([]StageStaffing, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	stages := workflow.StagesFor(project.WorkflowType)
	staffing := make([]StageStaffing, 0, len(stages))
	for _, stage := range stages {
		row := StageStaffing{Stage: stage, Role: stage.Role(), WIPCap: project.EffectiveWIPCap()}
		for _, u := range users {
			if u.Role != row.Role || !u.IsActive {
				continue
			}
			row.Total++
			if u.IsAbsent {
				row.Absent++
			} else {
				row.Active++
			}
			row.TotalWIP += u.WIPCount
		}
		staffing = append(staffing, row)
	}

	return staffing, nil
}

// ExportLedger renders the ledger for [from, to) and stores it
func (s *reportServiceImpl) ExportLedger(ctx context.Context, projectID int64, from, to time.Time) (string, error) {
	if !from.Before(to) {
		return "", validationError("export range is empty: %s .. %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return "", err
	}

	items, err := s.workItemRepo.ListByProject(ctx, projectID, from, to)
	if err != nil {
		return "", fmt.Errorf("list work items: %w", err)
	}

	orderNumbers := map[int64]string{}
	userNames := map[int64]string{}
	users, err := s.userRepo.ListByProject(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		userNames[u.ID] = u.Name
	}

	rows := make([]port.LedgerRow, 0, len(items))
	for _, item := range items {
		number, ok := orderNumbers[item.OrderID]
		if !ok {
			order, err := s.orderRepo.GetByID(ctx, item.OrderID)
			if err != nil {
				return "", fmt.Errorf("get order: %w", err)
			}
			if order != nil {
				number = order.OrderNumber
			}
			orderNumbers[item.OrderID] = number
		}
		rows = append(rows, ledgerRow(item, number, userNames[item.AssignedUserID]))
	}

	title := fmt.Sprintf("%s %s..%s", project.Code, from.Format("2006-01-02"), to.Format("2006-01-02"))
	content, err := s.renderer.Render(title, rows)
	if err != nil {
		return "", fmt.Errorf("render ledger: %w", err)
	}

	path := fmt.Sprintf("ledger/%s/%s_%s_%s.xlsx", project.Code, project.Code,
		from.Format("20060102"), to.Format("20060102"))
	if err := s.storage.Save(ctx, path, content); err != nil {
		return "", fmt.Errorf("save ledger: %w", err)
	}

	s.logger.Info("Ledger exported", "project_id", projectID, "rows", len(rows), "file", s.storage.GetFullPath(path))
	return path, nil
}

func (s *reportServiceImpl) loadProject(ctx context.Context, projectID int64) (*entity.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if project == nil {
		return nil, notFound("project", projectID)
	}
	return project, nil
}

func ledgerRow(item *entity.WorkItem, orderNumber, userName string) port.LedgerRow {
	return port.LedgerRow{
		OrderNumber:      orderNumber,
		Stage:            item.Stage.String(),
		AssignedUser:     userName,
		Status:           item.Status,
		AttemptNumber:    item.AttemptNumber,
		AssignedAt:       item.AssignedAt,
		CompletedAt:      item.CompletedAt,
		TimeSpentSeconds: item.TimeSpentSeconds,
		Comments:         item.Comments,
		ReworkReason:     item.ReworkReason,
		RejectionCode:    item.RejectionCode,
	}
}
