package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/garyjia/order-workflow/internal/application/service"
	"github.com/garyjia/order-workflow/internal/container"
	apihttp "github.com/garyjia/order-workflow/internal/interfaces/http"
)

const dateLayout = "2006-01-02"

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withContainer(cmd.Context(), func(c *container.Container) error {
				db := c.Health().Components["database"]
				if !db.Healthy {
					return fmt.Errorf("database unhealthy: %s", db.Message)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Database ready at %s (%s)\n", ctx.config.Database.Path, db.Message)
				return nil
			})
		},
	}
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Flag inactive users and reclaim their orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				days = ctx.config.Workflow.InactivityDays
			}
			return ctx.withContainer(cmd.Context(), func(c *container.Container) error {
				result, err := c.Services().Sweep.FlagInactive(cmd.Context(), days)
				if err != nil {
					return err
				}
				printSweepResult(cmd.OutOrStdout(), days, result)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Inactivity threshold in days (default from config)")
	return cmd
}

func printSweepResult(out io.Writer, days int, result *service.SweepResult) {
	if result.Skipped {
		fmt.Fprintln(out, "Sweep skipped: another process holds the sweep lock")
		return
	}
	if len(result.Flagged) == 0 {
		fmt.Fprintf(out, "No users inactive for %d days\n", days)
		return
	}
	ids := make([]string, 0, len(result.Flagged))
	for _, id := range result.Flagged {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	fmt.Fprintf(out, "Flagged %d user(s): %s\n", len(result.Flagged), strings.Join(ids, ", "))
	fmt.Fprintf(out, "Reclaimed %d order(s)\n", result.Reclaimed)
}

func newResetDailyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-daily",
		Short: "Zero every user's completed-today counter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withContainer(cmd.Context(), func(c *container.Container) error {
				count, err := c.Services().Sweep.ResetDailyCounters(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d user(s)\n", count)
				return nil
			})
		},
	}
}

func newReassignCommand(ctx *commandContext) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "reassign",
		Short: "Return every in-progress order of a user to its queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return errors.New("--user is required")
			}
			return ctx.withContainer(cmd.Context(), func(c *container.Container) error {
				count, err := c.Services().Assignment.ReassignFromUser(cmd.Context(), userID, 0)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %d order(s) from user %d\n", count, userID)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "User ID")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var projectID int64

	cmd := &cobra.Command{
		Use:   "queue-health",
		Short: "Show order counts per workflow state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID <= 0 {
				return errors.New("--project is required")
			}
			return ctx.withContainer(cmd.Context(), func(c *container.Container) error {
				health, err := c.Services().Report.QueueHealth(cmd.Context(), projectID)
				if err != nil {
					return err
				}
				printQueueHealth(cmd.OutOrStdout(), health)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "Project ID")
	return cmd
}

func printQueueHealth(out io.Writer, health *service.QueueHealth) {
	rows := make([][]string, 0, len(health.States))
	for _, sc := range health.States {
		oldest := "-"
		if sc.OldestReceived != nil {
			oldest = sc.OldestReceived.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{sc.State.String(), strconv.Itoa(sc.Count), oldest})
	}
	fmt.Fprintf(out, "Project %d (%s)\n", health.ProjectID, health.WorkflowType)
	fmt.Fprintln(out, renderTable([]string{"State", "Orders", "Oldest"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
	fmt.Fprintf(out, "Pending: %d  Delivered: %d  SLA breaches: %d\n", health.Pending, health.Delivered, health.SLABreaches)
}

func newStaffingCommand(ctx *commandContext) *cobra.Command {
	var projectID int64

	cmd := &cobra.Command{
		Use:   "staffing",
		Short: "Show workers and WIP per stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID <= 0 {
				return errors.New("--project is required")
			}
			return ctx.withContainer(cmd.Context(), func(c *container.Container) error {
				staffing, err := c.Services().Report.Staffing(cmd.Context(), projectID)
				if err != nil {
					return err
				}
				printStaffing(cmd.OutOrStdout(), staffing)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "Project ID")
	return cmd
}

func printStaffing(out io.Writer, staffing []service.StageStaffing) {
	rows := make([][]string, 0, len(staffing))
	for _, s := range staffing {
		rows = append(rows, []string{
			string(s.Stage),
			string(s.Role),
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Active),
			strconv.Itoa(s.Absent),
			strconv.Itoa(s.TotalWIP),
			strconv.Itoa(s.WIPCap),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Stage", "Role", "Total", "Active", "Absent", "WIP", "Cap"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		projectID int64
		fromFlag  string
		toFlag    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the WorkItem ledger of a project to a spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID <= 0 {
				return errors.New("--project is required")
			}
			from, to, err := exportRange(fromFlag, toFlag, time.Now().UTC())
			if err != nil {
				return err
			}
			return ctx.withContainer(cmd.Context(), func(c *container.Container) error {
				path, err := c.Services().Report.ExportLedger(cmd.Context(), projectID, from, to)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ledger written to %s\n", filepath.Join(ctx.config.Export.OutputDir, path))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "Project ID")
	cmd.Flags().StringVar(&fromFlag, "from", "", "First day, YYYY-MM-DD (default seven days before --to)")
	cmd.Flags().StringVar(&toFlag, "to", "", "Last day inclusive, YYYY-MM-DD (default today)")
	return cmd
}

// exportRange turns inclusive day flags into a half-open UTC range
func exportRange(fromFlag, toFlag string, now time.Time) (time.Time, time.Time, error) {
	today := now.Truncate(24 * time.Hour)

	to := today.AddDate(0, 0, 1)
	if toFlag != "" {
		day, err := time.Parse(dateLayout, toFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
		to = day.AddDate(0, 0, 1)
	}

	from := to.AddDate(0, 0, -7)
	if fromFlag != "" {
		day, err := time.Parse(dateLayout, fromFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
		from = day
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from %s is after --to", from.Format(dateLayout))
	}
	return from, to, nil
}

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return errors.New("--user is required")
			}
			secret := ctx.config.Auth.JWTSecret
			if strings.TrimSpace(secret) == "" {
				return errors.New("auth.jwt_secret is not configured")
			}
			return ctx.withContainer(cmd.Context(), func(c *container.Container) error {
				user, err := c.Repositories().User.GetByID(cmd.Context(), userID)
				if err != nil {
					return err
				}
				if user == nil || !user.IsActive {
					return fmt.Errorf("user %d not found or inactive", userID)
				}
				token, err := apihttp.IssueToken(user.ID, secret)
				if err != nil {
					return fmt.Errorf("sign token: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "User ID")
	return cmd
}
