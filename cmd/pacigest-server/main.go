package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/pacigest/pacigest/internal/config"
	"github.com/pacigest/pacigest/internal/domain/reminder"
	"github.com/pacigest/pacigest/internal/platform/db"
	"github.com/pacigest/pacigest/internal/platform/notification"
	"github.com/pacigest/pacigest/internal/platform/scheduler"
	"github.com/pacigest/pacigest/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pacigest-server",
		Short: "PaciGest Plus - medical practice management API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(remindersCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationFiles(dir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationFiles(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

// migrationFiles returns the embedded schema unless dir is given.
func migrationFiles(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Appointment and trial reminders",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run one reminder tick and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			locker, closeRedis, err := newLocker(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeRedis()

			mailer := notification.NewManager(notification.NewEmailSender(cfg.ResendAPIKey, cfg.EmailFrom, logger), nil, logger)
			job := &tickJob{reminders: newReminders(cfg, logger, pool, mailer)}
			return runTick(ctx, scheduler.NewRunner(logger, locker, jobTimeout), job, cmd.OutOrStdout())
		},
	})

	return cmd
}

// ticker is the part of reminder.Service a manual run needs.
type ticker interface {
	Name() string
	Tick(ctx context.Context) (*reminder.TickReport, error)
}

// tickJob adapts one Tick to scheduler.Job and keeps the report. It shares
// the lease key of the scheduled job.
type tickJob struct {
	reminders ticker
	report    *reminder.TickReport
}

func (j *tickJob) Name() string { return j.reminders.Name() }

func (j *tickJob) Run(ctx context.Context) error {
	report, err := j.reminders.Tick(ctx)
	j.report = report
	return err
}

// runTick runs job once under the runner's lease and prints its report.
func runTick(ctx context.Context, runner *scheduler.Runner, job *tickJob, out io.Writer) error {
	err := runner.RunOnce(ctx, job)
	if errors.Is(err, scheduler.ErrLocked) {
		return fmt.Errorf("a reminder tick is already running: %w", err)
	}
	if job.report != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(job.report); encErr != nil {
			return encErr
		}
	}
	return err
}
