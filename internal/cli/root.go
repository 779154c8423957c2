// Package cli implements birthdayctl, the operator command line for the
// birthday engine.
package cli

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/akashvim3/Birthday-Wishes-System/internal/app"
	"github.com/akashvim3/Birthday-Wishes-System/internal/config"
	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/recurrence"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/birthday"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/jobs"
)

// Birthdays answers birthday queries.
type Birthdays interface {
	CollectUpcoming(ctx context.Context, days int, today recurrence.Date) ([]birthday.Upcoming, error)
	OnDate(ctx context.Context, date recurrence.Date) ([]domain.Profile, error)
	ThisMonth(ctx context.Context, today recurrence.Date) ([]domain.Profile, error)
}

// JobRunner triggers periodic jobs by name.
type JobRunner interface {
	Jobs() []string
	Trigger(ctx context.Context, name string, now time.Time) (jobs.Result, error)
}

// Dispatcher delivers due wishes.
type Dispatcher interface {
	DispatchDue(ctx context.Context, now time.Time) (domain.Report, error)
	Pending(ctx context.Context) (int, error)
}

// Backend is what the commands operate on. Dispatcher is nil when no
// notifier is configured.
type Backend struct {
	Birthdays  Birthdays
	Jobs       JobRunner
	Dispatcher Dispatcher
	Location   *time.Location
	Close      func()
}

// Opener builds a Backend from a config file path.
type Opener func(ctx context.Context, configPath string) (*Backend, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"

	Open Opener
	Now  func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Aliases map short job names onto the registered job names.
var Aliases = map[string]string{
	"detect":    domain.JobDailyDetection,
	"reminders": domain.JobReminderFanout,
	"cleanup":   domain.JobWeeklyCleanup,
}

// NewRootCommand creates the root command. A nil open uses OpenApp.
func NewRootCommand(open Opener) *cobra.Command {
	if open == nil {
		open = OpenApp
	}
	opts := &RootOptions{Open: open, Now: time.Now}

	cmd := &cobra.Command{
		Use:   "birthdayctl",
		Short: "Operate the birthday wishes engine",
		Long: `birthdayctl inspects upcoming birthdays and runs the periodic jobs
and the wish dispatcher on demand.

Job runs honour the same watermarks and leases as the worker, so running a
job that already completed this period is a no-op.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "config/config.yaml", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewUpcomingCommand(opts))
	cmd.AddCommand(NewOnCommand(opts))
	cmd.AddCommand(NewJobsCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewDispatchCommand(opts))

	return cmd
}

// OpenApp wires the full application from configuration.
func OpenApp(ctx context.Context, configPath string) (*Backend, error) {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b := &Backend{Birthdays: a.Birthdays, Jobs: a.Runner, Location: a.Location, Close: a.Close}
	if a.Dispatcher != nil {
		b.Dispatcher = a.Dispatcher
	}
	return b, nil
}

// withBackend opens the backend, runs fn and closes it.
func withBackend(ctx context.Context, opts *RootOptions, fn func(*Backend) error) error {
	b, err := opts.Open(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}
	if b.Close != nil {
		defer b.Close()
	}
	if b.Location == nil {
		b.Location = time.UTC
	}
	return fn(b)
}
