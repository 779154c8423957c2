package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/akashvim3/Birthday-Wishes-System/internal/recurrence"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/jobs"
)

// NewUpcomingCommand lists birthdays within a window, or with --month every
// birthday in the current month.
func NewUpcomingCommand(opts *RootOptions) *cobra.Command {
	var (
		days  int
		month bool
	)
	cmd := &cobra.Command{
		Use:     "upcoming",
		Aliases: []string{"reminders"},
		Short:   "List birthdays in the next N days",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 || days > 366 {
				return fmt.Errorf("--days must be between 0 and 366")
			}
			return withBackend(cmd.Context(), opts, func(b *Backend) error {
				today := recurrence.TodayIn(opts.Now(), b.Location)
				if month {
					return printMonth(cmd, opts, b, today)
				}
				list, err := b.Birthdays.CollectUpcoming(cmd.Context(), days, today)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.Format == "json" {
					return writeJSON(out, list)
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DATE\tIN\tUSER\tNAME\tTURNING")
				for _, u := range list {
					turning := "-"
					if u.TurningAge > 0 {
						turning = strconv.Itoa(u.TurningAge)
					}
					fmt.Fprintf(tw, "%s\t%dd\t%s\t%s\t%s\n", u.OccursOn, u.DaysUntil, u.Profile.UserID, u.Profile.Name(), turning)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 7, "window size in days")
	cmd.Flags().BoolVarP(&month, "month", "m", false, "list every birthday in the current month")
	return cmd
}

func printMonth(cmd *cobra.Command, opts *RootOptions, b *Backend, today recurrence.Date) error {
	list, err := b.Birthdays.ThisMonth(cmd.Context(), today)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, list)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tUSER\tNAME")
	for _, p := range list {
		fmt.Fprintf(tw, "%s %d\t%s\t%s\n", today.Month.String()[:3], p.Birthday.Day, p.UserID, p.Name())
	}
	return tw.Flush()
}

// NewOnCommand lists the profiles celebrating on a date.
func NewOnCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "on <YYYY-MM-DD>",
		Short: "List profiles whose birthday falls on a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := recurrence.ParseDate(args[0])
			if err != nil {
				return err
			}
			return withBackend(cmd.Context(), opts, func(b *Backend) error {
				list, err := b.Birthdays.OnDate(cmd.Context(), date)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.Format == "json" {
					return writeJSON(out, list)
				}
				for _, p := range list {
					fmt.Fprintf(out, "%s\t%s\n", p.UserID, p.Name())
				}
				return nil
			})
		},
	}
}

// NewJobsCommand lists the registered periodic jobs.
func NewJobsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List periodic jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), opts, func(b *Backend) error {
				names := b.Jobs.Jobs()
				if opts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), names)
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			})
		},
	}
}

// NewRunCommand triggers one periodic job for the current period.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <job>",
		Short: "Run a periodic job now",
		Long: `Run a periodic job for the current period.

<job> is a registered job name or one of the aliases detect, reminders
and cleanup.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if full, ok := Aliases[name]; ok {
				name = full
			}
			return withBackend(cmd.Context(), opts, func(b *Backend) error {
				res, err := b.Jobs.Trigger(cmd.Context(), name, opts.Now())
				if err != nil {
					return err
				}
				if err := printResult(cmd.OutOrStdout(), opts.Format, res); err != nil {
					return err
				}
				if res.Outcome == jobs.OutcomeFailed {
					cause := res.Err
					if cause == nil {
						cause = res.Report.Err()
					}
					return fmt.Errorf("job %s failed: %w", res.Job, cause)
				}
				return nil
			})
		},
	}
}

// NewDispatchCommand runs one dispatch pass over due wishes.
func NewDispatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Deliver every wish that is due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), opts, func(b *Backend) error {
				if b.Dispatcher == nil {
					return errors.New("no notifier configured")
				}
				rep, err := b.Dispatcher.DispatchDue(cmd.Context(), opts.Now())
				if err != nil {
					return err
				}
				pending, err := b.Dispatcher.Pending(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.Format == "json" {
					return writeJSON(out, map[string]any{
						"processed": rep.Processed, "failed": rep.Failed,
						"skipped": rep.Skipped, "pending": pending, "errors": rep.ErrorStrings(),
					})
				}
				fmt.Fprintf(out, "processed=%d failed=%d skipped=%d pending=%d\n", rep.Processed, rep.Failed, rep.Skipped, pending)
				for _, e := range rep.ErrorStrings() {
					fmt.Fprintf(out, "  error: %s\n", e)
				}
				return nil
			})
		},
	}
}

func printResult(out io.Writer, format string, res jobs.Result) error {
	if format == "json" {
		return writeJSON(out, struct {
			jobs.Result
			Errors []string `json:"errors,omitempty"`
		}{res, res.Report.ErrorStrings()})
	}
	fmt.Fprintf(out, "%s [%s] %s processed=%d failed=%d skipped=%d\n",
		res.Job, res.Period, res.Outcome, res.Report.Processed, res.Report.Failed, res.Report.Skipped)
	for _, e := range res.Report.ErrorStrings() {
		fmt.Fprintf(out, "  error: %s\n", e)
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
