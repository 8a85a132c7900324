package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/ayudame/internal/database"
	"github.com/dukerupert/ayudame/internal/identity"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(opts.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := database.Version(db)
			if err != nil {
				return err
			}
			return output(opts, cmd.OutOrStdout(), map[string]int64{"version": v},
				fmt.Sprintf("schema at version %d", v))
		},
	}
}

// NewResetWeekCommand zeroes every user's weekly completion slots. It is
// meant to run from cron once the week rolls over.
func NewResetWeekCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-week",
		Short: "Zero the weekly completion counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, eng, err := openEngine(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := eng.ResetWeek(cmd.Context())
			if err != nil {
				return err
			}
			return output(opts, cmd.OutOrStdout(), map[string]int64{"users": n},
				fmt.Sprintf("reset weekly counters for %d users", n))
		},
	}
}

func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [user-id]",
		Short: "Recompute in-progress counters from accepted requests",
		Long: `Recompute in-progress counters from accepted requests.

Without a user id every user is checked. Only counters that differ from
the requests table are rewritten.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, eng, err := openEngine(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer db.Close()

			var userID string
			if len(args) == 1 {
				userID = args[0]
			}
			n, err := eng.Reconcile(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return output(opts, cmd.OutOrStdout(), map[string]int64{"repaired": n},
				fmt.Sprintf("repaired %d counters", n))
		},
	}
}

func NewStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <user-id>",
		Short: "Print a user's counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, eng, err := openEngine(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer db.Close()

			st, err := eng.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			week := make([]string, len(st.WeekCompletedTasks))
			for i, n := range st.WeekCompletedTasks {
				week[i] = fmt.Sprint(n)
			}
			text := fmt.Sprintf("level %d, %d points, %d completed (week %s), %d in progress, reputation %.2f (%d ratings)",
				st.Level, st.Points, st.TotalCompletedTasks, strings.Join(week, " "),
				st.TasksInProgress, st.Reputation, st.RatingCount)
			return output(opts, cmd.OutOrStdout(), st, text)
		},
	}
}

func NewCleanupCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired sessions and verification codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(opts.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			sessions, codes, err := identity.New(db, nil).Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			return output(opts, cmd.OutOrStdout(), map[string]int64{"sessions": sessions, "codes": codes},
				fmt.Sprintf("deleted %d sessions and %d codes", sessions, codes))
		},
	}
}
