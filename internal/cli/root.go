// Package cli implements ayudamectl, the maintenance tool run against the
// service database.
package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dukerupert/ayudame/internal/database"
	"github.com/dukerupert/ayudame/internal/engine"
	"github.com/dukerupert/ayudame/internal/logging"
)

// RootOptions holds the global flags.
type RootOptions struct {
	DBPath  string
	Format  string // "json" | "text"
	Verbose bool
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ayudamectl",
		Short: "Maintenance commands for the ayudame database",
		Long: `Maintenance commands for the ayudame database.

Run the weekly counter rollover, repair in-progress counters, apply
schema migrations and manage backups without starting the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	defaultDB := os.Getenv("AYUDAME_DB_PATH")
	if defaultDB == "" {
		defaultDB = "ayudame.db"
	}
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", defaultDB, "path to the sqlite database")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log engine activity to stderr")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewResetWeekCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewCleanupCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))

	return cmd
}

// openEngine opens the database, applying pending migrations, and builds an
// engine over it. The caller closes the returned db.
func openEngine(opts *RootOptions, stderr io.Writer) (*sql.DB, *engine.Engine, error) {
	db, err := database.Open(opts.DBPath)
	if err != nil {
		return nil, nil, err
	}
	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	logger := logging.New(stderr, level, "text")
	return db, engine.New(db, engine.Config{}, engine.WithLogger(logger)), nil
}

// result is printed as JSON or through its text form.
type result struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

func output(opts *RootOptions, w io.Writer, data any, text string) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
