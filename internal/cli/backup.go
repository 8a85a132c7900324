package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/ayudame/internal/backup"
	"github.com/dukerupert/ayudame/internal/config"
	"github.com/dukerupert/ayudame/internal/database"
	"github.com/dukerupert/ayudame/internal/logging"
)

// NewBackupCommand groups the snapshot commands. Storage settings come from
// the same AYUDAME_S3_* variables the server reads.
func NewBackupCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage encrypted database snapshots in S3",
	}
	cmd.AddCommand(newBackupRunCommand(opts))
	cmd.AddCommand(newBackupListCommand(opts))
	cmd.AddCommand(newBackupPruneCommand(opts))
	cmd.AddCommand(newBackupRestoreCommand(opts))
	return cmd
}

// withManager loads the environment, opens the database and hands a backup
// manager to fn.
func withManager(opts *RootOptions, stderr io.Writer, fn func(config.Config, *backup.Manager) error) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	db, err := database.Open(opts.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	return fn(cfg, backup.NewManager(cfg.S3, db, logging.New(stderr, level, "text")))
}

func newBackupRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Snapshot the database and upload it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, cmd.ErrOrStderr(), func(cfg config.Config, m *backup.Manager) error {
				key, err := m.Run(cmd.Context(), cfg.BackupPassphrase)
				if err != nil {
					return err
				}
				return output(opts, cmd.OutOrStdout(), map[string]string{"key": key},
					fmt.Sprintf("uploaded %s", key))
			})
		},
	}
}

func newBackupListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, cmd.ErrOrStderr(), func(_ config.Config, m *backup.Manager) error {
				objects, err := m.List(cmd.Context())
				if err != nil {
					return err
				}
				if objects == nil {
					objects = []backup.Object{}
				}
				var b strings.Builder
				for _, o := range objects {
					fmt.Fprintf(&b, "%s\t%d\t%s\n", o.Key, o.Size, o.LastModified.Format(time.RFC3339))
				}
				fmt.Fprintf(&b, "%d backups", len(objects))
				return output(opts, cmd.OutOrStdout(), objects, b.String())
			})
		},
	}
}

func newBackupPruneCommand(opts *RootOptions) *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete snapshots older than the retention window",
		Long: `Delete snapshots older than the retention window.

The newest snapshot is never deleted, whatever its age.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, cmd.ErrOrStderr(), func(cfg config.Config, m *backup.Manager) error {
				keep := cfg.BackupRetention
				if retention > 0 {
					keep = retention
				}
				n, err := m.Prune(cmd.Context(), keep)
				if err != nil {
					return err
				}
				return output(opts, cmd.OutOrStdout(), map[string]int{"deleted": n},
					fmt.Sprintf("deleted %d backups", n))
			})
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 0, "override AYUDAME_BACKUP_RETENTION")
	return cmd
}

func newBackupRestoreCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <key> <dest-path>",
		Short: "Download and decrypt a snapshot to a new file",
		Long: `Download and decrypt a snapshot to a new file.

The destination must not exist. Stop the server and move the file over
the live database to complete a restore.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, cmd.ErrOrStderr(), func(cfg config.Config, m *backup.Manager) error {
				if err := m.Restore(cmd.Context(), args[0], cfg.BackupPassphrase, args[1]); err != nil {
					return err
				}
				return output(opts, cmd.OutOrStdout(), map[string]string{"key": args[0], "path": args[1]},
					fmt.Sprintf("restored %s to %s", args[0], args[1]))
			})
		},
	}
}
