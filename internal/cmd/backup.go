package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"coolify-backup/internal/notify"
	"coolify-backup/internal/runner"
)

const summaryRounding = time.Second

var backupCmd = &cobra.Command{
	Use:   "backup [instance-id ...]",
	Short: "Back up services and applications",
	Long: `Back up one or more instances by id, or every discovered instance when no
ids are given. Each instance is probed for MySQL/MariaDB, PostgreSQL, SQLite
and bulk file volumes; every applicable strategy contributes payloads to one
timestamped snapshot.`,
	RunE: runBackup,
}

var setupBackupCmd = &cobra.Command{
	Use:   "setup-backup",
	Short: "Back up the platform's own database and configuration",
	Args:  cobra.NoArgs,
	RunE:  runSetupBackup,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(setupBackupCmd)

	backupCmd.Flags().Bool("files-only", false, "only archive bulk storage volumes (requires explicit instance ids)")
}

func runBackup(cmd *cobra.Command, args []string) error {
	filesOnly, _ := cmd.Flags().GetBool("files-only")
	if filesOnly && len(args) == 0 {
		return fmt.Errorf("--files-only requires at least one instance id")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	docker, syncer, err := buildDeps(cfg)
	if err != nil {
		return err
	}

	r := runner.New(cfg, docker, notify.New(cfg), syncer)
	summary := r.Run(cmd.Context(), args, filesOnly)

	fmt.Printf("Backup run finished: %d succeeded, %d failed (%s)\n",
		summary.Succeeded, summary.Failed, summary.Duration.Round(summaryRounding))
	if len(summary.Details) > 0 {
		fmt.Println(strings.Join(summary.Details, "\n"))
	}

	// A run that completed is success even when individual instances failed;
	// failures are reported through notifications and the printed summary.
	return nil
}

func runSetupBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	docker, syncer, err := buildDeps(cfg)
	if err != nil {
		return err
	}

	r := runner.New(cfg, docker, notify.New(cfg), syncer)
	return r.RunSetup(cmd.Context())
}
