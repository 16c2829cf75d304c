package cmd

import (
	"github.com/spf13/cobra"

	"coolify-backup/internal/notify"
	"coolify-backup/internal/restore"
	"coolify-backup/internal/runner"
)

var restoreCmd = &cobra.Command{
	Use:   "restore [instance-id]",
	Short: "Restore an instance from a snapshot",
	Long: `Restore an instance from one of its snapshots. Without an instance id the
instances that have snapshots are offered interactively. Every payload is
integrity-checked before anything is touched, and a pre-restore safety
snapshot of the current state is taken unless disabled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().String("target", "", "restore into this instance instead of the snapshot's own")
	restoreCmd.Flags().Bool("dry-run", false, "validate and print the plan without changing anything")
	restoreCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	restoreCmd.Flags().Bool("latest", false, "use the newest snapshot without prompting")
	restoreCmd.Flags().Bool("fetch-remote", false, "pull the instance's snapshots from remote storage first")
	restoreCmd.Flags().Bool("coolify-setup", false, "restore a platform setup snapshot instead of an instance")
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	docker, syncer, err := buildDeps(cfg)
	if err != nil {
		return err
	}

	opts := restore.Options{}
	if len(args) == 1 {
		opts.ID = args[0]
	}
	opts.Target, _ = cmd.Flags().GetString("target")
	opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
	opts.Yes, _ = cmd.Flags().GetBool("yes")
	opts.Latest, _ = cmd.Flags().GetBool("latest")
	opts.FetchRemote, _ = cmd.Flags().GetBool("fetch-remote")
	opts.Setup, _ = cmd.Flags().GetBool("coolify-setup")

	o := restore.New(cfg, docker, syncer)
	o.SetupBackup = runner.New(cfg, docker, notify.Nop{}, nil).RunSetup
	return o.Run(cmd.Context(), opts)
}
