package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"coolify-backup/internal/remote"
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Remote backup storage",
}

var remoteTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Verify the configured remote backend is reachable and writable",
	Args:  cobra.NoArgs,
	RunE:  runRemoteTest,
}

func init() {
	rootCmd.AddCommand(remoteCmd)
	remoteCmd.AddCommand(remoteTestCmd)
}

func runRemoteTest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	syncer, err := remote.New(cfg)
	if err != nil {
		return err
	}
	if syncer == nil {
		return fmt.Errorf("no remote backend configured (set REMOTE_BACKEND, RSYNC_TARGET or S3_BUCKET)")
	}

	fmt.Printf("Testing %s backend...\n", cfg.RemoteBackend)
	if err := syncer.Test(cmd.Context()); err != nil {
		return fmt.Errorf("remote test failed: %w", err)
	}
	fmt.Println("Remote storage is reachable and writable.")
	return nil
}
