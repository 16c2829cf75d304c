package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"coolify-backup/internal/config"
	"coolify-backup/internal/dockerx"
	"coolify-backup/internal/remote"
)

var (
	envFile string
	rootCmd = &cobra.Command{
		Use:   "coolify-backup",
		Short: "Backup and restore for Coolify-managed services and applications",
		Long: `coolify-backup snapshots the databases, embedded data and bulk storage of
services and applications managed by a self-hosted Coolify instance, retains
them on a schedule, and restores them on demand.`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file with backup settings (default ./.env)")
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// loadConfig resolves runtime configuration from the env file and process
// environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if viper.GetBool("verbose") {
		cfg.Verbose = true
	}
	return cfg, nil
}

// buildDeps wires the engine client and the optional remote syncer.
func buildDeps(cfg *config.Config) (dockerx.Client, remote.Syncer, error) {
	docker, err := dockerx.NewEngine()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to container engine: %w", err)
	}
	syncer, err := remote.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return docker, syncer, nil
}
