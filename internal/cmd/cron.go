package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"coolify-backup/internal/cron"
)

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Manage the scheduled backup crontab entry",
}

var cronInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install or replace the backup schedule in the local crontab",
	Args:  cobra.NoArgs,
	RunE:  runCronInstall,
}

var cronRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the backup schedule from the local crontab",
	Args:  cobra.NoArgs,
	RunE:  runCronRemove,
}

var cronShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the installed backup schedule",
	Args:  cobra.NoArgs,
	RunE:  runCronShow,
}

var cronValidateCmd = &cobra.Command{
	Use:   "validate [expression]",
	Short: "Validate a cron expression",
	Args:  cobra.ExactArgs(1),
	RunE:  runCronValidate,
}

func init() {
	rootCmd.AddCommand(cronCmd)
	cronCmd.AddCommand(cronInstallCmd)
	cronCmd.AddCommand(cronRemoveCmd)
	cronCmd.AddCommand(cronShowCmd)
	cronCmd.AddCommand(cronValidateCmd)

	cronInstallCmd.Flags().String("schedule", "", "cron expression (prompts when omitted)")
	cronInstallCmd.Flags().String("command", "", "command to schedule (default: this binary's backup command)")
}

func runCronInstall(cmd *cobra.Command, args []string) error {
	schedule, _ := cmd.Flags().GetString("schedule")
	command, _ := cmd.Flags().GetString("command")
	if command == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to resolve own binary path: %w", err)
		}
		command = exe + " backup"
	}
	return cron.NewInstaller().Install(schedule, command)
}

func runCronRemove(cmd *cobra.Command, args []string) error {
	return cron.NewInstaller().Remove()
}

func runCronShow(cmd *cobra.Command, args []string) error {
	return cron.NewInstaller().Show()
}

func runCronValidate(cmd *cobra.Command, args []string) error {
	if err := cron.ValidateCronExpression(args[0]); err != nil {
		return err
	}
	fmt.Printf("Valid cron expression: %s\n", args[0])
	return nil
}
