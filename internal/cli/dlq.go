package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Dead letter queue inspection",
	Long:  "Inspect and purge jobs that exhausted their retry budget",
}

var dlqListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List dead-lettered jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := apiClient(cmd)
		if err != nil {
			return err
		}

		entries, err := client.DeadLetters(limit)
		if err != nil {
			return fmt.Errorf("failed to list dead letters: %w", err)
		}

		outputFormat, _ := cmd.Flags().GetString("output")
		if outputFormat == "json" {
			return printJSON(entries)
		}

		if len(entries) == 0 {
			printInfo("Dead letter queue is empty")
			return nil
		}

		t := newTable("Job ID", "Job", "Correlation ID", "Reason", "Failed At")
		for _, e := range entries {
			t.addRow(e.JobID, e.JobName, e.CorrelationID, e.Reason, e.FailedAt.Format("2006-01-02 15:04:05"))
		}
		t.render()
		return nil
	},
}

var dlqPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Purge the dead letter queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient(cmd)
		if err != nil {
			return err
		}

		if err := client.PurgeDeadLetters(); err != nil {
			return fmt.Errorf("failed to purge dead letters: %w", err)
		}

		printSuccess("Dead letter queue purged")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqPurgeCmd)

	dlqListCmd.Flags().IntP("limit", "l", 100, "Maximum entries to fetch")
}
