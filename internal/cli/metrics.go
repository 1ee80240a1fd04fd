package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Operational metrics",
	Long:  "Read job and webhook delivery outcomes recorded by the service",
}

var metricsOverviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Show outcome counts by type",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient(cmd)
		if err != nil {
			return err
		}

		counts, err := client.MetricsOverview()
		if err != nil {
			return fmt.Errorf("failed to fetch metrics overview: %w", err)
		}

		outputFormat, _ := cmd.Flags().GetString("output")
		if outputFormat == "json" {
			return printJSON(counts)
		}

		if len(counts) == 0 {
			printInfo("No metrics recorded yet")
			return nil
		}

		t := newTable("Type", "Outcome", "Count")
		for _, c := range counts {
			t.addRow(c.Type, c.Name, strconv.Itoa(c.Count))
		}
		t.render()
		return nil
	},
}

var metricsLatencyCmd = &cobra.Command{
	Use:   "latency [job|webhook]",
	Short: "Show average duration for a metric type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		metricType := args[0]
		if metricType != "job" && metricType != "webhook" {
			return fmt.Errorf("type must be job or webhook")
		}

		client, err := apiClient(cmd)
		if err != nil {
			return err
		}

		avg, err := client.AverageLatency(metricType)
		if err != nil {
			return fmt.Errorf("failed to fetch latency: %w", err)
		}

		printInfo("Average %s duration: %dms", metricType, avg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.AddCommand(metricsOverviewCmd)
	metricsCmd.AddCommand(metricsLatencyCmd)
}
