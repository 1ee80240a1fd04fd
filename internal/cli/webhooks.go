package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var webhooksCmd = &cobra.Command{
	Use:   "webhooks",
	Short: "Webhook subscription management",
	Long:  "Register, list and remove webhook subscriptions",
}

var webhooksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List webhook subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient(cmd)
		if err != nil {
			return err
		}

		webhooks, err := client.ListWebhooks()
		if err != nil {
			return fmt.Errorf("failed to list webhooks: %w", err)
		}

		outputFormat, _ := cmd.Flags().GetString("output")
		if outputFormat == "json" {
			return printJSON(webhooks)
		}

		if len(webhooks) == 0 {
			printInfo("No webhooks registered")
			return nil
		}

		t := newTable("ID", "Event", "URL", "Created")
		for _, wh := range webhooks {
			t.addRow(wh.ID, wh.Event, wh.URL, wh.CreatedAt.Format("2006-01-02 15:04"))
		}
		t.render()
		return nil
	},
}

var webhooksCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a webhook",
	Long:  "Register a webhook subscription. The signing secret is shown once and never again.",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		event, _ := cmd.Flags().GetString("event")

		client, err := apiClient(cmd)
		if err != nil {
			return err
		}

		webhook, err := client.CreateWebhook(url, event)
		if err != nil {
			return fmt.Errorf("failed to create webhook: %w", err)
		}

		printSuccess("Webhook registered for %s", webhook.Event)
		printInfo("ID: %s", webhook.ID)
		printInfo("URL: %s", webhook.URL)
		printInfo("Secret: %s", webhook.Secret)
		printInfo("Store this secret now; it cannot be retrieved later.")
		return nil
	},
}

var webhooksDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Remove a webhook subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient(cmd)
		if err != nil {
			return err
		}

		if err := client.DeleteWebhook(args[0]); err != nil {
			return fmt.Errorf("failed to delete webhook: %w", err)
		}

		printSuccess("Webhook %s deleted", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(webhooksCmd)
	webhooksCmd.AddCommand(webhooksListCmd)
	webhooksCmd.AddCommand(webhooksCreateCmd)
	webhooksCmd.AddCommand(webhooksDeleteCmd)

	webhooksCreateCmd.Flags().StringP("url", "u", "", "Delivery URL")
	webhooksCreateCmd.Flags().StringP("event", "e", "", "Event name (e.g. ProductCreated, OrderCreated)")
	if err := webhooksCreateCmd.MarkFlagRequired("url"); err != nil {
		panic(fmt.Sprintf("failed to mark url as required: %v", err))
	}
	if err := webhooksCreateCmd.MarkFlagRequired("event"); err != nil {
		panic(fmt.Sprintf("failed to mark event as required: %v", err))
	}
}
