package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakestore-systems/fakestore-api/internal/models"
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Product catalog management",
}

var productsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List products",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient(cmd)
		if err != nil {
			return err
		}

		products, err := client.ListProducts()
		if err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}

		outputFormat, _ := cmd.Flags().GetString("output")
		if outputFormat == "json" {
			return printJSON(products)
		}

		if len(products) == 0 {
			printInfo("No products found")
			return nil
		}

		t := newTable("ID", "Name", "Price", "Stock", "Created")
		for _, p := range products {
			t.addRow(
				p.ID,
				p.Name,
				strconv.FormatFloat(p.Price, 'f', 2, 64),
				strconv.Itoa(p.Stock),
				p.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		t.render()
		return nil
	},
}

var productsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a product",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		price, _ := cmd.Flags().GetFloat64("price")

		client, err := apiClient(cmd)
		if err != nil {
			return err
		}

		product, err := client.CreateProduct(name, price)
		if err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}

		printSuccess("Product created: %s", product.Name)
		printInfo("ID: %s", product.ID)
		printInfo("Price: %.2f", product.Price)
		printInfo("Stock: %d", product.Stock)
		return nil
	},
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Order management",
}

var ordersListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient(cmd)
		if err != nil {
			return err
		}

		orders, err := client.ListOrders()
		if err != nil {
			return fmt.Errorf("failed to list orders: %w", err)
		}

		outputFormat, _ := cmd.Flags().GetString("output")
		if outputFormat == "json" {
			return printJSON(orders)
		}

		if len(orders) == 0 {
			printInfo("No orders found")
			return nil
		}

		t := newTable("ID", "Status", "Items", "Created")
		for _, o := range orders {
			t.addRow(
				o.ID,
				o.Status,
				strconv.Itoa(len(o.Items)),
				o.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		t.render()
		return nil
	},
}

var ordersCreateCmd = &cobra.Command{
	Use:   "create [productId:quantity]...",
	Short: "Create an order",
	Long:  "Create an order from one or more productId:quantity pairs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items := make([]models.OrderItemRequest, 0, len(args))
		for _, arg := range args {
			item, err := parseOrderItem(arg)
			if err != nil {
				return err
			}
			items = append(items, item)
		}

		client, err := apiClient(cmd)
		if err != nil {
			return err
		}

		order, err := client.CreateOrder(items)
		if err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		printSuccess("Order created: %s", order.ID)
		printInfo("Status: %s", order.Status)
		printInfo("Items: %d", len(order.Items))
		return nil
	},
}

func parseOrderItem(arg string) (models.OrderItemRequest, error) {
	idx := strings.LastIndex(arg, ":")
	if idx <= 0 || idx == len(arg)-1 {
		return models.OrderItemRequest{}, fmt.Errorf("invalid item %q, expected productId:quantity", arg)
	}
	quantity, err := strconv.Atoi(arg[idx+1:])
	if err != nil || quantity < 1 {
		return models.OrderItemRequest{}, fmt.Errorf("invalid quantity in %q", arg)
	}
	return models.OrderItemRequest{ProductID: arg[:idx], Quantity: quantity}, nil
}

func init() {
	rootCmd.AddCommand(productsCmd)
	productsCmd.AddCommand(productsListCmd)
	productsCmd.AddCommand(productsCreateCmd)

	rootCmd.AddCommand(ordersCmd)
	ordersCmd.AddCommand(ordersListCmd)
	ordersCmd.AddCommand(ordersCreateCmd)

	productsCreateCmd.Flags().StringP("name", "n", "", "Product name")
	productsCreateCmd.Flags().Float64P("price", "p", 0, "Product price")
	if err := productsCreateCmd.MarkFlagRequired("name"); err != nil {
		panic(fmt.Sprintf("failed to mark name as required: %v", err))
	}
	if err := productsCreateCmd.MarkFlagRequired("price"); err != nil {
		panic(fmt.Sprintf("failed to mark price as required: %v", err))
	}
}
