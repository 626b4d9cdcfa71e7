package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kumanofoo/tako/internal/client"
)

var orderOwnerID string

func init() {
	rootCmd.AddCommand(orderCmd)
	orderCmd.Flags().StringVar(&orderOwnerID, "id", consoleDefaultID, "Owner ID")
}

var orderCmd = &cobra.Command{
	Use:   "order QUANTITY",
	Short: "Order tako for the next market",
	Long: `Order tako for the next market. The order replaces any earlier one
for the same date; a quantity the balance cannot cover is rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: runOrder,
}

func runOrder(cmd *cobra.Command, args []string) error {
	quantity, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || quantity < 0 {
		return fmt.Errorf("quantity must be a non-negative number, got %q", args[0])
	}

	ctx := cmd.Context()
	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	c, err := client.New(ctx, db, nil, orderOwnerID, "")
	if err != nil {
		return err
	}
	maxQuantity, balance, err := c.MaxOrderQuantity(ctx)
	if err != nil {
		return err
	}
	if quantity > maxQuantity {
		return fmt.Errorf("%d JPY covers at most %d tako", balance, maxQuantity)
	}

	ok, err := c.Order(ctx, quantity)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no market is pending")
	}
	next, err := c.NextMarket(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Ordered %d tako for the market in %s on %s\n",
		quantity, next.Area, next.Date)
	return nil
}
