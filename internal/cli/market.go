package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kumanofoo/tako/internal/domain"
	"github.com/kumanofoo/tako/internal/takotime"
)

func init() {
	rootCmd.AddCommand(marketCmd)
	marketCmd.AddCommand(marketNextCmd)
	marketCmd.AddCommand(marketHistoryCmd)
}

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Show the market schedule",
}

// ─── market next ────────────────────────────────────────────────────────────

var marketNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the pending market",
	RunE:  runMarketNext,
}

func runMarketNext(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	next, err := db.NextMarket(ctx, takotime.MarketDate(takotime.SystemClock{}.Now()))
	if errors.Is(err, domain.ErrNoMarket) {
		fmt.Println("No market is pending.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Next:  %s\n", next.Area)
	fmt.Printf("Open:  %s JST\n", next.Opening.In(takotime.JST).Format("2006-01-02 15:04"))
	fmt.Printf("Close: %s JST\n", next.Closing.In(takotime.JST).Format("2006-01-02 15:04"))
	return nil
}

// ─── market history ─────────────────────────────────────────────────────────

var marketHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past markets newest first",
	RunE:  runMarketHistory,
}

func runMarketHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	markets, err := db.MarketHistory(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Date       Area     Weather Max sales Status")
	fmt.Println(strings.Repeat("-", 50))
	for _, m := range markets {
		fmt.Printf("%s %-8s %-7s %9d %s\n",
			m.Date, m.Area, m.Weather, m.Sales, m.Status)
	}
	return nil
}
