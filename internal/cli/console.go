package cli

import (
	"bufio"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/kumanofoo/tako/internal/client"
	"github.com/kumanofoo/tako/internal/weather"
)

// Default console identity.
const (
	consoleDefaultID   = "RB-79"
	consoleDefaultName = "Ball"
)

var (
	consoleOwnerID string
	consoleName    string
)

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().StringVar(&consoleOwnerID, "id", consoleDefaultID, "Owner ID")
	consoleCmd.Flags().StringVar(&consoleName, "name", consoleDefaultName, "Display name")
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Trade interactively from the terminal",
	Long: `An interactive trading session. An empty line shows the market
status, a number places an order, 'history' shows past transactions and
'quit' leaves. The prompt shows the largest order the balance covers.`,
	RunE: runConsole,
}

func runConsole(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	stations, err := weather.LoadStations()
	if err != nil {
		return err
	}
	forecast := weather.NewClient(stations, weather.ClientConfig{
		BaseURL:    cfg.Weather.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.Weather.Timeout.Std()},
	})

	c, err := client.New(ctx, db, forecast, consoleOwnerID, consoleName)
	if err != nil {
		return err
	}
	it := client.NewInterpreter(c)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		maxQuantity, _, err := c.MaxOrderQuantity(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("tako[%d]: ", maxQuantity)
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		lines, keep := it.Interpret(ctx, scanner.Text())
		for _, line := range lines {
			fmt.Println(line)
		}
		if !keep {
			return nil
		}
	}
}
