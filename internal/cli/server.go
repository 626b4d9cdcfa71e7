package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kumanofoo/tako/internal/daemon"
)

var serverOneshot bool

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().BoolVar(&serverOneshot, "oneshot", false,
		"Run a single scheduler pass and exit")
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the market server",
	Long: `Run the market scheduler, the house trading bot, the chat front end
and the HTTP API until interrupted. With --oneshot the scheduler takes a
single pass (schedule, open or close whatever is due) and exits; cron can
drive the market that way instead of a long-running process.`,
	RunE: runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, secrets, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := daemon.New(ctx, cfg, secrets)
	if err != nil {
		return err
	}
	defer d.Close()

	if serverOneshot {
		return d.Scheduler().RunOnce(ctx)
	}
	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
