package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kumanofoo/tako/internal/client"
	"github.com/kumanofoo/tako/internal/domain"
)

var (
	accountOpenID   string
	accountOpenName string
)

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountOpenCmd)
	accountCmd.AddCommand(accountDeleteCmd)
	accountCmd.AddCommand(accountRenameCmd)

	accountOpenCmd.Flags().StringVar(&accountOpenID, "id", "",
		"Owner ID (a fresh UUID when omitted)")
	accountOpenCmd.Flags().StringVar(&accountOpenName, "name", "",
		"Display name (a random one when omitted)")
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage owner accounts",
}

// ─── account open ───────────────────────────────────────────────────────────

var accountOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a new account with the seed money",
	RunE:  runAccountOpen,
}

func runAccountOpen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	ownerID := accountOpenID
	if ownerID == "" {
		ownerID = uuid.NewString()
	}
	name := accountOpenName
	if name == "" {
		name = client.RandomName()
	}
	if err := db.OpenAccount(ctx, ownerID, name); err != nil {
		if errors.Is(err, domain.ErrAccountExists) {
			return fmt.Errorf("account %q already exists", ownerID)
		}
		return err
	}
	fmt.Printf("Opened account %q as %q with %d JPY\n",
		ownerID, name, db.Params().SeedMoney)
	return nil
}

// ─── account delete ─────────────────────────────────────────────────────────

var accountDeleteCmd = &cobra.Command{
	Use:   "delete OWNER_ID",
	Short: "Delete an account and everything it owns",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountDelete,
}

func runAccountDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteAccount(ctx, args[0]); err != nil {
		if errors.Is(err, domain.ErrNoAccount) {
			return fmt.Errorf("account %q not found", args[0])
		}
		return err
	}
	fmt.Printf("Deleted account %q\n", args[0])
	return nil
}

// ─── account rename ─────────────────────────────────────────────────────────

var accountRenameCmd = &cobra.Command{
	Use:   "rename OWNER_ID NAME",
	Short: "Change an account's display name",
	Args:  cobra.ExactArgs(2),
	RunE:  runAccountRename,
}

func runAccountRename(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.ChangeName(ctx, args[0], args[1]); err != nil {
		switch {
		case errors.Is(err, domain.ErrNoAccount):
			return fmt.Errorf("account %q not found", args[0])
		case errors.Is(err, domain.ErrEmptyName):
			return fmt.Errorf("the new name must not be empty")
		}
		return err
	}
	fmt.Printf("Renamed %q to %q\n", args[0], args[1])
	return nil
}
