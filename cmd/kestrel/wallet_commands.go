package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	"github.com/kestrelwallet/kestrel/client"
)

// newClient builds an API client from the global --server flag, logging
// errors only.
func newClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	return client.NewClient(c.String("server"), nil, logger)
}

// printJQ marshals v and runs it through an optional jq filter before
// printing.
func printJQ(v interface{}, filter string) error {
	if filter == "" {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	query, err := gojq.Parse(filter)
	if err != nil {
		return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}

	// Round-trip through JSON so gojq sees plain maps and slices
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var input interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return err
	}

	iter := code.Run(input)
	for {
		out, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := out.(error); isErr {
			return err
		}
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	}
	return nil
}

func jqFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "jq",
		Usage: "jq filter applied to the JSON output",
	}
}

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Wallet management commands",
		Subcommands: []*cli.Command{
			walletCreateCommand(),
			walletListCommand(),
			walletImportCommand(),
			walletExportCommand(),
			walletRemoveCommand(),
			walletSelectCommand(),
			walletBalancesCommand(),
		},
	}
}

func walletCreateCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a wallet with addresses for every configured coin family",
		ArgsUsage: "NAME",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mnemonic",
				Usage: "BIP-39 seed phrase; omit to generate a fresh one",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet name is required")
			}

			cl := newClient(c)
			wallet, err := cl.CreateWallet(context.Background(), c.Args().Get(0), c.String("mnemonic"))
			if err != nil {
				return fmt.Errorf("failed to create wallet: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(wallet, "", "  ")
				fmt.Println(string(data))
			} else {
				fmt.Printf("✓ Wallet created\n")
				fmt.Printf("  ID:   %s\n", wallet.ID)
				fmt.Printf("  Name: %s\n", wallet.Name)
				for family, address := range wallet.Addresses {
					fmt.Printf("  %-9s %s\n", family+":", address)
				}
			}
			return nil
		},
	}
}

func walletListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List all wallets",
		Flags:   []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			cl := newClient(c)
			wallets, selected, err := cl.ListWallets(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list wallets: %w", err)
			}

			if c.Bool("json") || c.String("jq") != "" {
				return printJQ(map[string]interface{}{
					"wallets":  wallets,
					"selected": selected,
				}, c.String("jq"))
			}

			if len(wallets) == 0 {
				fmt.Println("No wallets.")
				return nil
			}
			for _, w := range wallets {
				marker := " "
				if w.ID == selected {
					marker = "*"
				}
				fmt.Printf("%s %s  %s  (%d addresses)\n", marker, w.ID, w.Name, len(w.Addresses))
			}
			return nil
		},
	}
}

func walletImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a wallet from a backup file (use - for stdin)",
		ArgsUsage: "BACKUP_FILE",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("backup file is required")
			}

			var raw []byte
			var err error
			if path := c.Args().Get(0); path == "-" {
				raw, err = io.ReadAll(os.Stdin)
			} else {
				raw, err = os.ReadFile(path)
			}
			if err != nil {
				return fmt.Errorf("failed to read backup: %w", err)
			}

			var backup client.Backup
			if err := json.Unmarshal(raw, &backup); err != nil {
				return fmt.Errorf("failed to parse backup: %w", err)
			}

			cl := newClient(c)
			wallet, err := cl.ImportWallet(context.Background(), backup)
			if err != nil {
				return fmt.Errorf("failed to import wallet: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(wallet, "", "  ")
				fmt.Println(string(data))
			} else {
				fmt.Printf("✓ Wallet imported\n")
				fmt.Printf("  ID:   %s\n", wallet.ID)
				fmt.Printf("  Name: %s\n", wallet.Name)
			}
			return nil
		},
	}
}

func walletExportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export a wallet backup to stdout (includes the seed phrase)",
		ArgsUsage: "WALLET_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet id is required")
			}

			cl := newClient(c)
			backup, err := cl.ExportWallet(context.Background(), c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to export wallet: %w", err)
			}

			data, err := json.MarshalIndent(backup, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func walletRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Aliases:   []string{"rm", "delete"},
		Usage:     "Delete a wallet",
		ArgsUsage: "WALLET_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet id is required")
			}

			cl := newClient(c)
			id := c.Args().Get(0)
			if err := cl.DeleteWallet(context.Background(), id); err != nil {
				return fmt.Errorf("failed to delete wallet: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.Marshal(map[string]string{"id": id, "status": "deleted"})
				fmt.Println(string(data))
			} else {
				fmt.Printf("✓ Wallet deleted: %s\n", id)
			}
			return nil
		},
	}
}

func walletSelectCommand() *cli.Command {
	return &cli.Command{
		Name:      "select",
		Usage:     "Mark a wallet as the selected one",
		ArgsUsage: "WALLET_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet id is required")
			}

			cl := newClient(c)
			id := c.Args().Get(0)
			if err := cl.SelectWallet(context.Background(), id); err != nil {
				return fmt.Errorf("failed to select wallet: %w", err)
			}
			fmt.Printf("✓ Wallet selected: %s\n", id)
			return nil
		},
	}
}

func walletBalancesCommand() *cli.Command {
	return &cli.Command{
		Name:      "balances",
		Usage:     "Refresh and show a wallet's balances across coin families",
		ArgsUsage: "WALLET_ID",
		Flags:     []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet id is required")
			}

			cl := newClient(c)
			balances, err := cl.GetBalances(context.Background(), c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to get balances: %w", err)
			}

			if c.Bool("json") || c.String("jq") != "" {
				return printJQ(balances, c.String("jq"))
			}

			if len(balances) == 0 {
				fmt.Println("No balances available (all backends unreachable?).")
				return nil
			}
			for _, b := range balances {
				fmt.Printf("%-9s confirmed=%s pending=%s (as of %s)\n",
					b.Family, b.Confirmed.String(), b.Pending.String(), b.AsOf.Format("15:04:05"))
			}
			return nil
		},
	}
}
