package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

func txCommands() *cli.Command {
	return &cli.Command{
		Name:  "tx",
		Usage: "Transaction commands",
		Subcommands: []*cli.Command{
			txSendCommand(),
			txFeeCommand(),
		},
	}
}

func txSendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send a transaction from a wallet",
		ArgsUsage: "WALLET_ID TO_ADDRESS AMOUNT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "family",
				Aliases:  []string{"f"},
				Usage:    "Coin family (bitcoin, litecoin, ethereum, solana)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "priority",
				Aliases: []string{"p"},
				Value:   "normal",
				Usage:   "Fee priority (low, normal, high)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 3 {
				return fmt.Errorf("wallet id, recipient address and amount are required")
			}

			amount, err := decimal.NewFromString(c.Args().Get(2))
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", c.Args().Get(2), err)
			}

			cl := newClient(c)
			result, err := cl.SendTransaction(context.Background(),
				c.Args().Get(0), c.Args().Get(1), amount,
				c.String("family"), c.String("priority"))
			if err != nil {
				return fmt.Errorf("failed to send transaction: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			if result.Success {
				fmt.Printf("✓ Transaction submitted\n")
				fmt.Printf("  TxID:     %s\n", result.TxID)
				fmt.Printf("  Fee paid: %s\n", result.FeePaid.String())
			} else {
				fmt.Printf("✗ Transaction failed: %s\n", result.ErrorDetail)
			}
			return nil
		},
	}
}

func txFeeCommand() *cli.Command {
	return &cli.Command{
		Name:  "fee",
		Usage: "Estimate the fee for a transfer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "family",
				Aliases:  []string{"f"},
				Usage:    "Coin family",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "priority",
				Aliases: []string{"p"},
				Value:   "normal",
				Usage:   "Fee priority (low, normal, high)",
			},
		},
		Action: func(c *cli.Context) error {
			cl := newClient(c)
			fee, err := cl.EstimateFee(context.Background(), c.String("family"), c.String("priority"))
			if err != nil {
				return fmt.Errorf("failed to estimate fee: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.Marshal(map[string]string{
					"family":   c.String("family"),
					"priority": c.String("priority"),
					"fee":      fee.String(),
				})
				fmt.Println(string(data))
			} else {
				fmt.Printf("%s (%s): %s\n", c.String("family"), c.String("priority"), fee.String())
			}
			return nil
		},
	}
}

func networkStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Probe every configured coin backend",
		Action: func(c *cli.Context) error {
			cl := newClient(c)
			status, err := cl.NetworkStatus(context.Background())
			if err != nil {
				return fmt.Errorf("failed to check network status: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(status, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			for family, reachable := range status {
				mark := "✗"
				if reachable {
					mark = "✓"
				}
				fmt.Printf("%s %s\n", mark, family)
			}
			return nil
		},
	}
}

func validateAddressCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check an address's format for a coin family",
		ArgsUsage: "ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "family",
				Aliases:  []string{"f"},
				Usage:    "Coin family",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("address is required")
			}

			cl := newClient(c)
			valid, err := cl.ValidateAddress(context.Background(), c.Args().Get(0), c.String("family"))
			if err != nil {
				return fmt.Errorf("failed to validate address: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.Marshal(map[string]bool{"valid": valid})
				fmt.Println(string(data))
			} else if valid {
				fmt.Println("✓ valid")
			} else {
				fmt.Println("✗ invalid")
			}
			return nil
		},
	}
}
