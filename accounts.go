package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"idlearena/store"
)

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect stored accounts",
	}
	cmd.AddCommand(newAccountsListCmd())
	cmd.AddCommand(newAccountsShowCmd())
	return cmd
}

func withStore(fn func(ctx context.Context, st store.Store) error) error {
	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Kind, err)
	}
	defer st.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return fn(ctx, st)
}

func newAccountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts with level and gold",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, st store.Store) error {
				names, err := st.List(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "USERNAME\tCLASS\tLEVEL\tGOLD\tLAST ONLINE")
				for _, name := range names {
					acc, err := st.Load(ctx, name)
					if err != nil {
						fmt.Fprintf(os.Stderr, "load %s: %v\n", name, err)
						continue
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
						acc.Username, acc.Class, acc.Level, acc.Gold, acc.LastOnline.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
}

func newAccountsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <username>",
		Short: "Print one account as JSON (password hash omitted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, st store.Store) error {
				acc, err := st.Load(ctx, args[0])
				if err != nil {
					return err
				}
				acc.PasswordHash = ""
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(acc)
			})
		},
	}
}
