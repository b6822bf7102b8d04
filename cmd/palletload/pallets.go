package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/JonMunkholm/palletload/internal/core"
	"github.com/spf13/cobra"
)

func newPalletsCmd(a *app) *cobra.Command {
	var (
		country  string
		openOnly bool
	)

	cmd := &cobra.Command{
		Use:   "pallets [PALLET_ID]",
		Short: "Show pallet status rows",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.bootstrap(ctx, false); err != nil {
				return err
			}

			if len(args) == 1 {
				p, err := a.store.GetPallet(ctx, args[0])
				if err != nil {
					return err
				}
				return printPallets(cmd.OutOrStdout(), []core.PalletStatus{p})
			}

			pallets, err := a.store.ListPallets(ctx, core.PalletFilter{
				CountryCode: country,
				OpenOnly:    openOnly,
				Capacity:    a.cfg.Import.PalletCapacity,
			})
			if err != nil {
				return err
			}
			return printPallets(cmd.OutOrStdout(), pallets)
		},
	}

	cmd.Flags().StringVar(&country, "country", "", "Only pallets of this country")
	cmd.Flags().BoolVar(&openOnly, "open", false, "Only pallets below capacity")

	return cmd
}

func printPallets(w io.Writer, pallets []core.PalletStatus) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PALLET\tCOUNTRY\tSTATUS\tQUANTITY")
	for _, p := range pallets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", p.PalletID, p.CountryCode, p.ConsoleStatus, p.Quantity)
	}
	return tw.Flush()
}
