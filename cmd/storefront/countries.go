package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/npmart/storefront/internal/locale"
)

func createCountriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "countries",
		Short: "List supported countries",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tCURRENCY\tPREFIX\tSELLERS")
			for _, c := range locale.All() {
				fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%t\n", c.Code, c.Name, c.CurrencySymbol, c.CurrencyCode, c.PhonePrefix, locale.IsSellerEligible(c))
			}
			return w.Flush()
		},
	}
}
