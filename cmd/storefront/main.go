package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "storefront",
		Short: "NpMart storefront API",
		Long:  "Country-aware storefront API with phone OTP registration for India and Nepal",
	}

	rootCmd.AddCommand(
		createServeCmd(),
		createMigrateCmd(),
		createCountriesCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
