package main

import "github.com/spf13/cobra"

var (
	address string
)

var rootCmd = &cobra.Command{
	Use:   "import-sim",
	Short: "Local stand-in for the dealer API bulk import endpoints",
}

func init() {
	rootCmd.AddCommand(runCmd)

	rootCmd.PersistentFlags().StringVarP(&address, "address", "a", "", "Listen address, overrides DEALER_SIM_ADDRESS")
}
