package main

import (
	"os"

	"github.com/autolot/dealer-admin/internal/cli"
	"github.com/spf13/cobra"
)

func main() {
	command := NewDealerCtlCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewDealerCtlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dealerctl [flags] [options]",
		Short: "dealerctl manages the dealership car inventory.",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(cli.NewCmdImport())
	cmd.AddCommand(cli.NewCmdGet())
	cmd.AddCommand(cli.NewCmdDelete())
	cmd.AddCommand(cli.NewCmdConfigure())
	cmd.AddCommand(cli.NewCmdVersion())

	return cmd
}
