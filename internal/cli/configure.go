package cli

import (
	"context"
	"fmt"

	"github.com/autolot/dealer-admin/internal/client"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type ConfigureOptions struct {
	GlobalOptions
}

func DefaultConfigureOptions() *ConfigureOptions {
	return &ConfigureOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdConfigure() *cobra.Command {
	o := DefaultConfigureOptions()
	cmd := &cobra.Command{
		Use:          "configure --server-url URL",
		Short:        "Save the dealer API address in the client config file.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
	}
	o.Bind(cmd.Flags())

	if err := markRequired(cmd, "server-url"); err != nil {
		panic(err)
	}

	return cmd
}

func (o *ConfigureOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ServerUrl, "server-url", "u", o.ServerUrl, "Address of the dealer API")
	fs.StringVar(&o.ConfigFilePath, "config", o.ConfigFilePath, "Path to the client config file")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level (debug, info, warn, error)")
}

func (o *ConfigureOptions) Complete(cmd *cobra.Command, args []string) error {
	return o.GlobalOptions.Complete(cmd, args)
}

func (o *ConfigureOptions) Validate(args []string) error {
	if o.ConfigFilePath == "" {
		return fmt.Errorf("config file path is required")
	}
	return nil
}

func (o *ConfigureOptions) Run(ctx context.Context, args []string) error {
	if err := client.WriteConfig(o.ConfigFilePath, o.ServerUrl); err != nil {
		return err
	}
	fmt.Fprintf(o.out, "Configuration written to %s\n", o.ConfigFilePath)
	return nil
}
