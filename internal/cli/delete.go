package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type DeleteOptions struct {
	GlobalOptions
}

func DefaultDeleteOptions() *DeleteOptions {
	return &DeleteOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdDelete() *cobra.Command {
	o := DefaultDeleteOptions()
	cmd := &cobra.Command{
		Use:   "delete session/JOB_ID",
		Short: "Delete an import session that was not confirmed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *DeleteOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
}

func (o *DeleteOptions) Complete(cmd *cobra.Command, args []string) error {
	return o.GlobalOptions.Complete(cmd, args)
}

func (o *DeleteOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}

	kind, id, err := parseAndValidateKindId(args[0])
	if err != nil {
		return err
	}
	if kind != SessionKind {
		return fmt.Errorf("only %s resources can be deleted", plural(SessionKind))
	}
	if id == "" {
		return fmt.Errorf("a job id is required: %s/JOB_ID", SessionKind)
	}

	return nil
}

func (o *DeleteOptions) Run(ctx context.Context, args []string) error {
	_, id, err := parseAndValidateKindId(args[0])
	if err != nil {
		return err
	}

	c, err := o.Client()
	if err != nil {
		return err
	}

	if err := c.CancelImport(ctx, id); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", SessionKind, id, err)
	}
	fmt.Fprintf(o.out, "%s/%s deleted\n", SessionKind, id)
	return nil
}
