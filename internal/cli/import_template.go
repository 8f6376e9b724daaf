package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/autolot/dealer-admin/internal/client"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type ImportTemplateOptions struct {
	GlobalOptions

	OutputPath string
}

func DefaultImportTemplateOptions() *ImportTemplateOptions {
	return &ImportTemplateOptions{
		GlobalOptions: DefaultGlobalOptions(),
		OutputPath:    client.TemplateFileName,
	}
}

func NewCmdImportTemplate() *cobra.Command {
	o := DefaultImportTemplateOptions()
	cmd := &cobra.Command{
		Use:          "template [-o PATH]",
		Short:        "Download the Excel import template.",
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
	return cmd
}

func (o *ImportTemplateOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.OutputPath, "output", "o", o.OutputPath, "Where to save the template")
}

func (o *ImportTemplateOptions) Complete(cmd *cobra.Command, args []string) error {
	return o.GlobalOptions.Complete(cmd, args)
}

func (o *ImportTemplateOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	return nil
}

func (o *ImportTemplateOptions) Run(ctx context.Context, args []string) error {
	c, err := o.Client()
	if err != nil {
		return err
	}

	f, err := os.Create(o.OutputPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", o.OutputPath, err)
	}

	n, err := c.DownloadTemplate(ctx, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(o.OutputPath)
		return fmt.Errorf("downloading template: %w", err)
	}

	fmt.Fprintf(o.out, "Template saved to %s (%d bytes)\n", o.OutputPath, n)
	return nil
}
