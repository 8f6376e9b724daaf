package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
)

type GetOptions struct {
	GlobalOptions

	Output string
}

func DefaultGetOptions() *GetOptions {
	return &GetOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdGet() *cobra.Command {
	o := DefaultGetOptions()
	cmd := &cobra.Command{
		Use:     "get (cars | session/JOB_ID)",
		Short:   "Display the car inventory or an import session.",
		Example: "get cars -o yaml\nget session/8f14e45f-ceea-467f-a0e6-3d3b2c0f7a1e",
		Args:    cobra.ExactArgs(1),
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

func (o *GetOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *GetOptions) Complete(cmd *cobra.Command, args []string) error {
	return o.GlobalOptions.Complete(cmd, args)
}

func (o *GetOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}

	kind, id, err := parseAndValidateKindId(args[0])
	if err != nil {
		return err
	}
	if kind == SessionKind && id == "" {
		return fmt.Errorf("a job id is required: %s/JOB_ID", SessionKind)
	}
	if kind == CarKind && id != "" {
		return fmt.Errorf("reading a single car is not supported")
	}

	if len(o.Output) > 0 && !funk.Contains(legalOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}

	return nil
}

func (o *GetOptions) Run(ctx context.Context, args []string) error {
	kind, id, err := parseAndValidateKindId(args[0])
	if err != nil {
		return err
	}

	switch kind {
	case CarKind:
		return o.listCars(ctx)
	case SessionKind:
		return o.readSession(ctx, id)
	default:
		return fmt.Errorf("unsupported resource kind: %s", kind)
	}
}

func (o *GetOptions) listCars(ctx context.Context) error {
	c, err := o.Client()
	if err != nil {
		return err
	}

	cars, err := c.ListCars(ctx)
	if err != nil {
		return fmt.Errorf("listing %s: %w", plural(CarKind), err)
	}

	if ok, err := printStructured(o.out, cars, o.Output); ok {
		return err
	}
	printCarsTable(o.out, cars...)
	return nil
}

func (o *GetOptions) readSession(ctx context.Context, jobID string) error {
	c, err := o.Client()
	if err != nil {
		return err
	}

	status, err := c.GetImportStatus(ctx, jobID)
	if err != nil {
		return fmt.Errorf("reading %s/%s: %w", SessionKind, jobID, err)
	}

	if ok, err := printStructured(o.out, status, o.Output); ok {
		return err
	}
	printStatus(o.out, status)
	return nil
}
