package cli

import (
	"fmt"
	"strings"

	"github.com/autolot/dealer-admin/pkg/version"
	"github.com/spf13/cobra"
	"github.com/thoas/go-funk"
)

type VersionOptions struct {
	Output string
}

func DefaultVersionOptions() *VersionOptions {
	return &VersionOptions{
		Output: "",
	}
}

func NewCmdVersion() *cobra.Command {
	o := DefaultVersionOptions()
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print dealerctl version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(o.Output) > 0 && !funk.Contains(legalOutputTypes, o.Output) {
				return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
			}
			return o.Run(cmd, args)
		},
	}
	cmd.Flags().StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
	return cmd
}

func (o *VersionOptions) Run(cmd *cobra.Command, args []string) error {
	versionInfo := version.Get()
	if ok, err := printStructured(cmd.OutOrStdout(), versionInfo, o.Output); ok {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "dealerctl Version: %s\n", versionInfo.String())
	return nil
}

