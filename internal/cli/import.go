package cli

import (
	"github.com/spf13/cobra"
)

func NewCmdImport() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk import cars from an Excel workbook.",
	}
	cmd.AddCommand(NewCmdImportRun())
	cmd.AddCommand(NewCmdImportPreview())
	cmd.AddCommand(NewCmdImportTemplate())
	cmd.AddCommand(newCmdImportStatus())
	cmd.AddCommand(newCmdImportCancel())
	return cmd
}

// newCmdImportStatus is a shortcut for "get session/JOB_ID".
func newCmdImportStatus() *cobra.Command {
	o := DefaultGetOptions()
	cmd := &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show the status of an import job.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			args = []string{SessionKind + "/" + args[0]}
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

// newCmdImportCancel is a shortcut for "delete session/JOB_ID".
func newCmdImportCancel() *cobra.Command {
	o := DefaultDeleteOptions()
	cmd := &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Cancel an import that was uploaded but not confirmed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			args = []string{SessionKind + "/" + args[0]}
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
