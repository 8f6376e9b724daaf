package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	api "github.com/autolot/dealer-admin/api/v1alpha1"
	"github.com/autolot/dealer-admin/internal/importer"
	"github.com/autolot/dealer-admin/internal/sheet"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
)

type ImportPreviewOptions struct {
	GlobalOptions

	FilePath string
	Output   string
}

func DefaultImportPreviewOptions() *ImportPreviewOptions {
	return &ImportPreviewOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdImportPreview() *cobra.Command {
	o := DefaultImportPreviewOptions()
	cmd := &cobra.Command{
		Use:          "preview --file FILE",
		Short:        "Check a workbook locally without uploading it.",
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

	if err := markRequired(cmd, "file"); err != nil {
		panic(err)
	}

	return cmd
}

func (o *ImportPreviewOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVarP(&o.FilePath, "file", "f", o.FilePath, "Path to the Excel workbook (.xlsx)")
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *ImportPreviewOptions) Complete(cmd *cobra.Command, args []string) error {
	return o.GlobalOptions.Complete(cmd, args)
}

func (o *ImportPreviewOptions) Validate(args []string) error {
	if len(o.Output) > 0 && !funk.Contains(legalOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	return validateWorkbookPath(o.FilePath)
}

type previewResult struct {
	Preview    []api.Row      `json:"preview"`
	Errors     []api.RowError `json:"errors"`
	Total      int            `json:"total"`
	ValidCount int            `json:"validCount"`
}

func (o *ImportPreviewOptions) Run(ctx context.Context, args []string) error {
	file, err := os.Open(o.FilePath)
	if err != nil {
		return fmt.Errorf("opening workbook: %w", err)
	}
	defer file.Close()

	rows, rowErrors, err := sheet.ParseWorkbook(file)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", o.FilePath, err)
	}

	job := importer.Job{Preview: rows, Errors: rowErrors, Total: len(rows)}
	if ok, err := printStructured(o.out, previewResult{
		Preview:    rows,
		Errors:     rowErrors,
		Total:      len(rows),
		ValidCount: job.ValidCount(),
	}, o.Output); ok {
		return err
	}

	printPreview(o.out, job)
	return nil
}
