package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
)

var workbookExtensions = []string{".xlsx", ".xls"}

func markRequired(cmd *cobra.Command, requiredFlags ...string) error {
	for _, flag := range requiredFlags {
		if err := cmd.MarkFlagRequired(flag); err != nil {
			return err
		}
	}

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if funk.ContainsString(requiredFlags, f.Name) {
			f.Usage = fmt.Sprintf("%s (required)", f.Usage)
		}
	})

	return nil
}

func validateWorkbookPath(path string) error {
	if path == "" {
		return fmt.Errorf("a workbook file is required")
	}
	if !funk.ContainsString(workbookExtensions, strings.ToLower(filepath.Ext(path))) {
		return fmt.Errorf("only Excel files are allowed (%s)", strings.Join(workbookExtensions, ", "))
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
