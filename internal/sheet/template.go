package sheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	templateSheet = "Cars"
	// rows covered by the drop-down lists of the template
	validatedRows = 1000
)

var exampleRow = []any{"Toyota Corolla 1.8 Hybrid", 21990, 2021, 32000, "Automatic", "Sedan", "Hybrid", "Silver", "No"}

// WriteTemplate writes the import template workbook to w.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}

	headers := make([]any, len(Headers))
	for i, h := range Headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(templateSheet, "A1", &headers); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := f.SetSheetRow(templateSheet, "A2", &exampleRow); err != nil {
		return fmt.Errorf("writing example row: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetCellStyle(templateSheet, "A1", "I1", bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	if err := f.SetColWidth(templateSheet, "A", "I", 18); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}

	dropDowns := map[string][]string{
		"E": titled(Transmissions),
		"F": titled(BodyTypes),
		"G": titled(FuelTypes),
		"I": {"Yes", "No"},
	}
	for col, values := range dropDowns {
		dv := excelize.NewDataValidation(true)
		dv.Sqref = fmt.Sprintf("%s2:%s%d", col, col, validatedRows)
		if err := dv.SetDropList(values); err != nil {
			return fmt.Errorf("building list for column %s: %w", col, err)
		}
		if err := f.AddDataValidation(templateSheet, dv); err != nil {
			return fmt.Errorf("adding list to column %s: %w", col, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing template: %w", err)
	}
	return nil
}

func titled(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		switch v {
		case "suv":
			out[i] = "SUV"
		default:
			out[i] = strings.ToUpper(v[:1]) + v[1:]
		}
	}
	return out
}
