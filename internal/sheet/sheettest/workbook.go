// Package sheettest builds in-memory workbooks for tests.
package sheettest

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

var DefaultHeaders = []string{"Name", "Price", "Year", "Mileage", "Transmission", "Body Type", "Fuel Type", "Color", "Featured"}

// Workbook returns the bytes of an .xlsx file whose first sheet holds headers
// followed by rows. It panics on excelize errors.
func Workbook(headers []string, rows [][]any) []byte {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	must(f.SetSheetRow(sheet, "A1", &header))

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		must(err)
		r := row
		must(f.SetSheetRow(sheet, cell, &r))
	}

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	must(err)
	return buf.Bytes()
}

// CarRows returns n valid rows in DefaultHeaders order.
func CarRows(n int) [][]any {
	rows := make([][]any, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, []any{
			fmt.Sprintf("Car %d", i+1),
			15000 + i*500,
			2015 + i%8,
			10000 * (i + 1),
			"Automatic",
			"Sedan",
			"Petrol",
			"Blue",
			"No",
		})
	}
	return rows
}

func must(err error) {
	if err != nil {
		panic(fmt.Errorf("building workbook: %w", err))
	}
}
