package sheet

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	api "github.com/autolot/dealer-admin/api/v1alpha1"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ParseWorkbook reads the first sheet of an .xlsx workbook. Every non blank data
// row is returned in rows; rows that cannot be parsed or break a rule are also
// reported in rowErrors, with Data equal to the row value in rows.
func ParseWorkbook(r io.Reader) (rows []api.Row, rowErrors []api.RowError, err error) {
	excelFile, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening Excel file: %w", err)
	}
	defer excelFile.Close()

	sheets := excelFile.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}

	cells, err := excelFile.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(cells) == 0 {
		return nil, nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	colMap := buildColumnMap(cells[0])
	for _, key := range requiredKeys {
		if _, ok := colMap[key]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", key)
		}
	}

	rows = []api.Row{}
	rowErrors = []api.RowError{}
	for i, line := range cells[1:] {
		if isBlank(line) {
			continue
		}

		row, parseErr := parseRow(line, colMap)
		rows = append(rows, row)

		if parseErr == nil {
			parseErr = ValidateRow(row)
		}
		if parseErr != nil {
			rowErrors = append(rowErrors, api.RowError{
				Data:  row,
				Error: fmt.Sprintf("row %d: %s", i+2, parseErr.Error()),
			})
		}
	}

	zap.S().Named("sheet").Debugw("workbook parsed", "sheet", sheets[0], "rows", len(rows), "invalid", len(rowErrors))

	return rows, rowErrors, nil
}

// parseRow fills as much of the row as it can and returns the first cell error.
func parseRow(line []string, colMap map[string]int) (api.Row, error) {
	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	row := api.Row{
		Name:         getColumnValue(line, colMap, keyName),
		Transmission: normalizeEnum(getColumnValue(line, colMap, keyTransmission)),
		BodyType:     normalizeEnum(getColumnValue(line, colMap, keyBodyType)),
		FuelType:     normalizeEnum(getColumnValue(line, colMap, keyFuelType)),
		Color:        getColumnValue(line, colMap, keyColor),
		Featured:     parseBooleanValue(getColumnValue(line, colMap, keyFeatured)),
	}

	price, err := parsePrice(getColumnValue(line, colMap, keyPrice))
	if err != nil {
		keep(err)
	}
	row.Price = price

	year, err := parseInt("year", getColumnValue(line, colMap, keyYear))
	if err != nil {
		keep(err)
	}
	row.Year = year

	mileage, err := parseInt("mileage", getColumnValue(line, colMap, keyMileage))
	if err != nil {
		keep(err)
	}
	row.Mileage = mileage

	return row, firstErr
}

func parsePrice(s string) (float64, error) {
	clean := strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "").Replace(s)
	if clean == "" {
		return 0, fmt.Errorf("price is required")
	}
	val, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	return val, nil
}

// parseInt accepts thousands separators and unit suffixes such as "45,000 km".
func parseInt(field, s string) (int, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	clean = strings.TrimSpace(strings.TrimRight(clean, "kmiKMI "))
	if clean == "" {
		return 0, nil
	}
	val, err := strconv.Atoi(clean)
	if err != nil {
		// whole numbers stored as floats ("2019.0")
		f, ferr := strconv.ParseFloat(clean, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("invalid %s %q", field, s)
		}
		return int(f), nil
	}
	return val, nil
}

func parseBooleanValue(s string) bool {
	cleanStr := strings.ToLower(strings.TrimSpace(s))
	return cleanStr == "true" || cleanStr == "1" || cleanStr == "yes" || cleanStr == "y"
}
