package sheet

import (
	"strings"
)

// Column headers in template order.
var Headers = []string{
	"Name",
	"Price",
	"Year",
	"Mileage",
	"Transmission",
	"Body Type",
	"Fuel Type",
	"Color",
	"Featured",
}

const (
	keyName         = "name"
	keyPrice        = "price"
	keyYear         = "year"
	keyMileage      = "mileage"
	keyTransmission = "transmission"
	keyBodyType     = "bodytype"
	keyFuelType     = "fueltype"
	keyColor        = "color"
	keyFeatured     = "featured"
)

var requiredKeys = []string{keyName, keyPrice, keyYear}

var (
	Transmissions = []string{"automatic", "manual"}
	BodyTypes     = []string{"sedan", "suv", "hatchback", "coupe", "convertible", "wagon", "pickup", "van"}
	FuelTypes     = []string{"petrol", "diesel", "hybrid", "electric"}
)

// spellings dealers commonly use for the enumerated columns
var aliases = map[string]string{
	"auto":      "automatic",
	"gasoline":  "petrol",
	"gas":       "petrol",
	"ev":        "electric",
	"truck":     "pickup",
	"estate":    "wagon",
	"cabriolet": "convertible",
	"minivan":   "van",
}

// headerKey normalises "Body Type", "body_type" and "bodyType" to the same key.
func headerKey(header string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(header)))
}

func buildColumnMap(headers []string) map[string]int {
	colMap := make(map[string]int)
	for i, header := range headers {
		key := headerKey(header)
		if _, seen := colMap[key]; !seen {
			colMap[key] = i
		}
	}
	return colMap
}

func getColumnValue(row []string, colMap map[string]int, key string) string {
	if idx, exists := colMap[key]; exists && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func normalizeEnum(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := aliases[v]; ok {
		return alias
	}
	return v
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
