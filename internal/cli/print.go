package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	api "github.com/autolot/dealer-admin/api/v1alpha1"
	"github.com/autolot/dealer-admin/internal/importer"
	"sigs.k8s.io/yaml"
)

const (
	jsonFormat = "json"
	yamlFormat = "yaml"
)

var (
	legalOutputTypes = []string{jsonFormat, yamlFormat}
)

// printStructured writes v as json or yaml. It returns false for any other format.
func printStructured(w io.Writer, v any, output string) (bool, error) {
	var (
		marshalled []byte
		err        error
	)
	switch output {
	case jsonFormat:
		marshalled, err = json.Marshal(v)
	case yamlFormat:
		marshalled, err = yaml.Marshal(v)
	default:
		return false, nil
	}
	if err != nil {
		return true, fmt.Errorf("marshalling resource: %w", err)
	}
	fmt.Fprintf(w, "%s\n", string(marshalled))
	return true, nil
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 8, 1, '\t', 0)
}

func printCarsTable(out io.Writer, cars ...api.Car) {
	w := newTabWriter(out)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tYEAR\tMILEAGE\tTRANSMISSION\tBODY\tFUEL")
	for _, c := range cars {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n", c.ID, c.Name, formatPrice(c.Price), c.Year, c.Mileage, c.Transmission, c.BodyType, c.FuelType)
	}
	w.Flush()
}

func printRowsTable(out io.Writer, rows []api.Row) {
	w := newTabWriter(out)
	fmt.Fprintln(w, "#\tNAME\tPRICE\tYEAR\tMILEAGE\tTRANSMISSION\tBODY\tFUEL\tFEATURED")
	for i, r := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%t\n", i+1, r.Name, formatPrice(r.Price), r.Year, r.Mileage, r.Transmission, r.BodyType, r.FuelType, r.Featured)
	}
	w.Flush()
}

func printRowErrors(out io.Writer, errs []api.RowError) {
	if len(errs) == 0 {
		return
	}
	w := newTabWriter(out)
	fmt.Fprintln(w, "NAME\tERROR")
	for _, e := range errs {
		fmt.Fprintf(w, "%s\t%s\n", e.Data.Name, e.Error)
	}
	w.Flush()
}

func printStatus(out io.Writer, status *api.ImportStatusResponse) {
	w := newTabWriter(out)
	fmt.Fprintln(w, "JOB ID\tSTATUS\tERRORS")
	fmt.Fprintf(w, "%s\t%s\t%d\n", status.JobID, status.Status, len(status.Errors))
	w.Flush()
	printRowErrors(out, status.Errors)
}

func printPreview(out io.Writer, job importer.Job) {
	printRowsTable(out, job.Preview)
	printRowErrors(out, job.Errors)
	fmt.Fprintf(out, "%d of %d rows are valid\n", job.ValidCount(), len(job.Preview))
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
