package importer

import (
	api "github.com/autolot/dealer-admin/api/v1alpha1"
)

// Stage is the coordinator state seen by the operator.
type Stage string

const (
	StageUpload    Stage = "upload"
	StagePreview   Stage = "preview"
	StageImporting Stage = "importing"
	StageComplete  Stage = "complete"
	StageCancelled Stage = "cancelled"
)

// Coarse progress indicator: it does not track rows processed.
const (
	ProgressIdle      = 0
	ProgressImporting = 50
	ProgressDone      = 100
)

// Job is a snapshot of the coordinator's view of the current import.
type Job struct {
	JobID    string
	Status   api.ImportStatus
	Total    int
	Preview  []api.Row
	Errors   []api.RowError
	Stage    Stage
	Progress int
}

func initialJob() Job {
	return Job{Stage: StageUpload, Progress: ProgressIdle}
}

// ValidCount is the number of preview rows not referenced by an error.
func (j Job) ValidCount() int {
	return ValidCount(j.Preview, j.Errors)
}

func (j Job) clone() Job {
	out := j
	if j.Preview != nil {
		out.Preview = append([]api.Row(nil), j.Preview...)
	}
	if j.Errors != nil {
		out.Errors = append([]api.RowError(nil), j.Errors...)
	}
	return out
}

// Partition splits preview into the rows that will be imported and the errors
// that reference a preview row. Each error consumes at most one matching row,
// so duplicated rows are counted correctly. Errors that match no row are
// dropped from invalid.
func Partition(preview []api.Row, errs []api.RowError) (valid []api.Row, invalid []api.RowError) {
	pending := make(map[api.Row]int, len(errs))
	for _, e := range errs {
		pending[e.Data]++
	}

	valid = make([]api.Row, 0, len(preview))
	matched := make(map[api.Row]int, len(errs))
	for _, row := range preview {
		if pending[row] > 0 {
			pending[row]--
			matched[row]++
			continue
		}
		valid = append(valid, row)
	}

	invalid = make([]api.RowError, 0, len(errs))
	for _, e := range errs {
		if matched[e.Data] > 0 {
			matched[e.Data]--
			invalid = append(invalid, e)
		}
	}
	return valid, invalid
}

// ValidCount returns len(valid) of Partition(preview, errs). For errors derived
// from preview, ValidCount(preview, errs)+len(errs) == len(preview).
func ValidCount(preview []api.Row, errs []api.RowError) int {
	valid, _ := Partition(preview, errs)
	return len(valid)
}
