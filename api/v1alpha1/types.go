package v1alpha1

// ImportStatus is the state of a bulk import job as reported by the import service.
type ImportStatus string

const (
	ImportStatusPending             ImportStatus = "Pending"
	ImportStatusProcessing          ImportStatus = "Processing"
	ImportStatusCompleted           ImportStatus = "Completed"
	ImportStatusCompletedWithErrors ImportStatus = "CompletedWithErrors"
	ImportStatusCancelled           ImportStatus = "Cancelled"
)

// IsTerminal reports whether the job will not change status anymore.
func (s ImportStatus) IsTerminal() bool {
	switch s {
	case ImportStatusCompleted, ImportStatusCompletedWithErrors, ImportStatusCancelled:
		return true
	default:
		return false
	}
}

// Row is one parsed spreadsheet record.
type Row struct {
	Name         string  `json:"name" validate:"required,max=120"`
	Price        float64 `json:"price" validate:"gt=0"`
	Year         int     `json:"year" validate:"gte=1900,lte=2100"`
	Mileage      int     `json:"mileage" validate:"gte=0"`
	Transmission string  `json:"transmission" validate:"required,oneof=automatic manual"`
	BodyType     string  `json:"bodyType" validate:"required,oneof=sedan suv hatchback coupe convertible wagon pickup van"`
	FuelType     string  `json:"fuelType" validate:"required,oneof=petrol diesel hybrid electric"`
	Color        string  `json:"color" validate:"omitempty,max=40"`
	Featured     bool    `json:"featured"`
}

// RowError associates an invalid row with the reason it was rejected.
type RowError struct {
	Data  Row    `json:"data"`
	Error string `json:"error"`
}

// UploadResponse is returned by POST /cars/bulk-import/upload.
type UploadResponse struct {
	JobID   string     `json:"jobId"`
	Preview []Row      `json:"preview"`
	Total   int        `json:"total"`
	Errors  []RowError `json:"errors,omitempty"`
}

// ConfirmRequest is the body of POST /cars/bulk-import/confirm.
type ConfirmRequest struct {
	JobID string `json:"jobId"`
}

// ImportStatusResponse is returned by the confirm and status endpoints.
type ImportStatusResponse struct {
	JobID  string       `json:"jobId"`
	Status ImportStatus `json:"status"`
	Errors []RowError   `json:"errors"`
}

// ErrorResponse is the body sent with non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Car is an inventory entry.
type Car struct {
	ID string `json:"id"`
	Row
}
