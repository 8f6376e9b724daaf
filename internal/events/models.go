package events

// ImportEvent is the payload of every import lifecycle event.
type ImportEvent struct {
	JobID      string `json:"job_id"`
	Stage      string `json:"stage"`
	Status     string `json:"status,omitempty"`
	Total      int    `json:"total"`
	ValidCount int    `json:"valid_count"`
	ErrorCount int    `json:"error_count"`
	Message    string `json:"message,omitempty"`
}
