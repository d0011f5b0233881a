package model

// ProgressPayload is the body of save/ and submit/. Exactly one of the two
// maps is set: levels for the slider variant, rankings for the rank variants.
type ProgressPayload struct {
	Levels   map[string]int `json:"levels,omitempty"`
	Rankings map[string]int `json:"rankings,omitempty"`
}

// StartResponse is returned by start/.
type StartResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	HasProgress *bool  `json:"has_progress,omitempty"`
}

// LoadResponse is returned by load/. Missing progress is has_progress=false,
// not an error.
type LoadResponse struct {
	Success     bool           `json:"success"`
	HasProgress bool           `json:"has_progress"`
	Levels      map[string]int `json:"levels,omitempty"`
	Rankings    map[string]int `json:"rankings,omitempty"`
	SavedAt     string         `json:"saved_at,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// SaveResponse is returned by save/.
type SaveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	SavedAt string `json:"saved_at,omitempty"`
}

// SubmitResponse is returned by submit/.
type SubmitResponse struct {
	Success         bool   `json:"success"`
	TotalScore      int    `json:"total_score"`
	PrimaryInterest string `json:"primary_interest,omitempty"`
	PrimaryLevel    int    `json:"primary_level,omitempty"`
	RedirectURL     string `json:"redirect_url,omitempty"`
	Message         string `json:"message,omitempty"`
}

// ProgressJob is queued on persist_rmib_progress_queue by the Redis store and
// forwarded to the backend's save/ endpoint by the sync worker.
type ProgressJob struct {
	StudentID int            `json:"student_id"`
	Mode      string         `json:"mode"`
	Values    map[string]int `json:"values"`
	SavedAt   string         `json:"saved_at"`
}

// ResultJob is queued on persist_rmib_results_queue after a local submit.
type ResultJob struct {
	StudentID       int            `json:"student_id"`
	Mode            string         `json:"mode"`
	Values          map[string]int `json:"values"`
	TotalScore      int            `json:"total_score"`
	PrimaryInterest string         `json:"primary_interest"`
	PrimaryLevel    int            `json:"primary_level"`
	SubmittedAt     string         `json:"submitted_at"`
}
