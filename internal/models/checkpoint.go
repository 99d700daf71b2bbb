package models

import "time"

// Checkpoint is a persisted analysis state together with the window it was
// computed from. Restoring both resumes a session exactly where it stopped.
type Checkpoint struct {
	Asset   string        `json:"asset"`
	State   AnalysisState `json:"state"`
	Window  []Tick        `json:"window"`
	SavedAt time.Time     `json:"saved_at"`
}
