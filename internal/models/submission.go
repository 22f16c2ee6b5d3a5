package models

import "time"

// Submission wraps a finished Response for archiving and export.
type Submission struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	Data        Response  `json:"data"`

	// Address is filled by the exporter's reverse geocoding stage.
	Address string `json:"address,omitempty"`
}
