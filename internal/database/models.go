package database

import "time"

// Status is the final state of a conversion session.
type Status string

// Conversion statuses
const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusError     Status = "error"
	StatusCanceled  Status = "canceled"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusSucceeded, StatusFailed, StatusError, StatusCanceled}

// Conversion is one recorded conversion session.
type Conversion struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	InputName  string    `json:"inputName"`
	OutputName string    `json:"outputName,omitempty"`
	Encrypted  bool      `json:"encrypted"`
	Status     Status    `json:"status"`
	Attempts   int       `json:"attempts"`
	Rounds     int       `json:"rounds"`
	InputBytes int64     `json:"inputBytes"`
	DurationMS int64     `json:"durationMs"`
	Message    string    `json:"message,omitempty"`
	// Log is only populated by Get.
	Log string `json:"log,omitempty"`
}
