package domain

import (
	"encoding/json"
	"time"
)

// Issue is a single finding exactly as the analyzer reported it.
// Its fields belong to the tool and are never decoded.
type Issue = json.RawMessage

// Job represents a submitted analysis job
type Job struct {
	ID        string
	Type      string
	Inputs    []string
	Status    string
	Output    []Issue // set iff Status == Finished
	Error     string  // set iff Status == Error
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobSummary is returned to the caller on submission
type JobSummary struct {
	ID     string
	Status string
}

// StatusReport is returned by status queries
type StatusReport struct {
	ID     string
	Status string
	Error  string
}

// JobMessage represents a job message carried by the queue.
// It only references the job, never copies job data.
type JobMessage struct {
	ID          string `json:"id"`
	DeliveryTag uint64 `json:"-"`
}
