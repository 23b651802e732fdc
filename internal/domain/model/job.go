package model

import "time"

// JobState is the lifecycle position of an asynchronous ingest job.
type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
)

// Job is the unit carried by the ingest queue.
type Job struct {
	ID         string
	Query      string
	Limit      int
	EnqueuedAt time.Time
}

// JobStatus is what callers see when they poll a job.
type JobStatus struct {
	ID         string        `json:"id"`
	Query      string        `json:"query"`
	Limit      int           `json:"limit"`
	State      JobState      `json:"state"`
	Result     *IngestResult `json:"result,omitempty"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}
