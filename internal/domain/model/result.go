package model

// IngestResult is the only externally observable outcome of an ingestion run.
type IngestResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	AppliedCount int    `json:"applied_count"`
	Query        string `json:"query"`

	FetchedCount  int `json:"fetched_count"`
	RejectedCount int `json:"rejected_count"`
}
