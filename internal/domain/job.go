package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Outstanding reports whether a job still occupies its (target, asset type)
// slot. At most one outstanding job may exist per pair at any time.
func (s JobStatus) Outstanding() bool {
	return s == JobStatusQueued || s == JobStatusRunning
}

// Job is one dispatch of one asset-type generator for one target.
type Job struct {
	ID        string
	TargetID  string
	AssetType AssetType
	Status    JobStatus
	Attempt   int
	Error     string
	StartedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultMaxAttempts bounds dispatch attempts per (target, asset type) pair.
const DefaultMaxAttempts = 3
