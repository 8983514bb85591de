package filecat

import (
	"fmt"
	"time"
)

// JobKind identifies the batch operation a job runs.
type JobKind string

const (
	JobRefresh         JobKind = "Refresh"
	JobForceCategorize JobKind = "ForceCategorize"
	JobMove            JobKind = "Move"
	JobTrain           JobKind = "Train"
)

// JobStatus is the lifecycle state of a BatchJob.
//
//	Pending -> Running -> {Succeeded | Failed | PartiallyFailed}
type JobStatus string

const (
	StatusPending         JobStatus = "Pending"
	StatusRunning         JobStatus = "Running"
	StatusSucceeded       JobStatus = "Succeeded"
	StatusFailed          JobStatus = "Failed"
	StatusPartiallyFailed JobStatus = "PartiallyFailed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusPartiallyFailed
}

// ItemError is one per-item failure recorded on a job.
type ItemError struct {
	Item    string `json:"item"`
	Message string `json:"message"`
}

// BatchJob is the progress record of one asynchronous batch execution.
//
// Invariant: Processed+Failed <= Total at every observable snapshot.
type BatchJob struct {
	ID         string      `json:"jobId"`
	Kind       JobKind     `json:"kind"`
	Status     JobStatus   `json:"status"`
	CreatedAt  time.Time   `json:"createdAt"`
	StartedAt  *time.Time  `json:"startedAt,omitempty"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
	Total      int         `json:"total"`
	Processed  int         `json:"processed"`
	Failed     int         `json:"failed"`
	Skipped    int         `json:"skipped"`
	Errors     []ItemError `json:"errors"`
	Note       string      `json:"note,omitempty"`
}

// Percent returns (processed+failed)*100/total, or 0 when total is 0.
func (j *BatchJob) Percent() int {
	if j.Total == 0 {
		return 0
	}
	return (j.Processed + j.Failed) * 100 / j.Total
}

// Clone returns a deep copy safe to hand out while the job keeps running.
func (j *BatchJob) Clone() *BatchJob {
	c := *j
	c.Errors = append([]ItemError(nil), j.Errors...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// ResultText is the human-readable completion message pushed to clients.
// It always carries the failed count.
func (j *BatchJob) ResultText() string {
	text := fmt.Sprintf("%s %s: %d processed, %d failed", j.Kind, j.Status, j.Processed, j.Failed)
	if j.Skipped > 0 {
		text += fmt.Sprintf(", %d skipped", j.Skipped)
	}
	if j.Note != "" {
		text += " (" + j.Note + ")"
	}
	return text
}
