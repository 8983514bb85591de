package app

import "time"

// Operation identifies one CLI invocation. Its ID tags every log line the
// invocation writes, so a serve session or a one-shot scan can be picked out
// of filecat.log.
type Operation struct {
	ID     string
	Name   string
	Status string // "success" or "error"
}

// NewOperation creates an operation named after the CLI command, with an ID
// derived from the start time.
func NewOperation(name string, started time.Time) *Operation {
	return &Operation{
		ID:     started.UTC().Format("20060102T150405Z"),
		Name:   name,
		Status: "success",
	}
}

// Fail marks the operation as failed. It is recorded when the app closes.
func (op *Operation) Fail() {
	op.Status = "error"
}

// Failed reports whether Fail was called.
func (op *Operation) Failed() bool {
	return op.Status == "error"
}
