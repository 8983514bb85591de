package filecat

// Progress receives per-item accounting from a running batch operation.
// Implementations must be safe for concurrent use.
type Progress interface {
	// AddTotal grows the number of items the operation will attempt.
	AddTotal(n int)

	// Succeed counts one processed item.
	Succeed(item string)

	// Fail counts one failed item and records its error.
	Fail(item string, err error)

	// Skip counts n items that will not be attempted.
	Skip(n int)

	// Annotate attaches a short note to the job, e.g. the trained model version.
	Annotate(note string)
}
