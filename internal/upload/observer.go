package upload

// Outcome is how an upload ended.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeAborted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeAborted:
		return "aborted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Observer watches uploads for bookkeeping, such as metrics.
//
// Unlike the progress listener, an observer cannot be replaced and sees
// every upload it's registered with. Methods must not block.
type Observer interface {
	// UploadProgress is called with the byte counts of each progress event.
	UploadProgress(id string, sent, total int64)

	// UploadFinished is called once per upload after its future is settled.
	UploadFinished(id string, outcome Outcome)
}
