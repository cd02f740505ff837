package domain

// OutcomeKind is the result of processing one located record.
type OutcomeKind string

const (
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeSaved   OutcomeKind = "saved"
	OutcomeFailed  OutcomeKind = "failed"
)

// Outcome reports what happened to a single record.
type Outcome struct {
	Kind  OutcomeKind
	Name  string
	Path  string
	URL   string
	Bytes int64
	Err   error
}

// Failed reports whether the outcome carries a failure.
func (o Outcome) Failed() bool {
	return o.Kind == OutcomeFailed
}

// Reason returns the failure message, or an empty string.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// ByteProgress is a best-effort transfer update for one asset, keyed by
// the asset name like the Outcome that ends it.
type ByteProgress struct {
	Name  string
	Done  int64
	Total int64
}
