package feed

import "fmt"

// FetchError covers failures that abort a run before any entry is seen:
// unreachable hosts, timeouts, non-200 responses and malformed feed
// documents. No run log is written for it by the orchestrator; the outer
// task layer records the attempt instead.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch feed %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// RunError covers orchestrator-level failures during the persistence phase.
// An error-status run log has already been written when it is returned.
type RunError struct {
	FeedURL string
	Err     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("ingestion run failed for %s: %v", e.FeedURL, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
