package download

import "fmt"

// TransientError covers timeouts, connection failures and 5xx responses.
// The downloader retries these with backoff before giving up; when it does
// give up the last TransientError is what the caller sees.
type TransientError struct {
	URL        string
	StatusCode int // 0 when the request never completed
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient HTTP error %d fetching %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("transient network error fetching %s: %v", e.URL, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError covers 4xx responses, typically an expired signed URL.
// Never retried.
type PermanentError struct {
	URL        string
	StatusCode int
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent HTTP error %d fetching %s", e.StatusCode, e.URL)
}

// CorruptFileError means the payload arrived but cannot be decompressed.
// Never retried; retrying yields the same bytes.
type CorruptFileError struct {
	Filename string
	Err      error
}

func (e *CorruptFileError) Error() string {
	return fmt.Sprintf("corrupt file %s: %v", e.Filename, e.Err)
}

func (e *CorruptFileError) Unwrap() error { return e.Err }
