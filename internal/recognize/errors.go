package recognize

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed recognition attempt. Transient kinds are
// worth retrying; permanent kinds are not, no matter how many attempts
// remain.
type ErrorKind string

const (
	// KindTransientTimeout covers per-call timeouts and network-level
	// deadline expiry.
	KindTransientTimeout ErrorKind = "transient-timeout"

	// KindTransientRateLimited covers throttling responses (HTTP 429).
	KindTransientRateLimited ErrorKind = "transient-rate-limited"

	// KindTransientServer covers upstream 5xx-style failures expected to
	// clear on their own.
	KindTransientServer ErrorKind = "transient-server"

	// KindPermanentAuth covers authentication and authorization failures.
	KindPermanentAuth ErrorKind = "permanent-auth"

	// KindPermanentInvalidInput covers malformed or unsupported requests
	// (bad image, oversized payload, unknown model).
	KindPermanentInvalidInput ErrorKind = "permanent-invalid-input"

	// KindPermanentOther is the fallback for anything unclassified. Unknown
	// failures are never retried.
	KindPermanentOther ErrorKind = "permanent-other"

	// KindRenderFailed marks a page that could not be rasterized. Always
	// permanent and local to the page.
	KindRenderFailed ErrorKind = "render-failed"

	// KindCancelled marks work aborted by caller cancellation rather than
	// by the remote service.
	KindCancelled ErrorKind = "cancelled"
)

// Transient reports whether the kind is worth another attempt.
func (k ErrorKind) Transient() bool {
	switch k {
	case KindTransientTimeout, KindTransientRateLimited, KindTransientServer:
		return true
	default:
		return false
	}
}

// Error is a classified recognition failure. Status is the HTTP status code
// when the failure came from a response, 0 otherwise.
type Error struct {
	Kind   ErrorKind
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Msg != "":
		return fmt.Sprintf("recognition failed (%s, status %d): %s", e.Kind, e.Status, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("recognition failed (%s): %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("recognition failed (%s)", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether retrying this error can help.
func (e *Error) Transient() bool { return e.Kind.Transient() }

// KindOf extracts the classification from err. Errors that are not a
// *recognize.Error report KindPermanentOther.
func KindOf(err error) ErrorKind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return KindPermanentOther
}
