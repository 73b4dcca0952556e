package recognize

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// Classifier maps HTTP statuses and transport failures to error kinds. The
// table is a plain value so callers can adjust it for services whose error
// taxonomy differs from the defaults.
type Classifier struct {
	// Statuses maps an HTTP status code to a kind. Codes not present fall
	// back to Fallback.
	Statuses map[int]ErrorKind

	// Fallback is used for unmapped statuses and unrecognized transport
	// errors. Defaults to KindPermanentOther.
	Fallback ErrorKind
}

// DefaultClassifier returns the classification table for an
// OpenAI-compatible recognition endpoint.
func DefaultClassifier() Classifier {
	return Classifier{
		Statuses: map[int]ErrorKind{
			http.StatusUnauthorized:          KindPermanentAuth,
			http.StatusForbidden:             KindPermanentAuth,
			http.StatusBadRequest:            KindPermanentInvalidInput,
			http.StatusNotFound:              KindPermanentInvalidInput,
			http.StatusRequestEntityTooLarge: KindPermanentInvalidInput,
			http.StatusUnsupportedMediaType:  KindPermanentInvalidInput,
			http.StatusUnprocessableEntity:   KindPermanentInvalidInput,
			http.StatusTooManyRequests:       KindTransientRateLimited,
			http.StatusRequestTimeout:        KindTransientServer,
			http.StatusInternalServerError:   KindTransientServer,
			http.StatusBadGateway:            KindTransientServer,
			http.StatusServiceUnavailable:    KindTransientServer,
			http.StatusGatewayTimeout:        KindTransientServer,
		},
		Fallback: KindPermanentOther,
	}
}

// ClassifyStatus wraps a non-2xx response into a classified error.
func (c Classifier) ClassifyStatus(status int, body string) *Error {
	kind, ok := c.Statuses[status]
	if !ok {
		kind = c.fallback()
	}
	return &Error{Kind: kind, Status: status, Msg: body}
}

// ClassifyTransport wraps an error returned before any HTTP response was
// received (dial failures, timeouts, caller cancellation).
func (c Classifier) ClassifyTransport(err error) *Error {
	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCancelled, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTransientTimeout, Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &Error{Kind: KindTransientTimeout, Err: err}
	}
	return &Error{Kind: c.fallback(), Err: err}
}

func (c Classifier) fallback() ErrorKind {
	if c.Fallback == "" {
		return KindPermanentOther
	}
	return c.Fallback
}
