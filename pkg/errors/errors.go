package errors

import (
	"errors"
	"fmt"
)

// Kind classifies failures by how far they are allowed to propagate
type Kind string

const (
	// KindFatalInput aborts the whole run before any harvesting starts
	KindFatalInput Kind = "fatal_input"
	// KindTransientFetch degrades to "no links found" for a single item
	KindTransientFetch Kind = "transient_fetch"
	// KindTransientDownload is retried by the next download round
	KindTransientDownload Kind = "transient_download"
	// KindPermanentUnavailable marks a link that failed every round
	KindPermanentUnavailable Kind = "permanent_unavailable"
)

// Error carries a Kind together with the operation and address it concerns
type Error struct {
	Kind Kind
	Op   string
	URL  string
	Code int
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.URL != "" {
		msg += " (" + e.URL + ")"
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(" status %d", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal builds a fatal input error
func Fatal(op, format string, args ...interface{}) error {
	return &Error{
		Kind: KindFatalInput,
		Op:   op,
		Err:  fmt.Errorf(format, args...),
	}
}

// Fetch wraps err as a transient fetch failure for url
func Fetch(url string, code int, err error) error {
	return &Error{Kind: KindTransientFetch, Op: "fetch", URL: url, Code: code, Err: err}
}

// Download wraps err as a transient download failure for url
func Download(url string, code int, err error) error {
	return &Error{Kind: KindTransientDownload, Op: "download", URL: url, Code: code, Err: err}
}

// Unavailable marks url as permanently unavailable after its last failure err
func Unavailable(url string, err error) error {
	return &Error{Kind: KindPermanentUnavailable, Op: "download", URL: url, Code: StatusCode(err), Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" when there is none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsFatal reports whether err must terminate the run
func IsFatal(err error) bool {
	return KindOf(err) == KindFatalInput
}

// StatusCode returns the HTTP status attached to err, or 0
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsSuccessStatus reports whether an HTTP status counts as a successful fetch
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
