// Package upstream defines the closed verdict taxonomy every upstream call
// is classified into (§4.3, §7) and the Client interface the core consumes.
//
// Classification happens in exactly one place (Classify, below). No other
// package may inspect a status code or error string to decide retry/abort
// behavior — this is the fix for the §9 REDESIGN FLAG banning
// substring-matching error classification ("status code: 87007" string
// checks in the source this spec was distilled from).
package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Verdict is the closed sum-type every upstream response/error collapses to.
type Verdict int

const (
	Ok Verdict = iota
	TransientNetwork
	RateLimit
	RiskControl
	PermissionDenied
	NotFound
	DeletedContent
	ChargeOnly
	Other
)

func (v Verdict) String() string {
	switch v {
	case Ok:
		return "Ok"
	case TransientNetwork:
		return "TransientNetwork"
	case RateLimit:
		return "RateLimit"
	case RiskControl:
		return "RiskControl"
	case PermissionDenied:
		return "PermissionDenied"
	case NotFound:
		return "NotFound"
	case DeletedContent:
		return "DeletedContent"
	case ChargeOnly:
		return "ChargeOnly"
	case Other:
		return "Other"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// ChargeOnlyBusinessStatus is the upstream business-status code meaning
// "content requires payment" (§4.3, §7).
const ChargeOnlyBusinessStatus = 87007

// ClassifiedError carries a Verdict alongside the underlying error, so a
// caller that needs to log or wrap the original cause still can, without
// ever having to re-derive the verdict from a message string.
type ClassifiedError struct {
	Verdict Verdict
	Status  int // HTTP status code, 0 if not applicable
	Cause   error
}

func (e *ClassifiedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream: %s (status=%d): %v", e.Verdict, e.Status, e.Cause)
	}
	return fmt.Sprintf("upstream: %s (status=%d)", e.Verdict, e.Status)
}

func (e *ClassifiedError) Unwrap() error { return e.Cause }

// NewClassifiedError builds a ClassifiedError.
func NewClassifiedError(v Verdict, status int, cause error) *ClassifiedError {
	return &ClassifiedError{Verdict: v, Status: status, Cause: cause}
}

// VerdictOf extracts the Verdict from err if it (or something it wraps) is a
// *ClassifiedError; otherwise returns Other.
func VerdictOf(err error) Verdict {
	if err == nil {
		return Ok
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Verdict
	}
	return Other
}

// BusinessStatus is the subset of an upstream JSON envelope the classifier
// needs: the wire protocol itself (field names, auth) is out of scope
// (§1) — callers parse their own envelope and hand the classifier just the
// numbers/markers it needs to classify.
type BusinessStatus struct {
	HTTPStatus     int
	BusinessCode   int  // upstream's own "code" field, 0 if absent/ok
	RiskControlHit bool // upstream returned a captcha/verification challenge marker
	NetworkError   error
}

// Classify maps a BusinessStatus to a Verdict. This is the single place in
// the system that inspects status codes / business markers.
func Classify(b BusinessStatus) Verdict {
	if b.NetworkError != nil {
		return TransientNetwork
	}
	if b.RiskControlHit {
		return RiskControl
	}
	if b.BusinessCode == ChargeOnlyBusinessStatus {
		return ChargeOnly
	}
	switch b.HTTPStatus {
	case 0, http.StatusOK, http.StatusNotModified, http.StatusPartialContent:
		if b.BusinessCode != 0 {
			return Other
		}
		return Ok
	case http.StatusTooManyRequests:
		return RateLimit
	case http.StatusUnauthorized, http.StatusForbidden:
		return PermissionDenied
	case http.StatusNotFound, http.StatusGone:
		return NotFound
	}
	if b.HTTPStatus >= 500 {
		return TransientNetwork
	}
	return Other
}

// Retriable reports whether a verdict should be retried by the subtask
// runner (§7 propagation policy: Transient is retried up to max_retries;
// RateLimit yields to the governor's backoff and is not counted against
// max_retries).
func Retriable(v Verdict) bool {
	return v == TransientNetwork || v == RateLimit
}

// ErrAbortPipeline is returned up the call stack on a RiskControl verdict so
// C9/C10 can perform the scoped abort-and-reset (§4.10). It is never
// classified by string matching — callers test with errors.Is.
var ErrAbortPipeline = errors.New("upstream: risk control triggered, aborting pipeline scope")
