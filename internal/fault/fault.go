// Package fault defines the failure taxonomy of the reply pipeline.
//
// Every adapter (translator, transcriber, hazard feeds, language model)
// reports failures as a *Error carrying a Kind. The orchestrator converts
// them to tagged display text with Text, so the error channel stays
// separate from the content channel until the last moment.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a pipeline failure.
type Kind string

const (
	KindTranslation   Kind = "translation"
	KindTranscription Kind = "transcription"
	KindDataFetch     Kind = "data-fetch"
	KindModelAPI      Kind = "model-api"
	KindTransport     Kind = "transport"
)

// Error is a categorised pipeline failure.
type Error struct {
	Kind Kind

	// Status is the upstream HTTP status for KindModelAPI (0 otherwise).
	Status int

	// Body is the verbatim upstream response body for KindModelAPI.
	Body string

	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Kind == KindModelAPI:
		return fmt.Sprintf("%s: status %d: %s", e.Kind, e.Status, e.Body)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Text renders the failure as the tagged string shown to users in place of
// the value that could not be computed. Tags produced before the reply is
// localized pass through the translator like any other reply text; only a
// failed localization keeps its tag untranslated.
func (e *Error) Text() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindTranslation:
		return "[Translation Error]: " + e.cause()
	case KindTranscription:
		return "[Speech Recognition Error]: " + e.cause()
	case KindDataFetch:
		return "⚠️ Error fetching hazard data: " + e.cause()
	case KindModelAPI:
		return fmt.Sprintf("[GROQ API Error %d]: %s", e.Status, e.Body)
	case KindTransport:
		return "[GROQ Transport Error]: " + e.cause()
	default:
		return "[Error]: " + e.cause()
	}
}

func (e *Error) cause() string {
	if e.Cause == nil {
		return "unknown error"
	}
	return e.Cause.Error()
}

// New wraps cause in a fault of the given kind.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Newf is New with a formatted cause.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// ModelAPI reports a non-success response from the language-model endpoint.
func ModelAPI(status int, body string) *Error {
	return &Error{Kind: KindModelAPI, Status: status, Body: body}
}

// As extracts a *Error from err. Errors that are not faults are reported
// under fallback so callers always get something renderable.
func As(err error, fallback Kind) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return New(fallback, err)
}

// KindOf returns the Kind of err, or "" if err is not a fault.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err is a fault of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
