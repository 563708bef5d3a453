// Package transport defines the interface for the client-facing servers.
//
// Each transport (HTTP, gRPC) exposes the same chat Service. Transports
// consume reply streams step by step, so pacing of the typing effect is
// their choice.
package transport

import (
	"context"
	"errors"

	"github.com/nadzzz/civicbot/internal/chat"
	"github.com/nadzzz/civicbot/internal/fault"
	"github.com/nadzzz/civicbot/internal/persona"
)

// Service is the chat API served by every transport. It is satisfied by
// *chat.Service.
type Service interface {
	Variants() []persona.Variant
	OpenSession(variantID string) (chat.View, error)
	SwitchVariant(id, variantID string) (chat.View, error)
	ClearSession(id string) (chat.View, error)
	Session(id string) (chat.View, error)
	Say(ctx context.Context, id, text, lang string) (*chat.Exchange, error)
	Speak(ctx context.Context, id, audioPath, lang string) (*chat.Exchange, error)
	Hazards(ctx context.Context) (chat.HazardReport, error)
}

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http").
	Name() string

	// Listen starts accepting requests for svc. It blocks until the context
	// is cancelled.
	Listen(ctx context.Context, svc Service) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}

// Fault is the wire form of a pipeline failure.
type Fault struct {
	Kind    fault.Kind `json:"kind"`
	Message string     `json:"message"`
}

// Faults converts the failures of an exchange to their wire form.
func Faults(ex *chat.Exchange) []Fault {
	fs := ex.Faults()
	if len(fs) == 0 {
		return nil
	}
	out := make([]Fault, 0, len(fs))
	for _, f := range fs {
		out = append(out, Fault{Kind: f.Kind, Message: f.Text()})
	}
	return out
}

// ErrorClass groups service errors for status mapping.
type ErrorClass int

const (
	ClassInternal ErrorClass = iota
	ClassInvalid
	ClassNotFound
	ClassUpstream
)

// Classify maps a service error to the class the transports translate into
// their own status codes.
func Classify(err error) ErrorClass {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		return ClassNotFound
	case errors.Is(err, chat.ErrUnknownVariant), errors.Is(err, chat.ErrInvalidLanguage):
		return ClassInvalid
	case fault.KindOf(err) != "":
		return ClassUpstream
	default:
		return ClassInternal
	}
}

// ErrorMessage returns the client-facing text for err.
func ErrorMessage(err error) string {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return fe.Text()
	}
	return err.Error()
}
