// Package chat exposes conversations as sessions.
//
// A session pairs a persona variant with its conversation history. The
// service validates requests, feeds them to the reply pipeline and returns
// the reveal stream to the transport that asked.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nadzzz/civicbot/internal/fault"
	"github.com/nadzzz/civicbot/internal/hazard"
	"github.com/nadzzz/civicbot/internal/message"
	"github.com/nadzzz/civicbot/internal/orchestrator"
	"github.com/nadzzz/civicbot/internal/persona"
	"github.com/nadzzz/civicbot/internal/translate"
)

var (
	ErrUnknownVariant  = errors.New("unknown variant")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidLanguage = errors.New("invalid language")
)

// Replier produces reply streams. It is satisfied by *orchestrator.Orchestrator.
type Replier interface {
	ProduceReply(ctx context.Context, msg string, history *message.History, variant persona.Variant, targetLanguage string) *orchestrator.Stream
}

// Transcriber turns an audio file into text. It is satisfied by *transcribe.Transcriber.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// View is the state of a session as shown to clients.
type View struct {
	ID      string         `json:"id"`
	Variant string         `json:"variant"`
	Intro   string         `json:"intro"`
	Theme   persona.Theme  `json:"theme"`
	History []message.Turn `json:"history"`
}

// Exchange is one user message and the stream revealing its reply.
type Exchange struct {
	*orchestrator.Stream

	SessionID string

	// Transcript is the recognised speech for voice input.
	Transcript string

	// Transcription is set when speech recognition failed and its tagged
	// error text was sent on as the user's message.
	Transcription *fault.Error
}

// Faults returns every failure of the exchange, speech recognition first.
func (e *Exchange) Faults() []*fault.Error {
	faults := e.Reply().Faults
	if e.Transcription == nil {
		return faults
	}
	return append([]*fault.Error{e.Transcription}, faults...)
}

// HazardReport is the current hazard picture for the configured region.
type HazardReport struct {
	Region   string          `json:"region"`
	Snapshot hazard.Snapshot `json:"snapshot"`
	Digest   string          `json:"digest"`
}

// Service manages chat sessions.
type Service struct {
	catalog     *persona.Catalog
	replier     Replier
	transcriber Transcriber
	hazards     hazard.Fetcher
	region      string
	ttl         time.Duration
	sessions    *store
}

// Options holds the optional collaborators of a Service.
type Options struct {
	Transcriber Transcriber    // nil disables voice input
	Hazards     hazard.Fetcher // nil disables Hazards
	Region      string
	SessionTTL  time.Duration // 0 keeps sessions forever
}

// New creates a chat service.
func New(catalog *persona.Catalog, replier Replier, opts Options) *Service {
	return &Service{
		catalog:     catalog,
		replier:     replier,
		transcriber: opts.Transcriber,
		hazards:     opts.Hazards,
		region:      strings.ToUpper(opts.Region),
		ttl:         opts.SessionTTL,
		sessions:    newStore(),
	}
}

// Run evicts idle sessions until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if s.ttl <= 0 {
		<-ctx.Done()
		return
	}
	s.sessions.janitor(ctx, s.ttl)
}

// Variants returns the persona catalog in display order.
func (s *Service) Variants() []persona.Variant {
	return s.catalog.All()
}

// OpenSession starts a session with an empty history. An empty variant
// selects the catalog default.
func (s *Service) OpenSession(variantID string) (View, error) {
	v, err := s.variant(variantID)
	if err != nil {
		return View{}, err
	}
	sess := s.sessions.create(v)
	slog.Info("session opened", "session_id", sess.id, "variant", v.ID)
	return view(sess), nil
}

// SwitchVariant changes the persona of a session and resets its history.
func (s *Service) SwitchVariant(id, variantID string) (View, error) {
	v, err := s.variant(variantID)
	if err != nil {
		return View{}, err
	}
	sess, ok := s.sessions.update(id, func(sess *session) {
		sess.variant = v
		sess.history = message.NewHistory()
	})
	if !ok {
		return View{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	slog.Info("session variant switched", "session_id", id, "variant", v.ID)
	return view(sess), nil
}

// ClearSession empties the history of a session. A reply still being
// revealed keeps writing to the history it was started on, which the
// session no longer holds.
func (s *Service) ClearSession(id string) (View, error) {
	sess, ok := s.sessions.update(id, func(sess *session) {
		sess.history = message.NewHistory()
	})
	if !ok {
		return View{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return view(sess), nil
}

// Session returns the current view of a session.
func (s *Service) Session(id string) (View, error) {
	sess, ok := s.sessions.get(id)
	if !ok {
		return View{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return view(sess), nil
}

// Say sends a text message to a session and returns the reply stream.
// Pipeline failures are part of the reply; the error only reports invalid
// requests.
func (s *Service) Say(ctx context.Context, id, text, lang string) (*Exchange, error) {
	lang, err := normalizeLanguage(lang)
	if err != nil {
		return nil, err
	}
	sess, ok := s.sessions.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.say(ctx, sess, text, lang), nil
}

// Speak transcribes the audio file and sends the transcript to the session.
// A recognition failure is forwarded as the tagged error text.
func (s *Service) Speak(ctx context.Context, id, audioPath, lang string) (*Exchange, error) {
	lang, err := normalizeLanguage(lang)
	if err != nil {
		return nil, err
	}
	sess, ok := s.sessions.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	var (
		text string
		fe   *fault.Error
	)
	if s.transcriber == nil {
		fe = fault.Newf(fault.KindTranscription, "speech recognition is not configured")
	} else if text, err = s.transcriber.Transcribe(ctx, audioPath); err != nil {
		fe = fault.As(err, fault.KindTranscription)
	}
	if fe != nil {
		slog.Warn("transcription failed", "session_id", id, "error", fe)
		text = fe.Text()
	}

	ex := s.say(ctx, sess, text, lang)
	ex.Transcript = text
	ex.Transcription = fe
	return ex, nil
}

func (s *Service) say(ctx context.Context, sess session, text, lang string) *Exchange {
	stream := s.replier.ProduceReply(ctx, text, sess.history, sess.variant, lang)
	return &Exchange{Stream: stream, SessionID: sess.id}
}

// Hazards fetches the current hazard snapshot and its reply digest.
func (s *Service) Hazards(ctx context.Context) (HazardReport, error) {
	if s.hazards == nil {
		return HazardReport{}, fault.Newf(fault.KindDataFetch, "no hazard source configured")
	}
	snap, err := s.hazards.Fetch(ctx)
	if err != nil {
		return HazardReport{Region: s.region}, err
	}
	return HazardReport{
		Region:   s.region,
		Snapshot: snap,
		Digest:   hazard.FormatDigest(snap, hazard.ReplyLimit),
	}, nil
}

func (s *Service) variant(id string) (persona.Variant, error) {
	if id == "" {
		return s.catalog.Default(), nil
	}
	v, ok := s.catalog.Lookup(id)
	if !ok {
		return persona.Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, id)
	}
	return v, nil
}

func view(sess session) View {
	return View{
		ID:      sess.id,
		Variant: sess.variant.ID,
		Intro:   sess.variant.Intro,
		Theme:   sess.variant.Theme,
		History: sess.history.Turns(),
	}
}

// normalizeLanguage validates code and returns the lower-case form handed
// to the translator.
func normalizeLanguage(code string) (string, error) {
	if _, err := translate.ParseLanguage(code); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLanguage, err)
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		code = "en"
	}
	return code, nil
}
