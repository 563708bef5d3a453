// Package orchestrator implements the reply pipeline.
//
// A user message is translated to the pivot language, answered by either
// the hazard digest or the language model, translated back into the
// user's language, and then revealed into the conversation history one
// character at a time. Failures at any step become tagged text in the
// reply; ProduceReply never returns an error.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/nadzzz/civicbot/internal/fault"
	"github.com/nadzzz/civicbot/internal/hazard"
	"github.com/nadzzz/civicbot/internal/message"
	"github.com/nadzzz/civicbot/internal/persona"
	"github.com/nadzzz/civicbot/internal/translate"
)

// DefaultPivot is the language replies are generated in.
const DefaultPivot = "en"

// LLM generates a reply for a persona prompt and conversation.
type LLM interface {
	Complete(ctx context.Context, systemPrompt string, history []message.Turn, userMessage string) (string, error)
}

// Reply is the outcome of the translate, dispatch and localize steps.
type Reply struct {
	// Normalized is the user message in the pivot language, or the tagged
	// translation error that replaced it.
	Normalized string `json:"normalized"`

	// Text is the localized reply that is revealed into the history.
	Text string `json:"text"`

	// Faults lists every failure that was converted to text, in pipeline order.
	Faults []*fault.Error `json:"-"`
}

// Orchestrator runs the reply pipeline.
type Orchestrator struct {
	translator translate.Translator
	llm        LLM
	hazards    hazard.Fetcher
	pivot      string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPivot sets the pivot language (default "en").
func WithPivot(lang string) Option {
	return func(o *Orchestrator) {
		if lang != "" {
			o.pivot = lang
		}
	}
}

// New creates an Orchestrator. A nil translator behaves as translate.Nop.
func New(translator translate.Translator, llm LLM, hazards hazard.Fetcher, opts ...Option) *Orchestrator {
	if translator == nil {
		translator = translate.Nop{}
	}
	o := &Orchestrator{
		translator: translator,
		llm:        llm,
		hazards:    hazards,
		pivot:      DefaultPivot,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProduceReply answers msg in the persona of variant and returns a stream
// that reveals the reply in targetLanguage.
//
// Before returning, it appends a user turn holding msg and an empty
// assistant turn to history. The returned stream fills in that assistant
// turn as it is consumed.
func (o *Orchestrator) ProduceReply(ctx context.Context, msg string, history *message.History, variant persona.Variant, targetLanguage string) *Stream {
	start := time.Now()
	logger := slog.With("variant", variant.ID, "language", targetLanguage)

	var reply Reply
	record := func(err error, fallback fault.Kind) string {
		fe := fault.As(err, fallback)
		reply.Faults = append(reply.Faults, fe)
		logger.Warn("reply step failed", "kind", fe.Kind, "error", fe)
		return fe.Text()
	}

	// Step 1: normalize into the pivot language.
	normalized, err := o.translator.Translate(ctx, msg, o.pivot)
	if err != nil {
		normalized = record(err, fault.KindTranslation)
	}
	reply.Normalized = normalized

	// Step 2: dispatch to the hazard digest or the model.
	var answer string
	switch {
	case variant.Hazard:
		answer = o.hazardDigest(ctx, record)
	case o.llm == nil:
		answer = record(fault.Newf(fault.KindTransport, "no language model configured"), fault.KindTransport)
	default:
		answer, err = o.llm.Complete(ctx, variant.Prompt, history.Turns(), normalized)
		if err != nil {
			answer = record(err, fault.KindTransport)
		}
	}

	// Step 3: localize.
	localized, err := o.translator.Translate(ctx, answer, targetLanguage)
	if err != nil {
		localized = record(err, fault.KindTranslation)
	}
	reply.Text = localized

	// Step 4: emit.
	idx := history.Append(
		message.Turn{Role: message.RoleUser, Content: msg},
		message.Turn{Role: message.RoleAssistant},
	) + 1

	logger.Info("reply produced",
		"duration", time.Since(start),
		"reply_length", len(reply.Text),
		"faults", len(reply.Faults),
	)
	return newStream(history, idx, reply)
}

func (o *Orchestrator) hazardDigest(ctx context.Context, record func(error, fault.Kind) string) string {
	if o.hazards == nil {
		return record(fault.Newf(fault.KindDataFetch, "no hazard source configured"), fault.KindDataFetch)
	}
	snap, err := o.hazards.Fetch(ctx)
	if err != nil {
		return record(err, fault.KindDataFetch)
	}
	return hazard.FormatDigest(snap, hazard.ReplyLimit)
}
