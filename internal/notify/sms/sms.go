// Package sms sends text messages through Twilio.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// maxBody is the longest body Twilio accepts for one message.
const maxBody = 1600

// messageCreator is the part of the Twilio API used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Options holds the Twilio credential triple and the phone numbers.
type Options struct {
	AccountSID string
	AuthToken  string
	APIKeySID  string // optional; when set, AuthToken is the API key secret
	From       string
	To         string

	// For testing: inject a fake API instead of the Twilio REST client.
	API messageCreator
}

// Notifier sends SMS messages.
type Notifier struct {
	opts Options
	api  messageCreator
}

// New creates an SMS notifier. Credentials are checked when sending.
func New(opts Options) *Notifier {
	n := &Notifier{opts: opts, api: opts.API}
	if n.api == nil && opts.AccountSID != "" && opts.AuthToken != "" {
		params := twilio.ClientParams{
			Username:   opts.AccountSID,
			Password:   opts.AuthToken,
			AccountSid: opts.AccountSID,
		}
		if opts.APIKeySID != "" {
			params.Username = opts.APIKeySID
		}
		n.api = twilio.NewRestClientWithParams(params).Api
	}
	return n
}

// Name returns "sms".
func (n *Notifier) Name() string { return "sms" }

// Notify sends text from the configured number to the configured recipient.
// The Twilio client does not take a context; ctx is only checked before sending.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.api == nil {
		return errors.New("twilio credentials are not configured")
	}
	if n.opts.From == "" || n.opts.To == "" {
		return errors.New("sms from/to numbers are not configured")
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.opts.To)
	params.SetFrom(n.opts.From)
	params.SetBody(truncate(text, maxBody))

	resp, err := n.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("sending sms: %w", err)
	}
	if resp != nil && resp.Sid != nil {
		slog.Info("sms sent", "sid", *resp.Sid)
	}
	return nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
