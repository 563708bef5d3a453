package sms

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeAPI struct {
	params *twilioApi.CreateMessageParams
	err    error
}

func (f *fakeAPI) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestNotify(t *testing.T) {
	api := &fakeAPI{}
	n := New(Options{From: "+13175550100", To: "+13175550199", API: api})

	require.NoError(t, n.Notify(context.Background(), "🚨 Hazard Update (IN)"))
	require.NotNil(t, api.params)
	assert.Equal(t, "+13175550199", *api.params.To)
	assert.Equal(t, "+13175550100", *api.params.From)
	assert.Equal(t, "🚨 Hazard Update (IN)", *api.params.Body)
	assert.Equal(t, "sms", n.Name())
}

func TestNotify_MissingCredentials(t *testing.T) {
	n := New(Options{From: "+1", To: "+2"})
	assert.ErrorContains(t, n.Notify(context.Background(), "x"), "credentials are not configured")
}

func TestNotify_MissingNumbers(t *testing.T) {
	n := New(Options{API: &fakeAPI{}})
	assert.ErrorContains(t, n.Notify(context.Background(), "x"), "numbers are not configured")
}

func TestNotify_APIError(t *testing.T) {
	n := New(Options{From: "+1", To: "+2", API: &fakeAPI{err: errors.New("21211 invalid number")}})
	assert.ErrorContains(t, n.Notify(context.Background(), "x"), "21211")
}

func TestNotify_CancelledContext(t *testing.T) {
	api := &fakeAPI{}
	n := New(Options{From: "+1", To: "+2", API: api})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, n.Notify(ctx, "x"), context.Canceled)
	assert.Nil(t, api.params)
}

func TestNotify_TruncatesLongBodies(t *testing.T) {
	api := &fakeAPI{}
	n := New(Options{From: "+1", To: "+2", API: api})

	require.NoError(t, n.Notify(context.Background(), strings.Repeat("é", 2000)))
	assert.Equal(t, maxBody, len([]rune(*api.params.Body)))
}

func TestNew_BuildsClientFromCredentials(t *testing.T) {
	n := New(Options{AccountSID: "AC123", AuthToken: "secret"})
	assert.NotNil(t, n.api)

	n = New(Options{AccountSID: "AC123"})
	assert.Nil(t, n.api)
}
