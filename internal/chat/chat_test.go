package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/civicbot/internal/fault"
	"github.com/nadzzz/civicbot/internal/hazard"
	"github.com/nadzzz/civicbot/internal/message"
	"github.com/nadzzz/civicbot/internal/orchestrator"
	"github.com/nadzzz/civicbot/internal/persona"
	"github.com/nadzzz/civicbot/internal/translate"
)

const ark = "Adaptive Crisis Response (ARK)"

type echoLLM struct{}

func (echoLLM) Complete(_ context.Context, _ string, history []message.Turn, user string) (string, error) {
	return "echo: " + user, nil
}

type fixedFetcher struct {
	snap hazard.Snapshot
	err  error
}

func (f fixedFetcher) Fetch(context.Context) (hazard.Snapshot, error) { return f.snap, f.err }

type fakeTranscriber struct {
	text string
	err  error
	path string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string) (string, error) {
	f.path = audioPath
	return f.text, f.err
}

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	catalog, err := persona.Builtin()
	require.NoError(t, err)
	if opts.Hazards == nil {
		opts.Hazards = fixedFetcher{snap: hazard.Snapshot{
			Alerts: []hazard.Alert{{Event: "Heat Advisory", Headline: "Stay hydrated"}},
		}}
	}
	o := orchestrator.New(translate.Nop{}, echoLLM{}, opts.Hazards)
	return New(catalog, o, opts)
}

func TestSessionLifecycle(t *testing.T) {
	svc := newTestService(t, Options{})

	v, err := svc.OpenSession("")
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, persona.HazardID, v.Variant, "default variant is the hazard variant")
	assert.NotEmpty(t, v.Intro)
	assert.Empty(t, v.History)

	v, err = svc.SwitchVariant(v.ID, ark)
	require.NoError(t, err)
	assert.Equal(t, ark, v.Variant)

	ex, err := svc.Say(context.Background(), v.ID, "Where is the shelter?", "en")
	require.NoError(t, err)
	final := ex.Drain()
	assert.Equal(t, "echo: Where is the shelter?", final.Last().Content)

	got, err := svc.Session(v.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 2)
	assert.Equal(t, message.RoleUser, got.History[0].Role)

	got, err = svc.ClearSession(v.ID)
	require.NoError(t, err)
	assert.Empty(t, got.History)
	assert.Equal(t, ark, got.Variant)
}

func TestSwitchVariantResetsHistory(t *testing.T) {
	svc := newTestService(t, Options{})
	v, err := svc.OpenSession(ark)
	require.NoError(t, err)

	ex, err := svc.Say(context.Background(), v.ID, "hi", "")
	require.NoError(t, err)
	ex.Drain()

	v, err = svc.SwitchVariant(v.ID, "Emotional Support (RAY)")
	require.NoError(t, err)
	assert.Empty(t, v.History)
}

func TestClearDetachesRevealInProgress(t *testing.T) {
	ctx := context.Background()
	for name, reset := range map[string]func(svc *Service, id string) error{
		"clear": func(svc *Service, id string) error {
			_, err := svc.ClearSession(id)
			return err
		},
		"switch": func(svc *Service, id string) error {
			_, err := svc.SwitchVariant(id, ark)
			return err
		},
	} {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(t, Options{})
			v, err := svc.OpenSession(ark)
			require.NoError(t, err)

			first, err := svc.Say(ctx, v.ID, "first question", "")
			require.NoError(t, err)
			require.True(t, first.Next())
			require.True(t, first.Next())

			require.NoError(t, reset(svc, v.ID))

			second, err := svc.Say(ctx, v.ID, "second", "")
			require.NoError(t, err)
			second.Drain()
			first.Drain()

			got, err := svc.Session(v.ID)
			require.NoError(t, err)
			assert.Equal(t, []message.Turn{
				{Role: message.RoleUser, Content: "second"},
				{Role: message.RoleAssistant, Content: "echo: second"},
			}, got.History)
		})
	}
}

func TestRequestErrors(t *testing.T) {
	svc := newTestService(t, Options{})
	v, err := svc.OpenSession(ark)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.OpenSession("Nonexistent (NOPE)")
	assert.ErrorIs(t, err, ErrUnknownVariant)

	_, err = svc.SwitchVariant(v.ID, "Nonexistent (NOPE)")
	assert.ErrorIs(t, err, ErrUnknownVariant)

	_, err = svc.SwitchVariant("missing", ark)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Session("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.ClearSession("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Say(ctx, "missing", "hi", "en")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Say(ctx, v.ID, "hi", "not a language!")
	assert.ErrorIs(t, err, ErrInvalidLanguage)

	_, err = svc.Speak(ctx, v.ID, "/tmp/x.wav", "???")
	assert.ErrorIs(t, err, ErrInvalidLanguage)
}

func TestNormalizeLanguage(t *testing.T) {
	got, err := normalizeLanguage("zh-CN")
	require.NoError(t, err)
	assert.Equal(t, "zh-cn", got)

	got, err = normalizeLanguage("  ")
	require.NoError(t, err)
	assert.Equal(t, "en", got)
}

func TestSpeak(t *testing.T) {
	tr := &fakeTranscriber{text: "is the river flooding"}
	svc := newTestService(t, Options{Transcriber: tr})
	v, err := svc.OpenSession(ark)
	require.NoError(t, err)

	ex, err := svc.Speak(context.Background(), v.ID, "/tmp/clip.wav", "en")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/clip.wav", tr.path)
	assert.Equal(t, "is the river flooding", ex.Transcript)
	assert.Nil(t, ex.Transcription)
	assert.Equal(t, "echo: is the river flooding", ex.Drain().Last().Content)
	assert.Empty(t, ex.Faults())
}

func TestSpeak_RecognitionFailureIsForwarded(t *testing.T) {
	tr := &fakeTranscriber{err: fault.Newf(fault.KindTranscription, "status 500")}
	svc := newTestService(t, Options{Transcriber: tr})
	v, err := svc.OpenSession(ark)
	require.NoError(t, err)

	ex, err := svc.Speak(context.Background(), v.ID, "/tmp/clip.wav", "en")
	require.NoError(t, err)

	final := ex.Drain()
	assert.Equal(t, "[Speech Recognition Error]: status 500", final.History[0].Content)
	assert.Equal(t, "echo: [Speech Recognition Error]: status 500", final.Last().Content)
	require.Len(t, ex.Faults(), 1)
	assert.Equal(t, fault.KindTranscription, ex.Faults()[0].Kind)
}

func TestSpeak_WithoutTranscriber(t *testing.T) {
	svc := newTestService(t, Options{})
	v, err := svc.OpenSession(ark)
	require.NoError(t, err)

	ex, err := svc.Speak(context.Background(), v.ID, "/tmp/clip.wav", "en")
	require.NoError(t, err)
	assert.Equal(t, fault.KindTranscription, ex.Transcription.Kind)
}

func TestHazards(t *testing.T) {
	svc := newTestService(t, Options{Region: "in"})
	report, err := svc.Hazards(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "IN", report.Region)
	assert.Len(t, report.Snapshot.Alerts, 1)
	assert.Contains(t, report.Digest, "- Heat Advisory: Stay hydrated")

	failing := newTestService(t, Options{Hazards: fixedFetcher{err: fault.New(fault.KindDataFetch, errors.New("boom"))}})
	_, err = failing.Hazards(context.Background())
	assert.True(t, fault.Is(err, fault.KindDataFetch))
}

func TestEvictIdle(t *testing.T) {
	svc := newTestService(t, Options{SessionTTL: time.Hour})
	now := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)
	svc.sessions.now = func() time.Time { return now }

	stale, err := svc.OpenSession(ark)
	require.NoError(t, err)
	now = now.Add(45 * time.Minute)
	fresh, err := svc.OpenSession(ark)
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	assert.Equal(t, 1, svc.sessions.evictIdle(time.Hour))

	_, err = svc.Session(stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Session(fresh.ID)
	assert.NoError(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	svc := newTestService(t, Options{SessionTTL: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
