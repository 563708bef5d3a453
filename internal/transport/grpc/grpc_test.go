package grpc

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nadzzz/civicbot/internal/chat"
	"github.com/nadzzz/civicbot/internal/fault"
	"github.com/nadzzz/civicbot/internal/hazard"
	"github.com/nadzzz/civicbot/internal/message"
	"github.com/nadzzz/civicbot/internal/orchestrator"
	"github.com/nadzzz/civicbot/internal/persona"
	"github.com/nadzzz/civicbot/internal/translate"
)

const ark = "Adaptive Crisis Response (ARK)"

type cannedLLM struct {
	reply string
	err   error
}

func (l cannedLLM) Complete(context.Context, string, []message.Turn, string) (string, error) {
	return l.reply, l.err
}

type stubFetcher struct{ snap hazard.Snapshot }

func (f stubFetcher) Fetch(context.Context) (hazard.Snapshot, error) { return f.snap, nil }

type readingTranscriber struct{}

func (readingTranscriber) Transcribe(_ context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fault.New(fault.KindTranscription, err)
	}
	return "heard " + string(b), nil
}

func startServer(t *testing.T, llm cannedLLM) (*Client, *grpc.ClientConn) {
	t.Helper()
	catalog, err := persona.Builtin()
	require.NoError(t, err)
	fetcher := stubFetcher{snap: hazard.Snapshot{Disasters: []hazard.Disaster{{IncidentType: "Flood", DeclarationDate: "2024-06-01", DesignatedArea: "Vigo (County)"}}}}
	svc := chat.New(catalog, orchestrator.New(translate.Nop{}, llm, fetcher), chat.Options{
		Transcriber: readingTranscriber{},
		Hazards:     fetcher,
		Region:      "IN",
	})

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	tr := New(0)
	go func() { done <- tr.Serve(ctx, lis, svc) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("grpc server did not stop")
		}
	})
	return NewClient(conn), conn
}

func TestReply_StreamsSnapshots(t *testing.T) {
	client, _ := startServer(t, cannedLLM{reply: "Go 🚗"})
	ctx := context.Background()

	view, err := client.OpenSession(ctx, ark)
	require.NoError(t, err)
	assert.Equal(t, ark, view.Variant)

	var got []string
	done, err := client.Reply(ctx, &ReplyRequest{SessionID: view.ID, Text: "Should I evacuate?", Language: "en"},
		func(s message.Snapshot) {
			require.Len(t, s.History, 2)
			got = append(got, s.Last().Content)
		})
	require.NoError(t, err)

	assert.Equal(t, []string{"G", "Go", "Go ", "Go 🚗"}, got)
	assert.Equal(t, "Go 🚗", done.Reply)
	assert.Empty(t, done.Faults)
}

func TestReply_FaultsAreReported(t *testing.T) {
	client, _ := startServer(t, cannedLLM{err: fault.ModelAPI(429, "slow down")})
	ctx := context.Background()

	view, err := client.OpenSession(ctx, ark)
	require.NoError(t, err)

	done, err := client.Reply(ctx, &ReplyRequest{SessionID: view.ID, Text: "hi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "[GROQ API Error 429]: slow down", done.Reply)
	require.Len(t, done.Faults, 1)
	assert.Equal(t, fault.KindModelAPI, done.Faults[0].Kind)
}

func TestReply_Audio(t *testing.T) {
	client, _ := startServer(t, cannedLLM{reply: "ok"})
	ctx := context.Background()

	view, err := client.OpenSession(ctx, ark)
	require.NoError(t, err)

	done, err := client.Reply(ctx, &ReplyRequest{SessionID: view.ID, Audio: []byte("sirens"), ContentType: "audio/ogg"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "heard sirens", done.Transcript)
}

func TestErrorCodes(t *testing.T) {
	client, _ := startServer(t, cannedLLM{reply: "ok"})
	ctx := context.Background()

	_, err := client.OpenSession(ctx, "Nobody (NOPE)")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Reply(ctx, &ReplyRequest{SessionID: "missing", Text: "hi"}, nil)
	assert.Equal(t, codes.NotFound, status.Code(err))

	view, err := client.OpenSession(ctx, "")
	require.NoError(t, err)
	_, err = client.Reply(ctx, &ReplyRequest{SessionID: view.ID, Text: "hi", Language: "!!"}, nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHazards(t *testing.T) {
	client, _ := startServer(t, cannedLLM{})
	report, err := client.Hazards(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "IN", report.Region)
	assert.Contains(t, report.Digest, "- Flood on 2024-06-01 in Vigo (County).")
}

func TestHealthService(t *testing.T) {
	_, conn := startServer(t, cannedLLM{})
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, codes.Unavailable, status.Code(toStatus(fault.New(fault.KindDataFetch, errors.New("x")))))
	assert.Equal(t, codes.Internal, status.Code(toStatus(errors.New("boom"))))
}

func TestCloseStopsServe(t *testing.T) {
	catalog, err := persona.Builtin()
	require.NoError(t, err)
	svc := chat.New(catalog, orchestrator.New(translate.Nop{}, cannedLLM{}, nil), chat.Options{})

	tr := New(0)
	done := make(chan error, 1)
	go func() { done <- tr.Serve(context.Background(), bufconn.Listen(1<<16), svc) }()

	var serveErr error
	require.Eventually(t, func() bool {
		assert.NoError(t, tr.Close())
		select {
		case serveErr = <-done:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	assert.NoError(t, serveErr)
}
