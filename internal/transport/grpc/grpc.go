// Package grpc implements the gRPC transport for civicbot.
//
// The civicbot.v1.Chat service uses a JSON codec (content-subtype "json").
// Reply is server-streaming: one ReplyEvent per revealed character, then a
// final event carrying the finished exchange. The standard grpc.health.v1
// service is registered alongside it.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/civicbot/internal/chat"
	"github.com/nadzzz/civicbot/internal/message"
	"github.com/nadzzz/civicbot/internal/transport"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "civicbot.v1.Chat"

// OpenSessionRequest selects the persona of a new session.
type OpenSessionRequest struct {
	Variant string `json:"variant"`
}

// HazardsRequest is empty.
type HazardsRequest struct{}

// ReplyRequest is one user message. When Audio is set it is transcribed and
// Text is ignored.
type ReplyRequest struct {
	SessionID   string `json:"session_id"`
	Text        string `json:"text,omitempty"`
	Language    string `json:"language,omitempty"`
	Audio       []byte `json:"audio,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// ReplyEvent is one message of the Reply stream. Exactly one field is set.
type ReplyEvent struct {
	Snapshot *message.Snapshot `json:"snapshot,omitempty"`
	Done     *ReplyDone        `json:"done,omitempty"`
}

// ReplyDone closes a Reply stream.
type ReplyDone struct {
	Reply      string            `json:"reply"`
	Transcript string            `json:"transcript,omitempty"`
	Faults     []transport.Fault `json:"faults,omitempty"`
}

// ChatServer is the server API for civicbot.v1.Chat.
type ChatServer interface {
	OpenSession(ctx context.Context, req *OpenSessionRequest) (*chat.View, error)
	Hazards(ctx context.Context, req *HazardsRequest) (*chat.HazardReport, error)
	Reply(req *ReplyRequest, stream grpc.ServerStream) error
}

var chatServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "OpenSession", Handler: openSessionHandler},
		{MethodName: "Hazards", Handler: hazardsHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Reply", Handler: replyHandler, ServerStreams: true},
	},
	Metadata: "civicbot/v1/chat",
}

func openSessionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(OpenSessionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServer).OpenSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/OpenSession"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServer).OpenSession(ctx, req.(*OpenSessionRequest))
	})
}

func hazardsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HazardsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServer).Hazards(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Hazards"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServer).Hazards(ctx, req.(*HazardsRequest))
	})
}

func replyHandler(srv any, stream grpc.ServerStream) error {
	in := new(ReplyRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ChatServer).Reply(in, stream)
}

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port int

	mu     sync.Mutex
	server *grpc.Server
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server on the configured port.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.Serve(ctx, lis, svc)
}

// Serve serves svc on lis until ctx is cancelled.
func (t *Transport) Serve(ctx context.Context, lis net.Listener, svc transport.Service) error {
	srv := grpc.NewServer()
	srv.RegisterService(&chatServiceDesc, &server{svc: svc})

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	t.mu.Lock()
	t.server = srv
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	t.mu.Lock()
	srv := t.server
	t.mu.Unlock()
	if srv != nil {
		srv.GracefulStop()
	}
	return nil
}

type server struct {
	svc transport.Service
}

func (s *server) OpenSession(_ context.Context, req *OpenSessionRequest) (*chat.View, error) {
	v, err := s.svc.OpenSession(req.Variant)
	if err != nil {
		return nil, toStatus(err)
	}
	return &v, nil
}

func (s *server) Hazards(ctx context.Context, _ *HazardsRequest) (*chat.HazardReport, error) {
	r, err := s.svc.Hazards(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &r, nil
}

func (s *server) Reply(req *ReplyRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()

	var (
		ex  *chat.Exchange
		err error
	)
	if len(req.Audio) > 0 {
		ex, err = s.speak(ctx, req)
	} else {
		ex, err = s.svc.Say(ctx, req.SessionID, req.Text, req.Language)
	}
	if err != nil {
		return toStatus(err)
	}

	for snap := range ex.All() {
		if err := stream.SendMsg(&ReplyEvent{Snapshot: &snap}); err != nil {
			slog.Info("grpc reply stream ended early", "session_id", req.SessionID, "remaining", ex.Remaining(), "error", err)
			return err
		}
	}
	return stream.SendMsg(&ReplyEvent{Done: &ReplyDone{
		Reply:      ex.Reply().Text,
		Transcript: ex.Transcript,
		Faults:     transport.Faults(ex),
	}})
}

func (s *server) speak(ctx context.Context, req *ReplyRequest) (*chat.Exchange, error) {
	f, err := os.CreateTemp("", "civicbot-voice-*"+audioExt(req.ContentType))
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(f.Name())

	_, err = f.Write(req.Audio)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("writing audio: %w", err)
	}
	return s.svc.Speak(ctx, req.SessionID, f.Name(), req.Language)
}

func audioExt(contentType string) string {
	switch contentType {
	case "audio/ogg", "audio/opus":
		return ".ogg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/webm":
		return ".webm"
	default:
		return ".wav"
	}
}

func toStatus(err error) error {
	code := codes.Internal
	switch transport.Classify(err) {
	case transport.ClassInvalid:
		code = codes.InvalidArgument
	case transport.ClassNotFound:
		code = codes.NotFound
	case transport.ClassUpstream:
		code = codes.Unavailable
	}
	return status.Error(code, transport.ErrorMessage(err))
}
