package grpc

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"

	"github.com/nadzzz/civicbot/internal/chat"
	"github.com/nadzzz/civicbot/internal/message"
)

// Client calls civicbot.v1.Chat over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// OpenSession starts a session.
func (c *Client) OpenSession(ctx context.Context, variant string) (*chat.View, error) {
	out := new(chat.View)
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/OpenSession", &OpenSessionRequest{Variant: variant}, out,
		grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Hazards returns the current hazard report.
func (c *Client) Hazards(ctx context.Context) (*chat.HazardReport, error) {
	out := new(chat.HazardReport)
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/Hazards", &HazardsRequest{}, out,
		grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reply sends a message and calls onSnapshot for every revealed character.
// It returns the closing event of the stream.
func (c *Client) Reply(ctx context.Context, req *ReplyRequest, onSnapshot func(message.Snapshot)) (*ReplyDone, error) {
	stream, err := c.cc.NewStream(ctx, &chatServiceDesc.Streams[0], "/"+ServiceName+"/Reply",
		grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	var done *ReplyDone
	for {
		var ev ReplyEvent
		err := stream.RecvMsg(&ev)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch {
		case ev.Snapshot != nil && onSnapshot != nil:
			onSnapshot(*ev.Snapshot)
		case ev.Done != nil:
			done = ev.Done
		}
	}
	if done == nil {
		return nil, errors.New("reply stream closed without a done event")
	}
	return done, nil
}
