package bridge

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/taskdeck-io/taskdeck/internal/config"
)

// Client is the display-surface side of the bridge.
type Client struct {
	conn *grpc.ClientConn
}

// Connect establishes a connection to the running daemon using the
// connection info from ~/.taskdeck/daemon.yaml.
func Connect() (*Client, error) {
	info, err := config.LoadDaemonInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to load daemon info: %w", err)
	}
	if info == nil {
		return nil, fmt.Errorf("daemon not running")
	}
	return Dial(fmt.Sprintf("%s:%d", info.Host, info.Port))
}

// Dial connects to a daemon at an explicit address.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Command sends one command and returns the daemon's reply.
func (c *Client) Command(ctx context.Context, req *CommandRequest) (*CommandReply, error) {
	reply := new(CommandReply)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/Command", req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// GetSnapshot fetches the current domain state.
func (c *Client) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	snapshot := new(Snapshot)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/GetSnapshot", &SnapshotRequest{}, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// ListThemes fetches the registered themes.
func (c *Client) ListThemes(ctx context.Context) (*ThemeList, error) {
	list := new(ThemeList)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/ListThemes", &ThemeListRequest{}, list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetStatus fetches the daemon's vitals.
func (c *Client) GetStatus(ctx context.Context) (*DaemonStatus, error) {
	daemonStatus := new(DaemonStatus)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/GetStatus", &StatusRequest{}, daemonStatus); err != nil {
		return nil, err
	}
	return daemonStatus, nil
}

// EventStream is a live subscription to surface events.
type EventStream struct {
	stream grpc.ClientStream
	cancel context.CancelFunc
}

// Subscribe opens the surface event stream. The returned stream delivers
// events until Close is called or the daemon goes away.
func (c *Client) Subscribe(ctx context.Context, meta *RequestMeta) (*EventStream, error) {
	ctx, cancel := context.WithCancel(ctx)

	desc := &grpc.StreamDesc{StreamName: "Subscribe", ServerStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, "/"+ServiceName+"/Subscribe")
	if err != nil {
		cancel()
		return nil, err
	}
	if err := stream.SendMsg(&SubscribeRequest{Meta: meta}); err != nil {
		cancel()
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		cancel()
		return nil, err
	}
	return &EventStream{stream: stream, cancel: cancel}, nil
}

// Recv blocks until the next surface event arrives.
func (s *EventStream) Recv() (*SurfaceEvent, error) {
	ev := new(SurfaceEvent)
	if err := s.stream.RecvMsg(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Close ends the subscription.
func (s *EventStream) Close() {
	s.cancel()
}
