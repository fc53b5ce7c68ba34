package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/taskdeck-io/taskdeck/internal/bridge"
)

const commandTimeout = 5 * time.Second

func connectCmd() tea.Cmd {
	return func() tea.Msg {
		client, err := bridge.Connect()
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return ConnectedMsg{Client: client}
	}
}

// subscribeCmd opens the event stream and pumps it into the program from a
// goroutine. The stream lives until the context is cancelled or the daemon
// goes away.
func subscribeCmd(ctx context.Context, client *bridge.Client, ref *programRef) tea.Cmd {
	return func() tea.Msg {
		stream, err := client.Subscribe(ctx, &bridge.RequestMeta{Origin: "tui"})
		if err != nil {
			return ErrorMsg{Err: err}
		}

		go func() {
			defer stream.Close()
			for {
				ev, err := stream.Recv()
				if err != nil {
					if ctx.Err() == nil {
						ref.Send(DisconnectedMsg{})
					}
					return
				}
				ref.Send(SurfaceEventMsg{Event: ev})
			}
		}()
		return nil
	}
}

func snapshotCmd(client *bridge.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		snapshot, err := client.GetSnapshot(ctx)
		if err != nil {
			if isConnectionLost(err) {
				return DisconnectedMsg{}
			}
			return ErrorMsg{Err: err}
		}
		return SnapshotMsg{Snapshot: snapshot}
	}
}

func listThemesCmd(client *bridge.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		list, err := client.ListThemes(ctx)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return ThemesLoadedMsg{List: list}
	}
}

func commandCmd(client *bridge.Client, req *bridge.CommandRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		reply, err := client.Command(ctx, req)
		if err != nil {
			if isConnectionLost(err) {
				return DisconnectedMsg{}
			}
			return ErrorMsg{Err: err}
		}
		if !reply.OK {
			return ErrorMsg{Err: errors.New(reply.Message)}
		}
		return CommandRepliedMsg{Reply: reply}
	}
}

func clearErrorCmd() tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return ClearErrorMsg{}
	})
}

func clearNoticeCmd() tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return ClearNoticeMsg{}
	})
}

func reconnectCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg {
		return ReconnectMsg{}
	})
}

func isConnectionLost(err error) bool {
	s, ok := status.FromError(err)
	if !ok {
		return false
	}
	return s.Code() == codes.Unavailable || s.Code() == codes.Canceled
}
