package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/taskdeck-io/taskdeck/internal/config"
	"github.com/taskdeck-io/taskdeck/internal/models"
	"github.com/taskdeck-io/taskdeck/internal/pomodoro"
	"github.com/taskdeck-io/taskdeck/internal/tasksource"
	"github.com/taskdeck-io/taskdeck/internal/theme"
)

// ServiceName is the fully qualified bridge service name.
const ServiceName = "taskdeck.v1.Bridge"

// Per-subscriber event buffer. A surface that stops reading loses events
// rather than blocking the daemon.
const subscriberBuffer = 64

// Deps are the domain services the bridge routes commands to. Themes is
// attached separately because the coordinator needs the server as its
// surface.
type Deps struct {
	Tasks    *tasksource.Service
	Timer    *pomodoro.Service
	Themes   *theme.Coordinator
	Settings *config.Store
}

// Server is the daemon side of the presentation bridge. It implements
// theme.Surface, so the coordinator and the active theme paint through it.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	port       int
	deps       Deps
	startedAt  time.Time

	mu          sync.Mutex
	subscribers map[string]chan SurfaceEvent
	lastTheme   *theme.ThemeInfo
	lastFrame   *theme.Frame

	dragMu     sync.Mutex
	dragOrigin *models.WindowSettings
}

// New creates a bridge server listening on the given TCP port. Pass 0 for
// dynamic allocation.
func New(port int, deps Deps) (*Server, error) {
	listener, err := (&net.ListenConfig{}).Listen(context.TODO(), "tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	srv := &Server{
		grpcServer:  grpc.NewServer(),
		listener:    listener,
		port:        listener.Addr().(*net.TCPAddr).Port,
		deps:        deps,
		startedAt:   time.Now().UTC(),
		subscribers: make(map[string]chan SurfaceEvent),
	}
	srv.grpcServer.RegisterService(&serviceDesc, srv)
	return srv, nil
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// AttachThemes wires the theme coordinator in. Must be called before Serve.
func (s *Server) AttachThemes(c *theme.Coordinator) {
	s.deps.Themes = c
}

// GRPCServer exposes the underlying server for wrapping (grpc-web).
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// Serve starts serving requests. Blocks until Stop is called.
func (s *Server) Serve() error {
	return s.grpcServer.Serve(s.listener)
}

// Stop gracefully stops the server and drops all subscribers.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

// ============================================================================
// theme.Surface implementation
// ============================================================================

// ThemeChanged tells every surface to discard the previous theme's content.
// It is broadcast before the new theme's first frame, and remembered so a
// late subscriber starts from the right theme.
func (s *Server) ThemeChanged(info theme.ThemeInfo) {
	s.mu.Lock()
	s.lastTheme = &info
	s.lastFrame = nil // the old theme's content is stale now
	s.mu.Unlock()

	s.broadcast(SurfaceEvent{Kind: KindThemeChange, Theme: &info})
}

// ShowFrame relays a theme repaint.
func (s *Server) ShowFrame(frame theme.Frame) {
	s.mu.Lock()
	s.lastFrame = &frame
	s.mu.Unlock()

	s.broadcast(SurfaceEvent{Kind: KindFrame, Frame: &frame})
}

// ThemeSettingsUpdated relays merged settings for the active theme.
func (s *Server) ThemeSettingsUpdated(name string, settings map[string]any) {
	s.broadcast(SurfaceEvent{Kind: KindThemeSettings, ThemeSettings: &ThemeSettings{
		Theme:    name,
		Settings: settings,
	}})
}

// Notify relays a notification request.
func (s *Server) Notify(title, body string) {
	s.broadcast(SurfaceEvent{Kind: KindNotification, Notification: &Notification{Title: title, Body: body}})
}

// ForwardEvent translates an internal domain event into the external
// contract. Payloads that don't encode are dropped with a log line.
func (s *Server) ForwardEvent(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("bridge: dropping event %q: %v", name, err)
		return
	}
	s.broadcast(SurfaceEvent{Kind: KindEvent, Event: &DomainEvent{Name: name, Payload: data}})
}

func (s *Server) broadcast(ev SurfaceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			log.Printf("bridge: subscriber %s is not draining, dropping event", id)
		}
	}
}

// ============================================================================
// RPC handlers
// ============================================================================

// Subscribe streams surface events until the client goes away. The current
// theme and frame are replayed first so a fresh surface paints immediately.
func (s *Server) Subscribe(req *SubscribeRequest, stream grpc.ServerStream) error {
	id := uuid.NewString()
	ch := make(chan SurfaceEvent, subscriberBuffer)

	s.mu.Lock()
	s.subscribers[id] = ch
	lastTheme := s.lastTheme
	lastFrame := s.lastFrame
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}()

	if lastTheme != nil {
		if err := stream.SendMsg(&SurfaceEvent{Kind: KindThemeChange, Theme: lastTheme}); err != nil {
			return err
		}
	}
	if lastFrame != nil {
		if err := stream.SendMsg(&SurfaceEvent{Kind: KindFrame, Frame: lastFrame}); err != nil {
			return err
		}
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ch:
			if err := stream.SendMsg(&ev); err != nil {
				return err
			}
		}
	}
}

// Command routes a user-driven action to the owning service.
func (s *Server) Command(ctx context.Context, req *CommandRequest) (*CommandReply, error) {
	switch req.Name {
	case CmdNextTask:
		if next := s.deps.Tasks.NextTask(); next == nil {
			return &CommandReply{OK: true, Message: "no tasks"}, nil
		}
		return &CommandReply{OK: true}, nil

	case CmdCompleteTask:
		id := req.TaskID
		if id == "" {
			current := s.deps.Tasks.CurrentTask()
			if current == nil {
				return &CommandReply{OK: false, Message: "no current task"}, nil
			}
			id = current.ID
		}
		if err := s.deps.Tasks.CompleteTask(ctx, id); err != nil {
			return &CommandReply{OK: false, Message: err.Error()}, nil
		}
		return &CommandReply{OK: true}, nil

	case CmdAddTask:
		if err := s.deps.Tasks.AddTask(ctx, req.Content, req.ProjectID); err != nil {
			return &CommandReply{OK: false, Message: err.Error()}, nil
		}
		return &CommandReply{OK: true}, nil

	case CmdRefresh:
		if err := s.deps.Tasks.FetchTasks(ctx); err != nil {
			return &CommandReply{OK: false, Message: err.Error()}, nil
		}
		if err := s.deps.Tasks.FetchProjects(ctx); err != nil {
			return &CommandReply{OK: false, Message: err.Error()}, nil
		}
		return &CommandReply{OK: true}, nil

	case CmdTimerToggle:
		s.deps.Timer.Toggle()
		return &CommandReply{OK: true}, nil

	case CmdTimerStart:
		s.deps.Timer.Start()
		return &CommandReply{OK: true}, nil

	case CmdTimerPause:
		s.deps.Timer.Pause()
		return &CommandReply{OK: true}, nil

	case CmdTimerReset:
		s.deps.Timer.Reset()
		return &CommandReply{OK: true}, nil

	case CmdTimerNextPhase:
		s.deps.Timer.StartNextPhase()
		return &CommandReply{OK: true}, nil

	case CmdSetWorkTime:
		if err := s.deps.Timer.SetWorkTime(req.Minutes); err != nil {
			return &CommandReply{OK: false, Message: err.Error()}, nil
		}
		s.persistTimerSettings()
		return &CommandReply{OK: true}, nil

	case CmdSetBreakTime:
		if err := s.deps.Timer.SetBreakTime(req.Minutes); err != nil {
			return &CommandReply{OK: false, Message: err.Error()}, nil
		}
		s.persistTimerSettings()
		return &CommandReply{OK: true}, nil

	case CmdThemeSwitch:
		if err := s.deps.Themes.Activate(ctx, req.Theme); err != nil {
			return &CommandReply{OK: false, Message: err.Error()}, nil
		}
		return &CommandReply{OK: true}, nil

	case CmdThemeSettings:
		if err := s.deps.Themes.UpdateThemeSettings(req.Theme, req.Data); err != nil {
			return &CommandReply{OK: false, Message: err.Error()}, nil
		}
		return &CommandReply{OK: true}, nil

	case CmdRendererEvent:
		s.deps.Themes.HandleRendererEvent(theme.RendererEvent{
			ThemeName: req.Theme,
			EventName: req.Event,
			Data:      req.Data,
		})
		return &CommandReply{OK: true}, nil

	case CmdDragStart:
		s.dragMu.Lock()
		window := s.deps.Settings.Window()
		s.dragOrigin = &window
		s.dragMu.Unlock()
		return &CommandReply{OK: true}, nil

	case CmdDragMove:
		// Moves are ephemeral; only drag-end persists geometry.
		return &CommandReply{OK: true}, nil

	case CmdDragEnd:
		s.dragMu.Lock()
		origin := s.dragOrigin
		s.dragOrigin = nil
		s.dragMu.Unlock()
		if origin == nil {
			return &CommandReply{OK: false, Message: "drag-end without drag-start"}, nil
		}
		window := *origin
		window.X = req.X
		window.Y = req.Y
		if err := s.deps.Settings.SaveWindow(window); err != nil {
			return &CommandReply{OK: false, Message: err.Error()}, nil
		}
		return &CommandReply{OK: true}, nil
	}

	return nil, status.Errorf(codes.InvalidArgument, "unknown command %q", req.Name)
}

// GetSnapshot returns the current domain state for a fresh surface.
func (s *Server) GetSnapshot(ctx context.Context, _ *SnapshotRequest) (*Snapshot, error) {
	tasks := s.deps.Tasks.Snapshot()

	snapshot := &Snapshot{
		Tasks:       tasks.Tasks,
		CurrentTask: tasks.CurrentTask,
		Timer:       s.deps.Timer.Snapshot(),
	}

	s.mu.Lock()
	snapshot.Theme = s.lastTheme
	s.mu.Unlock()
	return snapshot, nil
}

// ListThemes returns the registered themes in registration order.
func (s *Server) ListThemes(ctx context.Context, _ *ThemeListRequest) (*ThemeList, error) {
	descriptors := s.deps.Themes.Themes()

	list := &ThemeList{
		Themes: make([]theme.ThemeInfo, 0, len(descriptors)),
		Active: s.deps.Themes.ActiveName(),
	}
	for _, d := range descriptors {
		settings, err := s.deps.Themes.ThemeSettings(d.Name)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "theme settings for %s: %v", d.Name, err)
		}
		list.Themes = append(list.Themes, theme.ThemeInfo{
			Name:        d.Name,
			DisplayName: d.DisplayName,
			Description: d.Description,
			Settings:    settings,
		})
	}
	return list, nil
}

// GetStatus reports the daemon's vitals.
func (s *Server) GetStatus(ctx context.Context, _ *StatusRequest) (*DaemonStatus, error) {
	s.mu.Lock()
	subscribers := len(s.subscribers)
	s.mu.Unlock()

	return &DaemonStatus{
		Host:        "localhost",
		Port:        int32(s.port),
		Pid:         int32(os.Getpid()),
		StartedAt:   timestamppb.New(s.startedAt),
		ActiveTheme: s.deps.Themes.ActiveName(),
		TaskCount:   int32(len(s.deps.Tasks.Snapshot().Tasks)),
		Subscribers: int32(subscribers),
	}, nil
}

func (s *Server) persistTimerSettings() {
	state := s.deps.Timer.Snapshot()
	err := s.deps.Settings.SaveTimer(models.TimerSettings{
		WorkMinutes:    state.WorkMinutes,
		BreakMinutes:   state.BreakMinutes,
		WorkProjectID:  state.WorkProjectID,
		BreakProjectID: state.BreakProjectID,
	})
	if err != nil {
		log.Printf("bridge: failed to persist timer settings: %v", err)
	}
}
