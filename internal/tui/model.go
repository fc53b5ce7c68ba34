package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/taskdeck-io/taskdeck/internal/bridge"
	"github.com/taskdeck-io/taskdeck/internal/theme"
)

// Model is the root Bubbletea model for the display surface.
type Model struct {
	client    *bridge.Client
	connected bool

	// What the active theme last painted. The surface never composes
	// domain state itself; a nil frame means nothing arrived yet.
	themeName    string
	themeDisplay string
	frame        *theme.Frame

	// Fallback content for the gap between connect and first frame.
	snapshot *bridge.Snapshot

	// Theme cycling order, from ListThemes.
	themeOrder []string

	notice string
	err    error

	adding bool
	input  textinput.Model

	width  int
	height int

	program      *programRef
	streamCtx    context.Context
	streamCancel context.CancelFunc
}

// NewModel creates the initial surface model.
func NewModel(program *programRef) Model {
	ctx, cancel := context.WithCancel(context.Background())

	ti := textinput.New()
	ti.Placeholder = "Task content"
	ti.CharLimit = 200
	ti.Width = 40

	return Model{
		program:      program,
		input:        ti,
		streamCtx:    ctx,
		streamCancel: cancel,
	}
}

// Init returns the initial commands.
func (m Model) Init() tea.Cmd {
	return connectCmd()
}

// Update processes messages and returns an updated model and commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)

	case ConnectedMsg:
		m.client = msg.Client
		m.connected = true
		m.err = nil
		return m, tea.Batch(
			subscribeCmd(m.streamCtx, m.client, m.program),
			snapshotCmd(m.client),
			listThemesCmd(m.client),
		)

	case DisconnectedMsg:
		m.connected = false
		return m, reconnectCmd()

	case ReconnectMsg:
		if m.connected {
			return m, nil
		}
		return m, connectCmd()

	case SurfaceEventMsg:
		return m.updateSurfaceEvent(msg.Event)

	case SnapshotMsg:
		m.snapshot = msg.Snapshot
		if msg.Snapshot.Theme != nil && m.themeName == "" {
			m.themeName = msg.Snapshot.Theme.Name
			m.themeDisplay = msg.Snapshot.Theme.DisplayName
		}
		return m, nil

	case ThemesLoadedMsg:
		m.themeOrder = m.themeOrder[:0]
		for _, info := range msg.List.Themes {
			m.themeOrder = append(m.themeOrder, info.Name)
		}
		return m, nil

	case CommandRepliedMsg:
		if msg.Reply.Message != "" {
			m.notice = msg.Reply.Message
			return m, clearNoticeCmd()
		}
		return m, nil

	case ErrorMsg:
		m.err = msg.Err
		return m, clearErrorCmd()

	case ClearErrorMsg:
		m.err = nil
		return m, nil

	case ClearNoticeMsg:
		m.notice = ""
		return m, nil
	}

	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.adding {
		switch msg.Type {
		case tea.KeyEsc:
			m.adding = false
			m.input.Reset()
			return m, nil
		case tea.KeyEnter:
			content := strings.TrimSpace(m.input.Value())
			m.adding = false
			m.input.Reset()
			if content == "" || m.client == nil {
				return m, nil
			}
			return m, commandCmd(m.client, &bridge.CommandRequest{
				Name:    bridge.CmdAddTask,
				Content: content,
			})
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Quit):
		m.streamCancel()
		if m.client != nil {
			_ = m.client.Close()
		}
		return m, tea.Quit

	case key.Matches(msg, keys.Add):
		m.adding = true
		m.input.Focus()
		return m, textinput.Blink
	}

	if m.client == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Next):
		return m, commandCmd(m.client, &bridge.CommandRequest{Name: bridge.CmdNextTask})
	case key.Matches(msg, keys.Complete):
		return m, commandCmd(m.client, &bridge.CommandRequest{Name: bridge.CmdCompleteTask})
	case key.Matches(msg, keys.Toggle):
		return m, commandCmd(m.client, &bridge.CommandRequest{Name: bridge.CmdTimerToggle})
	case key.Matches(msg, keys.Reset):
		return m, commandCmd(m.client, &bridge.CommandRequest{Name: bridge.CmdTimerReset})
	case key.Matches(msg, keys.Skip):
		return m, commandCmd(m.client, &bridge.CommandRequest{Name: bridge.CmdTimerNextPhase})
	case key.Matches(msg, keys.Refresh):
		return m, commandCmd(m.client, &bridge.CommandRequest{Name: bridge.CmdRefresh})
	case key.Matches(msg, keys.Theme):
		if next := m.nextTheme(); next != "" {
			return m, commandCmd(m.client, &bridge.CommandRequest{
				Name:  bridge.CmdThemeSwitch,
				Theme: next,
			})
		}
	}

	return m, nil
}

func (m Model) updateSurfaceEvent(ev *bridge.SurfaceEvent) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case bridge.KindThemeChange:
		if ev.Theme != nil {
			m.themeName = ev.Theme.Name
			m.themeDisplay = ev.Theme.DisplayName
			// The old theme's frame must not outlive it.
			m.frame = nil
		}
		return m, nil

	case bridge.KindFrame:
		if ev.Frame != nil && ev.Frame.Theme == m.themeName {
			m.frame = ev.Frame
		}
		return m, nil

	case bridge.KindNotification:
		if ev.Notification != nil {
			m.notice = strings.TrimSpace(ev.Notification.Title + " " + ev.Notification.Body)
			return m, clearNoticeCmd()
		}
		return m, nil

	case bridge.KindEvent:
		if ev.Event != nil && ev.Event.Name == "api-error" {
			m.err = fmt.Errorf("tracker error")
			return m, clearErrorCmd()
		}
		return m, nil
	}

	return m, nil
}

// nextTheme returns the theme after the current one in registration order.
func (m Model) nextTheme() string {
	if len(m.themeOrder) == 0 {
		return ""
	}
	for i, name := range m.themeOrder {
		if name == m.themeName {
			return m.themeOrder[(i+1)%len(m.themeOrder)]
		}
	}
	return m.themeOrder[0]
}

// View renders the surface.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	content := m.renderContent()
	bar := renderStatusBar(&m, m.width)

	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	return body + "\n" + bar
}

func (m Model) renderContent() string {
	if m.adding {
		return overlayStyle.Render(
			overlayTitleStyle.Render("Add Task") + "\n" + m.input.View(),
		)
	}

	if !m.connected {
		return dimStyle.Render("Connecting to daemon...")
	}

	inner := m.width - 6
	if inner < 10 {
		inner = 10
	}

	var b strings.Builder
	if m.frame != nil {
		if m.frame.Title != "" {
			b.WriteString(titleStyle.Render(ansi.Truncate(m.frame.Title, inner, "…")))
			b.WriteString("\n")
		}
		for i, line := range m.frame.Lines {
			b.WriteString(ansi.Truncate(line, inner, "…"))
			if i < len(m.frame.Lines)-1 {
				b.WriteString("\n")
			}
		}
	} else {
		b.WriteString(m.fallbackLines(inner))
	}

	return frameStyle.Render(b.String())
}

// fallbackLines paints snapshot state while no theme frame has arrived.
func (m Model) fallbackLines(width int) string {
	if m.snapshot == nil {
		return dimStyle.Render("Waiting for theme...")
	}

	task := "No tasks"
	if m.snapshot.CurrentTask != nil {
		task = m.snapshot.CurrentTask.Content
	}
	timer := m.snapshot.Timer
	phase := "Work"
	if timer.IsBreak {
		phase = "Break"
	}
	return ansi.Truncate(task, width, "…") + "\n" +
		dimStyle.Render(fmt.Sprintf("%s %02d:%02d", phase,
			timer.TimeRemainingSeconds/60, timer.TimeRemainingSeconds%60))
}
