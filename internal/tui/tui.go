// Package tui implements the terminal display surface. It renders whatever
// frames the active theme pushes over the bridge and sends user input back
// as commands; it holds no domain state of its own.
package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// programRef is a shared reference to the tea.Program for goroutine sends.
// It's set after tea.NewProgram but before p.Run().
type programRef struct {
	mu sync.Mutex
	p  *tea.Program
}

func (r *programRef) Set(p *tea.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.p = p
}

func (r *programRef) Send(msg tea.Msg) {
	r.mu.Lock()
	p := r.p
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Clear nils out the program reference, preventing post-exit sends.
func (r *programRef) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.p = nil
}

// Run launches the display surface.
func Run() error {
	ref := &programRef{}
	model := NewModel(ref)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)
	ref.Set(p)

	_, err := p.Run()
	ref.Clear()
	return err
}
