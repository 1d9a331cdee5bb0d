package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kirillkom/neurovision/internal/core/domain"
	"github.com/kirillkom/neurovision/internal/core/ports"
)

// Session is what the terminal needs from the controller.
type Session interface {
	ports.DiagnosticSession
	ports.SnapshotSubscriber
}

// Run drives the terminal UI until the user quits or ctx ends.
func Run(ctx context.Context, session Session, load ImageLoader, initialPath string) error {
	program := tea.NewProgram(
		NewModel(ctx, session, load, initialPath),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	unsubscribe := session.Subscribe(func(snapshot domain.Snapshot) {
		program.Send(snapshotMsg{snapshot: snapshot})
	})
	defer unsubscribe()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	return nil
}
