package tui

import (
	"fmt"

	"kaidash/pkg/session"

	tea "github.com/charmbracelet/bubbletea"
)

// Start runs the dashboard until the user quits.
func Start(s *session.Session, defaultProvider, version string) error {
	Version = version
	m := initialModel(s, defaultProvider)
	defer s.Unsubscribe(m.sub)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
