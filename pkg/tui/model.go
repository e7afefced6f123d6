package tui

import (
	"context"
	"time"

	"kaidash/pkg/config"
	"kaidash/pkg/models"
	"kaidash/pkg/provider"
	"kaidash/pkg/session"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

// --- Messages ---

type clearStatusMsg struct{}
type privacyTimeoutMsg struct{}

// connectDoneMsg carries the seq of the attempt that produced it.
type connectDoneMsg struct {
	seq  int
	kind string
	err  error
}

type refreshDoneMsg struct {
	err error
}

// --- Model ---

type model struct {
	session   *session.Session
	sub       session.Subscriber
	providers []models.ProviderInfo
	config    config.GlobalConfig

	conn     models.ConnectionInfo
	snapshot models.Snapshot
	history  []models.BalancePoint

	width  int
	height int

	loading        bool
	connecting     bool
	connectingKind string
	cancelConnect  context.CancelFunc
	connectSeq     int
	spinner        spinner.Model

	statusMessage string
	statusIsError bool

	showConnectMenu bool
	menuIdx         int
	showGraph       bool
	showHelp        bool
	privacyMode     bool

	defaultProvider string
	lastInteraction time.Time
	lastUpdate      time.Time
}

func initialModel(s *session.Session, defaultProvider string) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	providers := s.Providers()
	menuIdx := 0
	for i, p := range providers {
		if p.Kind == defaultProvider {
			menuIdx = i
		}
	}

	return model{
		session:         s,
		sub:             s.Subscribe(),
		providers:       providers,
		config:          s.Config(),
		conn:            s.State(),
		snapshot:        s.Snapshot(),
		history:         s.History(),
		spinner:         sp,
		menuIdx:         menuIdx,
		defaultProvider: defaultProvider,
		lastInteraction: time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	var cmds []tea.Cmd

	cmds = append(cmds, listenForSession(m.sub))
	cmds = append(cmds, m.spinner.Tick)

	if !m.privacyMode && m.config.PrivacyTimeoutSeconds > 0 {
		cmds = append(cmds, tea.Tick(time.Duration(m.config.PrivacyTimeoutSeconds)*time.Second, func(t time.Time) tea.Msg {
			return privacyTimeoutMsg{}
		}))
	}
	return tea.Batch(cmds...)
}

func listenForSession(sub session.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}

// connectCmd runs the connect on its own goroutine so the UI stays
// responsive; the returned cancel func aborts it.
func connectCmd(s *session.Session, kind string, seq int) (tea.Cmd, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	return func() tea.Msg {
		defer cancel()
		k, err := provider.ParseKind(kind)
		if err == nil {
			err = s.Connect(ctx, k)
		}
		return connectDoneMsg{seq: seq, kind: kind, err: err}
	}, cancel
}

func refreshCmd(s *session.Session) tea.Cmd {
	return func() tea.Msg {
		_, err := s.Refresh(context.Background())
		return refreshDoneMsg{err: err}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}
