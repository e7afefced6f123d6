package tui

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"kaidash/pkg/models"
	"kaidash/pkg/provider"
	"kaidash/pkg/session"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case session.Event:
		cmds = append(cmds, listenForSession(m.sub))

		switch msg.Type {
		case session.EventConnecting:
			m.connecting = true
			if kind, ok := msg.Data.(string); ok {
				m.connectingKind = kind
			}
		case session.EventConnected:
			if info, ok := msg.Data.(models.ConnectionInfo); ok {
				m.conn = info
			}
			m.connecting = false
			m.loading = true
			m.snapshot = models.Snapshot{}
			m.history = nil
			m.setStatus("Connected", false)
			cmds = append(cmds, clearStatusAfter(3*time.Second))
		case session.EventConnectFailed:
			// A newer attempt of ours may still be running.
			m.connecting = m.cancelConnect != nil
			if data, ok := msg.Data.(models.ConnectError); ok {
				m.setStatus(fmt.Sprintf("Unable to connect: %s", reasonText(data)), true)
			} else {
				m.setStatus("Unable to connect", true)
			}
			// The previous connection, if any, is still live.
			m.conn = m.session.State()
			m.snapshot = m.session.Snapshot()
			m.history = m.session.History()
			cmds = append(cmds, clearStatusAfter(5*time.Second))
		case session.EventDisconnected:
			m.conn = models.ConnectionInfo{}
			m.snapshot = models.Snapshot{}
			m.history = nil
			m.loading = false
		case session.EventSnapshotUpdated:
			if snap, ok := msg.Data.(models.Snapshot); ok {
				m.snapshot = snap
			}
			m.history = m.session.History()
			m.loading = false
			m.lastUpdate = time.Now()
		case session.EventQueryFailed:
			m.snapshot = m.session.Snapshot()
			m.loading = false
			m.lastUpdate = time.Now()
			if data, ok := msg.Data.(models.QueryError); ok {
				m.setStatus(fmt.Sprintf("Failed to load %s", data.Query), true)
				cmds = append(cmds, clearStatusAfter(5*time.Second))
			}
		}

	case connectDoneMsg:
		if msg.seq != m.connectSeq {
			break
		}
		m.connecting = false
		m.cancelConnect = nil
		m.connectingKind = ""

	case refreshDoneMsg:
		m.loading = false
		if errors.Is(msg.err, session.ErrNotConnected) {
			m.setStatus("Not connected", true)
			cmds = append(cmds, clearStatusAfter(2*time.Second))
		}

	case clearStatusMsg:
		m.statusMessage = ""
		m.statusIsError = false

	case privacyTimeoutMsg:
		if m.config.PrivacyTimeoutSeconds <= 0 {
			break
		}
		timeoutDuration := time.Duration(m.config.PrivacyTimeoutSeconds) * time.Second
		if !m.privacyMode {
			if time.Since(m.lastInteraction) >= timeoutDuration {
				m.privacyMode = true
				m.setStatus("Privacy Mode enabled due to inactivity", false)
				cmds = append(cmds, clearStatusAfter(2*time.Second))
			} else {
				remaining := timeoutDuration - time.Since(m.lastInteraction)
				cmds = append(cmds, tea.Tick(remaining, func(t time.Time) tea.Msg {
					return privacyTimeoutMsg{}
				}))
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		m.lastInteraction = time.Now()
		return m.handleKey(msg)
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	key := msg.String()

	if key == "ctrl+c" {
		m.abortConnect()
		return m, tea.Quit
	}

	if key == "?" {
		m.showHelp = !m.showHelp
		return m, nil
	}
	if m.showHelp {
		if key == "q" || key == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	if key == "P" {
		m.privacyMode = !m.privacyMode
		if !m.privacyMode && m.config.PrivacyTimeoutSeconds > 0 {
			cmds = append(cmds, tea.Tick(time.Duration(m.config.PrivacyTimeoutSeconds)*time.Second, func(t time.Time) tea.Msg {
				return privacyTimeoutMsg{}
			}))
		}
		return m, tea.Batch(cmds...)
	}

	if m.showConnectMenu {
		switch key {
		case "q", "esc", "w":
			m.showConnectMenu = false
		case "up", "k":
			if m.menuIdx > 0 {
				m.menuIdx--
			}
		case "down", "j":
			if m.menuIdx < len(m.providers)-1 {
				m.menuIdx++
			}
		case "enter":
			if m.menuIdx < len(m.providers) {
				return m.startConnect(m.providers[m.menuIdx].Kind)
			}
		case "i":
			if m.menuIdx < len(m.providers) {
				cmds = append(cmds, m.openInstallLink(m.providers[m.menuIdx]))
			}
		default:
			if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(m.providers) {
				m.menuIdx = n - 1
				return m.startConnect(m.providers[n-1].Kind)
			}
		}
		return m, tea.Batch(cmds...)
	}

	switch key {
	case "q":
		m.abortConnect()
		return m, tea.Quit

	case "esc":
		if m.connecting {
			m.abortConnect()
			m.connecting = false
			m.connectingKind = ""
			m.setStatus("Connection cancelled", false)
			cmds = append(cmds, clearStatusAfter(2*time.Second))
		}

	case "w":
		if !m.connecting {
			m.showConnectMenu = true
		}

	case "x":
		if m.conn.Connected || m.connecting {
			m.abortConnect()
			m.session.Disconnect()
			m.conn = m.session.State()
			m.snapshot = models.Snapshot{}
			m.history = nil
			m.loading = false
			m.setStatus("Disconnected", false)
			cmds = append(cmds, clearStatusAfter(2*time.Second))
		}

	case "r":
		if !m.conn.Connected {
			m.setStatus("Not connected", true)
			cmds = append(cmds, clearStatusAfter(2*time.Second))
			break
		}
		if !m.loading {
			m.loading = true
			cmds = append(cmds, refreshCmd(m.session), m.spinner.Tick)
		}

	case "c":
		if m.conn.Address == "" {
			break
		}
		if err := clipboard.WriteAll(m.conn.Address); err != nil {
			m.setStatus(fmt.Sprintf("Failed to copy: %v", err), true)
		} else {
			m.setStatus("Address copied to clipboard!", false)
		}
		cmds = append(cmds, clearStatusAfter(2*time.Second))

	case "g":
		m.showGraph = !m.showGraph
	}

	return m, tea.Batch(cmds...)
}

func (m model) startConnect(kind string) (tea.Model, tea.Cmd) {
	m.showConnectMenu = false
	m.abortConnect()
	m.connecting = true
	m.connectingKind = kind
	m.statusMessage = ""
	m.statusIsError = false

	m.connectSeq++
	cmd, cancel := connectCmd(m.session, kind, m.connectSeq)
	m.cancelConnect = cancel
	return m, tea.Batch(cmd, m.spinner.Tick)
}

func (m *model) abortConnect() {
	if m.cancelConnect != nil {
		m.cancelConnect()
		m.cancelConnect = nil
	}
}

func (m *model) openInstallLink(p models.ProviderInfo) tea.Cmd {
	switch {
	case p.InstallURL == "":
		m.setStatus(fmt.Sprintf("No install link for %s", p.Name), true)
	default:
		if err := openBrowser(p.InstallURL); err != nil {
			m.setStatus(fmt.Sprintf("Failed to open browser: %v", err), true)
		} else {
			m.setStatus("Opened in browser", false)
		}
	}
	return clearStatusAfter(2 * time.Second)
}

func (m *model) setStatus(text string, isError bool) {
	m.statusMessage = text
	m.statusIsError = isError
}

func reasonText(e models.ConnectError) string {
	name := provider.Kind(e.Provider).DisplayName()
	switch e.Reason {
	case "missing":
		return fmt.Sprintf("%s is not installed", name)
	case "rejected":
		return fmt.Sprintf("request rejected in %s", name)
	case "no_accounts":
		return fmt.Sprintf("%s has no accounts", name)
	case "timeout":
		return "timed out waiting for the wallet"
	case "cancelled":
		return "cancelled"
	case "superseded":
		return "superseded by a newer request"
	}
	return e.Message
}
