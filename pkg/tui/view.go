package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"kaidash/pkg/provider"
	"kaidash/pkg/utils"
)

// nodeInfoWidth caps client version strings in the account panel.
const nodeInfoWidth = 48

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}

	if m.showConnectMenu {
		return m.viewConnectMenu()
	}

	var content string
	switch {
	case m.connecting:
		name := provider.Kind(m.connectingKind).DisplayName()
		content = boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
			titleStyle.Render("Connecting"),
			"\n",
			fmt.Sprintf("%s Waiting for %s to grant access...", m.spinner.View(), name),
			"\n",
			subtleStyle.Render("esc: cancel"),
		))
	case !m.conn.Connected:
		content = boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
			titleStyle.Render("Not connected"),
			"\n",
			"Press 'w' to connect a wallet.",
		))
	case m.showGraph:
		content = m.viewGraph()
	default:
		content = m.viewAccount()
	}

	var status string
	if m.statusMessage != "" {
		if m.statusIsError {
			status = errStyle.Render(m.statusMessage)
		} else {
			status = infoStyle.Render(m.statusMessage)
		}
	}

	footer := subtleStyle.Render("w: connect • x: disconnect • r: refresh • c: copy • g: graph • P: privacy • ?: help • q: quit")

	leftBlock := titleStyle.Render(fmt.Sprintf("KaiDash %s", Version))
	privacyIndicator := ""
	if m.privacyMode {
		privacyIndicator = "🔒 "
	}
	lastUpdStr := ""
	if !m.lastUpdate.IsZero() {
		lastUpdStr = "Updated " + m.lastUpdate.Format("15:04:05")
	}
	rightBlock := subtleStyle.Render(fmt.Sprintf("%s%s ", privacyIndicator, lastUpdStr))
	gap := m.width - lipgloss.Width(leftBlock) - lipgloss.Width(rightBlock)
	if gap < 0 {
		gap = 0
	}
	topBar := lipgloss.JoinHorizontal(lipgloss.Top, leftBlock, strings.Repeat(" ", gap), rightBlock)

	h := m.height - 1
	if h < 0 {
		h = 0
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		topBar,
		lipgloss.Place(
			m.width,
			h,
			lipgloss.Center,
			lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center, content, "\n", status, footer),
		),
	)
}

func (m model) viewAccount() string {
	header := titleStyle.Render(provider.Kind(m.conn.Provider).DisplayName())

	balance := m.displayValue(m.snapshot.Balance)
	nodeInfo := utils.TruncateString(m.snapshot.NodeInfo, nodeInfoWidth)
	txCount := m.displayValue(m.snapshot.TransactionCount)
	if m.loading && m.snapshot.Empty() {
		balance = m.spinner.View()
		nodeInfo = m.spinner.View()
		txCount = m.spinner.View()
	}

	lines := []string{
		fmt.Sprintf("%-14s %s", "Address:", m.maskAddress(m.conn.Address)),
		fmt.Sprintf("%-14s %s", "Balance:", balance),
		fmt.Sprintf("%-14s %s", "Node:", nodeInfo),
		fmt.Sprintf("%-14s %s", "Transactions:", txCount),
	}
	if m.snapshot.Error != "" {
		lines = append(lines, "", errStyle.Render(m.snapshot.Error))
	}
	if m.loading && !m.snapshot.Empty() {
		lines = append(lines, "", subtleStyle.Render(m.spinner.View()+" refreshing..."))
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", strings.Join(lines, "\n")))
}

func (m model) viewGraph() string {
	header := titleStyle.Render("Balance History")

	var graph string
	switch {
	case m.privacyMode:
		graph = "****"
	case len(m.history) < 2:
		graph = "Not enough data to draw graph."
	default:
		values := make([]float64, len(m.history))
		low, high := m.history[0].Value, m.history[0].Value
		for i, p := range m.history {
			values[i] = p.Value
			low = min(low, p.Value)
			high = max(high, p.Value)
		}
		width := m.width - 10
		if width < 10 {
			width = 10
		}
		height := m.height - 14
		if height < 3 {
			height = 3
		}
		graph = asciigraph.Plot(values,
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption(fmt.Sprintf("Balance History (%s)", m.config.UnitSymbol)),
		)
		graph += "\n\n" + subtleStyle.Render(fmt.Sprintf("Min %s • Max %s",
			utils.FormatFloat(low, 4), utils.FormatFloat(high, 4)))
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, header, "\n", graph))
}

func (m model) viewConnectMenu() string {
	header := titleStyle.Render("Connect Wallet")

	var rows []string
	for i, p := range m.providers {
		cursor := "  "
		if i == m.menuIdx {
			cursor = "> "
		}
		state := infoStyle.Render("available")
		if !p.Installed {
			state = errStyle.Render("not installed")
		}
		row := fmt.Sprintf("%s%d. %-12s %s", cursor, i+1, p.Name, state)
		if p.Kind == m.defaultProvider {
			row += subtleStyle.Render(" (default)")
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		rows = append(rows, "No providers configured.")
	}

	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", strings.Join(rows, "\n")))

	var status string
	if m.statusMessage != "" {
		if m.statusIsError {
			status = errStyle.Render(m.statusMessage)
		} else {
			status = infoStyle.Render(m.statusMessage)
		}
	}
	footer := subtleStyle.Render("↑/↓: select • enter/1-2: connect • i: install link • esc: back")

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, lipgloss.JoinVertical(lipgloss.Center, content, "\n", status, footer))
}

func (m model) viewHelp() string {
	shortcuts := []string{
		"w: Connect Wallet",
		"x: Disconnect",
		"r: Refresh",
		"c: Copy Address",
		"g: Toggle Balance Graph",
		"P: Toggle Privacy Mode",
		"esc: Cancel Connect",
		"q: Quit",
		"?: Toggle Help",
		"",
		"Connect menu:",
		"↑/↓ + enter: Connect Selected",
		"1/2: Connect Directly",
		"i: Open Install Link",
	}

	header := titleStyle.Render("Help: Dashboard")
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", strings.Join(shortcuts, "\n")))
	footer := subtleStyle.Render("Press '?' or 'esc' to close")

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}
