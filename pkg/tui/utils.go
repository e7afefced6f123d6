package tui

import (
	"os/exec"
	"runtime"

	"kaidash/pkg/utils"
)

func (m model) displayValue(s string) string {
	if m.privacyMode && s != "" {
		return "****"
	}
	return s
}

func (m model) maskAddress(addr string) string {
	if m.privacyMode {
		return "0x**...**"
	}
	if m.width > 0 && m.width < 60 {
		return utils.ShortAddress(addr)
	}
	return addr
}

// openBrowser opens the specified URL in the default browser.
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default: // "linux", "freebsd", "openbsd", "netbsd"
		cmd = "xdg-open"
	}
	args = append(args, url)
	return exec.Command(cmd, args...).Start()
}
