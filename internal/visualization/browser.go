package visualization

import (
	"fmt"
	"os/exec"
	"runtime"
)

// openCommands maps GOOS to the command that opens a URL in the default browser.
var openCommands = map[string][]string{
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"darwin":  {"open"},
	"windows": {"cmd", "/c", "start"},
}

// OpenBrowser opens url in the user's default browser without waiting for it.
func OpenBrowser(url string) error {
	args, ok := openCommands[runtime.GOOS]
	if !ok {
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	args = append(append([]string(nil), args...), url)
	return exec.Command(args[0], args[1:]...).Start()
}
