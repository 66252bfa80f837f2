package tray

import (
	"os/exec"
	"runtime"
)

// openWithDesktop hands the target to the OS default handler, covering both
// http URLs (browser) and plain files (log viewer).
func openWithDesktop(target string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target).Start()
	default:
		return exec.Command("xdg-open", target).Start()
	}
}
