package startup

import (
	"os/exec"
	"runtime"

	"video-converter/internal/logging"
)

// browserCommand returns the command that opens url in the default browser.
func browserCommand(goos, url string) (string, []string) {
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	case "darwin":
		return "open", []string{url}
	default:
		return "xdg-open", []string{url}
	}
}

// OpenBrowser opens url in the desktop browser. Failure is logged and
// otherwise ignored; headless hosts simply have no browser.
func OpenBrowser(url string) {
	name, args := browserCommand(runtime.GOOS, url)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		logging.Warn("Could not open browser: %v", err)
		return
	}
	go func() { _ = cmd.Wait() }()
	logging.Info("Opened %s in the browser", url)
}
