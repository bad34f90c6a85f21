package chrome

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
)

var ErrNotFound = errors.New("Chrome browser not found. Please install Google Chrome or Chromium")

var lookPathNames = []string{"google-chrome", "google-chrome-stable", "chromium-browser", "chromium"}

// candidatePaths lists the usual install locations per platform.
func candidatePaths(goos string) []string {
	switch goos {
	case "linux":
		return []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
			"/opt/google/chrome/google-chrome",
		}
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	}
	return nil
}

// ExecPath resolves the browser executable. A non-empty override must exist;
// otherwise the platform's install locations and then PATH are searched.
func ExecPath(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", err
		}
		return override, nil
	}

	for _, path := range candidatePaths(runtime.GOOS) {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	for _, name := range lookPathNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrNotFound
}
