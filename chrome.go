package lunettes

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/2005czq/lunettes/core"
)

// ErrChromeNotFound is returned when no Chrome or Chromium executable could be located.
var ErrChromeNotFound = errors.New("chrome executable not found")

// knownChromePaths are the usual install locations per GOOS.
var knownChromePaths = map[string][]string{
	"darwin": {
		`/Applications/Google Chrome.app/Contents/MacOS/Google Chrome`,
		`/Applications/Chromium.app/Contents/MacOS/Chromium`,
		`/usr/local/bin/chrome`,
		`/usr/local/bin/chromium`,
	},
	"windows": {
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files\Chromium\Application\chrome.exe`,
	},
	"linux": {
		`/usr/bin/google-chrome`,
		`/usr/bin/chromium-browser`,
		`/usr/bin/chromium`,
		`/snap/bin/chromium`,
	},
}

// chromeCandidates returns the paths to try on goos, built-in locations first
// and then the custom ones configured for that OS.
func chromeCandidates(goos string, customPaths []ChromePathConfig) []string {
	candidates := append([]string(nil), knownChromePaths[goos]...)
	for _, custom := range customPaths {
		if custom.OS == goos {
			candidates = append(candidates, custom.Path)
		}
	}
	return candidates
}

// getChromePath returns the first executable candidate for the running OS, or "".
func getChromePath(customPaths []ChromePathConfig) string {
	for _, candidate := range chromeCandidates(runtime.GOOS, customPaths) {
		if _, err := exec.LookPath(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// chromeFlags builds the command line for a Chrome instance that goes through the proxy,
// trusts the proxy CA by its SPKI hash and keeps its state in a separate profile.
func (proxy *Proxy) chromeFlags(startURL string) []string {
	if startURL == "" {
		startURL = "about:blank"
	}
	return []string{
		fmt.Sprintf("--user-data-dir=%s", filepath.Join(proxy.ConfigDir, "chrome-profile")),
		fmt.Sprintf("--proxy-server=%s", proxy.URL()),
		fmt.Sprintf("--ignore-certificate-errors-spki-list=%s", proxy.SPKIHash),
		"--disable-background-networking",
		"--disable-default-apps",
		"--disable-sync",
		"--no-first-run",
		"--disable-component-update",
		"--disable-search-engine-choice",
		"--proxy-bypass-list=<-loopback>",
		startURL,
	}
}

// StartChrome launches Chrome with an isolated profile configured to use the proxy
// and opens startURL. It does not wait for the browser to exit.
func (proxy *Proxy) StartChrome(startURL string) error {
	var customPaths []ChromePathConfig
	if proxy.Config != nil {
		customPaths = proxy.Config.ChromeDirs
	}
	chromePath := getChromePath(customPaths)
	if chromePath == "" {
		return fmt.Errorf("%w on %s", ErrChromeNotFound, runtime.GOOS)
	}

	cmd := exec.Command(chromePath, proxy.chromeFlags(startURL)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting chrome : %w", err)
	}
	go cmd.Wait()
	proxy.WriteLog("INFO", "chrome started", core.LogWithContext(map[string]any{"path": chromePath}))
	return nil
}
