package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Chromium processes launched by the pool carry this marker in their
// user-data-dir flag so orphans can be found and killed by pattern.
const processMarker = "atendebot-browser"

// RodWorker is a headless Chromium worker driven through go-rod.
type RodWorker struct {
	purpose  string
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// Browser exposes the underlying rod browser for page work.
func (w *RodWorker) Browser() *rod.Browser {
	return w.browser
}

// Alive probes the browser over the devtools protocol.
func (w *RodWorker) Alive(ctx context.Context) error {
	if _, err := w.browser.Context(ctx).Version(); err != nil {
		return fmt.Errorf("browser version probe: %w", err)
	}
	return nil
}

// Close disconnects from the browser and kills the launched process.
func (w *RodWorker) Close() error {
	err := w.browser.Close()
	// Cleanup kills the process and removes the temp user data dir even
	// when the devtools close failed.
	w.launcher.Cleanup()
	if err != nil {
		return fmt.Errorf("close browser %s: %w", w.purpose, err)
	}
	return nil
}

// RodLauncher launches Chromium workers with purpose-scoped profiles and
// debugging ports so two purposes never share browser state.
type RodLauncher struct {
	binPath string
}

// NewRodLauncher creates a launcher. binPath may be empty to let rod find
// or download a browser binary.
func NewRodLauncher(binPath string) *RodLauncher {
	return &RodLauncher{binPath: binPath}
}

// Launch starts a fresh headless browser for the purpose.
func (l *RodLauncher) Launch(ctx context.Context, purpose string) (Worker, error) {
	la := launcher.New().
		Headless(true).
		NoSandbox(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		UserDataDir(fmt.Sprintf("/tmp/%s-%s", processMarker, purpose))
	if l.binPath != "" {
		la = la.Bin(l.binPath)
	}

	url, err := la.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium for %s: %w", purpose, err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Context(ctx).Connect(); err != nil {
		la.Cleanup()
		return nil, fmt.Errorf("connect to chromium for %s: %w", purpose, err)
	}

	slog.Info("Browser worker launched", "purpose", purpose)
	return &RodWorker{purpose: purpose, browser: browser, launcher: la}, nil
}

// KillOrphans force-terminates browser processes by marker pattern. Used by
// the supervisor during recovery, when handles may already be stale: cleanup
// is by process identity, not by handle.
func KillOrphans(ctx context.Context) {
	cmd := exec.CommandContext(ctx, "pkill", "-f", processMarker)
	out, err := cmd.CombinedOutput()
	if err != nil {
		// pkill exits 1 when nothing matched; that is the common case.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return
		}
		slog.Warn("Orphan browser cleanup failed", "error", err, "output", strings.TrimSpace(string(out)))
		return
	}
	slog.Info("Orphan browser processes killed", "pattern", processMarker)
}
