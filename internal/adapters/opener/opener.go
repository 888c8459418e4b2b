package opener

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/bnema/starknet-wallet-bridge/internal/ports"
)

var ErrNoHandler = errors.New("no handler registered for url")

type runFunc func(ctx context.Context, name string, args ...string) (stdout string, err error)

// Opener hands URLs to the desktop environment and asks it whether a custom
// scheme has a registered handler.
type Opener struct {
	goos string
	run  runFunc
}

var _ ports.URLOpener = (*Opener)(nil)

func New() *Opener {
	return &Opener{goos: runtime.GOOS, run: runCommand}
}

func (o *Opener) CanOpen(ctx context.Context, scheme string) bool {
	scheme = strings.TrimSuffix(strings.TrimSpace(scheme), "://")
	if scheme == "" {
		return false
	}
	if scheme == "http" || scheme == "https" {
		return true
	}

	switch o.goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		out, err := o.run(ctx, "xdg-mime", "query", "default", "x-scheme-handler/"+scheme)
		return err == nil && strings.TrimSpace(out) != ""
	case "darwin":
		// LaunchServices has no CLI query; a failing open is reported by Open.
		return true
	case "windows":
		// Registered protocol handlers carry a "URL Protocol" value under HKCR\<scheme>.
		_, err := o.run(ctx, "reg", "query", `HKCR\`+scheme, "/v", "URL Protocol")
		return err == nil
	default:
		return false
	}
}

func (o *Opener) Open(ctx context.Context, rawURL string) error {
	var (
		name string
		args []string
	)
	switch o.goos {
	case "darwin":
		name, args = "open", []string{rawURL}
	case "windows":
		name, args = "rundll32", []string{"url.dll,FileProtocolHandler", rawURL}
	default:
		name, args = "xdg-open", []string{rawURL}
	}

	if _, err := o.run(ctx, name, args...); err != nil {
		return fmt.Errorf("open %s: %w: %w", schemeOf(rawURL), ErrNoHandler, err)
	}
	return nil
}

func schemeOf(rawURL string) string {
	if i := strings.Index(rawURL, ":"); i > 0 {
		return rawURL[:i]
	}
	return rawURL
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("locate %s: %w", name, err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return stdout.String(), nil
}
