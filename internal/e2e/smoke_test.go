package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)
	require.NoError(t, writeConfigFixture(home))

	stdout, stderr, err := runSWB(t, binaryPath, home, "0x1234567890abcdef1234567890abcdef\n",
		"import", "argentx",
		"--key-stdin",
		"--address", "0x0000abc",
	)
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Imported Argent X as 0xabc")

	stdout, stderr, err = runSWB(t, binaryPath, home, "", "sessions", "--full")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "wallets: 1, connected: 1")
	assert.Contains(t, stdout, "0xabc")

	_, err = os.Stat(filepath.Join(home, ".swb", "sessions.toml"))
	require.NoError(t, err)

	stdout, stderr, err = runSWB(t, binaryPath, home, "", "disconnect", "argentx")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Disconnected Argent X")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "swb-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/swb")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build swb binary: %s", string(output))
	return binaryPath
}

func runSWB(t *testing.T, binaryPath, home, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home)
	cmd.Stdin = strings.NewReader(stdin)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func writeConfigFixture(home string) error {
	configDir := filepath.Join(home, ".swb")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	config := `[secrets]
backend = "file"

[callback]
listen = "127.0.0.1:0"

[log]
level = "warn"
`

	return os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(config), 0o644)
}
