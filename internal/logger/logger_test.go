package logger

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelsBeforeInitAreSilent(t *testing.T) {
	assert.NotPanics(t, func() {
		Debug("debug %d", 1)
		Info("info %s", "x")
		Warn("warn")
		Error("error: %v", os.ErrNotExist)
		Sync()
	})
}

// TestFatalExits re-runs itself in a child process, where Fatal must log and
// exit with status 1.
func TestFatalExits(t *testing.T) {
	if os.Getenv("TICKWATCH_LOGGER_FATAL") == "1" {
		Init("info", "json")
		Fatal("Failed to initialize storage: %v", "disk full")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestFatalExits$")
	cmd.Env = append(os.Environ(), "TICKWATCH_LOGGER_FATAL=1")
	out, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, string(out), "Failed to initialize storage: disk full")
	assert.Contains(t, string(out), `"level":"fatal"`)
}
