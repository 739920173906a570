// Package instance keeps a single agent per host.
//
// Two agents reading the same serial device would split its lines between
// them, so the agent refuses to start when another process with the same
// executable name is alive.
package instance

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning is returned when another process runs the same executable.
var ErrAlreadyRunning = errors.New("another instance is already running")

// lister returns the processes of the host.
type lister func() ([]ps.Process, error)

// EnsureSingle fails with ErrAlreadyRunning if another process is named executable.
func EnsureSingle(executable string) error {
	return ensureSingle(ps.Processes, os.Getpid(), Executable(executable))
}

// Executable appends ".exe" on Windows.
func Executable(base string) string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") && !strings.HasSuffix(base, ".exe") {
		return base + ".exe"
	}

	return base
}

func ensureSingle(list lister, self int, executable string) error {
	processList, err := list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processList {
		if process.Pid() == self {
			continue
		}

		if process.Executable() != executable {
			continue
		}

		return fmt.Errorf("%w: %s with pid %d", ErrAlreadyRunning, executable, process.Pid())
	}

	return nil
}
