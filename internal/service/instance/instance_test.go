package instance

import (
	"errors"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"
)

// fakeProcess implements ps.Process.
type fakeProcess struct {
	pid  int
	name string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.name }

// listOf returns a lister over fixed processes.
func listOf(processes ...ps.Process) lister {
	return func() ([]ps.Process, error) {
		return processes, nil
	}
}

// TestEnsureSingle ignores the current process and spots a twin.
func TestEnsureSingle(t *testing.T) {
	t.Parallel()

	self := fakeProcess{pid: 10, name: "telemetry-agent"}

	require.NoError(t, ensureSingle(listOf(self, fakeProcess{pid: 11, name: "sshd"}), 10, "telemetry-agent"))

	err := ensureSingle(listOf(self, fakeProcess{pid: 12, name: "telemetry-agent"}), 10, "telemetry-agent")
	require.ErrorIs(t, err, ErrAlreadyRunning)
	require.Contains(t, err.Error(), "pid 12")
}

// TestEnsureSingle_ListError wraps failures of the process listing.
func TestEnsureSingle_ListError(t *testing.T) {
	t.Parallel()

	errDenied := errors.New("permission denied")

	err := ensureSingle(func() ([]ps.Process, error) { return nil, errDenied }, 1, "telemetry-agent")
	require.ErrorIs(t, err, errDenied)
}

// TestEnsureSingle_RealProcessList finds no twin under a name nobody uses.
func TestEnsureSingle_RealProcessList(t *testing.T) {
	t.Parallel()

	require.NoError(t, EnsureSingle("telemetry-agent-test-no-such-binary"))
}
