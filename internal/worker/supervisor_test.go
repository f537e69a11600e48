package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSupervisorStartAndWaitOK(t *testing.T) {
	var mu sync.Mutex
	var lines []string

	sup := New("test-role")
	err := sup.Start(context.Background(), Spec{
		Exe:  "sh",
		Args: []string{"-c", "echo hello; echo world 1>&2"},
		OnLine: func(source, line string) {
			mu.Lock()
			lines = append(lines, source+":"+line)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	res := sup.Wait()
	require.Equal(t, ExitOK, res.Kind)

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, lines, "stdout:hello")
	require.Contains(t, lines, "stderr:world")
}

func TestSupervisorNonZeroExitIsFailed(t *testing.T) {
	sup := New("test-role")
	err := sup.Start(context.Background(), Spec{Exe: "sh", Args: []string{"-c", "exit 7"}})
	require.NoError(t, err)

	res := sup.Wait()
	require.Equal(t, ExitFailed, res.Kind)
	require.Equal(t, 7, res.Code)
}

func TestSupervisorCancelTerminatesLongRunning(t *testing.T) {
	sup := New("test-role")
	err := sup.Start(context.Background(), Spec{Exe: "sh", Args: []string{"-c", "sleep 60"}})
	require.NoError(t, err)

	done := make(chan Result, 1)
	go func() { done <- sup.Wait() }()

	require.NoError(t, sup.Cancel())

	select {
	case res := <-done:
		require.Equal(t, ExitCancelled, res.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit after cancel")
	}
}

// TestSupervisorConcurrentWaitAndCancelBothObserveExit exercises two
// independent callers draining the same exit: a Wait() goroutine and
// Cancel() itself (which also awaits the process's exit). Both must
// complete — neither call path may block forever on the other's read
// of a single-buffered channel.
func TestSupervisorConcurrentWaitAndCancelBothObserveExit(t *testing.T) {
	sup := New("test-role")
	err := sup.Start(context.Background(), Spec{Exe: "sh", Args: []string{"-c", "sleep 60"}})
	require.NoError(t, err)

	waitDone := make(chan Result, 1)
	go func() { waitDone <- sup.Wait() }()

	cancelDone := make(chan error, 1)
	go func() { cancelDone <- sup.Cancel() }()

	var sawWait, sawCancel bool
	deadline := time.After(5 * time.Second)
	for !sawWait || !sawCancel {
		select {
		case res := <-waitDone:
			require.Equal(t, ExitCancelled, res.Kind)
			sawWait = true
		case err := <-cancelDone:
			require.NoError(t, err)
			sawCancel = true
		case <-deadline:
			t.Fatal("Wait() and Cancel() did not both complete after cancellation")
		}
	}
}

func TestSupervisorAlreadyRunning(t *testing.T) {
	sup := New("test-role")
	require.NoError(t, sup.Start(context.Background(), Spec{Exe: "sh", Args: []string{"-c", "sleep 1"}}))
	err := sup.Start(context.Background(), Spec{Exe: "sh", Args: []string{"-c", "sleep 1"}})
	require.ErrorIs(t, err, ErrAlreadyRunning)
	sup.Wait()
}
