// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"os/exec"
	"time"

	"github.com/meetinglens/transcriptd/internal/metrics"
)

// Terminate gracefully stops a process group: SIGTERM, wait up to grace,
// then SIGKILL. KillGroup detects the exit by calling Wait on the
// process itself, so it can consume the exit status; a caller's own
// concurrent cmd.Wait() then returns an error in place of the
// process's exit status. Safe to call on nil commands.
func Terminate(cmd *exec.Cmd, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid
	if err := KillGroup(pid, grace, grace); err != nil {
		metrics.IncProcTerminate("SIGKILL", "error")
		return err
	}
	metrics.IncProcTerminate("SIGTERM", "sent")
	return nil
}
