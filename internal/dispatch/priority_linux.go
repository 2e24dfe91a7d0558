//go:build linux

package dispatch

import (
	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/symspi/internal/interfaces"
)

// applyHighPriority raises the calling goroutine's OS thread to SCHED_FIFO,
// the realtime policy, so the deferred-work worker is not starved by
// normal-priority work while a peer is waiting on our response. This is
// the same "best effort, log and continue on failure" posture the teacher
// uses for queue-thread CPU affinity (internal/queue.Runner.ioLoop's
// unix.SchedSetaffinity call): a misconfigured or unprivileged process
// should not fail the whole transport over a scheduling nicety.
func applyHighPriority(logger interfaces.Logger) {
	param := &unix.SchedParam{Priority: 1}
	if err := unix.SchedSetscheduler(0, unix.SCHED_FIFO, param); err != nil {
		if logger != nil {
			logger.Printf("dispatch: failed to set SCHED_FIFO priority: %v", err)
		}
	}
}
