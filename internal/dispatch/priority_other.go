//go:build !linux

package dispatch

import "github.com/ehrlich-b/symspi/internal/interfaces"

// applyHighPriority is a no-op on platforms without SCHED_FIFO support.
func applyHighPriority(logger interfaces.Logger) {
	if logger != nil {
		logger.Debugf("dispatch: high-priority runner mode not supported on this platform")
	}
}
