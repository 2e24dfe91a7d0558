package symspi

import (
	"github.com/ehrlich-b/symspi/internal/constants"
	"github.com/ehrlich-b/symspi/internal/protocol"
)

// Role is the bus role a device plays (spec.md §3/§6).
type Role = protocol.Role

const (
	RoleMaster = protocol.RoleMaster
	RoleSlave  = protocol.RoleSlave
)

// RunnerMode selects the deferred-work dispatcher's scheduling posture
// (spec.md §6).
type RunnerMode = constants.RunnerMode

const (
	RunnerModeSharedDefault       = constants.RunnerModeSharedDefault
	RunnerModeSharedHighPriority  = constants.RunnerModeSharedHighPriority
	RunnerModePrivateHighPriority = constants.RunnerModePrivateHighPriority
)

// Config holds the build/runtime options named in spec.md §6: role,
// timing, runner mode, ledger tuning, and the bus controller's
// single-burst limit.
type Config = protocol.Config

// DefaultConfig returns spec.md §6's configuration defaults.
func DefaultConfig() Config {
	return protocol.DefaultConfig()
}
