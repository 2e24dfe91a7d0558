package symspi

import "github.com/ehrlich-b/symspi/internal/errs"

// Error is a structured transport error with enough context to route it
// through the error ledger or hand it straight back to the caller. It is
// an alias of the internal type the protocol engine itself constructs, so
// values returned by Device methods compare equal (via errors.Is/As) to
// the codes below without any conversion at the package boundary.
type Error = errs.Error

// ErrorCode is one of the exit/error codes named in §6.
type ErrorCode = errs.Code

// ErrorClass groups codes by how §7 propagates them.
type ErrorClass = errs.Class

const (
	ClassInput         = errs.ClassInput
	ClassConfiguration = errs.ClassConfiguration
	ClassTransient     = errs.ClassTransient
	ClassResource      = errs.ClassResource
	ClassInternal      = errs.ClassInternal
)

const (
	ErrNotReady         = errs.NotReady
	ErrNoDevice         = errs.NoDevice
	ErrNoBus            = errs.NoBus
	ErrNoSignalLine     = errs.NoSignalLine
	ErrNoXfer           = errs.NoXfer
	ErrNoMemory         = errs.NoMemory
	ErrXferSizeMismatch = errs.XferSizeMismatch
	ErrXferSizeZero     = errs.XferSizeZero
	ErrOverlap          = errs.Overlap
	ErrOtherSide        = errs.OtherSide
	ErrWaitOtherSide    = errs.WaitOtherSide
	ErrBusLayer         = errs.BusLayer
	ErrIrqAcquisition   = errs.IrqAcquisition
	ErrIsrSetup         = errs.IsrSetup
	ErrRunnerInit       = errs.RunnerInit
	ErrLogical          = errs.Logical
	ErrAlreadyClosing   = errs.AlreadyClosing
)

// Classify reports which class a code belongs to.
func Classify(code ErrorCode) ErrorClass { return errs.Classify(code) }

// IsCode reports whether err is a *Error carrying code.
func IsCode(err error, code ErrorCode) bool { return errs.IsCode(err, code) }
