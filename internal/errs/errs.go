// Package errs defines the transport's structured error type and the
// exit/error codes named in spec.md §6, shared by internal/protocol and
// the public symspi package (which re-exports them) so both sides of that
// boundary construct and compare the same values without an import cycle.
package errs

import (
	"errors"
	"fmt"
)

// Error is a structured transport error with enough context to route it
// through the error ledger or hand it straight back to the caller.
type Error struct {
	Op      string // operation that failed (e.g. "Exchange", "Init")
	Code    Code
	SubCode string // bus-layer sub-code, set only for BusLayer
	Msg     string
	Inner   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.SubCode != "" {
		return fmt.Sprintf("symspi: op=%s code=%s sub_code=%s: %s", e.Op, e.Code, e.SubCode, msg)
	}
	if e.Op != "" {
		return fmt.Sprintf("symspi: op=%s code=%s: %s", e.Op, e.Code, msg)
	}
	return fmt.Sprintf("symspi: code=%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is against either a *Error (compares Code) or a Code
// value directly.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if code, ok := target.(Code); ok {
		return e.Code == code
	}
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// Code is one of the exit/error codes named in §6.
type Code string

func (c Code) Error() string { return string(c) }

const (
	NotReady         Code = "NotReady"
	NoDevice         Code = "NoDevice"
	NoBus            Code = "NoBus"
	NoSignalLine     Code = "NoSignalLine"
	NoXfer           Code = "NoXfer"
	NoMemory         Code = "NoMemory"
	XferSizeMismatch Code = "XferSizeMismatch"
	XferSizeZero     Code = "XferSizeZero"
	Overlap          Code = "Overlap"
	OtherSide        Code = "OtherSide"
	WaitOtherSide    Code = "WaitOtherSide"
	BusLayer         Code = "BusLayer"
	IrqAcquisition   Code = "IrqAcquisition"
	IsrSetup         Code = "IsrSetup"
	RunnerInit       Code = "RunnerInit"
	Logical          Code = "Logical"
	AlreadyClosing   Code = "AlreadyClosing"
)

// Class groups codes per §7's classification, deciding whether an
// occurrence triggers recovery or returns directly to the caller.
type Class int

const (
	ClassInput Class = iota
	ClassConfiguration
	ClassTransient
	ClassResource
	ClassInternal
)

// Classify reports which class a code belongs to.
func Classify(code Code) Class {
	switch code {
	case OtherSide, WaitOtherSide, BusLayer:
		return ClassTransient
	case NoDevice, NoBus, NoSignalLine, NoXfer, IrqAcquisition, IsrSetup, RunnerInit:
		return ClassConfiguration
	case NoMemory:
		return ClassResource
	case Logical:
		return ClassInternal
	default: // XferSizeMismatch, XferSizeZero, Overlap, NotReady, AlreadyClosing
		return ClassInput
	}
}

// New builds a structured error for direct return from the public API.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewBus builds a BusLayer error carrying the driver's sub-code.
func NewBus(op, subCode string, inner error) *Error {
	msg := subCode
	if inner != nil {
		msg = inner.Error()
	}
	return &Error{Op: op, Code: BusLayer, SubCode: subCode, Msg: msg, Inner: inner}
}

// Wrap attaches op to inner, preserving inner's code if it is already a
// *Error.
func Wrap(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	var e *Error
	if errors.As(inner, &e) {
		return &Error{Op: op, Code: e.Code, SubCode: e.SubCode, Msg: e.Msg, Inner: e.Inner}
	}
	return &Error{Op: op, Code: Logical, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a *Error carrying code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
