// Package fault defines the kernel's fatal-error model. A Fault is the
// software rendering of a disabled wait state: there is no recovery, but
// the code pins down the exact cause so the failure can be diagnosed
// from outside.
package fault

import "fmt"

// Code is the wait-state code loaded when the kernel halts.
type Code uint16

// Wait-state codes, one per fatal cause.
const (
	CodeBadMedium      Code = 0x001 // medium type or record stream is not understood
	CodeLoadIO         Code = 0x002 // I/O failure while reading the boot medium
	CodeOverwrite      Code = 0x003 // directed record would overlap the resident kernel
	CodeCopyOverlap    Code = 0x004 // directed record would overlap the load scratch area
	CodeSizeMismatch   Code = 0x005 // loaded bytes disagree with the declared total
	CodeBadMode        Code = 0x006 // entry point requests an unsupported mode
	CodePrivilege      Code = 0x007 // protected service called from the loaded program
	CodeNotInitialized Code = 0x008 // service touched a subsystem before its setup
)

// A Fault is a fatal condition on its way to the top-level handler that
// performs the halt.
type Fault struct {
	Code   Code
	Detail string
	Err    error
}

// New creates a Fault with a detail message.
func New(code Code, detail string) *Fault {
	return &Fault{Code: code, Detail: detail}
}

// Wrap creates a Fault recording an underlying error.
func Wrap(code Code, err error) *Fault {
	return &Fault{Code: code, Err: err}
}

func (f *Fault) Error() string {
	switch {
	case f.Detail != "" && f.Err != nil:
		return fmt.Sprintf("disabled wait %03X: %s: %v", uint16(f.Code), f.Detail, f.Err)
	case f.Err != nil:
		return fmt.Sprintf("disabled wait %03X: %v", uint16(f.Code), f.Err)
	default:
		return fmt.Sprintf("disabled wait %03X: %s", uint16(f.Code), f.Detail)
	}
}

// Unwrap exposes the underlying error, if any.
func (f *Fault) Unwrap() error {
	return f.Err
}
