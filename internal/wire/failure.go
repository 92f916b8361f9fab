package wire

import "fmt"

// Known error kinds carried on a structured Failure. A backend-raised error
// has no constant here: its ExcType is the verbatim class/type name the
// host reported.
const (
	ErrMissingCommand = "MissingCommand"
	ErrTypeError      = "TypeError"
	ErrRuntimeError   = "RuntimeError"
)

// Failure is the structured error every frontend command method raises
// instead of a bare error, carrying enough context (exit kind, captured
// stdio, original kwargs) for a caller to diagnose a failed build without
// re-running it.
type Failure struct {
	Code    *int
	ExcType string
	ExcMsg  string
	Out     string
	Err     string
	Args    map[string]any
}

// Error implements error with a short, user-facing one-line summary.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.ExcType, f.ExcMsg)
}

// Debug returns a verbose representation including the dispatched
// arguments and captured stdio, analogous to a Python repr() versus str().
func (f *Failure) Debug() string {
	code := "<none>"
	if f.Code != nil {
		code = fmt.Sprintf("%d", *f.Code)
	}
	return fmt.Sprintf(
		"Failure{code=%s, exc_type=%s, exc_msg=%q, args=%v, out=%q, err=%q}",
		code, f.ExcType, f.ExcMsg, f.Args, f.Out, f.Err,
	)
}

// FromResponse builds a Failure from a decoded wire.Response known to carry
// the error shape, attaching the captured stdio and original args.
func FromResponse(resp Response, out, err string, args map[string]any) *Failure {
	return &Failure{
		Code:    resp.Code,
		ExcType: resp.ExcType,
		ExcMsg:  resp.ExcMsg,
		Out:     out,
		Err:     err,
		Args:    args,
	}
}

// Synthesize builds a locally-raised Failure (code=nil) for validation
// errors the frontend detects itself rather than one reported by the host —
// e.g. a malformed return value.
func Synthesize(excType, excMsg, out, err string, args map[string]any) *Failure {
	return &Failure{
		ExcType: excType,
		ExcMsg:  excMsg,
		Out:     out,
		Err:     err,
		Args:    args,
	}
}
