package hostproc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pep517run/internal/wire"
)

// Run executes the backend host's command loop: read one request line,
// dispatch it against backend, write a response file, repeat. It uses the
// same read-until-EOF, log-and-continue-on-a-bad-line shape as a
// line-delimited stdin command loop, generalized from a single-shot
// request/response handler to the persistent, response-file-based
// protocol this host speaks.
//
// Run returns nil on a clean shutdown (EOF on stdin, or a dispatched
// "_exit"). If reuse is false, the loop returns after the first fully
// handled request regardless of which command it was.
func Run(reuse bool, backend *Backend, stdin io.Reader, stdout, stderr io.Writer) error {
	fmt.Fprintf(stdout, "started backend %s\n", reprBackend(backend))

	lr := wire.NewLineReader(stdin)
	for {
		line, err := lr.ReadLine()
		if err != nil {
			if errors.Is(err, wire.ErrStreamClosed) {
				return nil
			}
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("hostproc: reading request: %w", err)
			}
			// Partial line at EOF: fall through to let JSON decoding fail,
			// matching the "malformed request" diagnostic path below.
		}
		atEOF := errors.Is(err, io.EOF)

		var req wire.Request
		if jsonErr := json.Unmarshal(line, &req); jsonErr != nil {
			fmt.Fprintf(stderr, "Backend: incorrect request to backend: %s\n", string(line))
			if atEOF {
				return nil
			}
			continue
		}

		if req.Cmd == "_exit" {
			writeResponse(req.Result, wire.Response{Return: json.RawMessage("0")}, stderr)
			return nil
		}

		if req.Cmd == "_optional_hooks" {
			handleOptionalHooksProbe(backend, req, stderr)
			if !reuse || atEOF {
				return nil
			}
			continue
		}

		handleRequest(backend, req, stderr)

		if !reuse || atEOF {
			return nil
		}
	}
}

// handleOptionalHooksProbe answers the synthetic "_optional_hooks" control
// command with the backend's computed OptionalHooks, the handshake a
// Frontend issues once per host lifetime to avoid guessing which hooks
// are safe to dispatch.
func handleOptionalHooksProbe(backend *Backend, req wire.Request, stderr io.Writer) {
	payload, err := json.Marshal(Probe(backend))
	if err != nil {
		code := 1
		writeResponse(req.Result, wire.Response{
			Code:    &code,
			ExcType: wire.ErrRuntimeError,
			ExcMsg:  fmt.Sprintf("could not marshal optional hooks: %v", err),
		}, stderr)
		return
	}
	writeResponse(req.Result, wire.Response{Return: payload}, stderr)
}

func handleRequest(backend *Backend, req wire.Request, stderr io.Writer) {
	result, err := backend.Invoke(req.Cmd, req.Kwargs)
	if err != nil {
		var missing *MissingCommandError
		if errors.As(err, &missing) {
			code := 1
			writeResponse(req.Result, wire.Response{
				Code:    &code,
				ExcType: wire.ErrMissingCommand,
				ExcMsg:  missing.Error(),
			}, stderr)
			return
		}
		code := 1
		fmt.Fprintf(stderr, "Traceback (most recent call last):\n%v\n", err)
		writeResponse(req.Result, wire.Response{
			Code:    &code,
			ExcType: excTypeName(err),
			ExcMsg:  err.Error(),
		}, stderr)
		return
	}

	payload, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		code := 1
		writeResponse(req.Result, wire.Response{
			Code:    &code,
			ExcType: wire.ErrRuntimeError,
			ExcMsg:  fmt.Sprintf("could not marshal return value: %v", marshalErr),
		}, stderr)
		return
	}
	writeResponse(req.Result, wire.Response{Return: payload}, stderr)
}

// writeResponse writes resp to path via write-then-rename so a concurrently
// watching ProcessSupervisor never observes a partially written file.
func writeResponse(path string, resp wire.Response, stderr io.Writer) {
	data, err := json.Marshal(resp)
	if err != nil {
		fmt.Fprintf(stderr, "hostproc: failed to marshal response: %v\n", err)
		return
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		fmt.Fprintf(stderr, "hostproc: failed to write response file: %v\n", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		fmt.Fprintf(stderr, "hostproc: failed to rename response file into place: %v\n", err)
	}
}

func reprBackend(b *Backend) string {
	return fmt.Sprintf("<backend %s at %s>", b.Name, filepath.Clean(b.Name))
}

// excTypeName reports the class-name-equivalent for an arbitrary backend
// error: a *NamedError carries an explicit name (simulating a Python
// exception class), anything else falls back to "RuntimeError".
func excTypeName(err error) string {
	var named *NamedError
	if errors.As(err, &named) {
		return named.Type
	}
	return wire.ErrRuntimeError
}

// NamedError lets a backend adapter report a specific exception class name
// (e.g. "FileNotFoundError") instead of the generic RuntimeError fallback.
type NamedError struct {
	Type string
	Msg  string
}

func (e *NamedError) Error() string { return e.Msg }
