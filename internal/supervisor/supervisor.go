// Package supervisor owns the backend host child process: spawning it,
// feeding it requests, waiting for response files, draining its stdio, and
// reaping it on shutdown.
package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"pep517run/internal/wire"
)

const (
	terminateGrace = 5 * time.Second
	pollFallback   = 50 * time.Millisecond
)

// Supervisor owns one backend host child process for the lifetime of a
// reuse-mode Frontend. At most one command may be in flight at a time
// (Send is internally serialized), matching the single-threaded
// cooperative scheduling model the frontend is built around.
type Supervisor struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	sendMu sync.Mutex

	bufMu  sync.Mutex
	outBuf bytes.Buffer
	errBuf bytes.Buffer

	exited  chan struct{}
	waitErr error
}

// Spawn launches interpreter with args (the [reuse, backend_spec] argv the
// backend host expects), wires its stdio, and blocks until the
// "started backend " handshake line appears on stdout.
func Spawn(ctx context.Context, interpreter string, args []string, env []string) (*Supervisor, error) {
	cmd := exec.Command(interpreter, args...)
	if env != nil {
		cmd.Env = env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("supervisor: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("supervisor: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("supervisor: stderr pipe: %w", err)
	}

	s := &Supervisor{cmd: cmd, stdin: stdin, exited: make(chan struct{})}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("supervisor: failed to start backend: %w", err)
	}

	handshake := make(chan error, 1)
	go s.drain(&s.outBuf, stdout, handshake)
	go s.drain(&s.errBuf, stderr, nil)
	go func() {
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()

	select {
	case err := <-handshake:
		if err != nil {
			return nil, fmt.Errorf("supervisor: failed to start backend: %w (%s)", err, s.snapshotErr())
		}
		return s, nil
	case <-s.exited:
		return nil, fmt.Errorf("supervisor: failed to start backend: process exited before handshake: %s", s.snapshotErr())
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		return nil, ctx.Err()
	}
}

func (s *Supervisor) snapshotErr() string {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	return s.errBuf.String()
}

// drain continuously copies r line-by-line into buf. If handshake is
// non-nil, the first line containing the "started backend " marker
// resolves it with a nil error; reaching EOF first resolves it with err.
func (s *Supervisor) drain(buf *bytes.Buffer, r io.Reader, handshake chan error) {
	reader := bufio.NewReader(r)
	seen := false
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			s.bufMu.Lock()
			buf.Write(line)
			s.bufMu.Unlock()
			if !seen && handshake != nil && bytes.Contains(line, []byte("started backend ")) {
				seen = true
				handshake <- nil
			}
		}
		if err != nil {
			if handshake != nil && !seen {
				handshake <- err
			}
			return
		}
	}
}

// Send writes req to the child's stdin, then waits for whichever happens
// first: the response file appears, the child exits, or ctx is cancelled.
// It returns the decoded response along with stdout/stderr captured since
// the call began.
func (s *Supervisor) Send(ctx context.Context, req wire.Request) (wire.Response, string, string, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.bufMu.Lock()
	outStart := s.outBuf.Len()
	errStart := s.errBuf.Len()
	s.bufMu.Unlock()

	if err := wire.EncodeRequest(s.stdin, req); err != nil {
		out, errOut := s.snapshot(outStart, errStart)
		return wire.Response{}, out, errOut, fmt.Errorf("supervisor: sending request: %w", err)
	}

	waitErr := s.awaitResponse(ctx, req.Result)
	out, errOut := s.snapshot(outStart, errStart)
	if waitErr != nil {
		return wire.Response{}, out, errOut, waitErr
	}

	resp, err := wire.DecodeResponseFile(req.Result)
	if err != nil {
		return wire.Response{}, out, errOut, err
	}
	return resp, out, errOut, nil
}

func (s *Supervisor) snapshot(outStart, errStart int) (string, string) {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	out := s.outBuf.String()
	errOut := s.errBuf.String()
	if outStart <= len(out) {
		out = out[outStart:]
	}
	if errStart <= len(errOut) {
		errOut = errOut[errStart:]
	}
	return out, errOut
}

// awaitResponse blocks until path exists, the child exits, or ctx is
// cancelled. It prefers an fsnotify watch on the response file's parent
// directory (matching rafbgarcia-rstf's watcher shape) and falls back to a
// short poll interval, since some filesystems (NFS, certain container
// overlays) silently drop inotify events.
func (s *Supervisor) awaitResponse(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	var events chan fsnotify.Event
	watcher, werr := fsnotify.NewWatcher()
	if werr == nil {
		if addErr := watcher.Add(filepath.Dir(path)); addErr == nil {
			events = watcher.Events
			defer watcher.Close()
		} else {
			watcher.Close()
		}
	}

	poll := time.NewTicker(pollFallback)
	defer poll.Stop()

	for {
		select {
		case ev, ok := <-events:
			if ok && ev.Name == path && ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				if _, err := os.Stat(path); err == nil {
					return nil
				}
			}
		case <-poll.C:
			if _, err := os.Stat(path); err == nil {
				return nil
			}
		case <-s.exited:
			if _, err := os.Stat(path); err == nil {
				return nil
			}
			return fmt.Errorf("%w: %s", wire.ErrResponseMissing, path)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Terminate sends "_exit" if the child is alive and waits for it to exit
// within a grace period; if it does not, SIGTERM then Kill are applied in
// sequence, mirroring jumpboot's PythonProcess.Terminate.
func (s *Supervisor) Terminate() error {
	select {
	case <-s.exited:
		return s.waitErr
	default:
	}

	exitPath := filepath.Join(os.TempDir(), fmt.Sprintf("pep517run-exit-%d.json", os.Getpid()))
	_ = wire.EncodeRequest(s.stdin, wire.Request{Cmd: "_exit", Result: exitPath})
	_ = s.stdin.Close()
	defer os.Remove(exitPath)

	select {
	case <-s.exited:
		return s.waitErr
	case <-time.After(terminateGrace):
	}

	if s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-s.exited:
		return s.waitErr
	case <-time.After(terminateGrace):
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		<-s.exited
		return s.waitErr
	}
}

// Alive reports whether the child process has not yet exited.
func (s *Supervisor) Alive() bool {
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}
