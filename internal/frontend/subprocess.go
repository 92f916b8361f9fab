package frontend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"

	"pep517run/internal/hostproc"
	"pep517run/internal/pyproject"
	"pep517run/internal/supervisor"
	"pep517run/internal/wire"
)

// SubprocessFrontend is the concrete Frontend bound to a locally available
// pep517run-host binary. Everything beyond constructing the host
// invocation and owning its supervisor is inherited from base.
type SubprocessFrontend struct {
	base

	desc       pyproject.Descriptor
	hostBinary string
	scratchDir string
	reuse      bool

	mu          sync.Mutex
	persistent  *supervisor.Supervisor
	hooksCache  *OptionalHooks
}

// Option configures a SubprocessFrontend at construction time.
type Option func(*SubprocessFrontend)

// WithHostBinary overrides host binary discovery (normally via PATH).
func WithHostBinary(path string) Option {
	return func(f *SubprocessFrontend) { f.hostBinary = path }
}

// WithReuse enables reuse mode: a single persistent host process serves
// every command dispatched through this Frontend until Close is called.
// Without it, each command spawns and tears down its own host — the
// "scoped one-shot mode" in §4.5.
func WithReuse(reuse bool) Option {
	return func(f *SubprocessFrontend) { f.reuse = reuse }
}

// NewSubprocessFrontend builds a Frontend bound to desc, resolving the
// host binary the same way rimraf-adi-zephyr's findPython resolves a
// Python interpreter: an explicit override first, then PATH lookup.
func NewSubprocessFrontend(desc pyproject.Descriptor, opts ...Option) (*SubprocessFrontend, error) {
	scratch, err := os.MkdirTemp("", "pep517run-responses-")
	if err != nil {
		return nil, fmt.Errorf("frontend: creating scratch directory: %w", err)
	}

	f := &SubprocessFrontend{desc: desc, scratchDir: scratch}
	for _, opt := range opts {
		opt(f)
	}
	f.base = base{d: f}

	if f.hostBinary == "" {
		bin, err := findHostBinary()
		if err != nil {
			os.RemoveAll(scratch)
			return nil, err
		}
		f.hostBinary = bin
	}

	return f, nil
}

func findHostBinary() (string, error) {
	if path, err := exec.LookPath("pep517run-host"); err == nil {
		return path, nil
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "pep517run-host")
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("frontend: could not locate pep517run-host on PATH or next to the running executable")
}

// CreateArgsFromFolder is the §4.6 convenience constructor: discover a
// project's descriptor and build a bound Frontend in one call.
func CreateArgsFromFolder(root string, opts ...Option) (*SubprocessFrontend, error) {
	desc, err := pyproject.CreateArgsFromFolder(root)
	if err != nil {
		return nil, err
	}
	return NewSubprocessFrontend(desc, opts...)
}

func (f *SubprocessFrontend) projectRoot() string { return f.desc.Root }

func (f *SubprocessFrontend) backendName() string { return f.backendSpec() }

func (f *SubprocessFrontend) backendSpec() string {
	if f.desc.BackendObject == "" {
		return f.desc.BackendModule
	}
	return f.desc.BackendModule + ":" + f.desc.BackendObject
}

func (f *SubprocessFrontend) env() []string {
	env := os.Environ()
	if len(f.desc.BackendPaths) > 0 {
		joined := f.desc.BackendPaths[0]
		for _, p := range f.desc.BackendPaths[1:] {
			joined += string(os.PathListSeparator) + p
		}
		env = append(env, "PEP517RUN_BACKEND_PATH="+joined)
	}
	return env
}

func (f *SubprocessFrontend) spawn(ctx context.Context, reuse bool) (*supervisor.Supervisor, error) {
	sup, err := supervisor.Spawn(ctx, f.hostBinary, []string{boolArg(reuse), f.backendSpec()}, f.env())
	if err != nil {
		return nil, runtimeErrorf("failed to start backend: %v", err)
	}
	return sup, nil
}

func boolArg(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// dispatch sends one command. In reuse mode it lazily spawns (and keeps)
// one persistent supervisor; otherwise it spawns a supervisor, sends the
// single command, and tears it down — the scoped one-shot path.
func (f *SubprocessFrontend) dispatch(ctx context.Context, cmd string, kwargs map[string]any) (wire.Response, string, string, error) {
	if f.reuse {
		return f.dispatchPersistent(ctx, cmd, kwargs)
	}
	return f.dispatchOneShot(ctx, cmd, kwargs)
}

func (f *SubprocessFrontend) dispatchPersistent(ctx context.Context, cmd string, kwargs map[string]any) (wire.Response, string, string, error) {
	f.mu.Lock()
	if f.persistent == nil || !f.persistent.Alive() {
		sup, err := f.spawn(ctx, true)
		if err != nil {
			f.mu.Unlock()
			return wire.Response{}, "", "", err
		}
		f.persistent = sup
	}
	sup := f.persistent
	f.mu.Unlock()

	return f.send(ctx, sup, cmd, kwargs)
}

func (f *SubprocessFrontend) dispatchOneShot(ctx context.Context, cmd string, kwargs map[string]any) (wire.Response, string, string, error) {
	sup, err := f.spawn(ctx, false)
	if err != nil {
		return wire.Response{}, "", "", err
	}
	defer sup.Terminate()

	return f.send(ctx, sup, cmd, kwargs)
}

func (f *SubprocessFrontend) send(ctx context.Context, sup *supervisor.Supervisor, cmd string, kwargs map[string]any) (wire.Response, string, string, error) {
	resultPath := filepath.Join(f.scratchDir, fmt.Sprintf("pep517_%s-%s.json", cmd, ulid.Make().String()))
	defer os.Remove(resultPath)

	req := wire.Request{Cmd: cmd, Kwargs: kwargs, Result: resultPath}
	resp, out, errOut, err := sup.Send(ctx, req)
	if err != nil {
		return wire.Response{}, out, errOut, wire.Synthesize(wire.ErrRuntimeError, err.Error(), out, errOut, kwargs)
	}
	return resp, out, errOut, nil
}

// hooks computes and caches OptionalHooks via the synthetic
// get_optional_hooks probe issued against this Frontend's backend. Since
// this Go-native host's adapters declare their hooks directly (rather than
// via attribute introspection), the probe is itself just a "_optional_hooks"
// control command the host answers from its Backend.hooks map.
func (f *SubprocessFrontend) hooks(ctx context.Context) (OptionalHooks, error) {
	f.mu.Lock()
	if f.hooksCache != nil {
		cached := *f.hooksCache
		f.mu.Unlock()
		return cached, nil
	}
	f.mu.Unlock()

	resp, _, _, err := f.dispatch(ctx, "_optional_hooks", nil)
	if err != nil {
		return OptionalHooks{}, err
	}
	if resp.IsFailure() {
		return OptionalHooks{}, errFromResponse(resp, "", "", nil)
	}

	var probed hostproc.OptionalHooks
	if jsonErr := json.Unmarshal(resp.Return, &probed); jsonErr != nil {
		return OptionalHooks{}, runtimeErrorf("decoding optional-hooks probe: %v", jsonErr)
	}

	out := OptionalHooks{
		GetRequiresForBuildSdist:        probed.GetRequiresForBuildSdist,
		GetRequiresForBuildWheel:        probed.GetRequiresForBuildWheel,
		PrepareMetadataForBuildWheel:    probed.PrepareMetadataForBuildWheel,
		BuildEditable:                   probed.BuildEditable,
		GetRequiresForBuildEditable:     probed.GetRequiresForBuildEditable,
		PrepareMetadataForBuildEditable: probed.PrepareMetadataForBuildEditable,
	}

	f.mu.Lock()
	f.hooksCache = &out
	f.mu.Unlock()

	return out, nil
}

// Close terminates the persistent supervisor, if any, and removes the
// scratch directory holding response files.
func (f *SubprocessFrontend) Close() error {
	f.mu.Lock()
	sup := f.persistent
	f.persistent = nil
	f.mu.Unlock()

	var err error
	if sup != nil {
		err = sup.Terminate()
	}
	os.RemoveAll(f.scratchDir)
	return err
}
