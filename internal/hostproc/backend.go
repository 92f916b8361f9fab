// Package hostproc implements the backend host: the command loop that runs
// inside the spawned child process, dispatching wire requests to a backend.
package hostproc

import "fmt"

// HookFunc is a single backend hook: it receives the request kwargs and
// returns the value to report back as {"return": value}, or an error to be
// reported as a failure response.
type HookFunc func(kwargs map[string]any) (any, error)

// Commands is the closed set of hook names the protocol recognizes — the
// Go-native "tagged variant" design notes calls for in place of attribute
// lookup on a dynamically imported module.
var Commands = []string{
	"build_sdist",
	"build_wheel",
	"get_requires_for_build_sdist",
	"get_requires_for_build_wheel",
	"prepare_metadata_for_build_wheel",
	"get_requires_for_build_editable",
	"prepare_metadata_for_build_editable",
	"build_editable",
}

// Backend is the host-side handle for a build backend: a name (the repr
// printed in the startup handshake) and a map of registered hooks, built
// once at startup. A hook absent from the map is the Go analogue of
// "object has no attribute".
type Backend struct {
	Name  string
	hooks map[string]HookFunc
}

// NewBackend creates an empty backend handle; adapters call Register for
// each hook they implement.
func NewBackend(name string) *Backend {
	return &Backend{Name: name, hooks: make(map[string]HookFunc)}
}

// Register binds cmd to fn. Registering a name outside Commands (other
// than the synthetic "_exit", handled separately by the command loop) is a
// programmer error in an adapter.
func (b *Backend) Register(cmd string, fn HookFunc) {
	b.hooks[cmd] = fn
}

// Has reports whether the backend implements cmd.
func (b *Backend) Has(cmd string) bool {
	_, ok := b.hooks[cmd]
	return ok
}

// Invoke dispatches cmd. The MissingCommand error message matches the
// format the frontend's MissingCommand projection test expects.
func (b *Backend) Invoke(cmd string, kwargs map[string]any) (any, error) {
	fn, ok := b.hooks[cmd]
	if !ok {
		return nil, &MissingCommandError{Backend: b.Name, Cmd: cmd}
	}
	return fn(kwargs)
}

// MissingCommandError is raised by Invoke when the backend has no hook
// registered under cmd.
type MissingCommandError struct {
	Backend string
	Cmd     string
}

func (e *MissingCommandError) Error() string {
	return fmt.Sprintf("'%s' object has no attribute '%s'", e.Backend, e.Cmd)
}

// OptionalHooks records which of the non-mandatory hooks a backend
// implements, computed once at handshake time so frontend methods can
// decide between dispatching the real command and synthesizing an empty
// result without round-tripping a MissingCommand failure.
type OptionalHooks struct {
	GetRequiresForBuildSdist         bool
	GetRequiresForBuildWheel         bool
	PrepareMetadataForBuildWheel     bool
	BuildEditable                    bool
	GetRequiresForBuildEditable      bool
	PrepareMetadataForBuildEditable  bool
}

// Probe computes OptionalHooks for b.
func Probe(b *Backend) OptionalHooks {
	return OptionalHooks{
		GetRequiresForBuildSdist:        b.Has("get_requires_for_build_sdist"),
		GetRequiresForBuildWheel:        b.Has("get_requires_for_build_wheel"),
		PrepareMetadataForBuildWheel:    b.Has("prepare_metadata_for_build_wheel"),
		BuildEditable:                   b.Has("build_editable"),
		GetRequiresForBuildEditable:     b.Has("get_requires_for_build_editable"),
		PrepareMetadataForBuildEditable: b.Has("prepare_metadata_for_build_editable"),
	}
}
