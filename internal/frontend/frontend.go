// Package frontend implements the Frontend contract: command dispatch,
// response validation, error translation, and the metadata-from-wheel
// fallback, driven by a SubprocessFrontend over a ProcessSupervisor.
package frontend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"pep517run/internal/metadata"
	"pep517run/internal/requirement"
	"pep517run/internal/wire"
)

// Frontend is the system's contract surface: one method per protocol
// command plus convenience composites. The only production implementation
// is *SubprocessFrontend; the interface exists so callers (and tests) can
// substitute a fake dispatcher.
type Frontend interface {
	GetRequiresForBuildSdist(ctx context.Context, settings map[string]any) (RequiresResult, error)
	GetRequiresForBuildWheel(ctx context.Context, settings map[string]any) (RequiresResult, error)
	GetRequiresForBuildEditable(ctx context.Context, settings map[string]any) (RequiresResult, error)
	BuildSdist(ctx context.Context, sdistDir string, settings map[string]any) (SdistResult, error)
	BuildWheel(ctx context.Context, wheelDir string, settings map[string]any, metadataDir string) (WheelResult, error)
	BuildEditable(ctx context.Context, wheelDir string, settings map[string]any, metadataDir string) (EditableResult, error)
	PrepareMetadataForBuildWheel(ctx context.Context, metadataDir string, settings map[string]any) (MetadataResult, error)
	PrepareMetadataForBuildEditable(ctx context.Context, metadataDir string, settings map[string]any) (MetadataResult, error)
	SendCmd(ctx context.Context, cmd string, kwargs map[string]any) (json.RawMessage, string, string, error)
	Hooks(ctx context.Context) (OptionalHooks, error)
	Close() error
}

// dispatcher is the narrow seam base relies on: send one command, get back
// a decoded response plus captured stdio. SubprocessFrontend implements it
// by owning a ProcessSupervisor (persistent in reuse mode, scoped
// one-shot otherwise).
type dispatcher interface {
	dispatch(ctx context.Context, cmd string, kwargs map[string]any) (wire.Response, string, string, error)
	hooks(ctx context.Context) (OptionalHooks, error)
	projectRoot() string
	backendName() string
}

// base implements the validation, fallback, and error-translation logic
// shared by every Frontend command method, parameterized over a dispatcher
// so it never has to know about subprocesses or pipes.
type base struct {
	d dispatcher
}

func (b *base) getRequires(ctx context.Context, cmd string, settings map[string]any, has bool) (RequiresResult, error) {
	if !has {
		return RequiresResult{}, nil
	}
	resp, out, errOut, err := b.d.dispatch(ctx, cmd, map[string]any{"config_settings": settings})
	if err != nil {
		return RequiresResult{}, err
	}
	if resp.IsFailure() {
		return RequiresResult{}, errFromResponse(resp, out, errOut, map[string]any{"config_settings": settings})
	}

	var raw []string
	if jsonErr := json.Unmarshal(resp.Return, &raw); jsonErr != nil {
		return RequiresResult{}, typeErrorf(cmd, b.d.backendName(), string(resp.Return), "'list of string'", out, errOut, nil)
	}
	reqs, parseErr := requirement.ParseAll(raw)
	if parseErr != nil {
		return RequiresResult{}, typeErrorf(cmd, b.d.backendName(), string(resp.Return), "'list of string'", out, errOut, nil)
	}
	return RequiresResult{Requires: reqs, Out: out, Err: errOut}, nil
}

func (b *base) GetRequiresForBuildSdist(ctx context.Context, settings map[string]any) (RequiresResult, error) {
	hooks, err := b.d.hooks(ctx)
	if err != nil {
		return RequiresResult{}, err
	}
	return b.getRequires(ctx, "get_requires_for_build_sdist", settings, hooks.GetRequiresForBuildSdist)
}

func (b *base) GetRequiresForBuildWheel(ctx context.Context, settings map[string]any) (RequiresResult, error) {
	hooks, err := b.d.hooks(ctx)
	if err != nil {
		return RequiresResult{}, err
	}
	return b.getRequires(ctx, "get_requires_for_build_wheel", settings, hooks.GetRequiresForBuildWheel)
}

func (b *base) GetRequiresForBuildEditable(ctx context.Context, settings map[string]any) (RequiresResult, error) {
	hooks, err := b.d.hooks(ctx)
	if err != nil {
		return RequiresResult{}, err
	}
	return b.getRequires(ctx, "get_requires_for_build_editable", settings, hooks.GetRequiresForBuildEditable)
}

func (b *base) BuildSdist(ctx context.Context, sdistDir string, settings map[string]any) (SdistResult, error) {
	if err := recreateEmpty(sdistDir); err != nil {
		return SdistResult{}, err
	}
	kwargs := map[string]any{"sdist_directory": sdistDir, "config_settings": settings}
	resp, out, errOut, err := b.d.dispatch(ctx, "build_sdist", kwargs)
	if err != nil {
		return SdistResult{}, err
	}
	if resp.IsFailure() {
		return SdistResult{}, errFromResponse(resp, out, errOut, kwargs)
	}
	path, typeErr := expectString(resp.Return, "build_sdist", b.d.backendName(), out, errOut, kwargs)
	if typeErr != nil {
		return SdistResult{}, typeErr
	}
	return SdistResult{Sdist: path, Out: out, Err: errOut}, nil
}

func (b *base) BuildWheel(ctx context.Context, wheelDir string, settings map[string]any, metadataDir string) (WheelResult, error) {
	if err := recreateEmpty(wheelDir); err != nil {
		return WheelResult{}, err
	}
	kwargs := map[string]any{"wheel_directory": wheelDir, "config_settings": settings}
	if metadataDir != "" {
		kwargs["metadata_directory"] = metadataDir
	}
	resp, out, errOut, err := b.d.dispatch(ctx, "build_wheel", kwargs)
	if err != nil {
		return WheelResult{}, err
	}
	if resp.IsFailure() {
		return WheelResult{}, errFromResponse(resp, out, errOut, kwargs)
	}
	path, typeErr := expectString(resp.Return, "build_wheel", b.d.backendName(), out, errOut, kwargs)
	if typeErr != nil {
		return WheelResult{}, typeErr
	}
	return WheelResult{Wheel: path, Out: out, Err: errOut}, nil
}

func (b *base) BuildEditable(ctx context.Context, wheelDir string, settings map[string]any, metadataDir string) (EditableResult, error) {
	hooks, err := b.d.hooks(ctx)
	if err != nil {
		return EditableResult{}, err
	}
	if !hooks.BuildEditable {
		return EditableResult{}, missingCommandErr("build_editable", b.d.backendName())
	}
	if err := recreateEmpty(wheelDir); err != nil {
		return EditableResult{}, err
	}
	kwargs := map[string]any{"wheel_directory": wheelDir, "config_settings": settings}
	if metadataDir != "" {
		kwargs["metadata_directory"] = metadataDir
	}
	resp, out, errOut, dispatchErr := b.d.dispatch(ctx, "build_editable", kwargs)
	if dispatchErr != nil {
		return EditableResult{}, dispatchErr
	}
	if resp.IsFailure() {
		return EditableResult{}, errFromResponse(resp, out, errOut, kwargs)
	}
	path, typeErr := expectString(resp.Return, "build_editable", b.d.backendName(), out, errOut, kwargs)
	if typeErr != nil {
		return EditableResult{}, typeErr
	}
	return EditableResult{Wheel: path, Out: out, Err: errOut}, nil
}

func (b *base) PrepareMetadataForBuildWheel(ctx context.Context, metadataDir string, settings map[string]any) (MetadataResult, error) {
	return b.prepareMetadata(ctx, TargetWheel, metadataDir, settings)
}

func (b *base) PrepareMetadataForBuildEditable(ctx context.Context, metadataDir string, settings map[string]any) (MetadataResult, error) {
	return b.prepareMetadata(ctx, TargetEditable, metadataDir, settings)
}

// prepareMetadata implements §4.5's metadata command plus the
// metadata-from-wheel fallback. The "wheel" method-name label in the
// editable TypeError path is preserved intentionally (§9 design notes):
// prepare_metadata_for_build_editable's own TypeErrors are reported under
// the prepare_metadata_for_build_wheel label, as fidelity to the source
// behavior, not an oversight.
func (b *base) prepareMetadata(ctx context.Context, target Target, metadataDir string, settings map[string]any) (MetadataResult, error) {
	if metadataDir == b.d.projectRoot() {
		return MetadataResult{}, runtimeErrorf("metadata_directory must not equal project root: %s", metadataDir)
	}
	if err := recreateEmpty(metadataDir); err != nil {
		return MetadataResult{}, err
	}

	hooks, err := b.d.hooks(ctx)
	if err != nil {
		return MetadataResult{}, err
	}

	cmd, has := "prepare_metadata_for_build_wheel", hooks.PrepareMetadataForBuildWheel
	buildCmd, typeLabel := "build_wheel", "prepare_metadata_for_build_wheel"
	if target == TargetEditable {
		cmd, has = "prepare_metadata_for_build_editable", hooks.PrepareMetadataForBuildEditable
		buildCmd = "build_editable"
		typeLabel = "prepare_metadata_for_build_wheel" // preserved source quirk, see doc comment above
	}

	if has {
		kwargs := map[string]any{"metadata_directory": metadataDir, "config_settings": settings}
		resp, out, errOut, dispatchErr := b.d.dispatch(ctx, cmd, kwargs)
		if dispatchErr != nil {
			return MetadataResult{}, dispatchErr
		}
		if resp.IsFailure() {
			return MetadataResult{}, errFromResponse(resp, out, errOut, kwargs)
		}
		path, typeErr := expectString(resp.Return, typeLabel, b.d.backendName(), out, errOut, kwargs)
		if typeErr != nil {
			return MetadataResult{}, typeErr
		}
		return MetadataResult{Path: path, Out: out, Err: errOut}, nil
	}

	return b.metadataFromWheelFallback(ctx, buildCmd, metadataDir)
}

// metadataFromWheelFallback implements §4.5's fallback algorithm: build a
// wheel into a scratch directory, then extract its .dist-info into
// metadataDir.
func (b *base) metadataFromWheelFallback(ctx context.Context, buildCmd, metadataDir string) (MetadataResult, error) {
	scratch, err := os.MkdirTemp("", "pep517run-scratch-")
	if err != nil {
		return MetadataResult{}, runtimeErrorf("creating scratch directory for metadata fallback: %v", err)
	}
	defer os.RemoveAll(scratch)

	kwargs := map[string]any{"wheel_directory": scratch, "config_settings": map[string]any(nil)}
	resp, out, errOut, dispatchErr := b.d.dispatch(ctx, buildCmd, kwargs)
	if dispatchErr != nil {
		return MetadataResult{}, dispatchErr
	}
	if resp.IsFailure() {
		return MetadataResult{}, errFromResponse(resp, out, errOut, kwargs)
	}

	var wheelPath string
	if jsonErr := json.Unmarshal(resp.Return, &wheelPath); jsonErr != nil || wheelPath == "" {
		return MetadataResult{}, runtimeErrorf("missing wheel file return by backed building metadata via %s", buildCmd)
	}

	distInfo, extractErr := metadata.ExtractFromWheel(wheelPath, metadataDir)
	if extractErr != nil {
		return MetadataResult{}, runtimeErrorf("no .dist-info found inside generated wheel %s: %v", wheelPath, extractErr)
	}

	return MetadataResult{Path: distInfo, Out: out, Err: errOut}, nil
}

func (b *base) SendCmd(ctx context.Context, cmd string, kwargs map[string]any) (json.RawMessage, string, string, error) {
	resp, out, errOut, err := b.d.dispatch(ctx, cmd, kwargs)
	if err != nil {
		return nil, out, errOut, err
	}
	if resp.IsFailure() {
		return nil, out, errOut, errFromResponse(resp, out, errOut, kwargs)
	}
	return resp.Return, out, errOut, nil
}

func (b *base) Hooks(ctx context.Context) (OptionalHooks, error) {
	return b.d.hooks(ctx)
}

// recreateEmpty removes dir recursively if present and recreates it empty,
// per §4.5's "recreated empty before dispatching" validation rule.
func recreateEmpty(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return runtimeErrorf("clearing directory %s: %v", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return runtimeErrorf("creating directory %s: %v", dir, err)
	}
	return nil
}

func expectString(raw json.RawMessage, cmd, backend, out, errOut string, args map[string]any) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", typeErrorf(cmd, backend, string(raw), "<class 'str'>", out, errOut, args)
	}
	return s, nil
}

// typeErrorf builds the exc_msg for a bad hook return value. wantRepr is
// the already-formatted type description to report: a bare Python repr
// for a scalar type (e.g. "<class 'str'>"), or a quoted description for a
// composite shape (e.g. "'list of string'") — callers supply whichever
// ground-truth form applies, since the two are not rendered the same way.
func typeErrorf(cmd, backend, got, wantRepr, out, errOut string, args map[string]any) error {
	return wire.Synthesize(
		wire.ErrTypeError,
		fmt.Sprintf("'%s' on '%s' returned %s but expected type %s", cmd, backend, got, wantRepr),
		out, errOut, args,
	)
}

func missingCommandErr(cmd, backend string) error {
	return wire.Synthesize(
		wire.ErrMissingCommand,
		fmt.Sprintf("'%s' object has no attribute '%s'", backend, cmd),
		"", "", nil,
	)
}

func runtimeErrorf(format string, a ...any) error {
	return wire.Synthesize(wire.ErrRuntimeError, fmt.Sprintf(format, a...), "", "", nil)
}

func errFromResponse(resp wire.Response, out, errOut string, args map[string]any) error {
	return wire.FromResponse(resp, out, errOut, args)
}
