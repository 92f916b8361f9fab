package frontend

import (
	"context"
	"encoding/json"
	"testing"

	"pep517run/internal/wire"
)

// fakeDispatcher lets the validation/fallback logic in base be tested
// without spawning a real subprocess.
type fakeDispatcher struct {
	root    string
	name    string
	hooksV  OptionalHooks
	replies map[string]wire.Response
	calls   []string
}

func (f *fakeDispatcher) dispatch(_ context.Context, cmd string, _ map[string]any) (wire.Response, string, string, error) {
	f.calls = append(f.calls, cmd)
	resp, ok := f.replies[cmd]
	if !ok {
		code := 1
		return wire.Response{Code: &code, ExcType: wire.ErrMissingCommand, ExcMsg: "'" + f.name + "' object has no attribute '" + cmd + "'"}, "", "", nil
	}
	return resp, "", "", nil
}

func (f *fakeDispatcher) hooks(context.Context) (OptionalHooks, error) { return f.hooksV, nil }
func (f *fakeDispatcher) projectRoot() string                          { return f.root }
func (f *fakeDispatcher) backendName() string                          { return f.name }

func newTestFrontend(d *fakeDispatcher) *base {
	return &base{d: d}
}

func jsonReturn(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestMetadataDirectoryEqualsRootRejected(t *testing.T) {
	d := &fakeDispatcher{root: "/proj", name: "backend"}
	b := newTestFrontend(d)
	_, err := b.PrepareMetadataForBuildWheel(context.Background(), "/proj", nil)
	if err == nil {
		t.Fatal("expected an error when metadata_directory equals project root")
	}
	var f *wire.Failure
	if !isFailure(err, &f) {
		t.Fatalf("expected *wire.Failure, got %T: %v", err, err)
	}
	if f.ExcType != wire.ErrRuntimeError {
		t.Fatalf("got exc_type %q, want RuntimeError", f.ExcType)
	}
}

func isFailure(err error, out **wire.Failure) bool {
	f, ok := err.(*wire.Failure)
	if ok {
		*out = f
	}
	return ok
}

func TestBuildWheelNonStringReturnIsTypeError(t *testing.T) {
	d := &fakeDispatcher{
		root: "/proj",
		name: "backend",
		replies: map[string]wire.Response{
			"build_wheel": {Return: jsonReturn(t, 42)},
		},
	}
	b := newTestFrontend(d)
	_, err := b.BuildWheel(context.Background(), t.TempDir(), nil, "")
	var f *wire.Failure
	if !isFailure(err, &f) {
		t.Fatalf("expected *wire.Failure, got %T: %v", err, err)
	}
	if f.ExcType != wire.ErrTypeError {
		t.Fatalf("got exc_type %q, want TypeError", f.ExcType)
	}
	want := "'build_wheel' on 'backend' returned 42 but expected type <class 'str'>"
	if f.ExcMsg != want {
		t.Fatalf("got exc_msg %q, want %q", f.ExcMsg, want)
	}
}

func TestMissingBuildEditableProjectsMissingCommand(t *testing.T) {
	d := &fakeDispatcher{root: "/proj", name: "backend", hooksV: OptionalHooks{BuildEditable: false}}
	b := newTestFrontend(d)
	_, err := b.BuildEditable(context.Background(), t.TempDir(), nil, "")
	var f *wire.Failure
	if !isFailure(err, &f) {
		t.Fatalf("expected *wire.Failure, got %T: %v", err, err)
	}
	if f.ExcType != wire.ErrMissingCommand {
		t.Fatalf("got exc_type %q, want MissingCommand", f.ExcType)
	}
}

func TestGetRequiresSynthesizesEmptyWhenHookAbsent(t *testing.T) {
	d := &fakeDispatcher{root: "/proj", name: "backend", hooksV: OptionalHooks{GetRequiresForBuildWheel: false}}
	b := newTestFrontend(d)
	res, err := b.GetRequiresForBuildWheel(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Requires) != 0 {
		t.Fatalf("expected empty requires, got %v", res.Requires)
	}
	if len(d.calls) != 0 {
		t.Fatalf("expected no dispatch when hook absent, got %v", d.calls)
	}
}

func TestGetRequiresRejectsNonStringElements(t *testing.T) {
	d := &fakeDispatcher{
		root: "/proj", name: "backend",
		hooksV: OptionalHooks{GetRequiresForBuildWheel: true},
		replies: map[string]wire.Response{
			"get_requires_for_build_wheel": {Return: jsonReturn(t, []int{1, 2})},
		},
	}
	b := newTestFrontend(d)
	_, err := b.GetRequiresForBuildWheel(context.Background(), nil)
	var f *wire.Failure
	if !isFailure(err, &f) {
		t.Fatalf("expected *wire.Failure, got %T: %v", err, err)
	}
	if f.ExcType != wire.ErrTypeError {
		t.Fatalf("got exc_type %q, want TypeError", f.ExcType)
	}
	want := "'get_requires_for_build_wheel' on 'backend' returned [1,2] but expected type 'list of string'"
	if f.ExcMsg != want {
		t.Fatalf("got exc_msg %q, want %q", f.ExcMsg, want)
	}
}

func TestPrepareMetadataEditableTypeErrorUsesWheelLabel(t *testing.T) {
	d := &fakeDispatcher{
		root: "/proj", name: "backend",
		hooksV: OptionalHooks{PrepareMetadataForBuildEditable: true},
		replies: map[string]wire.Response{
			"prepare_metadata_for_build_editable": {Return: jsonReturn(t, 7)},
		},
	}
	b := newTestFrontend(d)
	_, err := b.PrepareMetadataForBuildEditable(context.Background(), t.TempDir(), nil)
	var f *wire.Failure
	if !isFailure(err, &f) {
		t.Fatalf("expected *wire.Failure, got %T: %v", err, err)
	}
	// Preserved source quirk (§9): editable TypeErrors are labeled as if
	// they came from prepare_metadata_for_build_wheel.
	want := "'prepare_metadata_for_build_wheel' on 'backend' returned 7 but expected type <class 'str'>"
	if f.ExcMsg != want {
		t.Fatalf("got exc_msg %q, want %q", f.ExcMsg, want)
	}
}
