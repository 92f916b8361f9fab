package requirement

import "testing"

func TestParseValidExtrasSpecifier(t *testing.T) {
	r, err := Parse("requests[socks]>=2.0")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Name != "requests" {
		t.Fatalf("got name %q, want requests", r.Name)
	}
	if r.Extra != "socks" {
		t.Fatalf("got extra %q, want socks", r.Extra)
	}
	if r.Rest != ">=2.0" {
		t.Fatalf("got rest %q, want >=2.0", r.Rest)
	}
	if r.String() != "requests[socks]>=2.0" {
		t.Fatalf("got String() %q, want requests[socks]>=2.0", r.String())
	}
}

func TestParseNoExtras(t *testing.T) {
	r, err := Parse("setuptools>=40.8.0")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Name != "setuptools" || r.Extra != "" || r.Rest != ">=40.8.0" {
		t.Fatalf("unexpected parse: %+v", r)
	}
}

func TestParseRejectsInvalidName(t *testing.T) {
	if _, err := Parse("!!!bad"); err == nil {
		t.Fatal("expected an error for a specifier with no valid package name")
	}
}

func TestParseRejectsEmptySpecifier(t *testing.T) {
	if _, err := Parse("   "); err == nil {
		t.Fatal("expected an error for an empty specifier")
	}
}

func TestParseRejectsUnterminatedExtras(t *testing.T) {
	if _, err := Parse("requests[socks"); err == nil {
		t.Fatal("expected an error for an unterminated extras list")
	}
}

func TestParseAllPropagatesFirstError(t *testing.T) {
	_, err := ParseAll([]string{"wheel", "requests[socks", "setuptools"})
	if err == nil {
		t.Fatal("expected ParseAll to propagate the bad element's error")
	}
}

func TestParseAllReturnsEveryRequirement(t *testing.T) {
	reqs, err := ParseAll([]string{"setuptools>=40.8.0", "wheel"})
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(reqs) != 2 || reqs[0].Name != "setuptools" || reqs[1].Name != "wheel" {
		t.Fatalf("unexpected requirements: %+v", reqs)
	}
}
