package errs

import (
	"errors"
	"testing"
)

func TestKindExitCode(t *testing.T) {
	cases := map[Kind]int{
		InvalidInput: 3,
		Repo:         4,
		Conflicts:    2,
		Internal:     5,
		Kind("bogus"): 5,
	}
	for kind, want := range cases {
		if got := kind.ExitCode(); got != want {
			t.Errorf("%s.ExitCode() = %d, want %d", kind, got, want)
		}
	}
}

func TestConstructors(t *testing.T) {
	if e := Invalid("bad %s", "query"); e.Kind != InvalidInput || e.Message != "bad query" {
		t.Errorf("unexpected Invalid: %+v", e)
	}
	if e := RepoErr("missing %s", "file"); e.Kind != Repo || e.Message != "missing file" {
		t.Errorf("unexpected RepoErr: %+v", e)
	}
	if e := ConflictErr("%d markers", 2); e.Kind != Conflicts || e.Message != "2 markers" {
		t.Errorf("unexpected ConflictErr: %+v", e)
	}
	cause := errors.New("boom")
	if e := InternalErr(cause, "doing %s", "thing"); e.Kind != Internal || e.Message != "doing thing" || e.Unwrap() != cause {
		t.Errorf("unexpected InternalErr: %+v", e)
	}
}

func TestWithDetails(t *testing.T) {
	e := Invalid("bad").WithDetails(map[string]int{"count": 3})
	if e.Details == nil {
		t.Error("expected details to be set")
	}
}

func TestErrorString(t *testing.T) {
	plain := New(Repo, "no such file")
	if got := plain.Error(); got != "[repo] no such file" {
		t.Errorf("unexpected Error() string: %s", got)
	}

	wrapped := Wrap(Internal, "loading config", errors.New("disk full"))
	if got := wrapped.Error(); got != "[internal] loading config: disk full" {
		t.Errorf("unexpected Error() string: %s", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := Wrap(Repo, "context", cause)

	if !errors.Is(wrapped, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	var ce *CoreError
	if !errors.As(fakeWrap(wrapped), &ce) {
		t.Error("expected errors.As to unwrap to *CoreError")
	}
}

// fakeWrap simulates a caller wrapping a CoreError with fmt.Errorf("%w", ...).
type fakeWrapper struct{ err error }

func (f fakeWrapper) Error() string { return f.err.Error() }
func (f fakeWrapper) Unwrap() error { return f.err }

func fakeWrap(err error) error {
	return fakeWrapper{err: err}
}
