package envelope

import (
	"encoding/json"
	"errors"
	"testing"

	"corectx/internal/errs"
)

func TestBuilder_OK(t *testing.T) {
	env := New(SchemaContext).OK(map[string]int{"tokens": 42}).Build()

	if !env.OK {
		t.Error("expected OK envelope")
	}
	if env.Error != nil {
		t.Errorf("expected nil error, got %+v", env.Error)
	}
	if env.Schema != SchemaContext {
		t.Errorf("expected schema %s, got %s", SchemaContext, env.Schema)
	}
	if env.ExitCode() != 0 {
		t.Errorf("expected exit code 0, got %d", env.ExitCode())
	}
}

func TestBuilder_Err_CoreError(t *testing.T) {
	err := errs.ConflictErr("markers left in %s", "foo.go").WithDetails([]string{"foo.go"})
	env := New(SchemaEdit).Err(err).Build()

	if env.OK {
		t.Error("expected failed envelope")
	}
	if env.Error.Kind != errs.Conflicts {
		t.Errorf("expected kind conflicts, got %s", env.Error.Kind)
	}
	if env.Error.Message != "markers left in foo.go" {
		t.Errorf("unexpected message: %s", env.Error.Message)
	}
	if env.Error.Details == nil {
		t.Error("expected details to carry through")
	}
	if env.ExitCode() != 2 {
		t.Errorf("expected exit code 2, got %d", env.ExitCode())
	}
}

func TestBuilder_Err_PlainErrorDefaultsToInternal(t *testing.T) {
	env := New(SchemaBackup).Err(errors.New("disk full")).Build()

	if env.Error.Kind != errs.Internal {
		t.Errorf("expected kind internal, got %s", env.Error.Kind)
	}
	if env.ExitCode() != 5 {
		t.Errorf("expected exit code 5, got %d", env.ExitCode())
	}
}

func TestBuilder_Err_WrappedCoreError(t *testing.T) {
	inner := errs.RepoErr("no such file")
	wrapped := &wrapErr{err: inner}

	env := New(SchemaContext).Err(wrapped).Build()
	if env.Error.Kind != errs.Repo {
		t.Errorf("expected kind repo after unwrapping, got %s", env.Error.Kind)
	}
}

func TestMarshalIndent(t *testing.T) {
	env := New(SchemaContext).OK(map[string]string{"tier": "B"}).Build()

	data, err := env.MarshalIndent()
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["schema"] != string(SchemaContext) {
		t.Errorf("unexpected schema in marshaled output: %v", decoded["schema"])
	}
	if decoded["ok"] != true {
		t.Errorf("expected ok:true in marshaled output, got %v", decoded["ok"])
	}
}

type wrapErr struct{ err error }

func (w *wrapErr) Error() string { return w.err.Error() }
func (w *wrapErr) Unwrap() error { return w.err }
