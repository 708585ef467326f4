package terrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewAndIsKind(t *testing.T) {
	err := New(NotFound, "project 7 not found")
	if !IsKind(err, NotFound) {
		t.Fatalf("expected IsKind(err, NotFound) to be true")
	}
	if IsKind(err, Conflict) {
		t.Fatalf("expected IsKind(err, Conflict) to be false")
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(IntegrityViolation, "failed to write blob", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error message")
	}
}

func TestIsMatchesSentinelByKind(t *testing.T) {
	err := fmt.Errorf("staging file: %w", New(Conflict, "version mismatch"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected errors.Is(err, ErrConflict) to match by Kind")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("did not expect errors.Is(err, ErrNotFound) to match")
	}
}

func TestNewConflictCarriesDetail(t *testing.T) {
	conflicts := []ConflictingFile{
		{Path: "a.go", YourVersion: 1, CurrentVersion: 3},
	}
	err := NewConflict("commit would overwrite newer changes", conflicts)

	kind, ok := Of(err)
	if !ok || kind != Conflict {
		t.Fatalf("expected Of(err) = (Conflict, true), got (%v, %v)", kind, ok)
	}
	if len(err.Conflicts) != 1 || err.Conflicts[0].Path != "a.go" {
		t.Fatalf("expected conflict detail to survive, got %+v", err.Conflicts)
	}
}

func TestOfOnPlainError(t *testing.T) {
	_, ok := Of(errors.New("plain"))
	if ok {
		t.Fatalf("expected Of on a plain error to report ok=false")
	}
}
