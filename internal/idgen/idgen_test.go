package idgen

import (
	"strings"
	"testing"
	"time"

	"github.com/templedb/templedb/internal/terrors"
)

func TestGenerateWorkItemIDShapeAndDeterminism(t *testing.T) {
	noExisting := func(string) (bool, error) { return false, nil }
	ts := time.Unix(1700000000, 0)

	id1, err := GenerateWorkItemID("Fix bug", "desc", "agent-1", ts, noExisting)
	if err != nil {
		t.Fatalf("GenerateWorkItemID: %v", err)
	}
	if !strings.HasPrefix(id1, workItemPrefix) {
		t.Fatalf("expected prefix %q, got %q", workItemPrefix, id1)
	}
	if len(id1) != len(workItemPrefix)+workItemIDLen {
		t.Fatalf("expected id length %d, got %d (%q)", len(workItemPrefix)+workItemIDLen, len(id1), id1)
	}

	id2, err := GenerateWorkItemID("Fix bug", "desc", "agent-1", ts, noExisting)
	if err != nil {
		t.Fatalf("GenerateWorkItemID (second call): %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected identical inputs to produce identical ids: %q != %q", id1, id2)
	}
}

func TestGenerateWorkItemIDWidensOnCollision(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	seen := map[string]bool{}
	calls := 0
	alwaysExists := func(candidate string) (bool, error) {
		calls++
		if calls <= maxNoncesPerLen {
			return true, nil // force every candidate at the first length to collide
		}
		return seen[candidate], nil
	}

	id, err := GenerateWorkItemID("Fix bug", "desc", "agent-1", ts, alwaysExists)
	if err != nil {
		t.Fatalf("GenerateWorkItemID: %v", err)
	}
	if len(id) <= len(workItemPrefix)+workItemIDLen {
		t.Fatalf("expected widened id beyond base length, got %q", id)
	}
}

func TestGenerateWorkItemIDEscalatesOnExhaustion(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	alwaysCollides := func(string) (bool, error) { return true, nil }

	_, err := GenerateWorkItemID("x", "y", "z", ts, alwaysCollides)
	if err == nil {
		t.Fatal("expected an error when the id space is exhausted")
	}
	if !terrors.IsKind(err, terrors.Unavailable) {
		t.Fatalf("expected terrors.Unavailable, got %v", err)
	}
}

func TestGenerateCommitHashShape(t *testing.T) {
	ts := time.Unix(1700000000, 42)
	hash := GenerateCommitHash("templedb", "main", "initial commit", ts)

	if len(hash) != 16 {
		t.Fatalf("expected a 16-char commit hash, got %d chars: %q", len(hash), hash)
	}
	if hash != strings.ToUpper(hash) {
		t.Fatalf("expected commit hash to be upper-cased, got %q", hash)
	}

	again := GenerateCommitHash("templedb", "main", "initial commit", ts)
	if hash != again {
		t.Fatalf("expected identical inputs to produce the same commit hash")
	}

	other := GenerateCommitHash("templedb", "main", "different message", ts)
	if hash == other {
		t.Fatalf("expected different messages to produce different hashes")
	}
}

func TestSHA256Hex(t *testing.T) {
	got := SHA256Hex([]byte("hello"))
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"[:64]
	if got != want {
		t.Fatalf("SHA256Hex(%q) = %q, want %q", "hello", got, want)
	}
}
