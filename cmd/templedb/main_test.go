package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func newTestRoot(t *testing.T) *cobraRootHarness {
	t.Helper()
	root := newRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	return &cobraRootHarness{root: root, out: buf}
}

type cobraRootHarness struct {
	root *cobra.Command
	out  *bytes.Buffer
}

func (h *cobraRootHarness) run(args ...string) (string, error) {
	h.out.Reset()
	h.root.SetArgs(args)
	err := h.root.Execute()
	return h.out.String(), err
}

func TestVersionCommand(t *testing.T) {
	h := newTestRoot(t)
	out, err := h.run("version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out == "" {
		t.Fatal("expected version output, got empty string")
	}
}

func TestInitCommandRequiresSlug(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "templedb.db")
	h := newTestRoot(t)
	if _, err := h.run("init", "--db", dbPath); err == nil {
		t.Fatal("expected error when --slug is missing")
	}
}

func TestInitAndMigrateCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "templedb.db")

	h := newTestRoot(t)
	if _, err := h.run("init", "--db", dbPath, "--slug", "demo", "--name", "Demo Project"); err != nil {
		t.Fatalf("init: %v", err)
	}

	h2 := newTestRoot(t)
	out, err := h2.run("migrate", "--db", dbPath)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if out == "" {
		t.Fatal("expected migrate to report applied migrations")
	}
}
