package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeMemoryConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "councild.toml")
	contents := `
chairman_model_id = "m1"

[store]
driver = "memory"

[[models]]
id = "m1"
display_name = "Model One"
provider_tag = "fake"
base_url = "http://127.0.0.1:0"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConversationsListEmptyStore(t *testing.T) {
	path := writeMemoryConfig(t)

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "conversations", "list"})

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output for an empty memory store, got %q", out.String())
	}
}

func TestConversationsShowUnknownIDErrors(t *testing.T) {
	path := writeMemoryConfig(t)

	root := NewRootCmd()
	root.SetArgs([]string{"--config", path, "conversations", "show", "nope"})

	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatal("expected an error for an unknown conversation id")
	}
}

func TestConversationsDeleteReportsSuccess(t *testing.T) {
	path := writeMemoryConfig(t)

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "conversations", "delete", "whatever"})

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "deleted whatever") {
		t.Fatalf("expected confirmation message, got %q", out.String())
	}
}
