package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleTOML = `
chairman_model_id = "m1"
default_models = ["m1", "m2", "m3"]

[[models]]
id = "m1"
display_name = "Model One"
provider_tag = "fake"

[[models]]
id = "m2"
display_name = "Model Two"
provider_tag = "fake"
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFillsDefaultsAndRequiresChairman(t *testing.T) {
	path := writeTemp(t, sampleTOML)
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Temperature != 0.7 || c.MaxTokens != 4000 {
		t.Fatalf("expected defaults to survive decode, got %+v", c)
	}
	if c.PerCallTimeout() != 120*time.Second {
		t.Fatalf("expected default per-call timeout, got %v", c.PerCallTimeout())
	}
	if c.ChairmanModelID != "m1" {
		t.Fatalf("expected chairman_model_id m1, got %q", c.ChairmanModelID)
	}
}

func TestLoadRejectsMissingChairman(t *testing.T) {
	path := writeTemp(t, `default_models = ["m1"]`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for missing chairman_model_id")
	}
}

func TestBuildCatalogMarksConfiguredChairman(t *testing.T) {
	path := writeTemp(t, sampleTOML)
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	catalog, err := c.BuildCatalog()
	if err != nil {
		t.Fatal(err)
	}
	if catalog.Chairman().ID != "m1" {
		t.Fatalf("expected m1 as chairman, got %q", catalog.Chairman().ID)
	}
}

func TestRegistryWatcherReloadsOnWrite(t *testing.T) {
	path := writeTemp(t, sampleTOML)
	rw, err := NewRegistryWatcher(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = rw.Close() })

	if _, ok := rw.Catalog().Get("m3"); ok {
		t.Fatalf("expected m3 absent from initial catalog")
	}

	updated := sampleTOML + "\n[[models]]\nid = \"m3\"\ndisplay_name = \"Model Three\"\nprovider_tag = \"fake\"\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := rw.Catalog().Get("m3"); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected catalog to hot-reload m3 within the deadline")
}
