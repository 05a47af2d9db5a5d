package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fakeProviderServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Stream bool `json:"stream"`
		}
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&body)
		if !body.Stream {
			fmt.Fprint(w, `{"choices":[{"message":{"content":"an answer"}}]}`)
			return
		}
		flusher := w.(http.Flusher)
		for _, l := range []string{
			`data: {"choices":[{"delta":{"content":"an "}}]}`,
			`data: {"choices":[{"delta":{"content":"answer"}}]}`,
			`data: [DONE]`,
		} {
			fmt.Fprintf(w, "%s\n\n", l)
			flusher.Flush()
		}
	}))
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "councild.toml")
	contents := fmt.Sprintf(`
chairman_model_id = "m1"
default_models = ["m1"]

[store]
driver = "memory"

[[models]]
id = "m1"
display_name = "Model One"
provider_tag = "fake"
base_url = %q
api_key_env = "FAKE_API_KEY"
`, baseURL)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAskStreamsNDJSONToStdout(t *testing.T) {
	srv := fakeProviderServer(t)
	defer srv.Close()
	path := writeConfig(t, srv.URL)

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "ask", "what should I eat"})

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(out.String(), "complete") {
		t.Fatalf("expected a complete event in output, got %q", out.String())
	}
	var final strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var ev struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("expected one JSON event per line, got %q: %v", line, err)
		}
		if ev.Type == "final_response" {
			final.WriteString(ev.Content)
		}
	}
	if final.String() != "an answer" {
		t.Fatalf("expected the chairman's synthesized text %q across final_response events, got %q", "an answer", final.String())
	}
}
