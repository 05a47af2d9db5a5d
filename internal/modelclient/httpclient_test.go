package modelclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hello there"}}]}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "test-key")
	text, err := c.Complete(context.Background(), Request{ModelID: "m1"})
	if err != nil {
		t.Fatal(err)
	}
	if text != "hello there" {
		t.Fatalf("got %q", text)
	}
}

func TestHTTPClientCompleteProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"boom"}}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	if _, err := c.Complete(context.Background(), Request{ModelID: "m1"}); err == nil {
		t.Fatal("expected error for 5xx response")
	}
}

func TestHTTPClientStreamAccumulatesDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		lines := []string{
			`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
			`data: {"choices":[{"delta":{"content":"lo"}}]}`,
			`data: [DONE]`,
		}
		for _, l := range lines {
			fmt.Fprintf(w, "%s\n\n", l)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	ch, err := c.Stream(context.Background(), Request{ModelID: "m1"})
	if err != nil {
		t.Fatal(err)
	}

	var got string
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("unexpected error: %v", chunk.Err)
		}
		got += chunk.Text
	}
	if got != "Hello" {
		t.Fatalf("got %q, want %q", got, "Hello")
	}
}
