package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	bitchat "github.com/Paranoid-AF/bitchat"
	"github.com/Paranoid-AF/bitchat/generate"
)

// newStubEngine builds an engine around a /bin/sh stand-in for llama-cli
// that runs body. The returned work dir receives the prompt files.
func newStubEngine(t *testing.T, body string) (*generate.Engine, string) {
	t.Helper()
	dir := t.TempDir()
	cli := filepath.Join(dir, "llama-cli")
	model := filepath.Join(dir, "model.gguf")
	work := filepath.Join(dir, "work")

	script := fmt.Sprintf("#!/bin/sh\n%s\n", body)
	if err := os.WriteFile(cli, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(model, []byte("gguf"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(work, 0755); err != nil {
		t.Fatal(err)
	}

	inv := generate.NewInvoker(generate.InvokerConfig{
		CLIPath:   cli,
		ModelPath: model,
		WorkDir:   work,
	})
	return generate.NewEngineWithInvoker(inv, 0), work
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected %s to be empty, found %d entries", dir, len(entries))
	}
}

func TestIntegrationGenerate(t *testing.T) {
	engine, work := newStubEngine(t, `printf 'User: 2+2?\n\nAssistant: 4'`)
	srv := newTestServer(t, engine, Options{})

	w := postGenerate(t, srv, `{"prompt": "2+2?"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"response":"4"}` {
		t.Errorf("expected {\"response\":\"4\"}, got %s", got)
	}
	assertEmptyDir(t, work)
}

func TestIntegrationExecutableFailure(t *testing.T) {
	engine, work := newStubEngine(t, `echo "failed to load model" >&2; exit 1`)
	srv := newTestServer(t, engine, Options{})

	w := postGenerate(t, srv, `{"prompt": "hi"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp := decodeResponse(t, w); resp.Response != errorReply {
		t.Errorf("expected %q, got %q", errorReply, resp.Response)
	}
	assertEmptyDir(t, work)
}

func TestIntegrationNoMarker(t *testing.T) {
	engine, _ := newStubEngine(t, `printf 'nothing useful'`)
	srv := newTestServer(t, engine, Options{})

	w := postGenerate(t, srv, `{"prompt": "hi"}`)
	if resp := decodeResponse(t, w); resp.Response != generate.FallbackReply {
		t.Errorf("expected fallback, got %q", resp.Response)
	}
}

func TestServeRoundTripAndShutdown(t *testing.T) {
	engine, _ := newStubEngine(t, `printf 'User: hi\n\nAssistant: hello there'`)
	srv := newTestServer(t, engine, Options{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- serve(ctx, ln, srv) }()

	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	resp, err := client.Post("http://"+ln.Addr().String()+"/generate", "application/json", strings.NewReader(`{"prompt":"hi"}`))
	if err != nil {
		cancel()
		t.Fatal(err)
	}
	var body bitchat.GenerateResponse
	err = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if body.Response != "hello there" {
		t.Errorf("expected %q, got %q", "hello there", body.Response)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunInvalidAddress(t *testing.T) {
	if err := run(context.Background(), "256.0.0.1:http-nope", http.NotFoundHandler()); err == nil {
		t.Error("expected listen error")
	}
}
