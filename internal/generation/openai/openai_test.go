package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func responseBody(text string) map[string]any {
	return map[string]any{
		"id":         "resp_1",
		"object":     "response",
		"created_at": 1700000000,
		"model":      "gpt-4o-mini",
		"status":     "completed",
		"output": []map[string]any{{
			"type":   "message",
			"id":     "msg_1",
			"role":   "assistant",
			"status": "completed",
			"content": []map[string]any{{
				"type":        "output_text",
				"text":        text,
				"annotations": []any{},
			}},
		}},
	}
}

func newServer(t *testing.T, status int, text string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"unavailable","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(responseBody(text))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate(t *testing.T) {
	var seen map[string]any
	srv := newServer(t, http.StatusOK, "Mitochondria produce ATP.", &seen)
	g := newGenerator("k", Config{BaseURL: srv.URL + "/", Model: "gpt-test"})

	got, err := g.Generate(context.Background(), "You are a tutor.", "What do mitochondria do?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Mitochondria produce ATP." {
		t.Errorf("got %q", got)
	}
	if seen["model"] != "gpt-test" || seen["instructions"] != "You are a tutor." {
		t.Errorf("request=%v", seen)
	}
}

func TestGenerateWithoutSystemFrame(t *testing.T) {
	var seen map[string]any
	srv := newServer(t, http.StatusOK, "ok", &seen)
	g := newGenerator("k", Config{BaseURL: srv.URL + "/"})
	if _, err := g.Generate(context.Background(), "", "hi"); err != nil {
		t.Fatal(err)
	}
	if _, ok := seen["instructions"]; ok {
		t.Errorf("instructions sent for empty system frame: %v", seen["instructions"])
	}
}

func TestGenerateFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"down"}}`))
	}))
	defer srv.Close()
	g := newGenerator("k", Config{BaseURL: srv.URL + "/"})
	if _, err := g.Generate(context.Background(), "", "hi"); err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times", n)
	}
}

func TestGenerateJSON(t *testing.T) {
	var seen map[string]any
	srv := newServer(t, http.StatusOK, `{"topics":["cells"],"summary":"Asked about cells."}`, &seen)
	g := newGenerator("k", Config{BaseURL: srv.URL + "/"})

	var out struct {
		Topics  []string `json:"topics"`
		Summary string   `json:"summary"`
	}
	schema := map[string]any{"type": "object"}
	if err := g.GenerateJSON(context.Background(), "CallSummary", schema, "sys", "user", &out); err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if out.Summary != "Asked about cells." || len(out.Topics) != 1 {
		t.Errorf("out=%+v", out)
	}
	text, _ := seen["text"].(map[string]any)
	format, _ := text["format"].(map[string]any)
	if format["type"] != "json_schema" || format["name"] != "CallSummary" {
		t.Errorf("format=%v", format)
	}
}
