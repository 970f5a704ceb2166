package ultravox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
)

func sessionRequest() domain.RemoteSessionRequest {
	return domain.RemoteSessionRequest{
		ExternalCallID: "CA1",
		SystemPrompt:   "You are a tutor.",
		Model:          "fixie-ai/ultravox",
		Voice:          "Mark",
		Temperature:    0.3,
		FirstSpeaker:   "FIRST_SPEAKER_AGENT",
		Medium:         "twilio",
		Tools: []domain.Tool{{
			Name:        "searchTextbook",
			Description: "Searches the textbook.",
			URL:         "https://tutor.example.com/api/rag/query",
			Method:      "POST",
			Parameters: []domain.ToolParameter{{
				Name: "question", Location: "PARAMETER_LOCATION_BODY", Type: "string",
				Description: "The student's question", Required: true,
			}},
		}},
	}
}

func TestCreateSession(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/calls" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "uv-key" {
			t.Errorf("X-API-Key=%q", r.Header.Get("X-API-Key"))
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"callId":"uv-123","joinUrl":"wss://voice.example/join/uv-123"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIURL: srv.URL + "/api/", APIKey: "uv-key"})
	got, err := c.CreateSession(context.Background(), sessionRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if got.ID != "uv-123" || got.JoinURL != "wss://voice.example/join/uv-123" {
		t.Errorf("session=%+v", got)
	}

	if body["firstSpeaker"] != "FIRST_SPEAKER_AGENT" || body["voice"] != "Mark" || body["temperature"] != 0.3 {
		t.Errorf("body=%v", body)
	}
	medium, _ := body["medium"].(map[string]any)
	if _, ok := medium["twilio"]; !ok {
		t.Errorf("medium=%v", body["medium"])
	}
	tools, _ := body["selectedTools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("selectedTools=%v", body["selectedTools"])
	}
	tool := tools[0].(map[string]any)["temporaryTool"].(map[string]any)
	if tool["modelToolName"] != "searchTextbook" {
		t.Errorf("tool=%v", tool)
	}
	httpCfg := tool["http"].(map[string]any)
	if httpCfg["baseUrlPattern"] != "https://tutor.example.com/api/rag/query" || httpCfg["httpMethod"] != "POST" {
		t.Errorf("http=%v", httpCfg)
	}
	param := tool["dynamicParameters"].([]any)[0].(map[string]any)
	schema := param["schema"].(map[string]any)
	if param["name"] != "question" || param["location"] != "PARAMETER_LOCATION_BODY" || param["required"] != true || schema["type"] != "string" {
		t.Errorf("param=%v", param)
	}
}

func TestCreateSessionFallsBackToUUID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"uuid":"u-9","joinUrl":"wss://j"}`))
	}))
	defer srv.Close()
	got, err := NewClient(Config{APIURL: srv.URL}).CreateSession(context.Background(), sessionRequest())
	if err != nil || got.ID != "u-9" {
		t.Fatalf("got=%+v err=%v", got, err)
	}
}

func TestCreateSessionFailures(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"non-2xx": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"bad key"}`))
		},
		"no join url": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"callId":"x"}`))
		},
		"garbage": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, h := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			if _, err := NewClient(Config{APIURL: srv.URL}).CreateSession(context.Background(), sessionRequest()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFetchTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calls/uv-1/messages" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"results":[
			{"role":"MESSAGE_ROLE_AGENT","text":"Hi there!"},
			{"role":"MESSAGE_ROLE_USER","text":"What is a CPU?"},
			{"text":"no role"}
		]}`))
	}))
	defer srv.Close()
	c := NewClient(Config{APIURL: srv.URL})

	msgs, err := c.FetchTranscript(context.Background(), "uv-1")
	if err != nil {
		t.Fatalf("FetchTranscript: %v", err)
	}
	if len(msgs) != 3 || msgs[1].Role != "MESSAGE_ROLE_USER" || msgs[1].Text != "What is a CPU?" || msgs[2].Role != "unknown" {
		t.Errorf("msgs=%+v", msgs)
	}

	_, err = c.FetchTranscript(context.Background(), "missing")
	if !errors.Is(err, domain.ErrTranscriptUnavailable) {
		t.Errorf("missing session err=%v", err)
	}
}

func TestFetchTranscriptTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	_, err := NewClient(Config{APIURL: url}).FetchTranscript(context.Background(), "uv-1")
	if err == nil || errors.Is(err, domain.ErrTranscriptUnavailable) {
		t.Fatalf("transport failure should be a plain error, got %v", err)
	}
}
