// Package ultravox is the voice-AI session provider client.
package ultravox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
)

// Config holds the provider endpoint, credentials and timeouts.
type Config struct {
	APIURL         string
	APIKey         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Client implements domain.VoiceProvider.
type Client struct {
	apiURL string
	apiKey string
	http   *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Client{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		apiKey: cfg.APIKey,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout + cfg.WriteTimeout,
		},
	}
}

type dynamicParameter struct {
	Name     string         `json:"name"`
	Location string         `json:"location"`
	Schema   map[string]any `json:"schema"`
	Required bool           `json:"required"`
}

type httpTool struct {
	BaseURLPattern string `json:"baseUrlPattern"`
	HTTPMethod     string `json:"httpMethod"`
}

type temporaryTool struct {
	ModelToolName     string             `json:"modelToolName"`
	Description       string             `json:"description"`
	DynamicParameters []dynamicParameter `json:"dynamicParameters"`
	HTTP              httpTool           `json:"http"`
}

type selectedTool struct {
	TemporaryTool temporaryTool `json:"temporaryTool"`
}

type createCallRequest struct {
	SystemPrompt  string                    `json:"systemPrompt"`
	Model         string                    `json:"model,omitempty"`
	Voice         string                    `json:"voice,omitempty"`
	Temperature   float64                   `json:"temperature"`
	FirstSpeaker  string                    `json:"firstSpeaker,omitempty"`
	Medium        map[string]map[string]any `json:"medium,omitempty"`
	SelectedTools []selectedTool            `json:"selectedTools,omitempty"`
}

type createCallResponse struct {
	CallID  string `json:"callId"`
	UUID    string `json:"uuid"`
	JoinURL string `json:"joinUrl"`
}

func buildCreateCall(req domain.RemoteSessionRequest) createCallRequest {
	body := createCallRequest{
		SystemPrompt: req.SystemPrompt,
		Model:        req.Model,
		Voice:        req.Voice,
		Temperature:  req.Temperature,
		FirstSpeaker: req.FirstSpeaker,
	}
	if req.Medium != "" {
		body.Medium = map[string]map[string]any{req.Medium: {}}
	}
	for _, t := range req.Tools {
		tool := temporaryTool{
			ModelToolName: t.Name,
			Description:   t.Description,
			HTTP:          httpTool{BaseURLPattern: t.URL, HTTPMethod: t.Method},
		}
		for _, p := range t.Parameters {
			tool.DynamicParameters = append(tool.DynamicParameters, dynamicParameter{
				Name:     p.Name,
				Location: p.Location,
				Schema:   map[string]any{"type": p.Type, "description": p.Description},
				Required: p.Required,
			})
		}
		body.SelectedTools = append(body.SelectedTools, selectedTool{TemporaryTool: tool})
	}
	return body
}

// CreateSession creates a remote call and returns its id and join address.
func (c *Client) CreateSession(ctx context.Context, req domain.RemoteSessionRequest) (domain.RemoteSession, error) {
	data, err := json.Marshal(buildCreateCall(req))
	if err != nil {
		return domain.RemoteSession{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/calls", bytes.NewReader(data))
	if err != nil {
		return domain.RemoteSession{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.RemoteSession{}, fmt.Errorf("create ultravox call: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.RemoteSession{}, fmt.Errorf("create ultravox call: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.RemoteSession{}, fmt.Errorf("create ultravox call: status %d: %s", resp.StatusCode, snippet(payload))
	}
	var out createCallResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return domain.RemoteSession{}, fmt.Errorf("create ultravox call: decode response: %w", err)
	}
	if out.JoinURL == "" {
		return domain.RemoteSession{}, errors.New("create ultravox call: response has no joinUrl")
	}
	id := out.CallID
	if id == "" {
		id = out.UUID
	}
	return domain.RemoteSession{ID: id, JoinURL: out.JoinURL}, nil
}

type messagesResponse struct {
	Results []struct {
		Role string `json:"role"`
		Text string `json:"text"`
	} `json:"results"`
}

// FetchTranscript returns the ordered session history. A non-success status
// yields domain.ErrTranscriptUnavailable; transport errors are returned as is.
func (c *Client) FetchTranscript(ctx context.Context, remoteSessionID string) ([]domain.TranscriptMessage, error) {
	endpoint := c.apiURL + "/calls/" + url.PathEscape(remoteSessionID) + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ultravox messages: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", domain.ErrTranscriptUnavailable, resp.StatusCode)
	}
	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("fetch ultravox messages: decode: %w", err)
	}
	messages := make([]domain.TranscriptMessage, 0, len(out.Results))
	for _, m := range out.Results {
		role := m.Role
		if role == "" {
			role = "unknown"
		}
		messages = append(messages, domain.TranscriptMessage{Role: role, Text: m.Text})
	}
	return messages, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
