package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/millionx-hackathon/educational-voice-agent/internal/api"
)

// Client talks to a running tutor server.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: timeout}}
}

// Search returns the passages the server would ground an answer on.
func (c *Client) Search(ctx context.Context, question string) ([]api.SearchHit, error) {
	var out api.SearchResponse
	if err := c.post(ctx, "/api/query/search", question, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Ask returns the server's grounded answer.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	var out struct {
		Answer string `json:"answer"`
	}
	if err := c.post(ctx, "/api/query/ask", question, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

func (c *Client) post(ctx context.Context, path, question string, out any) error {
	body, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, e.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}
	return json.Unmarshal(data, out)
}
