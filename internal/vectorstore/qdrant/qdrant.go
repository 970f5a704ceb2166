package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
)

// pointNamespace derives stable point ids so re-ingesting a passage overwrites it.
var pointNamespace = uuid.MustParse("6f0b7c8e-3a51-4c1e-9a0d-5d2f6b1e8c47")

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection if missing.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// PointID returns the Qdrant point id for a passage.
func PointID(p domain.Passage) string {
	return uuid.NewSHA1(pointNamespace, []byte(p.DocumentID+":"+strconv.Itoa(p.Index))).String()
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, nil)
	if err == nil {
		return nil
	}
	if status != http.StatusNotFound {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	_, err = s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
	return err
}

func (s *Storage) Upsert(ctx context.Context, passages []domain.Passage, vectors [][]float64) error {
	if len(passages) != len(vectors) {
		return errors.New("passages and vectors length mismatch")
	}
	if len(passages) == 0 {
		return nil
	}
	points := make([]map[string]any, len(passages))
	for i, p := range passages {
		points[i] = map[string]any{
			"id":     PointID(p),
			"vector": vectors[i],
			"payload": map[string]any{
				"document_id":  p.DocumentID,
				"chunk_index":  p.Index,
				"filename":     p.SourceName,
				"total_chunks": p.TotalChunks,
				"text":         p.Text,
				"start":        p.Start,
				"end":          p.End,
			},
		}
	}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
	return err
}

type searchPayload struct {
	DocumentID  string `json:"document_id"`
	ChunkIndex  int    `json:"chunk_index"`
	Filename    string `json:"filename"`
	TotalChunks int    `json:"total_chunks"`
	Text        string `json:"text"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int, minScore float64) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":          vector,
		"limit":           topK,
		"with_payload":    true,
		"score_threshold": minScore,
	}
	var resp struct {
		Result []struct {
			Score   float64       `json:"score"`
			Payload searchPayload `json:"payload"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		// Qdrant already filters by score_threshold; keep the contract if a
		// proxy or older server ignores it.
		if r.Score < minScore {
			continue
		}
		results = append(results, domain.SearchResult{
			Passage: domain.Passage{
				DocumentID:  r.Payload.DocumentID,
				Index:       r.Payload.ChunkIndex,
				Text:        r.Payload.Text,
				SourceName:  r.Payload.Filename,
				TotalChunks: r.Payload.TotalChunks,
				Start:       r.Payload.Start,
				End:         r.Payload.End,
			},
			Score: r.Score,
		})
	}
	return results, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Clear drops the collection. A missing collection is not an error.
func (s *Storage) Clear(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	return nil
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

// do sends a JSON request and decodes the response into out when non-nil.
// The returned status is zero when the request never reached the server.
func (s *Storage) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("qdrant %s %s: decode response: %w", method, url, err)
		}
	}
	return resp.StatusCode, nil
}
