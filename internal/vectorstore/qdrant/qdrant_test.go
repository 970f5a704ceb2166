package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
)

type fakeQdrant struct {
	mu       sync.Mutex
	exists   bool
	created  map[string]any
	upserted []map[string]any
	search   map[string]any
}

func (f *fakeQdrant) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/collections/passages", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "secret" {
			t.Errorf("missing api-key header")
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			if !f.exists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"result":{"status":"green"}}`))
		case http.MethodPut:
			_ = json.NewDecoder(r.Body).Decode(&f.created)
			f.exists = true
			_, _ = w.Write([]byte(`{"result":true}`))
		case http.MethodDelete:
			if !f.exists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			f.exists = false
			_, _ = w.Write([]byte(`{"result":true}`))
		}
	})
	mux.HandleFunc("/collections/passages/points", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Points []map[string]any `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.upserted = append(f.upserted, body.Points...)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	})
	mux.HandleFunc("/collections/passages/points/search", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&f.search)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"result":[
			{"id":"a","score":0.91,"payload":{"document_id":"doc-1","chunk_index":4,"filename":"bio.pdf","total_chunks":9,"text":"Cells divide by mitosis."}},
			{"id":"b","score":0.65,"payload":{"document_id":"doc-1","chunk_index":5,"filename":"bio.pdf","total_chunks":9,"text":"Below threshold."}}
		]}`))
	})
	mux.HandleFunc("/collections/passages/points/count", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"count":42}}`))
	})
	return mux
}

func newTestStorage(t *testing.T) (*Storage, *fakeQdrant) {
	t.Helper()
	f := &fakeQdrant{}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewStorage(Config{URL: srv.URL, APIKey: "secret", Collection: "passages"}), f
}

func TestInitCreatesMissingCollection(t *testing.T) {
	s, f := newTestStorage(t)
	if err := s.Init(context.Background(), 1536); err != nil {
		t.Fatalf("Init: %v", err)
	}
	vectors, _ := f.created["vectors"].(map[string]any)
	if vectors["size"] != float64(1536) || vectors["distance"] != "Cosine" {
		t.Fatalf("created=%v", f.created)
	}
	f.created = nil
	if err := s.Init(context.Background(), 1536); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	if f.created != nil {
		t.Fatal("existing collection was recreated")
	}
}

func TestUpsertPayloadAndStableIDs(t *testing.T) {
	s, f := newTestStorage(t)
	p := domain.Passage{DocumentID: "doc-1", Index: 2, Text: "Osmosis.", SourceName: "bio.pdf", TotalChunks: 7}
	if err := s.Upsert(context.Background(), []domain.Passage{p}, [][]float64{{0.1, 0.2}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(f.upserted) != 1 {
		t.Fatalf("upserted %d points", len(f.upserted))
	}
	pt := f.upserted[0]
	if pt["id"] != PointID(p) {
		t.Errorf("id=%v want %s", pt["id"], PointID(p))
	}
	payload := pt["payload"].(map[string]any)
	if payload["document_id"] != "doc-1" || payload["chunk_index"] != float64(2) ||
		payload["filename"] != "bio.pdf" || payload["total_chunks"] != float64(7) || payload["text"] != "Osmosis." {
		t.Errorf("payload=%v", payload)
	}
	if PointID(p) != PointID(domain.Passage{DocumentID: "doc-1", Index: 2}) {
		t.Error("point id depends on more than document and index")
	}
}

func TestSearchSendsThresholdAndFilters(t *testing.T) {
	s, f := newTestStorage(t)
	res, err := s.Search(context.Background(), []float64{1, 0}, 5, 0.7)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if f.search["score_threshold"] != 0.7 || f.search["limit"] != float64(5) {
		t.Errorf("request=%v", f.search)
	}
	if len(res) != 1 {
		t.Fatalf("got %d results", len(res))
	}
	got := res[0].Passage
	if got.DocumentID != "doc-1" || got.Index != 4 || got.SourceName != "bio.pdf" || got.TotalChunks != 9 {
		t.Errorf("passage=%+v", got)
	}
}

func TestCountAndClear(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	n, err := s.Count(ctx)
	if err != nil || n != 42 {
		t.Fatalf("Count=%d err=%v", n, err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear on missing collection: %v", err)
	}
}
