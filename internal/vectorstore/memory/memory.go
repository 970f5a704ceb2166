package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
)

// Storage is an in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	norms     []float64
	passages  []domain.Passage
	index     map[string]int
}

func NewStorage() *Storage { return &Storage{index: make(map[string]int)} }

// Init sets the vector dimension. Re-initializing with the same dimension
// keeps the stored passages; a different dimension clears them.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == dimension {
		return nil
	}
	s.dimension = dimension
	s.reset()
	return nil
}

// Upsert stores passages, replacing any previously stored passage with the
// same document id and index.
func (s *Storage) Upsert(_ context.Context, passages []domain.Passage, vectors [][]float64) error {
	if len(passages) != len(vectors) {
		return errors.New("passages and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return errors.New("store not initialized")
	}
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for i, p := range passages {
		key := pointKey(p)
		if j, ok := s.index[key]; ok {
			s.passages[j] = p
			s.vectors[j] = vectors[i]
			s.norms[j] = norm(vectors[i])
			continue
		}
		s.index[key] = len(s.passages)
		s.passages = append(s.passages, p)
		s.vectors = append(s.vectors, vectors[i])
		s.norms = append(s.norms, norm(vectors[i]))
	}
	return nil
}

// Search returns at most topK passages scoring at least minScore, best first.
func (s *Storage) Search(_ context.Context, vector []float64, topK int, minScore float64) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	qn := norm(vector)
	if qn == 0 {
		return nil, nil
	}
	var results []domain.SearchResult
	for i := range s.vectors {
		if s.norms[i] == 0 {
			continue
		}
		score := dot(s.vectors[i], vector) / (s.norms[i] * qn)
		if score < minScore {
			continue
		}
		results = append(results, domain.SearchResult{Passage: s.passages[i], Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *Storage) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passages), nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

func (s *Storage) reset() {
	s.vectors = nil
	s.norms = nil
	s.passages = nil
	s.index = make(map[string]int)
}

func pointKey(p domain.Passage) string {
	return p.DocumentID + ":" + strconv.Itoa(p.Index)
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}
