// Package service implements textbook ingestion and the retrieval answerer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
	"github.com/millionx-hackathon/educational-voice-agent/internal/extract"
	"github.com/millionx-hackathon/educational-voice-agent/internal/metrics"
)

var (
	// ErrEmptyDocument is returned when an upload yields no indexable text.
	ErrEmptyDocument = extract.ErrEmpty
	// ErrUnsupportedDocument is returned for upload types that cannot be decoded.
	ErrUnsupportedDocument = extract.ErrUnsupported
	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question is empty")
)

const groundedFrame = `You are a helpful and patient teacher assistant for students.

Instructions:
- Answer questions based only on the provided textbook content
- Use simple, clear language that students can understand
- If the textbook content does not cover the question, say plainly that you couldn't find this information in the textbook
- Be encouraging and supportive
- Keep answers concise but complete
- Speak naturally as if talking to a student on the phone`

const simpleFrame = "You are a helpful assistant. Answer briefly."

// Extractor decodes an upload into plain text.
type Extractor interface {
	Text(data []byte, contentType, filename string) (string, error)
}

// Previewer builds a short extractive overview of a document.
type Previewer interface {
	Preview(text string, maxSentences int) string
}

// Options tunes ingestion and retrieval.
type Options struct {
	TopK int
	// SimilarityThreshold is the minimum cosine score of a returned passage.
	// Zero selects 0.7; a negative value disables the threshold.
	SimilarityThreshold float64
	BatchSize           int
	PreviewSentences    int
	CacheTTL            time.Duration
}

// IngestRequest is one uploaded file.
type IngestRequest struct {
	Data        []byte
	ContentType string
	Filename    string
}

// IngestResult describes what an ingestion wrote. On a failed ingestion
// Passages counts the passages already committed before the failing batch.
type IngestResult struct {
	DocumentID string `json:"documentId"`
	Filename   string `json:"filename"`
	Passages   int    `json:"chunks"`
	Preview    string `json:"preview,omitempty"`
}

type RAGService struct {
	extractor Extractor
	chunker   domain.Chunker
	embedder  domain.Embedder
	store     domain.VectorStore
	generator domain.Generator
	previewer Previewer
	opts      Options
	answers   *cache.Cache
	log       logrus.FieldLogger
	metrics   *metrics.Metrics

	initMu  sync.Mutex
	initDim int
}

func NewRAGService(extractor Extractor, chunker domain.Chunker, embedder domain.Embedder, store domain.VectorStore, generator domain.Generator, previewer Previewer, opts Options, log logrus.FieldLogger, m *metrics.Metrics) *RAGService {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	switch {
	case opts.SimilarityThreshold == 0:
		opts.SimilarityThreshold = 0.7
	case opts.SimilarityThreshold < 0:
		// Cosine scores never fall below -1.
		opts.SimilarityThreshold = -1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.PreviewSentences <= 0 {
		opts.PreviewSentences = 3
	}
	s := &RAGService{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		generator: generator,
		previewer: previewer,
		opts:      opts,
		log:       log.WithField("component", "rag"),
		metrics:   m,
	}
	if opts.CacheTTL > 0 {
		s.answers = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return s
}

// Ingest extracts, chunks, embeds and indexes one document. Batches are
// committed in order; the first failing batch aborts the remaining ones and
// already committed batches stay in the index.
func (s *RAGService) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	res := IngestResult{DocumentID: uuid.NewString(), Filename: req.Filename}
	log := s.log.WithFields(logrus.Fields{"document_id": res.DocumentID, "filename": req.Filename})

	text, err := s.extractor.Text(req.Data, req.ContentType, req.Filename)
	if err != nil {
		return res, err
	}
	passages, err := s.chunker.Chunk(domain.Document{ID: res.DocumentID, SourceName: req.Filename, Content: text})
	if err != nil {
		return res, fmt.Errorf("chunk document: %w", err)
	}
	if len(passages) == 0 {
		return res, ErrEmptyDocument
	}

	batches := (len(passages) + s.opts.BatchSize - 1) / s.opts.BatchSize
	for b := 0; b < batches; b++ {
		lo := b * s.opts.BatchSize
		hi := min(lo+s.opts.BatchSize, len(passages))
		if err := s.indexBatch(ctx, passages[lo:hi]); err != nil {
			log.WithError(err).WithFields(logrus.Fields{"batch": b + 1, "batches": batches}).Error("ingestion aborted")
			s.metrics.RecordIngested(res.Passages)
			return res, fmt.Errorf("ingest batch %d/%d: %w", b+1, batches, err)
		}
		res.Passages += hi - lo
		log.WithFields(logrus.Fields{"batch": b + 1, "batches": batches}).Debug("batch indexed")
	}
	s.metrics.RecordIngested(res.Passages)
	if s.answers != nil {
		s.answers.Flush()
	}
	if s.previewer != nil {
		res.Preview = s.previewer.Preview(text, s.opts.PreviewSentences)
	}
	log.WithField("passages", res.Passages).Info("document ingested")
	return res, nil
}

func (s *RAGService) indexBatch(ctx context.Context, batch []domain.Passage) error {
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embed: got %d vectors for %d passages", len(vectors), len(batch))
	}
	if err := s.ensureIndex(ctx, len(vectors[0])); err != nil {
		return err
	}
	if err := s.store.Upsert(ctx, batch, vectors); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// ensureIndex initializes the vector store once per process for the
// embedder's dimension.
func (s *RAGService) ensureIndex(ctx context.Context, dim int) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initDim == dim {
		return nil
	}
	if err := s.store.Init(ctx, dim); err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}
	s.initDim = dim
	s.log.WithFields(logrus.Fields{"embedder": s.embedder.Name(), "dimension": dim}).Info("vector index initialized")
	return nil
}

// Reset drops every indexed passage and the cached answers. The next
// ingestion or search initializes the index again.
func (s *RAGService) Reset(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear vector store: %w", err)
	}
	s.initDim = 0
	if s.answers != nil {
		s.answers.Flush()
	}
	s.log.Info("corpus index cleared")
	return nil
}

// Search returns the passages relevant to question, best first. Passages
// scoring below the similarity threshold are never returned.
func (s *RAGService) Search(ctx context.Context, question string) ([]domain.SearchResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if err := s.ensureIndex(ctx, len(vec)); err != nil {
		return nil, err
	}
	results, err := s.store.Search(ctx, vec, s.opts.TopK, s.opts.SimilarityThreshold)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return results, nil
}

// Answer produces a grounded answer for question. The generated text is
// returned as produced; failures are returned to the caller without retry.
func (s *RAGService) Answer(ctx context.Context, question string) (string, error) {
	start := time.Now()
	key := cacheKey(question)
	if s.answers != nil {
		if v, ok := s.answers.Get(key); ok {
			s.metrics.RecordRetrieval("cached", 0)
			return v.(string), nil
		}
	}
	results, err := s.Search(ctx, question)
	if err != nil {
		s.metrics.RecordRetrieval("failed", time.Since(start).Seconds())
		return "", err
	}
	answer, err := s.generator.Generate(ctx, groundedFrame, GroundedPrompt(strings.TrimSpace(question), results))
	if err != nil {
		s.metrics.RecordRetrieval("failed", time.Since(start).Seconds())
		return "", fmt.Errorf("generate answer: %w", err)
	}
	s.metrics.RecordRetrieval("answered", time.Since(start).Seconds())
	s.log.WithFields(logrus.Fields{"passages": len(results), "elapsed": time.Since(start).String()}).Info("question answered")
	if s.answers != nil {
		s.answers.Set(key, answer, cache.DefaultExpiration)
	}
	return answer, nil
}

// SimpleQuery forwards question to the generator with a minimal frame and no
// retrieval. Used for connectivity diagnostics.
func (s *RAGService) SimpleQuery(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	return s.generator.Generate(ctx, simpleFrame, question)
}

// IndexStats describes the corpus index.
type IndexStats struct {
	Passages  int
	Embedder  string
	Dimension int
}

// Stats reports the number of indexed passages and the embedder serving
// them. Dimension is zero until the embedder has produced a vector.
func (s *RAGService) Stats(ctx context.Context) (IndexStats, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return IndexStats{}, err
	}
	return IndexStats{Passages: n, Embedder: s.embedder.Name(), Dimension: s.embedder.Dimension()}, nil
}

// GroundedPrompt renders the user turn carrying the retrieved passages.
func GroundedPrompt(question string, results []domain.SearchResult) string {
	var b strings.Builder
	b.WriteString("Textbook content is below, between the dashed lines.\n")
	b.WriteString("---------------------\n")
	if len(results) == 0 {
		b.WriteString("(no relevant textbook content was found)\n")
	}
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n", i+1, r.Passage.Text)
	}
	b.WriteString("---------------------\n\n")
	b.WriteString("Using only the textbook content above, answer the student's question. ")
	b.WriteString("If the content does not answer it, say so plainly.\n\n")
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func cacheKey(question string) string {
	return strings.ToLower(strings.Join(strings.Fields(question), " "))
}
