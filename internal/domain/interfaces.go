package domain

import (
	"context"
	"time"
)

// Document represents a single uploaded source loaded into the system.
type Document struct {
	ID         string
	SourceName string
	Content    string
}

// Passage is one indexed chunk of a source document.
// Start and End are rune offsets into the normalized document text.
type Passage struct {
	DocumentID  string
	Index       int
	Text        string
	SourceName  string
	TotalChunks int
	Start       int
	End         int
}

// SearchResult represents a matching passage with a similarity score.
type SearchResult struct {
	Passage Passage
	Score   float64
}

// SessionState is the lifecycle state of a call session.
type SessionState string

const (
	StateCreating   SessionState = "CREATING"
	StateActive     SessionState = "ACTIVE"
	StateEnding     SessionState = "ENDING"
	StateSummarized SessionState = "SUMMARIZED"
	StateFailed     SessionState = "FAILED"
)

// Session is one phone call's worth of state.
type Session struct {
	ExternalCallID  string       `json:"externalCallId"`
	RemoteSessionID string       `json:"remoteSessionId,omitempty"`
	JoinURL         string       `json:"-"`
	CallerID        string       `json:"callerIdentifier,omitempty"`
	State           SessionState `json:"state"`
	CreatedAt       time.Time    `json:"createdAt"`
	EndedAt         time.Time    `json:"endedAt,omitempty"`
}

// Call identifies a terminated call handed to the summarizer.
type Call struct {
	CallID          string    `json:"callId"`
	RemoteSessionID string    `json:"remoteSessionId"`
	CallerID        string    `json:"callerIdentifier"`
	StartedAt       time.Time `json:"startedAt"`
	EndedAt         time.Time `json:"endedAt"`
}

// Summary is the durable record produced for every terminated call.
type Summary struct {
	ID              string    `json:"id" bson:"_id,omitempty"`
	CallID          string    `json:"callId" bson:"callId"`
	RemoteSessionID string    `json:"ultravoxCallId" bson:"ultravoxCallId"`
	CallerID        string    `json:"callerNumber" bson:"callerNumber"`
	SummaryText     string    `json:"summary" bson:"summary"`
	Topics          string    `json:"topicsDiscussed" bson:"topicsDiscussed"`
	Degraded        bool      `json:"degraded" bson:"degraded"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
	CallStartedAt   time.Time `json:"callStartedAt,omitempty" bson:"callStartedAt,omitempty"`
	CallEndedAt     time.Time `json:"callEndedAt,omitempty" bson:"callEndedAt,omitempty"`
}

// TranscriptMessage is one role/text pair of a remote session history.
type TranscriptMessage struct {
	Role string
	Text string
}

// ToolParameter declares one dynamic parameter of a remote-session tool.
type ToolParameter struct {
	Name        string
	Location    string
	Type        string
	Description string
	Required    bool
}

// Tool describes an HTTP capability the remote session may call mid-call.
type Tool struct {
	Name        string
	Description string
	Parameters  []ToolParameter
	URL         string
	Method      string
}

// RemoteSessionRequest carries everything needed to create a voice-AI session.
type RemoteSessionRequest struct {
	ExternalCallID string
	SystemPrompt   string
	Model          string
	Voice          string
	Temperature    float64
	FirstSpeaker   string
	Medium         string
	Tools          []Tool
}

// RemoteSession is the voice-AI provider's answer to a creation request.
type RemoteSession struct {
	ID      string
	JoinURL string
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Chunker splits documents into passages suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Passage, error)
}

// VectorStore persists passage vectors and supports similarity search.
// Results scoring below minScore are never returned.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, passages []Passage, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int, minScore float64) ([]SearchResult, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// Generator produces text for a prompt. An empty system frame is allowed.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// StructuredGenerator is implemented by generators able to return JSON
// conforming to a schema. out must be a pointer.
type StructuredGenerator interface {
	GenerateJSON(ctx context.Context, name string, schema map[string]any, system, user string, out any) error
}

// VoiceProvider creates remote voice-AI sessions and reads their history.
type VoiceProvider interface {
	CreateSession(ctx context.Context, req RemoteSessionRequest) (RemoteSession, error)
	FetchTranscript(ctx context.Context, remoteSessionID string) ([]TranscriptMessage, error)
}

// SummaryStore persists summary records. Save upserts by CallID.
type SummaryStore interface {
	Save(ctx context.Context, summary Summary) (Summary, error)
	Get(ctx context.Context, id string) (Summary, error)
	GetByCallID(ctx context.Context, callID string) (Summary, error)
	List(ctx context.Context) ([]Summary, error)
	ListByCaller(ctx context.Context, callerID string) ([]Summary, error)
}

// Dispatcher hands a terminated call to the summarizer without blocking.
type Dispatcher interface {
	Dispatch(ctx context.Context, call Call) error
}
