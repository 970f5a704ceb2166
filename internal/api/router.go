// Package api exposes the HTTP surface of the service: telephony webhooks,
// the voice-AI tool endpoint, textbook ingestion, diagnostics and summaries.
package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
	"github.com/millionx-hackathon/educational-voice-agent/internal/orchestrator"
	"github.com/millionx-hackathon/educational-voice-agent/internal/service"
)

// CallLifecycle handles telephony webhook events.
type CallLifecycle interface {
	HandleIncomingCall(ctx context.Context, in orchestrator.IncomingCall) orchestrator.CallControl
	HandleStreamEnded(ctx context.Context, callID, status string) orchestrator.CallControl
	HandleCallStatus(ctx context.Context, callID, status, duration string) string
}

// SessionLister lists live calls.
type SessionLister interface {
	Snapshot() []domain.Session
	Len() int
}

// Retriever answers questions from the textbook corpus.
type Retriever interface {
	Answer(ctx context.Context, question string) (string, error)
	SimpleQuery(ctx context.Context, question string) (string, error)
	Search(ctx context.Context, question string) ([]domain.SearchResult, error)
}

// Ingester indexes uploaded textbooks.
type Ingester interface {
	Ingest(ctx context.Context, req service.IngestRequest) (service.IngestResult, error)
	Stats(ctx context.Context) (service.IndexStats, error)
	Reset(ctx context.Context) error
}

// SummaryGenerator summarizes a call on demand.
type SummaryGenerator interface {
	Summarize(ctx context.Context, call domain.Call) domain.Summary
}

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the HTTP surface.
type Options struct {
	// PublicBaseURL overrides callback address resolution when set.
	PublicBaseURL string
	// ToolRatePerSecond bounds the voice-AI tool endpoint. Zero disables the limit.
	ToolRatePerSecond int
	// MaxUploadBytes bounds one textbook upload.
	MaxUploadBytes int64
}

// Deps groups everything the handlers need.
type Deps struct {
	Calls      CallLifecycle
	Sessions   SessionLister
	Retriever  Retriever
	Ingester   Ingester
	Summaries  domain.SummaryStore
	Summarizer SummaryGenerator
	Options    Options
	Log        logrus.FieldLogger
}

// Register mounts every route on app.
func Register(app *fiber.App, d Deps) {
	log := d.Log.WithField("component", "api")

	twilio := &TwilioHandler{calls: d.Calls, sessions: d.Sessions, publicBaseURL: d.Options.PublicBaseURL, log: log}
	tw := app.Group("/api/twilio")
	tw.Post("/incoming-call", twilio.IncomingCall)
	tw.Post("/stream-ended", twilio.StreamEnded)
	tw.Post("/call-status", twilio.CallStatus)
	tw.Get("/active-calls", twilio.ActiveCalls)

	var limiter *rate.Limiter
	if d.Options.ToolRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(d.Options.ToolRatePerSecond), d.Options.ToolRatePerSecond*2)
	}
	tool := &ToolHandler{retriever: d.Retriever, limiter: limiter, log: log}
	app.Post("/api/rag/query", tool.Query)

	query := &QueryHandler{retriever: d.Retriever, log: log}
	q := app.Group("/api/query")
	q.Post("/ask", query.Ask)
	q.Post("/simple", query.Simple)
	q.Post("/search", query.Search)

	textbooks := &TextbookHandler{ingester: d.Ingester, maxUploadBytes: d.Options.MaxUploadBytes, log: log}
	tb := app.Group("/api/textbooks")
	tb.Post("/upload", textbooks.Upload)
	tb.Get("/health", textbooks.Health)
	tb.Delete("/", textbooks.Reset)

	summaries := &SummaryHandler{store: d.Summaries, summarizer: d.Summarizer, log: log}
	s := app.Group("/api/summaries")
	s.Get("/", summaries.List)
	s.Get("/caller/:caller", summaries.ListByCaller)
	s.Get("/call/:callId", summaries.GetByCall)
	s.Post("/generate", summaries.Generate)
	s.Post("/generate/:remoteId", summaries.GenerateForRemote)
	s.Get("/:id", summaries.Get)

	health := &HealthHandler{sessions: d.Sessions}
	if p, ok := d.Summaries.(Pinger); ok {
		health.store = p
	}
	app.Get("/health", health.Handle)
}
