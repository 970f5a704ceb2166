// Package summarizer turns a finished call into a persisted summary record.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
	"github.com/millionx-hackathon/educational-voice-agent/internal/generation"
	"github.com/millionx-hackathon/educational-voice-agent/internal/logging"
	"github.com/millionx-hackathon/educational-voice-agent/internal/metrics"
)

const (
	// NoTranscript stands in for an empty or unavailable transcript.
	NoTranscript = "No transcript available"
	// DefaultTopics is used when the model output carries no topics line.
	DefaultTopics = "General topics"

	topicsMarker  = "TOPICS:"
	summaryMarker = "SUMMARY:"
)

const summaryTemplate = `You are an expert at creating concise educational summaries.

Based on the following conversation transcript between a student and an AI tutor,
create a brief summary including:
1. Main topics discussed (comma-separated list)
2. Key questions the student asked
3. Overall summary (2-3 sentences)

Format your response as:
TOPICS: [topics]
SUMMARY: [summary]

Transcript:
%s
`

const structuredInstructions = `You are an expert at creating concise educational summaries.
You will receive a conversation transcript between a student and an AI tutor.
Return the main topics discussed and an overall summary of two to three sentences
that mentions the key questions the student asked.`

// callSummary is the structured-output shape requested from the generator.
type callSummary struct {
	Topics  []string `json:"topics" jsonschema:"description=Main topics discussed"`
	Summary string   `json:"summary" jsonschema:"description=Overall summary in two to three sentences"`
}

var callSummarySchema = generation.Schema[callSummary]()

// TranscriptSource reads the history of a remote voice session.
type TranscriptSource interface {
	FetchTranscript(ctx context.Context, remoteSessionID string) ([]domain.TranscriptMessage, error)
}

// Options tunes the summarizer.
type Options struct {
	// Structured requests JSON output when the generator supports it.
	Structured bool
	// Timeout bounds one summarization, fetch and generation included.
	Timeout time.Duration
}

type Summarizer struct {
	transcripts TranscriptSource
	generator   domain.Generator
	store       domain.SummaryStore
	opts        Options
	log         logrus.FieldLogger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func New(transcripts TranscriptSource, generator domain.Generator, store domain.SummaryStore, opts Options, log logrus.FieldLogger, m *metrics.Metrics) *Summarizer {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	return &Summarizer{
		transcripts: transcripts,
		generator:   generator,
		store:       store,
		opts:        opts,
		log:         log.WithField("component", "summarizer"),
		metrics:     m,
		now:         time.Now,
	}
}

// Summarize produces and persists the summary record for call. It never
// fails: any error while fetching or generating yields a degraded record
// whose summary text states the reason.
func (s *Summarizer) Summarize(ctx context.Context, call domain.Call) domain.Summary {
	log := logging.WithSession(s.log, call.CallID, call.RemoteSessionID)
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	record := domain.Summary{
		CallID:          call.CallID,
		RemoteSessionID: call.RemoteSessionID,
		CallerID:        call.CallerID,
		CallStartedAt:   call.StartedAt,
		CallEndedAt:     call.EndedAt,
	}
	if record.CallEndedAt.IsZero() {
		record.CallEndedAt = s.now()
	}

	topics, summary, err := s.enrich(ctx, call.RemoteSessionID, log)
	outcome := "ok"
	if err != nil {
		log.WithError(err).Error("summarization failed, persisting degraded record")
		record.SummaryText = "Error processing call: " + err.Error()
		record.Degraded = true
		outcome = "degraded"
	} else {
		record.Topics = topics
		record.SummaryText = summary
	}

	// Persist with a fresh budget so a timed-out enrichment still records.
	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer saveCancel()
	saved, err := s.store.Save(saveCtx, record)
	if err != nil {
		log.WithError(err).Error("failed to persist summary record")
		s.metrics.RecordSummary("lost")
		return record
	}
	s.metrics.RecordSummary(outcome)
	log.WithFields(logrus.Fields{"summary_id": saved.ID, "degraded": saved.Degraded}).Info("summary saved")
	return saved
}

func (s *Summarizer) enrich(ctx context.Context, remoteSessionID string, log logrus.FieldLogger) (string, string, error) {
	transcript, err := s.transcript(ctx, remoteSessionID, log)
	if err != nil {
		return "", "", err
	}
	if sg, ok := s.generator.(domain.StructuredGenerator); ok && s.opts.Structured {
		var out callSummary
		err := sg.GenerateJSON(ctx, "CallSummary", callSummarySchema, structuredInstructions, "Transcript:\n"+transcript, &out)
		if err == nil && strings.TrimSpace(out.Summary) != "" {
			topics := strings.Join(nonBlank(out.Topics), ", ")
			if topics == "" {
				topics = DefaultTopics
			}
			return topics, strings.TrimSpace(out.Summary), nil
		}
		if ctx.Err() != nil {
			return "", "", fmt.Errorf("generate summary: %w", ctx.Err())
		}
		log.WithError(err).Warn("structured summary failed, falling back to text template")
	}
	response, err := s.generator.Generate(ctx, "", fmt.Sprintf(summaryTemplate, transcript))
	if err != nil {
		return "", "", fmt.Errorf("generate summary: %w", err)
	}
	topics, summary := ParseSummary(response)
	return topics, summary, nil
}

// transcript fetches and flattens the session history. A missing session id,
// an unavailable history or an empty one all yield NoTranscript.
func (s *Summarizer) transcript(ctx context.Context, remoteSessionID string, log logrus.FieldLogger) (string, error) {
	if remoteSessionID == "" {
		log.Warn("call ended before a remote session was attached")
		return NoTranscript, nil
	}
	messages, err := s.transcripts.FetchTranscript(ctx, remoteSessionID)
	if err != nil {
		if errors.Is(err, domain.ErrTranscriptUnavailable) {
			log.WithError(err).Warn("transcript unavailable")
			return NoTranscript, nil
		}
		return "", fmt.Errorf("fetch transcript: %w", err)
	}
	text := FormatTranscript(messages)
	if strings.TrimSpace(text) == "" {
		log.Warn("transcript is empty")
		return NoTranscript, nil
	}
	return text, nil
}

// FormatTranscript renders one "role: text" line per message, skipping
// messages without text.
func FormatTranscript(messages []domain.TranscriptMessage) string {
	var b strings.Builder
	for _, m := range messages {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		role := m.Role
		if role == "" {
			role = "unknown"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// ParseSummary splits a TOPICS:/SUMMARY: response. Topics are the text
// between the markers and fall back to DefaultTopics unless TOPICS: precedes
// SUMMARY:. Without a SUMMARY: marker the whole response is the summary.
func ParseSummary(response string) (topics, summary string) {
	topicsAt := strings.Index(response, topicsMarker)
	summaryAt := strings.Index(response, summaryMarker)

	topics = DefaultTopics
	if topicsAt >= 0 && summaryAt > topicsAt {
		if t := strings.TrimSpace(response[topicsAt+len(topicsMarker) : summaryAt]); t != "" {
			topics = t
		}
	}
	if summaryAt >= 0 {
		return topics, strings.TrimSpace(response[summaryAt+len(summaryMarker):])
	}
	return topics, response
}

func nonBlank(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
