// Package orchestrator drives a phone call through its lifecycle: it creates
// the remote voice-AI session when a call arrives, bridges the caller to it,
// and hands the call to the summarizer exactly once when it ends.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
	"github.com/millionx-hackathon/educational-voice-agent/internal/logging"
	"github.com/millionx-hackathon/educational-voice-agent/internal/metrics"
	"github.com/millionx-hackathon/educational-voice-agent/internal/session"
)

const (
	toolName        = "searchTextbook"
	toolDescription = "Searches the textbook to find relevant information to answer the student's question. Use this tool when the student asks about any topic from their textbook or course material."
	toolPath        = "/api/rag/query"
	streamEndedPath = "/api/twilio/stream-ended"

	firstSpeakerAgent = "FIRST_SPEAKER_AGENT"
	mediumTwilio      = "twilio"

	// StatusCompleted is the only call status treated as terminal.
	StatusCompleted = "completed"
)

// SessionCreator is the subset of domain.VoiceProvider used here.
type SessionCreator interface {
	CreateSession(ctx context.Context, req domain.RemoteSessionRequest) (domain.RemoteSession, error)
}

// Config holds the remote session parameters.
type Config struct {
	SystemPrompt  string
	Model         string
	Voice         string
	Temperature   float64
	CreateTimeout time.Duration
}

// IncomingCall is a telephony incoming-call notification.
type IncomingCall struct {
	CallID string
	From   string
	// BaseURL is the externally reachable address of this service, used to
	// build the tool and stream-ended callbacks.
	BaseURL string
}

type Orchestrator struct {
	registry   *session.Registry
	voice      SessionCreator
	dispatcher domain.Dispatcher
	cfg        Config
	log        logrus.FieldLogger
	metrics    *metrics.Metrics
}

func New(registry *session.Registry, voice SessionCreator, dispatcher domain.Dispatcher, cfg Config, log logrus.FieldLogger, m *metrics.Metrics) *Orchestrator {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.CreateTimeout <= 0 {
		cfg.CreateTimeout = 30 * time.Second
	}
	return &Orchestrator{
		registry:   registry,
		voice:      voice,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log.WithField("component", "orchestrator"),
		metrics:    m,
	}
}

// HandleIncomingCall creates and registers a remote session for the call and
// returns markup bridging the caller to it. Any failure yields the apology
// markup; the caller never sees an error.
func (o *Orchestrator) HandleIncomingCall(ctx context.Context, in IncomingCall) CallControl {
	log := logging.WithCall(o.log, in.CallID).WithField("from", in.From)
	if strings.TrimSpace(in.CallID) == "" {
		log.Warn("incoming call without a call id")
		o.metrics.RecordSession("degraded")
		return Apology()
	}
	base := strings.TrimRight(in.BaseURL, "/")

	existing, err := o.registry.Create(in.CallID, in.From)
	if errors.Is(err, session.ErrDuplicateSession) {
		o.metrics.RecordSession("duplicate")
		if existing.JoinURL != "" {
			log.Info("duplicate incoming call, bridging to the existing session")
			return Bridge(existing.JoinURL, base+streamEndedPath)
		}
		log.Warn("duplicate incoming call while the session is still being created")
		return Apology()
	}

	createCtx, cancel := context.WithTimeout(ctx, o.cfg.CreateTimeout)
	defer cancel()
	remote, err := o.voice.CreateSession(createCtx, o.sessionRequest(in.CallID, base))
	if err != nil {
		// The record never reached ACTIVE; drop it without a summary.
		if failed, ok := o.registry.TakeForTermination(in.CallID); ok {
			failed.State = domain.StateFailed
			log.WithField("state", failed.State).WithError(err).Error("failed to create remote session")
		} else {
			log.WithError(err).Error("failed to create remote session")
		}
		o.metrics.RecordSession("failed")
		return Apology()
	}

	log = logging.WithSession(o.log, in.CallID, remote.ID).WithField("from", in.From)
	if err := o.registry.AttachRemoteSession(in.CallID, remote.ID, remote.JoinURL); err != nil {
		// A terminal event won the race and the call is already gone.
		log.WithError(err).Warn("call ended before the remote session was attached")
		o.metrics.RecordSession("degraded")
		return Hangup()
	}

	log.Info("bridging call to remote session")
	o.metrics.RecordSession("bridged")
	return Bridge(remote.JoinURL, base+streamEndedPath)
}

func (o *Orchestrator) sessionRequest(callID, base string) domain.RemoteSessionRequest {
	return domain.RemoteSessionRequest{
		ExternalCallID: callID,
		SystemPrompt:   o.cfg.SystemPrompt,
		Model:          o.cfg.Model,
		Voice:          o.cfg.Voice,
		Temperature:    o.cfg.Temperature,
		FirstSpeaker:   firstSpeakerAgent,
		Medium:         mediumTwilio,
		Tools: []domain.Tool{{
			Name:        toolName,
			Description: toolDescription,
			URL:         base + toolPath,
			Method:      "POST",
			Parameters: []domain.ToolParameter{{
				Name:        "question",
				Location:    "PARAMETER_LOCATION_BODY",
				Type:        "string",
				Description: "The student's question to search for in the textbook",
				Required:    true,
			}},
		}},
	}
}

// HandleStreamEnded terminates the call and tells the provider to hang up.
func (o *Orchestrator) HandleStreamEnded(ctx context.Context, callID, status string) CallControl {
	o.Terminate(ctx, callID, "stream-ended")
	return Hangup()
}

// HandleCallStatus acknowledges a status notification, terminating the call
// when the status is completed.
func (o *Orchestrator) HandleCallStatus(ctx context.Context, callID, status, duration string) string {
	logging.WithCall(o.log, callID).WithFields(logrus.Fields{
		"status":   status,
		"duration": duration,
	}).Debug("call status")
	if strings.EqualFold(status, StatusCompleted) {
		o.Terminate(ctx, callID, "call-status")
	}
	return "OK"
}

// Terminate removes the live record and dispatches its summary. It reports
// whether this invocation performed the termination; repeated or unknown
// ids are a no-op.
func (o *Orchestrator) Terminate(ctx context.Context, callID, reason string) bool {
	log := logging.WithCall(o.log, callID).WithField("reason", reason)
	s, ok := o.registry.TakeForTermination(callID)
	if !ok {
		log.Debug("no live session to terminate")
		return false
	}
	log = log.WithField("remote_session_id", s.RemoteSessionID)
	call := domain.Call{
		CallID:          s.ExternalCallID,
		RemoteSessionID: s.RemoteSessionID,
		CallerID:        s.CallerID,
		StartedAt:       s.CreatedAt,
		EndedAt:         s.EndedAt,
	}
	if err := o.dispatcher.Dispatch(ctx, call); err != nil {
		log.WithError(err).Error("failed to dispatch summary job")
		o.metrics.RecordSession("failed")
		return true
	}
	o.metrics.RecordSession("terminated")
	log.Info("call terminated, summary dispatched")
	return true
}
