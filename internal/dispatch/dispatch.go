// Package dispatch hands terminated calls to the summarizer off the webhook
// path, either on an in-process worker pool or through a Redis list.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
)

// Handler processes one terminated call. It must not panic, but a panic is
// contained to the job that raised it.
type Handler func(ctx context.Context, call domain.Call)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher closed")

// Metric path labels.
const (
	PathQueued   = "queued"
	PathOverflow = "overflow"
	PathRedis    = "redis"
)

func run(ctx context.Context, h Handler, call domain.Call, log logrus.FieldLogger) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"call_id": call.CallID,
				"panic":   fmt.Sprint(r),
				"stack":   string(debug.Stack()),
			}).Error("summary job panicked")
		}
	}()
	h(ctx, call)
}
