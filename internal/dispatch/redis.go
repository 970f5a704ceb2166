package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
	"github.com/millionx-hackathon/educational-voice-agent/internal/metrics"
)

const popTimeout = 5 * time.Second

// Redis pushes jobs onto a list so that any replica running Run can pick
// them up.
type Redis struct {
	client  redis.UniversalClient
	key     string
	handler Handler
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

// ConnectRedis parses url, configures the pool and verifies connectivity.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = popTimeout + 3*time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedis(client redis.UniversalClient, key string, handler Handler, log logrus.FieldLogger, m *metrics.Metrics) *Redis {
	return &Redis{client: client, key: key, handler: handler, log: log, metrics: m}
}

// Dispatch serializes call and pushes it onto the queue list.
func (d *Redis) Dispatch(ctx context.Context, call domain.Call) error {
	payload, err := json.Marshal(call)
	if err != nil {
		return err
	}
	if err := d.client.LPush(ctx, d.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue summary job: %w", err)
	}
	d.metrics.RecordDispatch(PathRedis)
	return nil
}

// Run pops and executes jobs until ctx is cancelled.
func (d *Redis) Run(ctx context.Context) error {
	d.log.WithField("key", d.key).Info("summary worker listening")
	for {
		if ctx.Err() != nil {
			return nil
		}
		res, err := d.client.BRPop(ctx, popTimeout, d.key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			d.log.WithError(err).Warn("summary queue pop failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		// BRPOP replies with [key, value].
		if len(res) != 2 {
			continue
		}
		call, err := decodeCall(res[1])
		if err != nil {
			d.log.WithError(err).Error("dropping malformed summary job")
			continue
		}
		run(context.WithoutCancel(ctx), d.handler, call, d.log)
	}
}

func decodeCall(payload string) (domain.Call, error) {
	var call domain.Call
	if err := json.Unmarshal([]byte(payload), &call); err != nil {
		return domain.Call{}, err
	}
	if call.CallID == "" {
		return domain.Call{}, errors.New("job has no callId")
	}
	return call, nil
}
