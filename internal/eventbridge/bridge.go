// Package eventbridge publishes session lifecycle events onto Redis
// pub/sub so external observers (dashboards, audit sinks) can watch
// helper activity without polling the diagnostics server.
package eventbridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "smime:events:"

// Sink is the narrow interface internal/engine depends on, so a
// Registry can be wired to a Bridge (or a test double) without an
// import on *redis.Client.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Bridge wraps the Redis client with the connection diagnostics and
// timeout conventions used across this codebase.
type Bridge struct {
	*redis.Client
	log *zap.Logger
}

var _ Sink = (*Bridge)(nil)

// NewBridge creates a Redis client and probes connectivity once at
// startup, logging the outcome without failing construction — event
// publication is best-effort and must not gate helper operations.
func NewBridge(addr string, db int, log *zap.Logger) *Bridge {
	opts := &redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	}

	b := &Bridge{
		Client: redis.NewClient(opts),
		log:    log.Named("eventbridge"),
	}

	log.Info("eventbridge redis client initialized",
		zap.String("addr", addr),
		zap.Int("db", db),
	)

	b.Ping(context.TODO())
	return b
}

func (b *Bridge) Close() error { return b.Client.Close() }

// Ping probes connectivity with a bounded timeout and logs the result;
// it never returns an error since publication failures are non-fatal.
func (b *Bridge) Ping(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	opts := b.Options()
	log := b.log.With(
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
		zap.Int("max_retries", opts.MaxRetries),
	)

	start := time.Now()
	err := b.Client.Ping(ctx).Err()
	elapsed := time.Since(start)

	if err != nil {
		log.Debug("connection failed", zap.Error(err), zap.Duration("ping_rtt", elapsed))
	} else {
		log.Info("connection established", zap.Duration("ping_rtt", elapsed))
	}
}

// Event is one published lifecycle notification for a session. Kind is
// "status", "colon" or "done"; code carries the status name ("" for
// colon and done events); rest carries the status argument string, the
// colon record, or (for a done event) the terminal error text, if any.
type Event struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Code      string `json:"code,omitempty"`
	Rest      string `json:"rest,omitempty"`
}

// Publish emits ev on the per-session channel "smime:events:<id>". The
// returned error is informational only — callers that treat this as a
// side channel should log it at Debug and otherwise ignore it, never
// let it affect protocol handling.
func (b *Bridge) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.Client.Publish(ctx, channelPrefix+ev.SessionID, payload).Err()
}

// Subscribe returns a PubSub subscribed to the per-session channel,
// for CLI/diagnostic consumers that want to tail one session live.
func (b *Bridge) Subscribe(ctx context.Context, sessionID string) *redis.PubSub {
	return b.Client.Subscribe(ctx, channelPrefix+sessionID)
}
