//go:build linux

package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hexgate/smime-engine/internal/eventbridge"
)

// Registry owns every in-flight Session for one helper binary and
// enforces a dual-phase concurrency gate, adapted from a process
// supervisor's warm-up/active slot pools: here "warm-up" is session
// construction (spawn + env OPTIONs, still synchronous and cheap to
// abandon) and "active" is a session that has been registered with the
// host loop and is exchanging data/status with the helper.
//
// Unlike a restart-oriented supervisor, sessions here are strictly
// one-shot per operation: there is no restart/cooldown scheduling, and
// a Session's slot is released for good once its Done() fires.
type Registry struct {
	log        *zap.Logger
	helperPath string
	env        []string
	trace      *traceRegistry

	preflight *slotPool // staging/spawning
	onflight  *slotPool // registered with the host loop and running

	mu       sync.Mutex
	sessions map[SessionID]*Session

	metricsMu sync.RWMutex
	metrics   *Metrics

	sinkMu sync.RWMutex
	sink   eventbridge.Sink
}

// NewRegistry constructs a Registry bounding concurrent helper sessions:
// maxPreflight limits sessions under construction, maxOnflight limits
// sessions actively driving the host loop.
func NewRegistry(log *zap.Logger, helperPath string, env []string, maxPreflight, maxOnflight int64) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log:        log.Named("engine.registry"),
		helperPath: helperPath,
		env:        env,
		trace:      newTraceRegistry(),
		preflight:  newSlotPool(maxPreflight),
		onflight:   newSlotPool(maxOnflight),
		sessions:   make(map[SessionID]*Session),
	}
}

// SetMetrics attaches a metrics collector; subsequently opened sessions
// report to it. A nil m disables collection.
func (r *Registry) SetMetrics(m *Metrics) {
	r.metricsMu.Lock()
	r.metrics = m
	r.metricsMu.Unlock()
}

func (r *Registry) currentMetrics() *Metrics {
	r.metricsMu.RLock()
	defer r.metricsMu.RUnlock()
	return r.metrics
}

// SetEventSink attaches a best-effort event publisher; every status,
// colon and done notification on subsequently opened sessions is also
// forwarded to it. A nil sink disables forwarding.
func (r *Registry) SetEventSink(sink eventbridge.Sink) {
	r.sinkMu.Lock()
	r.sink = sink
	r.sinkMu.Unlock()
}

func (r *Registry) currentSink() eventbridge.Sink {
	r.sinkMu.RLock()
	defer r.sinkMu.RUnlock()
	return r.sink
}

// publish forwards ev to the configured sink, if any, logging failures
// at Debug: this is a side channel and must never affect the session.
func (r *Registry) publish(id SessionID, ev eventbridge.Event) {
	sink := r.currentSink()
	if sink == nil {
		return
	}
	ev.SessionID = string(id)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := sink.Publish(ctx, ev); err != nil {
		r.log.Debug("event publish failed", zap.String("session_id", string(id)), zap.Error(err))
	}
}

// Open blocks until a preflight slot is available, then spawns and
// initialises a new Session. The returned Session is in StateNew; the
// caller must stage an operation and call Activate to move it into the
// active phase (or Abandon to release the preflight slot without ever
// starting it).
func (r *Registry) Open(statusFn StatusHandler, colonFn ColonHandler) (*Session, *Error) {
	id := newSessionID()
	r.preflight.acquire(id)

	wrappedStatus := func(code StatusCode, name, rest string) {
		r.publish(id, eventbridge.Event{Kind: "status", Code: name, Rest: rest})
		if statusFn != nil {
			statusFn(code, name, rest)
		}
	}
	wrappedColon := func(record []byte) int {
		r.publish(id, eventbridge.Event{Kind: "colon", Rest: string(record)})
		if colonFn != nil {
			return colonFn(record)
		}
		return 0
	}

	cfg := Config{
		HelperPath: r.helperPath,
		Env:        r.env,
		Logger:     r.log,
		StatusFn:   wrappedStatus,
		ColonFn:    wrappedColon,
		Trace:      r.trace.Get(id),
		Metrics:    r.currentMetrics(),
	}

	s, err := New(cfg)
	if err != nil {
		r.preflight.release(id)
		r.trace.Drop(id)
		if m := r.currentMetrics(); m != nil {
			m.Operation("", "error")
		}
		return nil, err
	}
	s.ID = id

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	return s, nil
}

// Abandon releases a session's preflight slot without ever activating
// it — used when staging fails before Start is called.
func (r *Registry) Abandon(s *Session) {
	s.teardown()
	r.preflight.release(s.ID)

	r.mu.Lock()
	delete(r.sessions, s.ID)
	r.mu.Unlock()
	r.trace.Drop(s.ID)

	if m := r.currentMetrics(); m != nil {
		m.Operation(s.Command(), "error")
	}
}

// Activate promotes a staged session into the active phase: it first
// guarantees an onflight slot is available (so a session is never
// started without capacity to run to completion), registers all channels
// and writes the command, releases the preflight slot, then releases the
// onflight slot once Done() fires.
func (r *Registry) Activate(s *Session, cbs Callbacks) *Error {
	r.onflight.acquire(s.ID)

	if err := s.Start(cbs); err != nil {
		r.onflight.release(s.ID)
		r.preflight.release(s.ID)
		r.mu.Lock()
		delete(r.sessions, s.ID)
		r.mu.Unlock()
		r.trace.Drop(s.ID)
		if m := r.currentMetrics(); m != nil {
			m.Operation(s.Command(), "error")
		}
		return err
	}

	r.preflight.release(s.ID)

	go func() {
		<-s.Done()
		r.onflight.release(s.ID)

		result := "ok"
		if serr := s.Err(); serr != nil {
			result = "error"
		}
		if m := r.currentMetrics(); m != nil {
			m.Operation(s.Command(), result)
			m.ObserveOperation(s.Command(), time.Since(s.StartedAt()).Seconds())
		}

		var rest string
		if serr := s.Err(); serr != nil {
			rest = serr.Error()
		}
		r.publish(s.ID, eventbridge.Event{Kind: "done", Rest: rest})

		r.mu.Lock()
		delete(r.sessions, s.ID)
		r.mu.Unlock()
		r.trace.Drop(s.ID)
	}()

	return nil
}

// Get returns the session for id, if it is still tracked.
func (r *Registry) Get(id SessionID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// SessionSnapshot is the point-in-time view of a tracked session
// returned by List and GetSnapshot.
type SessionSnapshot struct {
	ID         SessionID
	State      State
	Command    string
	Pid        int
	StartedAt  time.Time
	LastStatus string
}

func snapshot(s *Session) SessionSnapshot {
	return SessionSnapshot{
		ID:         s.ID,
		State:      s.State(),
		Command:    s.Command(),
		Pid:        s.Pid(),
		StartedAt:  s.StartedAt(),
		LastStatus: s.LastStatus(),
	}
}

// GetSnapshot returns the current snapshot of id, if tracked.
func (r *Registry) GetSnapshot(id SessionID) (SessionSnapshot, bool) {
	s, ok := r.Get(id)
	if !ok {
		return SessionSnapshot{}, false
	}
	return snapshot(s), true
}

// List returns a snapshot of every currently tracked session.
func (r *Registry) List() []SessionSnapshot {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	out := make([]SessionSnapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, snapshot(s))
	}
	return out
}

// Counts reports current preflight/onflight occupancy, for metrics.
func (r *Registry) Counts() (preflight, onflight int64) {
	return r.preflight.current(), r.onflight.current()
}

// Trace returns the protocol trace buffer for id, if tracked.
func (r *Registry) Trace(id SessionID, n int) []string {
	return r.trace.Get(id).Lines(n)
}

// CloseAll tears down every currently tracked session's channels, for
// graceful shutdown. Grounded on the swap-the-map-then-iterate pattern:
// the sessions map is swapped out under the lock so concurrent Open/
// Activate/Abandon calls never observe a partially-torn-down registry,
// then each session is torn down outside the lock.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[SessionID]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.teardown()
		r.trace.Drop(s.ID)
	}
}
