package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// reaperInterval is how often the registry sweeps for idle sessions.
const reaperInterval = 60 * time.Second

// registryEntry pairs a managed stream with its bookkeeping for eviction.
type registryEntry struct {
	stream       *ManagedStream
	session      *ConversationSession
	lastActivity time.Time
}

// SessionRegistry is the process-wide collection of live sessions. It is
// explicitly constructed and injected into whatever transport owns
// connection lifecycle (see pkg/wire), never reached through a package
// global, so tests and multiple gateway instances can each hold their own.
type SessionRegistry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
	orch    *Orchestrator
	logger  Logger
	timeout time.Duration

	reaperCancel context.CancelFunc
	reaperDone   chan struct{}
}

// NewSessionRegistry creates a registry bound to the given orchestrator
// (used to build new ManagedStream instances) with an idle timeout taken
// from cfg.SessionTimeoutMS.
func NewSessionRegistry(orch *Orchestrator, cfg Config, logger Logger) *SessionRegistry {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	timeout := time.Duration(cfg.SessionTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionRegistry{
		entries: make(map[string]*registryEntry),
		orch:    orch,
		logger:  logger,
		timeout: timeout,
	}
}

// StartReaper launches the background eviction loop. It is not idempotent:
// calling it twice starts two loops — callers should call it exactly once
// per registry, typically right after construction.
func (r *SessionRegistry) StartReaper(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.reaperCancel = cancel
	r.reaperDone = make(chan struct{})

	go func() {
		defer close(r.reaperDone)
		ticker := time.NewTicker(reaperInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.reapOnce()
			}
		}
	}()
}

// StopReaper halts the background eviction loop and waits for it to exit.
func (r *SessionRegistry) StopReaper() {
	if r.reaperCancel == nil {
		return
	}
	r.reaperCancel()
	<-r.reaperDone
}

func (r *SessionRegistry) reapOnce() {
	now := time.Now()
	var stale []string

	r.mu.RLock()
	for id, e := range r.entries {
		if now.Sub(e.lastActivity) > r.timeout {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range stale {
		r.logger.Info("reaping idle session", "sessionID", id)
		r.Remove(id)
	}
}

// Create starts a new session and its managed stream, registers it, and
// returns both.
func (r *SessionRegistry) Create(ctx context.Context) (*ManagedStream, *ConversationSession) {
	session := r.orch.NewSessionWithDefaults(uuid.New().String())
	stream := r.orch.NewManagedStream(ctx, session)

	r.mu.Lock()
	r.entries[session.ID] = &registryEntry{stream: stream, session: session, lastActivity: time.Now()}
	r.mu.Unlock()

	return stream, session
}

// Get returns the managed stream and session for id, if still registered.
func (r *SessionRegistry) Get(id string) (*ManagedStream, *ConversationSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, nil, false
	}
	return e.stream, e.session, true
}

// Touch marks id as recently active, resetting its idle timer.
func (r *SessionRegistry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.lastActivity = time.Now()
	}
}

// Remove closes and forgets the session for id, if present.
func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if ok {
		e.stream.Close()
	}
}

// Len returns the number of currently registered sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// CloseAll evicts every session, used during graceful shutdown.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Remove(id)
	}
}
