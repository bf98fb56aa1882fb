package orchestrator

import (
	"context"
	"sync"
)

// BaseProvider gives a connectionless, request/response adapter (a plain
// HTTP-backed transcriber, say) the Connect/Disconnect/IsConnected/Info/
// OnError bookkeeping every STTProvider must expose, without making every
// such backend hand-roll the same mutex-guarded bool. Connect/Disconnect
// never touch the network here; they only track the idempotency and
// single-error-sink invariants the contract requires. Backends that hold a
// real upstream connection (a websocket, say) embed BaseProvider for the
// error sink and Info but override Connect/Disconnect themselves.
type BaseProvider struct {
	mu        sync.Mutex
	connected bool
	info      ProviderInfo
	onError   func(error)
}

// NewBaseProvider returns a BaseProvider reporting info via Info().
func NewBaseProvider(info ProviderInfo) BaseProvider {
	return BaseProvider{info: info}
}

// Connect marks the provider connected. It is idempotent: a second Connect
// while already connected is a no-op rather than an error, since a provider
// instance may be shared across sessions when the orchestrator wasn't
// constructed with per-session factories (see NewWithFactories).
func (b *BaseProvider) Connect(ctx context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return nil
}

// Disconnect marks the provider disconnected. Safe to call repeatedly.
func (b *BaseProvider) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	return nil
}

func (b *BaseProvider) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *BaseProvider) Info() ProviderInfo {
	return b.info
}

// OnError registers the single error sink for this provider. Registering a
// new callback replaces any previous one, matching the "single sink per
// event" discipline the provider contracts require.
func (b *BaseProvider) OnError(cb func(error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = cb
}

// FireError invokes the registered error sink, if any. Backends call this
// from their own failure paths instead of exposing onError directly.
func (b *BaseProvider) FireError(err error) {
	b.mu.Lock()
	cb := b.onError
	b.mu.Unlock()
	if cb != nil && err != nil {
		cb(err)
	}
}
