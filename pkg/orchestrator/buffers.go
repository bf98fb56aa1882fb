package orchestrator

import "sync"

// AudioBufferManager owns the bounded inbound/outbound audio queues for one
// session plus the output generation counter used to invalidate in-flight
// audio chunks across a barge-in. It generalizes the stale-callback counter
// pattern used for STT sessions (see ManagedStream.sttGeneration) into a
// reusable, independently testable type that also covers TTS output.
type AudioBufferManager struct {
	mu sync.Mutex

	inboundCap  int
	outboundCap int

	inbound  [][]byte
	outbound [][]byte

	generation int
}

// NewAudioBufferManager creates a manager bounding each queue to the given
// number of chunks. A cap of 0 means unbounded.
func NewAudioBufferManager(inboundCap, outboundCap int) *AudioBufferManager {
	return &AudioBufferManager{inboundCap: inboundCap, outboundCap: outboundCap}
}

// PushInbound appends a chunk to the inbound queue, dropping the oldest
// chunk if the queue is at capacity.
func (b *AudioBufferManager) PushInbound(chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inbound = append(b.inbound, chunk)
	if b.inboundCap > 0 && len(b.inbound) > b.inboundCap {
		b.inbound = b.inbound[len(b.inbound)-b.inboundCap:]
	}
}

// PopInbound drains and returns all queued inbound chunks.
func (b *AudioBufferManager) PopInbound() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.inbound
	b.inbound = nil
	return out
}

// PushOutbound appends a generation-tagged chunk to the outbound queue,
// rejecting it if gen is stale relative to the current generation.
func (b *AudioBufferManager) PushOutbound(chunk []byte, gen int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.generation {
		return false
	}
	b.outbound = append(b.outbound, chunk)
	if b.outboundCap > 0 && len(b.outbound) > b.outboundCap {
		b.outbound = b.outbound[len(b.outbound)-b.outboundCap:]
	}
	return true
}

// PopOutbound drains and returns all queued outbound chunks.
func (b *AudioBufferManager) PopOutbound() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.outbound
	b.outbound = nil
	return out
}

// Generation returns the current output generation counter.
func (b *AudioBufferManager) Generation() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}

// BumpGeneration invalidates all chunks tagged with the previous
// generation (e.g. on barge-in) and clears the outbound queue, returning
// the new generation number.
func (b *AudioBufferManager) BumpGeneration() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generation++
	b.outbound = nil
	return b.generation
}

// ClearInbound discards any queued inbound audio without affecting the
// output generation counter.
func (b *AudioBufferManager) ClearInbound() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inbound = nil
}
