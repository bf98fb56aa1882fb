package stt

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lokutor-ai/voicegateway/pkg/orchestrator"
)

// defaultJunkPhrases are single-word backchannels and the notorious
// community-subtitle boilerplate a one-shot transcriber sometimes returns
// for silence or noise bursts. Submitting these to the LLM wastes a full
// reply cycle, so BufferedSTT filters them out before returning. Callers
// that configure their own list (Config.JunkPhrases) replace this default
// entirely rather than merging with it.
var defaultJunkPhrases = []string{
	"uh", "um", "umm", "uh huh", "hmm", "mm", "you", ".", "",
	"subtítulos realizados por la comunidad de amara.org",
}

// minBufferedBytes is the smallest audio segment BufferedSTT will submit to
// the underlying backend on its own; anything shorter is held until more
// audio accumulates or the periodic sweep flushes it. ~30kB is a
// design-level proxy for roughly one second of compressed voice.
const minBufferedBytes = 30 * 1024

// bufferedSweepInterval is how often the accumulator is inspected for
// leftover audio that never reached minBufferedBytes on its own.
const bufferedSweepInterval = 2 * time.Second

// BufferedSTT adapts any of the one-shot backends (groq, openai, deepgram,
// assemblyai) behind a single policy: short segments are accumulated rather
// than submitted one at a time, a periodic sweep flushes whatever is left
// over, and single-word filler transcripts are suppressed so they never
// reach the LLM as a user turn. It implements both STTProvider (direct,
// one-shot use) and StreamingSTTProvider (continuous accumulation, so the
// orchestrator can drive it exactly like a true-streaming backend).
type BufferedSTT struct {
	orchestrator.BaseProvider
	backend     orchestrator.STTProvider
	junkPhrases map[string]bool

	mu      sync.Mutex
	pending []byte
}

// NewBufferedSTT wraps backend in the shared buffering and junk-suppression
// policy. backend is typically one of NewGroqSTT, NewOpenAISTT,
// NewDeepgramSTT, or NewAssemblyAISTT. junkPhrases, if empty, falls back to
// defaultJunkPhrases.
func NewBufferedSTT(backend orchestrator.STTProvider, junkPhrases []string) *BufferedSTT {
	if len(junkPhrases) == 0 {
		junkPhrases = defaultJunkPhrases
	}
	set := make(map[string]bool, len(junkPhrases))
	for _, p := range junkPhrases {
		set[strings.ToLower(strings.TrimSpace(p))] = true
	}
	return &BufferedSTT{
		BaseProvider: orchestrator.NewBaseProvider(orchestrator.ProviderInfo{Name: "buffered-" + backend.Name()}),
		backend:      backend,
		junkPhrases:  set,
	}
}

// Append accumulates audio without transcribing it. Call Transcribe (with a
// nil or empty audio argument) to flush and transcribe everything buffered
// so far.
func (b *BufferedSTT) Append(chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, chunk...)
}

// Transcribe submits audio to the wrapped backend. Audio is appended to
// whatever is pending; the combined buffer is submitted once it reaches
// minBufferedBytes (or when audio is empty, which flushes what is pending),
// and until then Transcribe returns an empty transcript. A transcript
// consisting only of a known junk phrase is reported as empty, matching the
// "no speech" contract one-shot backends use for silence.
func (b *BufferedSTT) Transcribe(ctx context.Context, audioPCM []byte, lang orchestrator.Language) (string, error) {
	b.mu.Lock()
	segment := audioPCM
	if len(b.pending) > 0 {
		b.pending = append(b.pending, audioPCM...)
		segment = b.pending
	}

	if len(segment) < minBufferedBytes && len(audioPCM) > 0 {
		b.pending = append(b.pending[:0], segment...)
		b.mu.Unlock()
		return "", nil
	}
	b.pending = b.pending[:0]
	b.mu.Unlock()

	if len(segment) == 0 {
		return "", nil
	}

	transcript, err := b.backend.Transcribe(ctx, segment, lang)
	if err != nil {
		b.FireError(err)
		return "", err
	}

	if b.isJunkPhrase(transcript) {
		return "", nil
	}

	return transcript, nil
}

// StreamTranscribe implements StreamingSTTProvider on top of the one-shot
// backend: inbound frames accumulate until minBufferedBytes is reached, at
// which point they are submitted as a single utterance; a periodic sweep
// (bufferedSweepInterval) catches whatever never crossed the threshold on
// its own. Every produced transcript is final — there is no interim/partial
// phase for a buffered backend.
func (b *BufferedSTT) StreamTranscribe(ctx context.Context, lang orchestrator.Language, onTranscript func(transcript string, isFinal bool) error) (chan<- []byte, error) {
	audioIn := make(chan []byte, 64)

	go func() {
		ticker := time.NewTicker(bufferedSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-audioIn:
				if !ok {
					return
				}
				if segment := b.accumulate(chunk); segment != nil {
					b.submit(ctx, segment, lang, onTranscript)
				}
			case <-ticker.C:
				if segment := b.sweep(); segment != nil {
					b.submit(ctx, segment, lang, onTranscript)
				}
			}
		}
	}()

	return audioIn, nil
}

// accumulate appends chunk to the pending buffer and, if it has now reached
// minBufferedBytes, drains and returns it as a segment ready to transcribe.
func (b *BufferedSTT) accumulate(chunk []byte) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, chunk...)
	if len(b.pending) < minBufferedBytes {
		return nil
	}
	segment := b.pending
	b.pending = nil
	return segment
}

// sweep drains whatever is pending regardless of size, for the periodic
// sweep to flush undersized leftovers.
func (b *BufferedSTT) sweep() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil
	}
	segment := b.pending
	b.pending = nil
	return segment
}

func (b *BufferedSTT) submit(ctx context.Context, segment []byte, lang orchestrator.Language, onTranscript func(string, bool) error) {
	transcript, err := b.backend.Transcribe(ctx, segment, lang)
	if err != nil {
		b.FireError(err)
		return
	}
	if b.isJunkPhrase(transcript) {
		return
	}
	_ = onTranscript(transcript, true)
}

func (b *BufferedSTT) Name() string {
	return "buffered-" + b.backend.Name()
}

func (b *BufferedSTT) isJunkPhrase(transcript string) bool {
	normalized := strings.ToLower(strings.TrimSpace(transcript))
	normalized = strings.Trim(normalized, ".!?,")
	return b.junkPhrases[normalized]
}
