package stt

import (
	"context"
	"testing"
	"time"

	"github.com/lokutor-ai/voicegateway/pkg/orchestrator"
)

type stubSTT struct {
	orchestrator.BaseProvider
	transcript string
	calls      int
	lastAudio  []byte
}

func (s *stubSTT) Transcribe(ctx context.Context, audio []byte, lang orchestrator.Language) (string, error) {
	s.calls++
	s.lastAudio = audio
	return s.transcript, nil
}

func (s *stubSTT) Name() string { return "stub-stt" }

func TestBufferedSTT_FlushesOnceEnoughAudioAccumulates(t *testing.T) {
	backend := &stubSTT{transcript: "hello there"}
	b := NewBufferedSTT(backend, nil)

	short := make([]byte, minBufferedBytes/2)
	transcript, err := b.Transcribe(context.Background(), short, orchestrator.LanguageEn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transcript != "" {
		t.Fatalf("expected no transcript before buffer fills, got %q", transcript)
	}
	if backend.calls != 0 {
		t.Fatalf("expected backend not called yet, got %d calls", backend.calls)
	}

	more := make([]byte, minBufferedBytes)
	transcript, err = b.Transcribe(context.Background(), more, orchestrator.LanguageEn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transcript != "hello there" {
		t.Fatalf("expected flushed transcript, got %q", transcript)
	}
	if backend.calls != 1 {
		t.Fatalf("expected exactly one backend call, got %d", backend.calls)
	}
	if len(backend.lastAudio) != len(short)+len(more) {
		t.Fatalf("expected combined audio length %d, got %d", len(short)+len(more), len(backend.lastAudio))
	}
}

func TestBufferedSTT_SuppressesJunkPhrases(t *testing.T) {
	backend := &stubSTT{transcript: "um"}
	b := NewBufferedSTT(backend, nil)

	transcript, err := b.Transcribe(context.Background(), make([]byte, minBufferedBytes), orchestrator.LanguageEn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transcript != "" {
		t.Fatalf("expected junk phrase to be suppressed, got %q", transcript)
	}
}

func TestBufferedSTT_Name(t *testing.T) {
	b := NewBufferedSTT(&stubSTT{}, nil)
	if b.Name() != "buffered-stub-stt" {
		t.Fatalf("unexpected name: %s", b.Name())
	}
}

func TestBufferedSTT_UsesConfiguredJunkPhrases(t *testing.T) {
	backend := &stubSTT{transcript: "banana"}
	b := NewBufferedSTT(backend, []string{"banana"})

	transcript, err := b.Transcribe(context.Background(), make([]byte, minBufferedBytes), orchestrator.LanguageEn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transcript != "" {
		t.Fatalf("expected configured junk phrase to be suppressed, got %q", transcript)
	}
}

func TestBufferedSTT_StreamTranscribeFlushesOnThreshold(t *testing.T) {
	backend := &stubSTT{transcript: "hola"}
	b := NewBufferedSTT(backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan string, 1)
	audioIn, err := b.StreamTranscribe(ctx, orchestrator.LanguageEs, func(transcript string, isFinal bool) error {
		if !isFinal {
			t.Fatalf("buffered adapter must only ever produce final transcripts")
		}
		results <- transcript
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	audioIn <- make([]byte, minBufferedBytes)

	select {
	case got := <-results:
		if got != "hola" {
			t.Fatalf("expected %q, got %q", "hola", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for buffered transcript")
	}
}

func TestBufferedSTT_StreamTranscribeSweepFlushesLeftovers(t *testing.T) {
	backend := &stubSTT{transcript: "leftover"}
	b := NewBufferedSTT(backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan string, 1)
	audioIn, err := b.StreamTranscribe(ctx, orchestrator.LanguageEn, func(transcript string, isFinal bool) error {
		results <- transcript
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Below minBufferedBytes: should only be flushed by the periodic sweep,
	// not immediately.
	audioIn <- make([]byte, 16)

	select {
	case got := <-results:
		if got != "leftover" {
			t.Fatalf("expected %q, got %q", "leftover", got)
		}
	case <-time.After(bufferedSweepInterval + time.Second):
		t.Fatal("timed out waiting for sweep to flush leftover audio")
	}
}
