package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/lokutor-ai/voicegateway/pkg/orchestrator"
)

// fakeServer accepts one connection, expects a beginning-of-stream frame
// followed by one synthesis request, then replies with two binary chunks
// and an EOS text frame.
func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := context.Background()

		var bos map[string]interface{}
		if err := wsjson.Read(ctx, conn, &bos); err != nil {
			return
		}

		var req map[string]interface{}
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			return
		}

		conn.Write(ctx, websocket.MessageBinary, []byte("chunk1"))
		conn.Write(ctx, websocket.MessageBinary, []byte("chunk2"))
		wsjson.Write(ctx, conn, "EOS")
	}))
}

func TestLokutorTTS_StreamSynthesize(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	tts := NewLokutorTTS("test-key")
	tts.host = strings.TrimPrefix(srv.URL, "http://")
	tts.scheme = "ws"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []byte
	err := tts.StreamSynthesize(ctx, "hello world", orchestrator.VoiceF1, orchestrator.LanguageEn, true, func(chunk []byte) error {
		got = append(got, chunk...)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamSynthesize returned error: %v", err)
	}
	if string(got) != "chunk1chunk2" {
		t.Fatalf("expected concatenated chunks, got %q", got)
	}
}

// TestLokutorTTS_CancelDropsTailAfterFlush exercises the most common failure
// mode for this backend: Cancel sends a flush frame but doesn't stop audio
// already queued on the wire for the in-flight request, so the read loop
// must keep draining frames until EOS while discarding them once cancelled.
func TestLokutorTTS_CancelDropsTailAfterFlush(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := context.Background()

		var bos map[string]interface{}
		if err := wsjson.Read(ctx, conn, &bos); err != nil {
			return
		}
		var req map[string]interface{}
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			return
		}

		conn.Write(ctx, websocket.MessageBinary, []byte("live-chunk"))

		// Wait for the client's Cancel flush frame before sending the tail
		// that was already in flight when it was requested.
		var flushReq map[string]interface{}
		if err := wsjson.Read(ctx, conn, &flushReq); err != nil {
			return
		}
		conn.Write(ctx, websocket.MessageBinary, []byte("stale-tail"))
		wsjson.Write(ctx, conn, "EOS")
	}))
	defer srv.Close()

	tts := NewLokutorTTS("test-key")
	tts.host = strings.TrimPrefix(srv.URL, "http://")
	tts.scheme = "ws"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var mu sync.Mutex
	var got []byte
	done := make(chan error, 1)
	go func() {
		done <- tts.StreamSynthesize(ctx, "hello", orchestrator.VoiceF1, orchestrator.LanguageEn, true, func(chunk []byte) error {
			mu.Lock()
			got = append(got, chunk...)
			mu.Unlock()
			// Cancel as soon as the first live chunk has been delivered,
			// strictly before the server ever sends the stale tail.
			return tts.Cancel()
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("StreamSynthesize returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for StreamSynthesize to return")
	}

	mu.Lock()
	defer mu.Unlock()
	if string(got) != "live-chunk" {
		t.Fatalf("expected only the pre-cancel chunk, got %q", got)
	}
}

func TestLokutorTTS_Name(t *testing.T) {
	if NewLokutorTTS("k").Name() != "lokutor" {
		t.Fatalf("unexpected provider name")
	}
}

func TestLokutorTTS_CancelWithoutConnectionIsNoop(t *testing.T) {
	tts := NewLokutorTTS("k")
	if err := tts.Cancel(); err != nil {
		t.Fatalf("Cancel on unconnected provider should be a no-op, got %v", err)
	}
}
