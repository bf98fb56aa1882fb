package tts

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/lokutor-ai/voicegateway/pkg/orchestrator"
)

// VoiceSettings mirrors the tunables ElevenLabs-style multi-stream-input
// endpoints accept on the beginning-of-stream frame.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed"`
}

// LokutorTTS is a persistent-connection streaming TTS backend. A single
// websocket connection is opened lazily and reused across calls; cancelling
// a synthesis sends a flush frame rather than closing the socket, so the
// next call can reuse the same connection without renegotiating voice
// settings.
type LokutorTTS struct {
	apiKey        string
	host          string
	scheme        string
	voiceSettings VoiceSettings
	chunkSchedule []int

	mu        sync.Mutex
	conn      *websocket.Conn
	streaming bool

	// cancelled is set by Cancel while a StreamSynthesize call is in
	// flight. The flush frame Cancel sends doesn't stop audio already
	// queued on the wire, so the read loop keeps draining binary frames
	// until EOS but drops them on the floor while this is set, rather
	// than handing the tail of a cancelled utterance to onChunk.
	cancelled bool
}

func NewLokutorTTS(apiKey string) *LokutorTTS {
	return &LokutorTTS{
		apiKey: apiKey,
		host:   "api.lokutor.com",
		scheme: "wss",
		voiceSettings: VoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.8,
			Speed:           1.05,
		},
		chunkSchedule: []int{120, 160, 250, 290},
	}
}

func (t *LokutorTTS) Connect(ctx context.Context) error {
	_, err := t.getConn(ctx)
	return err
}

func (t *LokutorTTS) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	// Empty-text frame is the end-of-stream sentinel for a connection that
	// is about to be torn down, as opposed to Cancel's flush-and-keep-open.
	_ = wsjson.Write(context.Background(), t.conn, map[string]interface{}{"text": ""})
	err := t.conn.Close(websocket.StatusNormalClosure, "")
	t.conn = nil
	t.streaming = false
	return err
}

// Cancel stops in-progress synthesis without closing the connection, by
// sending a single-space flush frame. The connection remains usable for the
// next StreamSynthesize call.
func (t *LokutorTTS) Cancel() error {
	t.mu.Lock()
	conn := t.conn
	streaming := t.streaming
	t.cancelled = true
	t.mu.Unlock()

	if conn == nil || !streaming {
		return nil
	}
	return wsjson.Write(context.Background(), conn, map[string]interface{}{"text": " ", "flush": true})
}

func (t *LokutorTTS) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/v1/stream-input", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to lokutor: %w", err)
	}

	bos := map[string]interface{}{
		"text":              " ",
		"voice_settings":    t.voiceSettings,
		"generation_config": map[string]interface{}{"chunk_length_schedule": t.chunkSchedule},
	}
	if err := wsjson.Write(ctx, conn, bos); err != nil {
		conn.Close(websocket.StatusAbnormalClosure, "bos failed")
		return nil, fmt.Errorf("failed to send beginning-of-stream frame: %w", err)
	}

	t.conn = conn
	return conn, nil
}

func (t *LokutorTTS) Synthesize(ctx context.Context, text string, voice orchestrator.Voice, lang orchestrator.Language) ([]byte, error) {
	var audio []byte
	err := t.StreamSynthesize(ctx, text, voice, lang, true, func(chunk []byte) error {
		audio = append(audio, chunk...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return audio, nil
}

// StreamSynthesize sends text for synthesis and streams the resulting audio
// chunks to onChunk. flush controls whether the backend is told to finalize
// generation for this frame immediately (true, the right choice for a
// complete sentence or the trailing residual of a reply) or to hold it for
// more text that will follow in the same utterance (false, for an
// accumulator still filling a sentence). If Cancel is called while this is
// in flight, any audio already queued on the wire for the cancelled request
// is drained and discarded rather than handed to onChunk.
func (t *LokutorTTS) StreamSynthesize(ctx context.Context, text string, voice orchestrator.Voice, lang orchestrator.Language, flush bool, onChunk func([]byte) error) error {
	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	req := map[string]interface{}{
		"text":  text,
		"voice": string(voice),
		"lang":  string(lang),
		"flush": flush,
	}
	t.streaming = true
	t.cancelled = false
	t.mu.Unlock()

	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.mu.Lock()
		t.conn = nil
		t.streaming = false
		t.mu.Unlock()
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return fmt.Errorf("failed to send synthesis request: %w", err)
	}

	defer func() {
		t.mu.Lock()
		t.streaming = false
		t.mu.Unlock()
	}()

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			t.mu.Lock()
			t.conn = nil
			t.mu.Unlock()
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return fmt.Errorf("failed to read from lokutor: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			t.mu.Lock()
			cancelled := t.cancelled
			t.mu.Unlock()
			if cancelled {
				continue
			}
			if err := onChunk(payload); err != nil {
				return err
			}
		case websocket.MessageText:
			// Control frames are accepted bare (EOS) or JSON-encoded ("EOS").
			msg := strings.Trim(strings.TrimSpace(string(payload)), `"`)
			if msg == "EOS" || msg == "" {
				return nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return fmt.Errorf("lokutor error: %s", msg)
			}
		}
	}
}

func (t *LokutorTTS) Name() string {
	return "lokutor"
}
