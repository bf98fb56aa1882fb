package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/coder/websocket"
	"github.com/lokutor-ai/voicegateway/pkg/orchestrator"
)

// DeepgramStreamingSTT wraps DeepgramSTT's one-shot backend with a live
// websocket connection, completing the StreamingSTTProvider contract the
// rest of the package only declared.
type DeepgramStreamingSTT struct {
	*DeepgramSTT
	wsURL string
}

func NewDeepgramStreamingSTT(apiKey string) *DeepgramStreamingSTT {
	return &DeepgramStreamingSTT{
		DeepgramSTT: NewDeepgramSTT(apiKey),
		wsURL:       "wss://api.deepgram.com/v1/listen",
	}
}

type deepgramStreamResult struct {
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal bool   `json:"is_final"`
	Type    string `json:"type"`
}

// StreamTranscribe opens a live Deepgram connection, returning a channel the
// caller writes raw PCM chunks to. onTranscript is invoked from an internal
// goroutine for every interim and final result; it must not block.
func (s *DeepgramStreamingSTT) StreamTranscribe(ctx context.Context, lang orchestrator.Language, onTranscript func(transcript string, isFinal bool) error) (chan<- []byte, error) {
	u, err := url.Parse(s.wsURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("model", "nova-2")
	q.Set("smart_format", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", "44100")
	if lang != "" {
		q.Set("language", string(lang))
	}
	u.RawQuery = q.Encode()

	header := make(map[string][]string)
	header["Authorization"] = []string{"Token " + s.DeepgramSTT.apiKey}

	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to deepgram streaming: %w", err)
	}

	audioIn := make(chan []byte, 64)

	// Writer: forwards audio chunks to the socket until ctx is done or the
	// channel is closed.
	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-audioIn:
				if !ok {
					_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
					return
				}
				if err := conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
					return
				}
			}
		}
	}()

	// Reader: decodes Deepgram's streaming JSON result frames.
	go func() {
		for {
			_, payload, err := conn.Read(ctx)
			if err != nil {
				return
			}

			var result deepgramStreamResult
			if err := json.Unmarshal(payload, &result); err != nil {
				continue
			}
			if len(result.Channel.Alternatives) == 0 {
				continue
			}
			transcript := result.Channel.Alternatives[0].Transcript
			if transcript == "" {
				continue
			}
			if err := onTranscript(transcript, result.IsFinal); err != nil {
				return
			}
		}
	}()

	return audioIn, nil
}

func (s *DeepgramStreamingSTT) Name() string {
	return "deepgram-streaming-stt"
}

func (s *DeepgramStreamingSTT) Info() orchestrator.ProviderInfo {
	info := s.DeepgramSTT.Info()
	info.Name = "deepgram-streaming-stt"
	return info
}
