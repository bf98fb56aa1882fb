package wire

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/lokutor-ai/voicegateway/pkg/orchestrator"
	"github.com/stretchr/testify/require"
)

type echoSTT struct {
	orchestrator.BaseProvider
}

func newEchoSTT() *echoSTT {
	return &echoSTT{BaseProvider: orchestrator.NewBaseProvider(orchestrator.ProviderInfo{Name: "echo-stt"})}
}

func (*echoSTT) Transcribe(ctx context.Context, audio []byte, lang orchestrator.Language) (string, error) {
	return "hello", nil
}
func (*echoSTT) Name() string { return "echo-stt" }

type echoLLM struct{}

func (echoLLM) Complete(ctx context.Context, messages []orchestrator.Message) (string, error) {
	return "hi there", nil
}
func (echoLLM) Name() string { return "echo-llm" }

type echoTTS struct{}

func (echoTTS) Synthesize(ctx context.Context, text string, voice orchestrator.Voice, lang orchestrator.Language) ([]byte, error) {
	return []byte("audio"), nil
}
func (echoTTS) StreamSynthesize(ctx context.Context, text string, voice orchestrator.Voice, lang orchestrator.Language, flush bool, onChunk func([]byte) error) error {
	return onChunk([]byte("audio"))
}
func (echoTTS) Cancel() error { return nil }
func (echoTTS) Name() string  { return "echo-tts" }

func TestServer_InitAndInterrupt(t *testing.T) {
	orch := orchestrator.New(newEchoSTT(), echoLLM{}, echoTTS{}, orchestrator.DefaultConfig())
	reg := orchestrator.NewSessionRegistry(orch, orchestrator.DefaultConfig(), nil)
	srv := httptest.NewServer(NewServer(reg, nil))
	defer srv.Close()

	wsURL := "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/v2/voice"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	err = wsjson.Write(ctx, conn, ClientMessage{
		Type:         ClientInit,
		Voice:        orchestrator.VoiceF2,
		SystemPrompt: "be terse",
	})
	require.NoError(t, err)

	// The server registers a session synchronously as part of handling the
	// upgraded connection, before it ever reads a client frame, so it must
	// already be there by the time ClientInit has been sent.
	require.Eventually(t, func() bool {
		return reg.Len() == 1
	}, time.Second, 10*time.Millisecond, "expected exactly one registered session after connecting")

	err = wsjson.Write(ctx, conn, ClientMessage{Type: ClientInterrupt})
	require.NoError(t, err)

	conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		return reg.Len() == 0
	}, time.Second, 10*time.Millisecond, "expected session to be removed from the registry once the connection closes")
}
