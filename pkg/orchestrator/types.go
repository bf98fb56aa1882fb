package orchestrator

import (
	"context"
	"sync"
)

type Logger interface {
	Debug(msg string, args ...interface{})

	Info(msg string, args ...interface{})

	Warn(msg string, args ...interface{})

	Error(msg string, args ...interface{})
}

type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// ProviderInfo describes a provider adapter for the wire protocol's `ready`
// event payload and the /info endpoint.
type ProviderInfo struct {
	Name             string `json:"name"`
	Model            string `json:"model,omitempty"`
	Language         string `json:"language,omitempty"`
	TypicalLatencyMs int    `json:"typical_latency_ms,omitempty"`
}

// STTProvider is a speech-to-text backend: the caller submits a complete
// audio buffer and gets a transcript back. Connect/Disconnect bracket the
// adapter's session lifetime so the orchestrator can fail fast (Connect
// rejecting within the session-init timeout) and release upstream resources
// on teardown, even for backends that have no real persistent connection.
type STTProvider interface {
	Connect(ctx context.Context, sessionID string) error
	Disconnect() error
	IsConnected() bool
	Info() ProviderInfo
	OnError(cb func(error))

	Transcribe(ctx context.Context, audio []byte, lang Language) (string, error)
	Name() string
}

// StreamingSTTProvider is a connection-oriented speech-to-text backend that
// emits interim and final transcripts as audio arrives, instead of waiting
// for a complete buffer.
type StreamingSTTProvider interface {
	STTProvider
	StreamTranscribe(ctx context.Context, lang Language, onTranscript func(transcript string, isFinal bool) error) (chan<- []byte, error)
}

// LLMProvider generates a full reply from a message history.
type LLMProvider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Name() string
}

// StreamingLLMProvider generates a reply incrementally, delivering text
// fragments on a channel as they are produced by the backend so a caller can
// start synthesizing speech before generation finishes.
type StreamingLLMProvider interface {
	LLMProvider
	StreamComplete(ctx context.Context, messages []Message) (<-chan string, error)
}

// TTSProvider synthesizes speech from text. Cancel interrupts an
// in-progress synthesis without tearing down the underlying connection, so
// a subsequent call can reuse it immediately (see StreamSynthesize).
type TTSProvider interface {
	Synthesize(ctx context.Context, text string, voice Voice, lang Language) ([]byte, error)

	// StreamSynthesize submits text for synthesis. flush=true signals a
	// complete semantic unit that should be emitted now; flush=false allows
	// the backend to coalesce this call with subsequent ones before
	// generating audio.
	StreamSynthesize(ctx context.Context, text string, voice Voice, lang Language, flush bool, onChunk func([]byte) error) error
	Cancel() error
	Name() string
}

// ConnectableTTSProvider is implemented by TTS backends that hold a
// persistent connection (e.g. a websocket) which can be explicitly opened
// and closed independently of any single synthesis call.
type ConnectableTTSProvider interface {
	TTSProvider
	Connect(ctx context.Context) error
	Disconnect() error
}

type VADProvider interface {
	Process(chunk []byte) (*VADEvent, error)
	Reset()
	Clone() VADProvider
	Name() string
}

type VADEventType string

const (
	VADSpeechStart VADEventType = "SPEECH_START"
	VADSpeechEnd   VADEventType = "SPEECH_END"
	VADSilence     VADEventType = "SILENCE"
)

type VADEvent struct {
	Type      VADEventType
	Timestamp int64
}

type EventType string

const (
	UserSpeaking      EventType = "USER_SPEAKING"
	UserStopped       EventType = "USER_STOPPED"
	TranscriptPartial EventType = "TRANSCRIPT_PARTIAL"
	TranscriptFinal   EventType = "TRANSCRIPT_FINAL"
	BotThinking       EventType = "BOT_THINKING"
	BotResponse       EventType = "BOT_RESPONSE"
	BotSpeaking       EventType = "BOT_SPEAKING"
	Interrupted       EventType = "INTERRUPTED"
	AudioChunk        EventType = "AUDIO_CHUNK"
	ErrorEvent        EventType = "ERROR"

	// Ready is emitted once all of a session's providers have connected
	// successfully, carrying a ReadyEventData payload.
	Ready EventType = "READY"
	// LLMChunk carries one fragment of the streaming LLM reply as it
	// arrives, before it has been grouped into a sentence for TTS.
	LLMChunk EventType = "LLM_CHUNK"
	// AgentFinishedSpeaking is emitted when TTS playback for a reply
	// completes (the on_complete callback of the §4.4 TTS contract).
	AgentFinishedSpeaking EventType = "AGENT_FINISHED_SPEAKING"
	// InterruptionProcessed names the end of the barge-in procedure. The
	// pipeline does not emit it; a barge-in is reported as Interrupted.
	InterruptionProcessed EventType = "INTERRUPTION_PROCESSED"
)

// ErrorKind is the wire-level taxonomy of error frames a session may emit,
// per the error handling design: init_error is fatal (session torn down),
// the provider-specific *_error kinds are recoverable within a turn, and
// audio/message_processing errors concern a single malformed frame.
type ErrorKind string

const (
	InitError              ErrorKind = "init_error"
	STTError               ErrorKind = "stt_error"
	TTSError               ErrorKind = "tts_error"
	LLMError               ErrorKind = "llm_error"
	AudioProcessingError   ErrorKind = "audio_processing_error"
	MessageProcessingError ErrorKind = "message_processing_error"
	SynthesisError         ErrorKind = "synthesis_error"
)

// ReadyEventData is the payload of a Ready event: the session identifier and
// the name of each bound provider.
type ReadyEventData struct {
	SessionID string            `json:"sessionId"`
	Providers map[string]string `json:"providers"`
}

// TranscriptEventData is the payload of TranscriptPartial/TranscriptFinal
// events.
type TranscriptEventData struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// LLMChunkEventData is the payload of an LLMChunk event.
type LLMChunkEventData struct {
	Chunk string `json:"chunk"`
}

// ErrorEventPayload carries a Go error plus the wire-level kind it maps to,
// so transport code can build a typed {type:"error", error:kind} frame
// without re-deriving the kind from the error's text.
type ErrorEventPayload struct {
	Kind    ErrorKind `json:"-"`
	Message string    `json:"message"`
}

type OrchestratorEvent struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	Data      interface{} `json:"data,omitempty"`
}

type Voice string

const (
	VoiceF1 Voice = "F1"
	VoiceF2 Voice = "F2"
	VoiceF3 Voice = "F3"
	VoiceF4 Voice = "F4"
	VoiceF5 Voice = "F5"
	VoiceM1 Voice = "M1"
	VoiceM2 Voice = "M2"
	VoiceM3 Voice = "M3"
	VoiceM4 Voice = "M4"
	VoiceM5 Voice = "M5"
)

type Language string

const (
	LanguageEn Language = "en"
	LanguageEs Language = "es"
	LanguageFr Language = "fr"
	LanguageDe Language = "de"
	LanguageIt Language = "it"
	LanguagePt Language = "pt"
	LanguageJa Language = "ja"
	LanguageZh Language = "zh"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ConversationSession struct {
	mu              sync.RWMutex
	ID              string
	Context         []Message
	LastUser        string
	LastAssistant   string
	MaxMessages     int
	CurrentVoice    Voice
	CurrentLanguage Language
}

func NewConversationSession(userID string) *ConversationSession {
	return &ConversationSession{
		ID:              userID,
		Context:         []Message{},
		MaxMessages:     DefaultConfig().MaxContextMessages,
		CurrentVoice:    VoiceF1,
		CurrentLanguage: LanguageEn,
	}
}

func (s *ConversationSession) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Context = append(s.Context, Message{Role: role, Content: content})
	if len(s.Context) > s.MaxMessages {
		s.Context = s.Context[len(s.Context)-s.MaxMessages:]
	}
	if role == "user" {
		s.LastUser = content
	} else if role == "assistant" {
		s.LastAssistant = content
	}
}

func (s *ConversationSession) ClearContext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Context = []Message{}
	s.LastUser = ""
	s.LastAssistant = ""
}

func (s *ConversationSession) GetContextCopy() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contextCopy := make([]Message, len(s.Context))
	copy(contextCopy, s.Context)
	return contextCopy
}

func (s *ConversationSession) GetCurrentVoice() Voice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrentVoice
}

func (s *ConversationSession) GetCurrentLanguage() Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrentLanguage
}

// SetVoice updates the session's active voice under lock, for callers
// outside the package (e.g. the wire transport) that cannot reach the
// unexported mutex directly.
func (s *ConversationSession) SetVoice(v Voice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentVoice = v
}

// SetLanguage updates the session's active language under lock.
func (s *ConversationSession) SetLanguage(l Language) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentLanguage = l
}
