package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
)


type Orchestrator struct {
	stt STTProvider
	llm LLMProvider
	tts TTSProvider

	// sttFactory/llmFactory/ttsFactory, when set (via NewWithFactories),
	// are called once per session by NewManagedStream to give each session
	// its own provider instances instead of sharing stt/llm/tts above. Nil
	// here (the New/NewWithVAD/NewWithLogger constructors never set them)
	// means every session shares the single instance passed at
	// construction, matching this package's original behavior.
	sttFactory func() (STTProvider, error)
	llmFactory func() (LLMProvider, error)
	ttsFactory func() (TTSProvider, error)

	vad     VADProvider
	config  Config
	logger  Logger
	metrics *Metrics
	mu      sync.RWMutex
}

// SetMetrics attaches a Metrics instance; the pipeline records barge-ins
// on it. A nil Orchestrator metrics field (the default) means
// instrumentation is skipped entirely.
func (o *Orchestrator) SetMetrics(m *Metrics) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.metrics = m
}



func New(stt STTProvider, llm LLMProvider, tts TTSProvider, config Config) *Orchestrator {
	return NewWithLogger(stt, llm, tts, nil, config, &NoOpLogger{})
}


func NewWithVAD(stt STTProvider, llm LLMProvider, tts TTSProvider, vad VADProvider, config Config) *Orchestrator {
	return NewWithLogger(stt, llm, tts, vad, config, &NoOpLogger{})
}


func NewWithLogger(stt STTProvider, llm LLMProvider, tts TTSProvider, vad VADProvider, config Config, logger Logger) *Orchestrator {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &Orchestrator{
		stt:    stt,
		llm:    llm,
		tts:    tts,
		vad:    vad,
		config: config,
		logger: logger,
	}
}

// NewWithFactories builds an orchestrator whose sessions each get their own
// provider instances rather than sharing one, so a stateful backend (a
// persistent TTS websocket, a push-transcript STT connection) can't have
// one session's Cancel, Connect churn, or disconnect reach into another's
// in-flight turn. Each factory is called once up front to build a default
// instance backing the simpler session-less helpers (ProcessAudio,
// GetProviders, ...), and again by NewManagedStream for every session.
func NewWithFactories(sttFactory func() (STTProvider, error), llmFactory func() (LLMProvider, error), ttsFactory func() (TTSProvider, error), vad VADProvider, config Config, logger Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = &NoOpLogger{}
	}

	stt, err := sttFactory()
	if err != nil {
		return nil, fmt.Errorf("building default stt provider: %w", err)
	}
	llm, err := llmFactory()
	if err != nil {
		return nil, fmt.Errorf("building default llm provider: %w", err)
	}
	tts, err := ttsFactory()
	if err != nil {
		return nil, fmt.Errorf("building default tts provider: %w", err)
	}

	return &Orchestrator{
		stt:        stt,
		llm:        llm,
		tts:        tts,
		sttFactory: sttFactory,
		llmFactory: llmFactory,
		ttsFactory: ttsFactory,
		vad:        vad,
		config:     config,
		logger:     logger,
	}, nil
}

// buildSessionProviders returns the provider instances a new session should
// use: fresh ones from the configured factories when set, or the
// orchestrator's shared default instance otherwise.
func (o *Orchestrator) buildSessionProviders() (STTProvider, LLMProvider, TTSProvider, error) {
	stt, llm, tts := o.stt, o.llm, o.tts

	if o.sttFactory != nil {
		s, err := o.sttFactory()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("building stt provider: %w", err)
		}
		stt = s
	}
	if o.llmFactory != nil {
		l, err := o.llmFactory()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("building llm provider: %w", err)
		}
		llm = l
	}
	if o.ttsFactory != nil {
		t, err := o.ttsFactory()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("building tts provider: %w", err)
		}
		tts = t
	}

	return stt, llm, tts, nil
}


func (o *Orchestrator) PushAudio(sessionID string, chunk []byte) (*VADEvent, error) {
	if o.vad == nil {
		return nil, fmt.Errorf("VAD provider not configured")
	}
	return o.vad.Process(chunk)
}


func (o *Orchestrator) ProcessAudio(ctx context.Context, session *ConversationSession, audioData []byte) (string, []byte, error) {
	
	transcript, err := o.Transcribe(ctx, audioData, session.GetCurrentLanguage())
	if err != nil {
		return "", nil, fmt.Errorf("transcription failed: %w", err)
	}

	if strings.TrimSpace(transcript) == "" {
		o.logger.Warn("empty transcription received", "sessionID", session.ID)
		return "", nil, ErrEmptyTranscription
	}

	o.logger.Info("transcription completed", "sessionID", session.ID, "length", len(transcript))
	session.AddMessage("user", transcript)

	
	response, err := o.GenerateResponse(ctx, session)
	if err != nil {
		o.logger.Error("LLM generation failed", "sessionID", session.ID, "error", err)
		return transcript, nil, fmt.Errorf("%w: %v", ErrLLMFailed, err)
	}

	o.logger.Info("LLM response generated", "sessionID", session.ID, "length", len(response))
	session.AddMessage("assistant", response)

	
	audioBytes, err := o.Synthesize(ctx, response, session.GetCurrentVoice(), session.GetCurrentLanguage())
	if err != nil {
		o.logger.Error("TTS synthesis failed", "sessionID", session.ID, "error", err)
		return transcript, nil, fmt.Errorf("%w: %v", ErrTTSFailed, err)
	}

	o.logger.Info("TTS synthesis completed", "sessionID", session.ID, "audioSize", len(audioBytes))
	return transcript, audioBytes, nil
}


func (o *Orchestrator) ProcessAudioStream(ctx context.Context, session *ConversationSession, audioData []byte, onAudioChunk func([]byte) error) (string, error) {
	
	transcript, err := o.Transcribe(ctx, audioData, session.GetCurrentLanguage())
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	if strings.TrimSpace(transcript) == "" {
		o.logger.Warn("empty transcription received", "sessionID", session.ID)
		return "", ErrEmptyTranscription
	}

	o.logger.Info("transcription completed", "sessionID", session.ID, "length", len(transcript))
	session.AddMessage("user", transcript)

	
	response, err := o.GenerateResponse(ctx, session)
	if err != nil {
		o.logger.Error("LLM generation failed", "sessionID", session.ID, "error", err)
		return transcript, fmt.Errorf("%w: %v", ErrLLMFailed, err)
	}

	o.logger.Info("LLM response generated", "sessionID", session.ID, "length", len(response))
	session.AddMessage("assistant", response)

	
	err = o.SynthesizeStream(ctx, response, session.GetCurrentVoice(), session.GetCurrentLanguage(), true, onAudioChunk)
	if err != nil {
		o.logger.Error("TTS streaming failed", "sessionID", session.ID, "error", err)
		return transcript, fmt.Errorf("%w: %v", ErrTTSFailed, err)
	}

	o.logger.Info("TTS streaming completed", "sessionID", session.ID)
	return transcript, nil
}


func (o *Orchestrator) Transcribe(ctx context.Context, audioData []byte, lang Language) (string, error) {
	return o.stt.Transcribe(ctx, audioData, lang)
}


func (o *Orchestrator) GenerateResponse(ctx context.Context, session *ConversationSession) (string, error) {
	return o.llm.Complete(ctx, session.GetContextCopy())
}


func (o *Orchestrator) Synthesize(ctx context.Context, text string, voice Voice, lang Language) ([]byte, error) {
	return o.tts.Synthesize(ctx, text, voice, lang)
}


func (o *Orchestrator) SynthesizeStream(ctx context.Context, text string, voice Voice, lang Language, flush bool, onChunk func([]byte) error) error {
	return o.tts.StreamSynthesize(ctx, text, voice, lang, flush, onChunk)
}


func (o *Orchestrator) HandleInterruption(session *ConversationSession) {
	o.logger.Info("conversation interrupted", "sessionID", session.ID)
	
}


func (o *Orchestrator) UpdateConfig(cfg Config) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.config = cfg
}


func (o *Orchestrator) GetConfig() Config {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.config
}


func (o *Orchestrator) GetProviders() map[string]string {
	return map[string]string{
		"stt": o.stt.Name(),
		"llm": o.llm.Name(),
		"tts": o.tts.Name(),
	}
}



func (o *Orchestrator) NewSessionWithDefaults(userID string) *ConversationSession {
	session := NewConversationSession(userID)
	session.MaxMessages = o.config.MaxContextMessages
	session.CurrentVoice = o.config.VoiceStyle
	session.CurrentLanguage = o.config.Language
	return session
}



func (o *Orchestrator) SetSystemPrompt(session *ConversationSession, prompt string) {
	session.AddMessage("system", prompt)
}



func (o *Orchestrator) SetVoice(session *ConversationSession, voice Voice) {
	session.CurrentVoice = voice
}



func (o *Orchestrator) SetLanguage(session *ConversationSession, lang Language) {
	session.CurrentLanguage = lang
}



func (o *Orchestrator) ResetSession(session *ConversationSession) {
	session.ClearContext()
}



func (o *Orchestrator) NewManagedStream(ctx context.Context, session *ConversationSession) *ManagedStream {
	return NewManagedStream(ctx, o, session)
}
