package orchestrator

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds per-orchestrator tuning knobs. Zero-value timeouts and sizes
// are rejected by DefaultConfig's callers in favor of the defaults below;
// callers that load from file/env should start from DefaultConfig() and
// overlay onto it.
type Config struct {
	SampleRate         int
	Channels           int
	BytesPerSamp       int
	MaxContextMessages int
	VoiceStyle         Voice
	Language           Language
	STTTimeout         uint
	LLMTimeout         uint
	TTSTimeout         uint

	// MinWordsToInterrupt is the number of words a user transcript must
	// contain, while the assistant is speaking, before it is treated as a
	// deliberate barge-in rather than a stray backchannel ("uh-huh", "ok").
	MinWordsToInterrupt int

	// AudioChunkSizeMS is the nominal size, in milliseconds, of inbound
	// audio chunks the transport is expected to deliver.
	AudioChunkSizeMS int

	// MaxSilenceMS is loaded from max_silence_ms. No component reads it:
	// the buffered STT adapter flushes leftovers on its own fixed sweep
	// interval (bufferedSweepInterval).
	MaxSilenceMS int

	// VADThresholdBytes is loaded from vad_threshold_bytes. No component
	// reads it: the buffered STT adapter uses its own fixed size threshold
	// (minBufferedBytes).
	VADThresholdBytes int

	// SessionTimeoutMS is how long a registry session may sit idle before
	// the reaper evicts it.
	SessionTimeoutMS int64

	// KeepPartialReplyOnBargeIn controls whether an assistant turn that was
	// interrupted mid-reply is still appended to history. Default false:
	// the interrupted turn is dropped, matching the registry/session
	// barge-in contract.
	KeepPartialReplyOnBargeIn bool

	EnableMetrics bool
	DebugAudio    bool
	LogLevel      string

	STTProviderName string
	LLMProviderName string
	TTSProviderName string

	// STTMode selects between the two STT adaptation strategies: "streaming"
	// uses the backend's native push-transcript connection directly (and
	// fails construction if the selected backend does not support it);
	// "buffered" wraps the backend in BufferedSTT's accumulate-and-sweep
	// policy, which works for any one-shot transcription API.
	STTMode string

	// JunkPhrases is the set of transcripts BufferedSTT (and equivalent
	// silence-coercion logic) treats as recognized silence rather than a
	// real user utterance.
	JunkPhrases []string
}

func DefaultConfig() Config {
	return Config{
		SampleRate:                44100,
		Channels:                  1,
		BytesPerSamp:              2,
		MaxContextMessages:        15,
		VoiceStyle:                VoiceF1,
		Language:                  LanguageEn,
		STTTimeout:                30,
		LLMTimeout:                60,
		TTSTimeout:                30,
		MinWordsToInterrupt:       1,
		AudioChunkSizeMS:          20,
		MaxSilenceMS:              2000,
		VADThresholdBytes:         8820,
		SessionTimeoutMS:          1_800_000,
		KeepPartialReplyOnBargeIn: false,
		EnableMetrics:             false,
		DebugAudio:                false,
		LogLevel:                  "info",
		STTProviderName:           "groq",
		LLMProviderName:           "groq",
		TTSProviderName:           "lokutor",
		STTMode:                   "buffered",
		JunkPhrases: []string{
			"uh", "um", "umm", "uh huh", "hmm", "mm", "you", ".", "",
			"subtítulos realizados por la comunidad de amara.org",
		},
	}
}

// LoadConfig reads a .env file (if present) followed by environment
// variables into a Config, starting from DefaultConfig(). Env vars use the
// same names as the spec's config keys, upper-cased
// (SESSION_TIMEOUT_MS, STT_PROVIDER, ...).
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()

	v.SetDefault("sample_rate", cfg.SampleRate)
	v.SetDefault("channels", cfg.Channels)
	v.SetDefault("max_history_messages", cfg.MaxContextMessages)
	v.SetDefault("stt_provider", cfg.STTProviderName)
	v.SetDefault("llm_provider", cfg.LLMProviderName)
	v.SetDefault("tts_provider", cfg.TTSProviderName)
	v.SetDefault("stt_mode", cfg.STTMode)
	v.SetDefault("junk_phrases", cfg.JunkPhrases)
	v.SetDefault("audio_chunk_size_ms", cfg.AudioChunkSizeMS)
	v.SetDefault("max_silence_ms", cfg.MaxSilenceMS)
	v.SetDefault("vad_threshold_bytes", cfg.VADThresholdBytes)
	v.SetDefault("session_timeout_ms", cfg.SessionTimeoutMS)
	v.SetDefault("enable_metrics", cfg.EnableMetrics)
	v.SetDefault("debug_audio", cfg.DebugAudio)
	v.SetDefault("log_level", cfg.LogLevel)

	cfg.SampleRate = v.GetInt("sample_rate")
	cfg.Channels = v.GetInt("channels")
	cfg.MaxContextMessages = v.GetInt("max_history_messages")
	cfg.STTProviderName = v.GetString("stt_provider")
	cfg.LLMProviderName = v.GetString("llm_provider")
	cfg.TTSProviderName = v.GetString("tts_provider")
	cfg.STTMode = v.GetString("stt_mode")
	if phrases := v.GetStringSlice("junk_phrases"); len(phrases) > 0 {
		cfg.JunkPhrases = phrases
	}
	cfg.AudioChunkSizeMS = v.GetInt("audio_chunk_size_ms")
	cfg.MaxSilenceMS = v.GetInt("max_silence_ms")
	cfg.VADThresholdBytes = v.GetInt("vad_threshold_bytes")
	cfg.SessionTimeoutMS = v.GetInt64("session_timeout_ms")
	cfg.EnableMetrics = v.GetBool("enable_metrics")
	cfg.DebugAudio = v.GetBool("debug_audio")
	cfg.LogLevel = v.GetString("log_level")
	if cfg.BytesPerSamp == 0 {
		cfg.BytesPerSamp = 2
	}

	return cfg, nil
}
