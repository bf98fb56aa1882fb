// Command gateway runs the websocket voice gateway: one session per
// connection at /v2/voice, backed by a shared session registry and a
// pluggable STT/LLM/TTS provider stack selected by environment variable.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lokutor-ai/voicegateway/pkg/httpapi"
	"github.com/lokutor-ai/voicegateway/pkg/orchestrator"
	llmProvider "github.com/lokutor-ai/voicegateway/pkg/providers/llm"
	sttProvider "github.com/lokutor-ai/voicegateway/pkg/providers/stt"
	ttsProvider "github.com/lokutor-ai/voicegateway/pkg/providers/tts"
	"github.com/lokutor-ai/voicegateway/pkg/wire"
)

func main() {
	cfg, err := orchestrator.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := orchestrator.NewProductionZapLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	vad := orchestrator.NewRMSVAD(0.02, 500*time.Millisecond)

	// Each session gets its own STT/LLM/TTS instances (see
	// Orchestrator.NewWithFactories) so that stateful backends — Lokutor's
	// persistent synthesis websocket, Deepgram's push-transcript
	// connection — can't have one session's Cancel or disconnect reach
	// into another session's in-flight turn.
	orch, err := orchestrator.NewWithFactories(
		func() (orchestrator.STTProvider, error) { return buildSTT(cfg) },
		func() (orchestrator.LLMProvider, error) { return buildLLM(cfg) },
		func() (orchestrator.TTSProvider, error) { return buildTTS(cfg) },
		vad, cfg, logger,
	)
	if err != nil {
		logger.Error("provider setup failed", "error", err)
		os.Exit(1)
	}

	var metricsHandler http.Handler
	if cfg.EnableMetrics {
		reg := prometheus.NewRegistry()
		orch.SetMetrics(orchestrator.NewMetrics(reg))
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	registry := orchestrator.NewSessionRegistry(orch, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registry.StartReaper(ctx)
	defer registry.StopReaper()
	defer registry.CloseAll()

	voiceServer := wire.NewServer(registry, logger)
	router := httpapi.NewRouter(orch, registry, voiceServer, metricsHandler)

	addr := os.Getenv("GATEWAY_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		logger.Info("gateway listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// buildSTT constructs the configured STT backend and adapts it according to
// cfg.STTMode: "streaming" uses the backend's native push-transcript
// connection directly (failing construction if it doesn't have one), while
// "buffered" (the default, and the only option for the one-shot REST
// backends) wraps it in BufferedSTT's accumulate-and-sweep policy.
func buildSTT(cfg orchestrator.Config) (orchestrator.STTProvider, error) {
	backend, err := buildSTTBackend(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.STTMode {
	case "streaming":
		if _, ok := backend.(orchestrator.StreamingSTTProvider); !ok {
			return nil, fmt.Errorf("stt_provider=%q has no streaming mode; use deepgram-streaming or stt_mode=buffered", cfg.STTProviderName)
		}
		return backend, nil
	case "buffered":
		fallthrough
	default:
		return sttProvider.NewBufferedSTT(backend, cfg.JunkPhrases), nil
	}
}

func buildSTTBackend(cfg orchestrator.Config) (orchestrator.STTProvider, error) {
	switch cfg.STTProviderName {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY must be set for openai STT")
		}
		return sttProvider.NewOpenAISTT(key, "whisper-1"), nil
	case "deepgram":
		key := os.Getenv("DEEPGRAM_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY must be set for deepgram STT")
		}
		return sttProvider.NewDeepgramSTT(key), nil
	case "deepgram-streaming":
		key := os.Getenv("DEEPGRAM_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY must be set for deepgram streaming STT")
		}
		return sttProvider.NewDeepgramStreamingSTT(key), nil
	case "assemblyai":
		key := os.Getenv("ASSEMBLYAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ASSEMBLYAI_API_KEY must be set for assemblyai STT")
		}
		return sttProvider.NewAssemblyAISTT(key), nil
	case "groq":
		fallthrough
	default:
		key := os.Getenv("GROQ_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("GROQ_API_KEY must be set for groq STT")
		}
		model := os.Getenv("GROQ_STT_MODEL")
		if model == "" {
			model = "whisper-large-v3-turbo"
		}
		return sttProvider.NewGroqSTT(key, model), nil
	}
}

func buildLLM(cfg orchestrator.Config) (orchestrator.LLMProvider, error) {
	switch cfg.LLMProviderName {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY must be set for openai LLM")
		}
		return llmProvider.NewOpenAILLM(key, "gpt-4o"), nil
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY must be set for anthropic LLM")
		}
		return llmProvider.NewAnthropicLLM(key, "claude-3-5-sonnet-20241022"), nil
	case "google":
		key := os.Getenv("GOOGLE_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY must be set for google LLM")
		}
		return llmProvider.NewGoogleLLM(key, "gemini-1.5-flash"), nil
	case "groq":
		fallthrough
	default:
		key := os.Getenv("GROQ_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("GROQ_API_KEY must be set for groq LLM")
		}
		return llmProvider.NewGroqLLM(key, "llama-3.3-70b-versatile"), nil
	}
}

func buildTTS(cfg orchestrator.Config) (orchestrator.TTSProvider, error) {
	key := os.Getenv("LOKUTOR_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("LOKUTOR_API_KEY must be set")
	}
	return ttsProvider.NewLokutorTTS(key), nil
}
