package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/lokutor-ai/voicegateway/pkg/orchestrator"
)

// Server upgrades incoming HTTP requests to the /v2/voice duplex websocket
// and spawns one orchestrator pipeline per connection, registered in a
// shared SessionRegistry so the reaper can evict connections whose
// transport died without a clean close.
type Server struct {
	registry *orchestrator.SessionRegistry
	logger   orchestrator.Logger
}

func NewServer(registry *orchestrator.SessionRegistry, logger orchestrator.Logger) *Server {
	if logger == nil {
		logger = &orchestrator.NoOpLogger{}
	}
	return &Server{registry: registry, logger: logger}
}

// ServeHTTP implements http.Handler, accepting the websocket upgrade and
// running the connection until the client disconnects or the request
// context is cancelled.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}

	ctx := r.Context()
	stream, session := s.registry.Create(ctx)
	defer s.registry.Remove(session.ID)
	defer conn.Close(websocket.StatusNormalClosure, "")

	s.logger.Info("session connected", "sessionID", session.ID)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.writeLoop(connCtx, conn, stream, session.ID)
	s.readLoop(connCtx, conn, stream, session)

	s.logger.Info("session disconnected", "sessionID", session.ID)
}

// readLoop consumes frames from the client: JSON control frames are
// dispatched by type, binary frames are forwarded to the pipeline as audio.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, stream *orchestrator.ManagedStream, session *orchestrator.ConversationSession) {
	for {
		msgType, payload, err := conn.Read(ctx)
		if err != nil {
			return
		}

		s.registry.Touch(session.ID)

		switch msgType {
		case websocket.MessageBinary:
			if err := stream.Write(payload); err != nil {
				s.logger.Warn("audio write failed", "sessionID", session.ID, "error", err)
			}
		case websocket.MessageText:
			var msg ClientMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				s.logger.Warn("malformed client frame", "sessionID", session.ID, "error", fmt.Errorf("%w: %v", orchestrator.ErrMessageProcessing, err))
				continue
			}
			s.handleClientMessage(msg, stream, session)
		}
	}
}

func (s *Server) handleClientMessage(msg ClientMessage, stream *orchestrator.ManagedStream, session *orchestrator.ConversationSession) {
	switch msg.Type {
	case ClientInit:
		if msg.SystemPrompt != "" {
			session.AddMessage("system", msg.SystemPrompt)
		}
		if msg.Voice != "" {
			session.SetVoice(msg.Voice)
		}
		if msg.Language != "" {
			session.SetLanguage(msg.Language)
		}
	case ClientMetadata:
		if msg.Voice != "" {
			session.SetVoice(msg.Voice)
		}
		if msg.Language != "" {
			session.SetLanguage(msg.Language)
		}
	case ClientInterrupt:
		stream.Interrupt()
	}
}

// writeLoop relays orchestrator events back to the client as JSON frames,
// except AUDIO_CHUNK events, whose payload is sent as a bare binary frame.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, stream *orchestrator.ManagedStream, sessionID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}

			if ev.Type == orchestrator.AudioChunk {
				chunk, _ := ev.Data.([]byte)
				writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err := conn.Write(writeCtx, websocket.MessageBinary, chunk)
				cancel()
				if err != nil {
					return
				}
				continue
			}

			var msg ServerMessage
			if ev.Type == orchestrator.ErrorEvent {
				payload, ok := ev.Data.(orchestrator.ErrorEventPayload)
				if !ok {
					payload = orchestrator.ErrorEventPayload{Kind: orchestrator.MessageProcessingError, Message: fmt.Sprintf("%v", ev.Data)}
				}
				msg = newErrorMessage(sessionID, payload.Kind, payload.Message)
			} else {
				msg = newEventMessage(sessionID, ev)
			}

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, msg)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
