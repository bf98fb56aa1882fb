// Package wire implements the duplex client<->server protocol spoken over
// the /v2/voice websocket: JSON text frames carrying control messages,
// interleaved with raw binary frames carrying PCM audio.
package wire

import (
	"time"

	"github.com/lokutor-ai/voicegateway/pkg/orchestrator"
)

// ClientMessageType discriminates the JSON control frames a client may
// send. Raw binary frames (audio) never carry a type field — they are
// recognized by websocket message kind, not by content.
type ClientMessageType string

const (
	// ClientInit opens a session: voice/language/system-prompt selection.
	ClientInit ClientMessageType = "init"
	// ClientMetadata updates session metadata mid-connection (voice swap,
	// language swap, arbitrary key/value annotations).
	ClientMetadata ClientMessageType = "metadata"
	// ClientInterrupt requests an explicit barge-in, independent of VAD
	// (e.g. a client-side "stop talking" button).
	ClientInterrupt ClientMessageType = "interrupt"
)

// ClientMessage is the envelope for every JSON frame sent by the client.
type ClientMessage struct {
	Type         ClientMessageType     `json:"type"`
	Voice        orchestrator.Voice    `json:"voice,omitempty"`
	Language     orchestrator.Language `json:"language,omitempty"`
	SystemPrompt string                `json:"system_prompt,omitempty"`
	Metadata     map[string]string     `json:"metadata,omitempty"`
}

// ServerMessageType discriminates the JSON control frames the server sends.
type ServerMessageType string

const (
	ServerEvent ServerMessageType = "event"
	ServerError ServerMessageType = "error"
)

// ServerMessage is the envelope for every JSON frame sent by the server.
// AUDIO_CHUNK events have no JSON frame: their payload is sent on its own
// as a binary frame. Every JSON frame carries Timestamp (milliseconds since
// epoch) so a client can order and correlate events across the duplex
// stream.
type ServerMessage struct {
	Type      ServerMessageType      `json:"type"`
	SessionID string                 `json:"session_id"`
	Event     orchestrator.EventType `json:"event,omitempty"`
	Data      interface{}            `json:"data,omitempty"`
	Error     orchestrator.ErrorKind `json:"error,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func newEventMessage(sessionID string, ev orchestrator.OrchestratorEvent) ServerMessage {
	return ServerMessage{
		Type:      ServerEvent,
		SessionID: sessionID,
		Event:     ev.Type,
		Data:      ev.Data,
		Timestamp: time.Now().UnixMilli(),
	}
}

func newErrorMessage(sessionID string, kind orchestrator.ErrorKind, message string) ServerMessage {
	return ServerMessage{
		Type:      ServerError,
		SessionID: sessionID,
		Error:     kind,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
}
