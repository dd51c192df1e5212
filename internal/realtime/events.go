// Package realtime speaks the OpenAI Realtime API over a websocket:
// session setup, outbound commands, and the inbound event stream.
package realtime

import (
	"encoding/json"
	"fmt"
)

// EventKind identifies a decoded server event.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventSessionCreated
	EventSessionUpdated
	EventAudioDelta
	EventAudioTranscriptDelta
	EventAudioTranscriptDone
	EventResponseDone
	EventSpeechStarted
	EventSpeechFinished
	EventUserTranscriptDelta
	EventUserTranscriptDone
	EventError
)

// Event is one message from the model. Only the fields relevant to
// the event type are populated; everything else in the envelope is
// ignored.
type Event struct {
	Type       string      `json:"type"`
	Delta      string      `json:"delta,omitempty"`
	Transcript string      `json:"transcript,omitempty"`
	ItemID     string      `json:"item_id,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail carries the detail of a server-side error event.
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Kind classifies the event. Types this build does not handle
// decode as EventUnknown and are skipped by callers.
func (e *Event) Kind() EventKind {
	switch e.Type {
	case "session.created":
		return EventSessionCreated
	case "session.updated":
		return EventSessionUpdated
	case "response.audio.delta":
		return EventAudioDelta
	case "response.audio_transcript.delta":
		return EventAudioTranscriptDelta
	case "response.audio_transcript.done":
		return EventAudioTranscriptDone
	case "response.done":
		return EventResponseDone
	case "input_audio_buffer.speech_started":
		return EventSpeechStarted
	case "input_audio_buffer.speech_finished":
		return EventSpeechFinished
	case "input_audio_buffer.transcript.delta":
		return EventUserTranscriptDelta
	case "input_audio_buffer.transcript.done":
		return EventUserTranscriptDone
	case "error":
		return EventError
	default:
		return EventUnknown
	}
}

// ParseEvent decodes one server message.
func ParseEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("realtime: decode event: %w", err)
	}
	return &e, nil
}

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
}

// SessionConfig is the session block of a session.update command.
type SessionConfig struct {
	TurnDetection     TurnDetection `json:"turn_detection"`
	InputAudioFormat  string        `json:"input_audio_format"`
	OutputAudioFormat string        `json:"output_audio_format"`
	Voice             string        `json:"voice"`
	Instructions      string        `json:"instructions"`
	Modalities        []string      `json:"modalities"`
	Temperature       float64       `json:"temperature"`
}

// SessionUpdate configures the realtime session.
type SessionUpdate struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

// AudioAppend pushes one chunk of caller audio into the input buffer.
type AudioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// NewAudioAppend wraps a base64 payload for the input buffer.
func NewAudioAppend(audio string) AudioAppend {
	return AudioAppend{Type: "input_audio_buffer.append", Audio: audio}
}

// ContentPart is one content entry of a conversation item.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ConversationItem is a message injected into the conversation.
type ConversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ItemCreate injects a conversation item.
type ItemCreate struct {
	Type string           `json:"type"`
	Item ConversationItem `json:"item"`
}

// NewTextItem builds a conversation.item.create command carrying one
// text part for the given role.
func NewTextItem(role, text string) ItemCreate {
	return ItemCreate{
		Type: "conversation.item.create",
		Item: ConversationItem{
			Type:    "message",
			Role:    role,
			Content: []ContentPart{{Type: "input_text", Text: text}},
		},
	}
}

// ResponseCreate asks the model to produce its next response.
type ResponseCreate struct {
	Type string `json:"type"`
}

// NewResponseCreate builds a response.create command.
func NewResponseCreate() ResponseCreate {
	return ResponseCreate{Type: "response.create"}
}

// ItemTruncate cuts an in-flight assistant item at the point the
// caller has actually heard.
type ItemTruncate struct {
	Type         string `json:"type"`
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMS   int64  `json:"audio_end_ms"`
}

// NewItemTruncate builds a conversation.item.truncate command.
func NewItemTruncate(itemID string, audioEndMS int64) ItemTruncate {
	return ItemTruncate{
		Type:       "conversation.item.truncate",
		ItemID:     itemID,
		AudioEndMS: audioEndMS,
	}
}
