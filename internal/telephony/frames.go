// Package telephony speaks the Twilio side of a call: media-stream
// frames, TwiML documents, and the REST API for placing calls.
package telephony

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FrameKind identifies a decoded media-stream frame.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameConnected
	FrameStart
	FrameMedia
	FrameMark
	FrameStop
)

// Frame is one inbound message on the media-stream socket. Exactly
// one of the payload pointers is set, matching Event.
type Frame struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid,omitempty"`
	Start     *StartPayload `json:"start,omitempty"`
	Media     *MediaPayload `json:"media,omitempty"`
	Mark      *MarkPayload  `json:"mark,omitempty"`
	Stop      *StopPayload  `json:"stop,omitempty"`
}

// StartPayload announces the stream and the call it belongs to.
type StartPayload struct {
	StreamSID        string            `json:"streamSid"`
	CallSID          string            `json:"callSid"`
	AccountSID       string            `json:"accountSid"`
	Tracks           []string          `json:"tracks"`
	CustomParameters map[string]string `json:"customParameters"`
}

// MediaPayload carries one chunk of base64 G.711 audio. Timestamp is
// milliseconds from stream start, sent as a string on the wire.
type MediaPayload struct {
	Track     string `json:"track"`
	Chunk     string `json:"chunk"`
	Timestamp string `json:"timestamp"`
	Payload   string `json:"payload"`
}

// TimestampMS parses the wire timestamp.
func (m *MediaPayload) TimestampMS() (int64, error) {
	ts, err := strconv.ParseInt(m.Timestamp, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telephony: bad media timestamp %q: %w", m.Timestamp, err)
	}
	return ts, nil
}

// MarkPayload acknowledges playback of a previously sent mark.
type MarkPayload struct {
	Name string `json:"name"`
}

// StopPayload ends the stream.
type StopPayload struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

// Kind classifies the frame. Events this build does not handle
// decode as FrameUnknown and are skipped by callers.
func (f *Frame) Kind() FrameKind {
	switch f.Event {
	case "connected":
		return FrameConnected
	case "start":
		return FrameStart
	case "media":
		return FrameMedia
	case "mark":
		return FrameMark
	case "stop":
		return FrameStop
	default:
		return FrameUnknown
	}
}

// ParseFrame decodes one media-stream message.
func ParseFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("telephony: decode frame: %w", err)
	}
	return &f, nil
}

type mediaBody struct {
	Payload string `json:"payload"`
}

type markBody struct {
	Name string `json:"name"`
}

// MediaMessage sends one chunk of base64 audio to the caller.
type MediaMessage struct {
	Event     string    `json:"event"`
	StreamSID string    `json:"streamSid"`
	Media     mediaBody `json:"media"`
}

// MarkMessage asks Twilio to acknowledge when playback reaches this
// point in the audio queue.
type MarkMessage struct {
	Event     string   `json:"event"`
	StreamSID string   `json:"streamSid"`
	Mark      markBody `json:"mark"`
}

// ClearMessage flushes all queued audio on the caller's side.
type ClearMessage struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
}

// NewMediaMessage builds an outbound media frame.
func NewMediaMessage(streamSID, payload string) MediaMessage {
	return MediaMessage{Event: "media", StreamSID: streamSID, Media: mediaBody{Payload: payload}}
}

// NewMarkMessage builds an outbound mark frame.
func NewMarkMessage(streamSID, name string) MarkMessage {
	return MarkMessage{Event: "mark", StreamSID: streamSID, Mark: markBody{Name: name}}
}

// NewClearMessage builds an outbound clear frame.
func NewClearMessage(streamSID string) ClearMessage {
	return ClearMessage{Event: "clear", StreamSID: streamSID}
}
