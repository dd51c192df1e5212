package realtime

import (
	"encoding/json"
	"testing"
)

func TestParseEventKinds(t *testing.T) {
	cases := map[string]EventKind{
		"session.created":                     EventSessionCreated,
		"session.updated":                     EventSessionUpdated,
		"response.audio.delta":                EventAudioDelta,
		"response.audio_transcript.delta":     EventAudioTranscriptDelta,
		"response.audio_transcript.done":      EventAudioTranscriptDone,
		"response.done":                       EventResponseDone,
		"input_audio_buffer.speech_started":   EventSpeechStarted,
		"input_audio_buffer.speech_finished":  EventSpeechFinished,
		"input_audio_buffer.transcript.delta": EventUserTranscriptDelta,
		"input_audio_buffer.transcript.done":  EventUserTranscriptDone,
		"error":                               EventError,
		"rate_limits.updated":                 EventUnknown,
	}
	for typ, want := range cases {
		raw, _ := json.Marshal(map[string]string{"type": typ})
		e, err := ParseEvent(raw)
		if err != nil {
			t.Errorf("parse %s: %v", typ, err)
			continue
		}
		if e.Kind() != want {
			t.Errorf("type %s: got kind %v, want %v", typ, e.Kind(), want)
		}
	}
}

func TestParseEventFields(t *testing.T) {
	raw := `{"type":"response.audio.delta","item_id":"item_1","delta":"dGVzdA=="}`
	e, err := ParseEvent([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if e.ItemID != "item_1" || e.Delta != "dGVzdA==" {
		t.Fatalf("unexpected event: %+v", e)
	}

	raw = `{"type":"error","error":{"type":"invalid_request_error","code":"bad","message":"nope"}}`
	e, err = ParseEvent([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if e.Error == nil {
		t.Fatal("expected decoded error detail")
	}
	want := ErrorDetail{Type: "invalid_request_error", Code: "bad", Message: "nope"}
	if *e.Error != want {
		t.Fatalf("unexpected error detail: %+v", e.Error)
	}
}

func TestCommandShapes(t *testing.T) {
	appendCmd, _ := json.Marshal(NewAudioAppend("dGVzdA=="))
	if string(appendCmd) != `{"type":"input_audio_buffer.append","audio":"dGVzdA=="}` {
		t.Fatalf("unexpected append: %s", appendCmd)
	}

	truncate, _ := json.Marshal(NewItemTruncate("item_1", 1500))
	if string(truncate) != `{"type":"conversation.item.truncate","item_id":"item_1","content_index":0,"audio_end_ms":1500}` {
		t.Fatalf("unexpected truncate: %s", truncate)
	}

	create, _ := json.Marshal(NewResponseCreate())
	if string(create) != `{"type":"response.create"}` {
		t.Fatalf("unexpected response.create: %s", create)
	}

	item := NewTextItem("system", "hello")
	if item.Item.Role != "system" || item.Item.Content[0].Type != "input_text" {
		t.Fatalf("unexpected item: %+v", item)
	}
}
