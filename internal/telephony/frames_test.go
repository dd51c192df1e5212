package telephony

import (
	"encoding/json"
	"testing"
)

func TestParseFrameMedia(t *testing.T) {
	raw := `{"event":"media","streamSid":"MZ123","media":{"track":"inbound","chunk":"4","timestamp":"1520","payload":"dGVzdA=="}}`
	f, err := ParseFrame([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Kind() != FrameMedia {
		t.Fatalf("expected media frame, got %v", f.Kind())
	}
	ts, err := f.Media.TimestampMS()
	if err != nil {
		t.Fatalf("timestamp: %v", err)
	}
	if ts != 1520 {
		t.Fatalf("expected 1520, got %d", ts)
	}
	if f.Media.Payload != "dGVzdA==" {
		t.Fatalf("unexpected payload: %s", f.Media.Payload)
	}
}

func TestParseFrameStart(t *testing.T) {
	raw := `{"event":"start","start":{"streamSid":"MZ123","callSid":"CA456","accountSid":"AC1","tracks":["inbound"]}}`
	f, err := ParseFrame([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Kind() != FrameStart {
		t.Fatalf("expected start frame, got %v", f.Kind())
	}
	if f.Start.StreamSID != "MZ123" || f.Start.CallSID != "CA456" {
		t.Fatalf("unexpected start payload: %+v", f.Start)
	}
}

func TestParseFrameMark(t *testing.T) {
	raw := `{"event":"mark","streamSid":"MZ123","mark":{"name":"responsePart"}}`
	f, err := ParseFrame([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Kind() != FrameMark || f.Mark.Name != "responsePart" {
		t.Fatalf("unexpected mark frame: %+v", f)
	}
}

func TestParseFrameUnknown(t *testing.T) {
	f, err := ParseFrame([]byte(`{"event":"dtmf","streamSid":"MZ123"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Kind() != FrameUnknown {
		t.Fatalf("expected unknown frame, got %v", f.Kind())
	}
}

func TestParseFrameBadJSON(t *testing.T) {
	if _, err := ParseFrame([]byte(`{`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestMediaTimestampMalformed(t *testing.T) {
	m := MediaPayload{Timestamp: "abc"}
	if _, err := m.TimestampMS(); err == nil {
		t.Fatal("expected timestamp parse error")
	}
}

func TestOutboundMessageShapes(t *testing.T) {
	media, err := json.Marshal(NewMediaMessage("MZ123", "dGVzdA=="))
	if err != nil {
		t.Fatalf("marshal media: %v", err)
	}
	if string(media) != `{"event":"media","streamSid":"MZ123","media":{"payload":"dGVzdA=="}}` {
		t.Fatalf("unexpected media message: %s", media)
	}

	mark, err := json.Marshal(NewMarkMessage("MZ123", "responsePart"))
	if err != nil {
		t.Fatalf("marshal mark: %v", err)
	}
	if string(mark) != `{"event":"mark","streamSid":"MZ123","mark":{"name":"responsePart"}}` {
		t.Fatalf("unexpected mark message: %s", mark)
	}

	clear, err := json.Marshal(NewClearMessage("MZ123"))
	if err != nil {
		t.Fatalf("marshal clear: %v", err)
	}
	if string(clear) != `{"event":"clear","streamSid":"MZ123"}` {
		t.Fatalf("unexpected clear message: %s", clear)
	}
}
