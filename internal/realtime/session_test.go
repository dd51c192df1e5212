package realtime

import (
	"strings"
	"testing"
	"time"

	"github.com/allballa/dental-scheduler/internal/store"
)

type captureSender struct {
	sent []any
	err  error
}

func (c *captureSender) Send(v any) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, v)
	return nil
}

func testPatient() *store.Patient {
	return &store.Patient{
		ID:             1,
		Name:           "John Doe",
		Phone:          "+15550001111",
		Action:         "a dental cleaning follow-up",
		MedicalHistory: "mild gum disease",
	}
}

func testSlots() []store.Slot {
	return []store.Slot{
		{ID: 1, Date: "2026-03-10", StartTime: "09:00:00", EndTime: "09:30:00"},
		{ID: 2, Date: "2026-03-10", StartTime: "10:00:00", EndTime: "10:30:00"},
		{ID: 3, Date: "2026-03-12", StartTime: "14:00:00", EndTime: "14:30:00"},
		{ID: 4, Date: "2026-03-13", StartTime: "15:00:00", EndTime: "15:30:00"},
	}
}

func TestNewSessionUpdate(t *testing.T) {
	u := NewSessionUpdate("alloy")
	if u.Type != "session.update" {
		t.Fatalf("unexpected type: %s", u.Type)
	}
	s := u.Session
	if s.TurnDetection.Type != "server_vad" || s.TurnDetection.Threshold != 0.5 {
		t.Fatalf("unexpected turn detection: %+v", s.TurnDetection)
	}
	if s.TurnDetection.PrefixPaddingMS != 300 || s.TurnDetection.SilenceDurationMS != 600 {
		t.Fatalf("unexpected vad timings: %+v", s.TurnDetection)
	}
	if s.InputAudioFormat != "g711_ulaw" || s.OutputAudioFormat != "g711_ulaw" {
		t.Fatalf("unexpected audio formats: %+v", s)
	}
	if s.Voice != "alloy" {
		t.Fatalf("unexpected voice: %s", s.Voice)
	}
	if !strings.Contains(s.Instructions, "I have scheduled your appointment for") {
		t.Fatal("instructions missing confirmation phrase contract")
	}
}

func TestInitializeOutboundSequence(t *testing.T) {
	sender := &captureSender{}
	now := time.Date(2026, time.March, 9, 10, 0, 0, 0, time.UTC)

	if err := InitializeOutbound(sender, "alloy", testPatient(), testSlots(), now); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if len(sender.sent) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(sender.sent))
	}

	if _, ok := sender.sent[0].(SessionUpdate); !ok {
		t.Fatalf("first message should be session update, got %T", sender.sent[0])
	}

	system, ok := sender.sent[1].(ItemCreate)
	if !ok || system.Item.Role != "system" {
		t.Fatalf("second message should be system item, got %#v", sender.sent[1])
	}
	text := system.Item.Content[0].Text
	if !strings.Contains(text, "John Doe") {
		t.Fatal("system message missing patient name")
	}
	if !strings.Contains(text, "2026-03-10 09:00:00 to 09:30:00") {
		t.Fatalf("system message missing availability: %s", text)
	}
	if !strings.Contains(text, "March 09, 2026") {
		t.Fatal("system message missing current date")
	}

	greeting, ok := sender.sent[2].(ItemCreate)
	if !ok || greeting.Item.Role != "assistant" {
		t.Fatalf("third message should be assistant greeting, got %#v", sender.sent[2])
	}
	gtext := greeting.Item.Content[0].Text
	if !strings.Contains(gtext, "Hello there John Doe!") {
		t.Fatalf("greeting missing patient name: %s", gtext)
	}
	if !strings.Contains(gtext, "mild gum disease") {
		t.Fatal("greeting missing medical history context")
	}
	// Only the first three slots are spoken.
	if !strings.Contains(gtext, "2026-03-12 14:00:00 to 14:30:00") {
		t.Fatalf("greeting missing third slot: %s", gtext)
	}
	if strings.Contains(gtext, "2026-03-13") {
		t.Fatalf("greeting should mention at most three slots: %s", gtext)
	}

	if _, ok := sender.sent[3].(ResponseCreate); !ok {
		t.Fatalf("fourth message should trigger a response, got %T", sender.sent[3])
	}
}

func TestInitializeOutboundNoSlots(t *testing.T) {
	sender := &captureSender{}
	now := time.Date(2026, time.March, 9, 10, 0, 0, 0, time.UTC)

	if err := InitializeOutbound(sender, "alloy", testPatient(), nil, now); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	greeting := sender.sent[2].(ItemCreate)
	if !strings.Contains(greeting.Item.Content[0].Text, "no open appointment slots") {
		t.Fatalf("greeting should state there are no openings: %s", greeting.Item.Content[0].Text)
	}
}

func TestInitializeInboundSequence(t *testing.T) {
	sender := &captureSender{}
	if err := InitializeInbound(sender, "alloy"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if len(sender.sent) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(sender.sent))
	}
	greeting := sender.sent[1].(ItemCreate)
	if greeting.Item.Role != "assistant" || !strings.Contains(greeting.Item.Content[0].Text, "Thank you for calling") {
		t.Fatalf("unexpected inbound greeting: %#v", greeting)
	}
}
