package bridge

import (
	"testing"
)

func TestSessionLifecycle(t *testing.T) {
	s := NewCallSession("outbound")
	if s.State() != StateInit {
		t.Fatalf("expected init state, got %v", s.State())
	}
	if s.ID() == "" {
		t.Fatal("expected session id")
	}

	s.StartStream("MZ123", "CA456")
	if s.State() != StateStreaming {
		t.Fatalf("expected streaming state, got %v", s.State())
	}
	if s.StreamSID() != "MZ123" || s.CallSID() != "CA456" {
		t.Fatalf("unexpected identifiers: %s/%s", s.StreamSID(), s.CallSID())
	}

	if !s.BeginClosing() {
		t.Fatal("expected closing transition")
	}
	if s.BeginClosing() {
		t.Fatal("closing should not transition twice")
	}
	s.Close()
	if s.State() != StateClosed {
		t.Fatalf("expected closed state, got %v", s.State())
	}
}

func TestMarkQueueFIFO(t *testing.T) {
	s := NewCallSession("outbound")
	s.PushMark("responsePart")
	s.PushMark("responsePart")
	s.PushMark("responsePart")
	if s.PendingMarks() != 3 {
		t.Fatalf("expected 3 pending marks, got %d", s.PendingMarks())
	}
	for i := 0; i < 3; i++ {
		if _, ok := s.PopMark(); !ok {
			t.Fatalf("pop %d failed", i)
		}
	}
	if _, ok := s.PopMark(); ok {
		t.Fatal("pop on empty queue should report false")
	}
}

func TestInterruptComputesHeardAudio(t *testing.T) {
	s := NewCallSession("outbound")
	s.StartStream("MZ123", "CA456")

	s.NoteMedia(400)
	s.BeginAudioDelta("item_1")
	s.PushMark("responsePart")
	s.PushMark("responsePart")
	s.NoteMedia(1500)

	itemID, audioEndMS, ok := s.Interrupt()
	if !ok {
		t.Fatal("expected interrupt")
	}
	if itemID != "item_1" {
		t.Fatalf("unexpected item: %s", itemID)
	}
	if audioEndMS != 1100 {
		t.Fatalf("expected 1100ms heard, got %d", audioEndMS)
	}
	if s.PendingMarks() != 0 {
		t.Fatalf("marks should reset, got %d", s.PendingMarks())
	}
	if s.ActiveItemID() != "" {
		t.Fatal("active item should reset")
	}
	if s.State() != StateInterrupted {
		t.Fatalf("expected interrupted state, got %v", s.State())
	}

	// Nothing in flight anymore.
	if _, _, ok := s.Interrupt(); ok {
		t.Fatal("second interrupt should report false")
	}

	// New audio resumes streaming.
	s.BeginAudioDelta("item_2")
	if s.State() != StateStreaming {
		t.Fatalf("expected streaming after new audio, got %v", s.State())
	}
}

func TestInterruptClampsNegativeElapsed(t *testing.T) {
	s := NewCallSession("outbound")
	s.NoteMedia(500)
	s.BeginAudioDelta("item_1")
	// Timestamp regression, e.g. a stream restart.
	s.NoteMedia(100)

	_, audioEndMS, ok := s.Interrupt()
	if !ok {
		t.Fatal("expected interrupt")
	}
	if audioEndMS != 0 {
		t.Fatalf("expected clamp to zero, got %d", audioEndMS)
	}
}

func TestResponseStartPinsToFirstDelta(t *testing.T) {
	s := NewCallSession("outbound")
	s.NoteMedia(200)
	s.BeginAudioDelta("item_1")
	s.NoteMedia(900)
	// Later deltas must not move the response start.
	s.BeginAudioDelta("item_1")
	s.NoteMedia(1000)

	_, audioEndMS, _ := s.Interrupt()
	if audioEndMS != 800 {
		t.Fatalf("expected 800ms from first delta, got %d", audioEndMS)
	}
}

func TestTranscriptAccumulation(t *testing.T) {
	s := NewCallSession("outbound")
	s.AppendAssistantText("I have scheduled ")
	s.AppendAssistantText("your appointment.")
	if got := s.FinishAssistantText(""); got != "I have scheduled your appointment." {
		t.Fatalf("unexpected accumulated text: %q", got)
	}
	// The done transcript wins when present.
	s.AppendAssistantText("partial")
	if got := s.FinishAssistantText("full transcript"); got != "full transcript" {
		t.Fatalf("expected final transcript, got %q", got)
	}
	// Buffer resets after finish.
	if got := s.FinishAssistantText(""); got != "" {
		t.Fatalf("expected empty buffer, got %q", got)
	}
	if s.LastAssistantText() != "" {
		t.Fatalf("unexpected last text: %q", s.LastAssistantText())
	}
}

func TestConfirmedOnlyOnce(t *testing.T) {
	s := NewCallSession("outbound")
	if !s.MarkConfirmed() {
		t.Fatal("first confirmation should succeed")
	}
	if s.MarkConfirmed() {
		t.Fatal("second confirmation should be rejected")
	}
	if !s.Confirmed() {
		t.Fatal("expected confirmed")
	}
}
