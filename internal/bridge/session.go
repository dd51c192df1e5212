package bridge

import (
	"sync"

	"github.com/google/uuid"

	"github.com/allballa/dental-scheduler/internal/store"
)

// State is the lifecycle phase of a call session.
type State int

const (
	StateInit State = iota
	StateStreaming
	StateInterrupted
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateStreaming:
		return "streaming"
	case StateInterrupted:
		return "interrupted"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CallSession is the shared state of one live call. Both relay
// goroutines touch it, so every field access goes through the mutex.
type CallSession struct {
	mu sync.Mutex

	id        string
	direction string
	state     State

	streamSID string
	callSID   string

	// latestMediaTS is the most recent caller media timestamp in
	// milliseconds from stream start.
	latestMediaTS int64

	// responseStartTS is the caller timeline position at which the
	// current assistant response started playing, -1 when no
	// response is in flight.
	responseStartTS int64
	activeItemID    string
	pendingMarks    []string

	assistantBuf      string
	lastAssistantText string
	userBuf           string

	pendingSlot *store.Slot
	confirmed   bool
}

// NewCallSession creates session state for one call.
func NewCallSession(direction string) *CallSession {
	return &CallSession{
		id:              uuid.NewString(),
		direction:       direction,
		state:           StateInit,
		responseStartTS: -1,
	}
}

// ID is the session's unique identifier, used in logs.
func (s *CallSession) ID() string { return s.id }

// Direction is "inbound" or "outbound".
func (s *CallSession) Direction() string { return s.direction }

// State returns the current lifecycle phase.
func (s *CallSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartStream records the stream identity and moves to Streaming.
func (s *CallSession) StartStream(streamSID, callSID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamSID = streamSID
	s.callSID = callSID
	if s.state == StateInit {
		s.state = StateStreaming
	}
}

// StreamSID returns the Twilio stream identifier, empty before the
// start frame arrives.
func (s *CallSession) StreamSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSID
}

// CallSID returns the Twilio call identifier.
func (s *CallSession) CallSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callSID
}

// NoteMedia advances the caller timeline.
func (s *CallSession) NoteMedia(timestampMS int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latestMediaTS = timestampMS
}

// LatestMediaTimestamp returns the caller timeline position.
func (s *CallSession) LatestMediaTimestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestMediaTS
}

// BeginAudioDelta records that assistant audio is flowing. The first
// delta of a response pins the response start to the current caller
// timeline position; later deltas only refresh the active item.
func (s *CallSession) BeginAudioDelta(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.responseStartTS < 0 {
		s.responseStartTS = s.latestMediaTS
	}
	if itemID != "" {
		s.activeItemID = itemID
	}
	if s.state == StateInterrupted {
		s.state = StateStreaming
	}
}

// PushMark queues a mark name awaiting Twilio's acknowledgment.
func (s *CallSession) PushMark(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingMarks = append(s.pendingMarks, name)
}

// PopMark removes the oldest pending mark. Acknowledgments arriving
// after a barge-in reset find an empty queue and report false.
func (s *CallSession) PopMark() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pendingMarks) == 0 {
		return "", false
	}
	name := s.pendingMarks[0]
	s.pendingMarks = s.pendingMarks[1:]
	return name, true
}

// PendingMarks returns the number of unacknowledged marks.
func (s *CallSession) PendingMarks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingMarks)
}

// Interrupt performs the session-side half of a barge-in. It returns
// the item to truncate and how many milliseconds of it the caller
// actually heard, and resets the playback bookkeeping. It reports
// false when no assistant response is in flight.
func (s *CallSession) Interrupt() (itemID string, audioEndMS int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeItemID == "" || s.responseStartTS < 0 {
		return "", 0, false
	}
	audioEndMS = s.latestMediaTS - s.responseStartTS
	if audioEndMS < 0 {
		audioEndMS = 0
	}
	itemID = s.activeItemID
	s.activeItemID = ""
	s.responseStartTS = -1
	s.pendingMarks = nil
	s.state = StateInterrupted
	return itemID, audioEndMS, true
}

// ActiveItemID returns the assistant item currently playing.
func (s *CallSession) ActiveItemID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeItemID
}

// EndResponse resets playback bookkeeping when a response finishes
// on its own.
func (s *CallSession) EndResponse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeItemID = ""
	s.responseStartTS = -1
}

// AppendAssistantText accumulates assistant transcript deltas.
func (s *CallSession) AppendAssistantText(delta string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assistantBuf += delta
}

// FinishAssistantText finalizes the assistant utterance. The done
// event's own transcript wins over the accumulated deltas when
// present.
func (s *CallSession) FinishAssistantText(final string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := final
	if text == "" {
		text = s.assistantBuf
	}
	s.assistantBuf = ""
	s.lastAssistantText = text
	return text
}

// LastAssistantText returns the most recent finalized assistant
// utterance.
func (s *CallSession) LastAssistantText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAssistantText
}

// AppendUserText accumulates caller transcript deltas.
func (s *CallSession) AppendUserText(delta string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userBuf += delta
}

// FinishUserText finalizes the caller utterance.
func (s *CallSession) FinishUserText(final string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := final
	if text == "" {
		text = s.userBuf
	}
	s.userBuf = ""
	return text
}

// SetPendingSlot remembers the slot most recently offered to the
// caller.
func (s *CallSession) SetPendingSlot(slot *store.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingSlot = slot
}

// PendingSlot returns the offered slot, nil when none.
func (s *CallSession) PendingSlot() *store.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingSlot
}

// MarkConfirmed records that an appointment was booked on this call.
// Only the first call flips it; later responses must not book again.
func (s *CallSession) MarkConfirmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmed {
		return false
	}
	s.confirmed = true
	s.pendingSlot = nil
	return true
}

// Confirmed reports whether a booking already happened on this call.
func (s *CallSession) Confirmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmed
}

// BeginClosing moves to Closing. It reports false if the session was
// already closing or closed.
func (s *CallSession) BeginClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosing || s.state == StateClosed {
		return false
	}
	s.state = StateClosing
	return true
}

// IsClosing reports whether shutdown has started.
func (s *CallSession) IsClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateClosing || s.state == StateClosed
}

// Close marks the session fully closed.
func (s *CallSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
}
