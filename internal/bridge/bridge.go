// Package bridge relays audio between a live Twilio call and the
// OpenAI Realtime API and drives the scheduling conversation on top
// of the relay.
package bridge

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/allballa/dental-scheduler/internal/observability/metrics"
	"github.com/allballa/dental-scheduler/internal/realtime"
	"github.com/allballa/dental-scheduler/internal/scheduling"
	"github.com/allballa/dental-scheduler/internal/store"
	"github.com/allballa/dental-scheduler/internal/telephony"
	"github.com/allballa/dental-scheduler/pkg/logging"
)

// markName labels every queued chunk of assistant audio. Twilio
// echoes it back when playback reaches that point.
const markName = "responsePart"

// goodbyePhrases end the call once the assistant says one of them.
var goodbyePhrases = []string{
	"have a great day",
	"look forward to seeing you",
	"thanks for calling",
	"goodbye",
	"take care",
}

func containsGoodbye(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range goodbyePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// AIConn is the model side of the relay.
type AIConn interface {
	Send(v any) error
	Next(timeout time.Duration) (*realtime.Event, error)
	Ping() error
	Close() error
}

// CallerConn is the Twilio side of the relay. gorilla's *websocket.Conn
// satisfies it.
type CallerConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	Close() error
}

// Booker persists a confirmed booking.
type Booker interface {
	BookSlot(ctx context.Context, req store.BookingRequest) error
}

// Notifier fans a confirmed booking out to the patient.
type Notifier interface {
	BookingConfirmed(ctx context.Context, patient *store.Patient, slot store.Slot) error
}

// Config tunes one bridge run.
type Config struct {
	// AIReadTimeout bounds each wait for a model event. On expiry
	// liveness is probed and the wait continues.
	AIReadTimeout time.Duration
	// GoodbyeGrace is how long the farewell audio gets to play out
	// before the call is torn down.
	GoodbyeGrace time.Duration
	// DoctorID is attached to bookings made on this call.
	DoctorID int64
}

// Bridge runs one call: two relay goroutines over an exclusively
// owned CallSession.
type Bridge struct {
	session *CallSession
	caller  CallerConn
	ai      AIConn

	patient      *store.Patient
	availability []store.Slot

	booker      Booker
	detector    *scheduling.Detector
	extractor   scheduling.Extractor
	notifier    Notifier
	transcripts *TranscriptStore
	metrics     *metrics.CallMetrics
	logger      *logging.Logger
	cfg         Config
	now         func() time.Time
}

// New wires a bridge for one call. booker, extractor, notifier and
// transcripts may be nil; the matching behavior is skipped. patient
// and availability are nil for inbound calls, which converse without
// the booking path.
func New(session *CallSession, caller CallerConn, ai AIConn, opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	cfg := opts.Config
	if cfg.AIReadTimeout <= 0 {
		cfg.AIReadTimeout = 60 * time.Second
	}
	if cfg.DoctorID == 0 {
		cfg.DoctorID = 1
	}
	return &Bridge{
		session:      session,
		caller:       caller,
		ai:           ai,
		patient:      opts.Patient,
		availability: opts.Availability,
		booker:       opts.Booker,
		detector:     opts.Detector,
		extractor:    opts.Extractor,
		notifier:     opts.Notifier,
		transcripts:  opts.Transcripts,
		metrics:      opts.Metrics,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
}

// Options collects the bridge collaborators.
type Options struct {
	Patient      *store.Patient
	Availability []store.Slot
	Booker       Booker
	Detector     *scheduling.Detector
	Extractor    scheduling.Extractor
	Notifier     Notifier
	Transcripts  *TranscriptStore
	Metrics      *metrics.CallMetrics
	Logger       *logging.Logger
	Config       Config
}

// Run relays until either side ends the call, then tears both
// connections down.
func (b *Bridge) Run(ctx context.Context) error {
	b.metrics.CallStarted(b.session.Direction())
	b.logger.Info("call bridge started",
		"session_id", b.session.ID(),
		"direction", b.session.Direction())

	errc := make(chan error, 2)
	go func() { errc <- b.receiveFromCaller(ctx) }()
	go func() { errc <- b.relayFromModel(ctx) }()

	err := <-errc
	b.shutdown()
	<-errc

	b.session.Close()
	reason := "completed"
	if err != nil {
		reason = "error"
	}
	b.metrics.CallClosed(b.session.Direction(), reason)
	b.logger.Info("call bridge finished",
		"session_id", b.session.ID(),
		"confirmed", b.session.Confirmed(),
		"error", err)
	return err
}

// shutdown closes both sockets so the peer loop unblocks.
func (b *Bridge) shutdown() {
	b.session.BeginClosing()
	b.ai.Close()
	b.caller.Close()
}

// receiveFromCaller pumps Twilio frames: media to the model, marks
// off the queue, stream lifecycle into the session.
func (b *Bridge) receiveFromCaller(ctx context.Context) error {
	for {
		_, data, err := b.caller.ReadMessage()
		if err != nil {
			if b.session.IsClosing() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		frame, err := telephony.ParseFrame(data)
		if err != nil {
			b.logger.Warn("skipping undecodable caller frame", "error", err)
			continue
		}

		switch frame.Kind() {
		case telephony.FrameStart:
			b.session.StartStream(frame.Start.StreamSID, frame.Start.CallSID)
			b.logger.Info("media stream started",
				"session_id", b.session.ID(),
				"stream_sid", frame.Start.StreamSID,
				"call_sid", frame.Start.CallSID)

		case telephony.FrameMedia:
			ts, err := frame.Media.TimestampMS()
			if err != nil {
				b.logger.Warn("skipping media frame with bad timestamp", "error", err)
				continue
			}
			b.session.NoteMedia(ts)
			if err := b.ai.Send(realtime.NewAudioAppend(frame.Media.Payload)); err != nil {
				if b.session.IsClosing() {
					return nil
				}
				return err
			}

		case telephony.FrameMark:
			if _, ok := b.session.PopMark(); !ok {
				// Stale acknowledgment from before a barge-in reset.
				b.logger.Debug("mark acknowledgment with empty queue",
					"session_id", b.session.ID())
			}

		case telephony.FrameStop:
			b.logger.Info("media stream stopped", "session_id", b.session.ID())
			return nil

		default:
			// connected and unrecognized events carry nothing to relay.
		}
	}
}

// relayFromModel pumps model events: audio and marks to the caller,
// transcripts into the conversation logic.
func (b *Bridge) relayFromModel(ctx context.Context) error {
	for {
		event, err := b.ai.Next(b.cfg.AIReadTimeout)
		if errors.Is(err, realtime.ErrTimeout) {
			if b.session.IsClosing() {
				return nil
			}
			// Silence for a full window; make sure the model side is alive.
			if err := b.ai.Ping(); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			if b.session.IsClosing() || errors.Is(err, realtime.ErrClosed) ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		hangup, err := b.handleModelEvent(ctx, event)
		if err != nil {
			if b.session.IsClosing() {
				return nil
			}
			return err
		}
		if hangup {
			return nil
		}
	}
}

// handleModelEvent dispatches one model event. It reports whether
// the call should now end.
func (b *Bridge) handleModelEvent(ctx context.Context, event *realtime.Event) (bool, error) {
	switch event.Kind() {
	case realtime.EventAudioDelta:
		return false, b.forwardAudio(event)

	case realtime.EventAudioTranscriptDelta:
		b.session.AppendAssistantText(event.Delta)

	case realtime.EventAudioTranscriptDone:
		text := b.session.FinishAssistantText(event.Transcript)
		b.appendTranscript(ctx, "assistant", text)
		b.maybeBook(ctx, text)

	case realtime.EventResponseDone:
		b.session.EndResponse()
		if containsGoodbye(b.session.LastAssistantText()) {
			b.logger.Info("assistant farewell detected, closing call",
				"session_id", b.session.ID())
			// Let the farewell audio reach the caller before hanging up.
			time.Sleep(b.cfg.GoodbyeGrace)
			b.shutdown()
			return true, nil
		}

	case realtime.EventSpeechStarted:
		b.handleInterruption()

	case realtime.EventSpeechFinished:
		b.logger.Debug("caller speech finished", "session_id", b.session.ID())

	case realtime.EventUserTranscriptDelta:
		b.session.AppendUserText(event.Delta)

	case realtime.EventUserTranscriptDone:
		text := b.session.FinishUserText(event.Transcript)
		b.appendTranscript(ctx, "user", text)
		if b.session.Direction() == "inbound" && containsGoodbye(text) {
			b.logger.Info("caller farewell detected, closing call",
				"session_id", b.session.ID())
			if err := b.injectText("Thank you for calling! Goodbye."); err != nil {
				b.logger.Warn("farewell injection failed",
					"session_id", b.session.ID(),
					"error", err)
			}
			// Let the farewell play out before hanging up.
			time.Sleep(b.cfg.GoodbyeGrace)
			b.shutdown()
			return true, nil
		}
		if err := b.handleUserUtterance(ctx, text); err != nil {
			return false, err
		}

	case realtime.EventError:
		if event.Error != nil {
			b.logger.Error("model error event",
				"session_id", b.session.ID(),
				"code", event.Error.Code,
				"message", event.Error.Message)
		}

	default:
		// Unhandled event types are skipped without failing the call.
	}
	return false, nil
}

// forwardAudio relays one assistant audio chunk and queues a mark
// behind it.
func (b *Bridge) forwardAudio(event *realtime.Event) error {
	streamSID := b.session.StreamSID()
	if streamSID == "" {
		// Audio before the start frame has nowhere to go.
		return nil
	}
	b.session.BeginAudioDelta(event.ItemID)
	if err := b.caller.WriteJSON(telephony.NewMediaMessage(streamSID, event.Delta)); err != nil {
		return err
	}
	b.metrics.AudioChunkForwarded()
	b.session.PushMark(markName)
	return b.caller.WriteJSON(telephony.NewMarkMessage(streamSID, markName))
}

// handleInterruption truncates the in-flight assistant item at the
// point the caller has heard and flushes their audio queue.
func (b *Bridge) handleInterruption() {
	itemID, audioEndMS, ok := b.session.Interrupt()
	if !ok {
		return
	}
	b.logger.Info("caller barge-in",
		"session_id", b.session.ID(),
		"item_id", itemID,
		"audio_end_ms", audioEndMS)
	b.metrics.BargeIn()

	if err := b.ai.Send(realtime.NewItemTruncate(itemID, audioEndMS)); err != nil {
		b.logger.Warn("truncate failed", "session_id", b.session.ID(), "error", err)
	}
	if streamSID := b.session.StreamSID(); streamSID != "" {
		if err := b.caller.WriteJSON(telephony.NewClearMessage(streamSID)); err != nil {
			b.logger.Warn("clear failed", "session_id", b.session.ID(), "error", err)
		}
	}
}

// handleUserUtterance runs the availability matcher over a finalized
// caller utterance and steers the model with the result.
func (b *Bridge) handleUserUtterance(ctx context.Context, text string) error {
	if text == "" || b.patient == nil {
		return nil
	}

	english := text
	if b.extractor != nil {
		info, err := b.extractor.Extract(ctx, text)
		if err != nil {
			b.logger.Warn("caller utterance translation failed",
				"session_id", b.session.ID(),
				"error", err)
		} else if info.Translation != "" {
			english = info.Translation
		}
	}

	match := scheduling.MatchAvailability(english, b.availability, b.now())
	switch match.Outcome {
	case scheduling.OutcomeNoDate:
		return nil
	case scheduling.OutcomeOffer:
		slot := match.Slots[0]
		b.session.SetPendingSlot(&slot)
		b.logger.Info("offering slot",
			"session_id", b.session.ID(),
			"slot_id", slot.ID,
			"date", slot.Date)
	default:
		b.session.SetPendingSlot(nil)
	}
	return b.injectText(match.Message)
}

// injectText hands the model a line to speak and triggers the
// response.
func (b *Bridge) injectText(text string) error {
	if err := b.ai.Send(realtime.NewTextItem("assistant", text)); err != nil {
		return err
	}
	return b.ai.Send(realtime.NewResponseCreate())
}

// maybeBook checks a finalized assistant utterance for a booking
// commitment and persists it.
func (b *Bridge) maybeBook(ctx context.Context, text string) {
	if b.booker == nil || b.detector == nil || b.patient == nil || b.session.Confirmed() {
		return
	}

	slot := b.detector.DetectBooking(ctx, text, b.availability)
	if slot == nil {
		return
	}

	started := b.now()
	err := b.booker.BookSlot(ctx, store.BookingRequest{
		SlotID:    slot.ID,
		PatientID: b.patient.ID,
		DoctorID:  b.cfg.DoctorID,
	})
	b.metrics.BookingAttempted(err, time.Since(started))
	if err != nil {
		b.logger.Error("booking failed",
			"session_id", b.session.ID(),
			"slot_id", slot.ID,
			"error", err)
		if ierr := b.injectText("I'm having trouble saving your appointment. Let's try again."); ierr != nil {
			b.logger.Warn("failed to report booking trouble", "error", ierr)
		}
		return
	}

	b.session.MarkConfirmed()
	b.removeSlot(slot.ID)
	b.logger.Info("appointment booked",
		"session_id", b.session.ID(),
		"slot_id", slot.ID,
		"patient_id", b.patient.ID)

	if b.notifier != nil {
		patient := b.patient
		booked := *slot
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := b.notifier.BookingConfirmed(nctx, patient, booked); err != nil {
				b.logger.Warn("booking notification failed", "error", err)
			}
		}()
	}
}

// removeSlot drops a booked slot from the in-memory availability so
// later matching cannot offer it again.
func (b *Bridge) removeSlot(slotID int64) {
	kept := b.availability[:0]
	for _, slot := range b.availability {
		if slot.ID != slotID {
			kept = append(kept, slot)
		}
	}
	b.availability = kept
}

// appendTranscript persists one utterance, best effort.
func (b *Bridge) appendTranscript(ctx context.Context, role, text string) {
	if text == "" {
		return
	}
	streamSID := b.session.StreamSID()
	if streamSID == "" {
		return
	}
	if err := b.transcripts.Append(ctx, streamSID, TranscriptMessage{Role: role, Text: text}); err != nil {
		b.logger.Warn("transcript append failed",
			"session_id", b.session.ID(),
			"error", err)
	}
}
