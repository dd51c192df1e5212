package bridge

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/allballa/dental-scheduler/internal/observability/metrics"
	"github.com/allballa/dental-scheduler/internal/realtime"
	"github.com/allballa/dental-scheduler/internal/scheduling"
	"github.com/allballa/dental-scheduler/internal/store"
	"github.com/allballa/dental-scheduler/pkg/logging"
)

// CallContext loads the data a call runs against.
type CallContext interface {
	GetPatientByID(ctx context.Context, id int64) (*store.Patient, error)
	AvailableSlots(ctx context.Context) ([]store.Slot, error)
}

// HandlerConfig carries the per-deployment settings of the call
// handlers.
type HandlerConfig struct {
	RealtimeURL string
	APIKey      string
	Voice       string

	DialRetries int
	DialDelay   time.Duration

	AIReadTimeout time.Duration
	GoodbyeGrace  time.Duration

	PatientID int64
	DoctorID  int64
}

// Handler accepts Twilio media-stream websockets and runs a bridge
// for each call.
type Handler struct {
	cfg      HandlerConfig
	calls    CallContext
	booker   Booker
	detector *scheduling.Detector

	extractor   scheduling.Extractor
	notifier    Notifier
	transcripts *TranscriptStore
	metrics     *metrics.CallMetrics
	logger      *logging.Logger

	upgrader websocket.Upgrader
}

// HandlerOptions collects the handler collaborators. calls and booker
// are required for outbound calls; everything else may be nil.
type HandlerOptions struct {
	Calls       CallContext
	Booker      Booker
	Detector    *scheduling.Detector
	Extractor   scheduling.Extractor
	Notifier    Notifier
	Transcripts *TranscriptStore
	Metrics     *metrics.CallMetrics
	Logger      *logging.Logger
}

// NewHandler wires the media-stream handler.
func NewHandler(cfg HandlerConfig, opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		cfg:         cfg,
		calls:       opts.Calls,
		booker:      opts.Booker,
		detector:    opts.Detector,
		extractor:   opts.Extractor,
		notifier:    opts.Notifier,
		transcripts: opts.Transcripts,
		metrics:     opts.Metrics,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Twilio's media-stream client sends no Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleOutboundStream serves the media stream of an outreach call.
// The patient and the open slots are loaded up front so the whole
// call runs against one consistent view of availability.
func (h *Handler) HandleOutboundStream(w http.ResponseWriter, r *http.Request) {
	loadCtx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	patient, err := h.calls.GetPatientByID(loadCtx, h.cfg.PatientID)
	if err != nil {
		cancel()
		h.logger.Error("loading patient for call failed", "patient_id", h.cfg.PatientID, "error", err)
		http.Error(w, "call context unavailable", http.StatusServiceUnavailable)
		return
	}
	availability, err := h.calls.AvailableSlots(loadCtx)
	cancel()
	if err != nil {
		h.logger.Error("loading availability for call failed", "error", err)
		http.Error(w, "call context unavailable", http.StatusServiceUnavailable)
		return
	}

	caller, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("media stream upgrade failed", "error", err)
		return
	}

	session := NewCallSession("outbound")
	ai, err := h.dialModel(r.Context())
	if err != nil {
		h.logger.Error("model connection failed", "session_id", session.ID(), "error", err)
		caller.Close()
		return
	}

	if err := realtime.InitializeOutbound(ai, h.cfg.Voice, patient, availability, time.Now()); err != nil {
		h.logger.Error("session initialization failed", "session_id", session.ID(), "error", err)
		ai.Close()
		caller.Close()
		return
	}

	b := New(session, caller, ai, Options{
		Patient:      patient,
		Availability: availability,
		Booker:       h.booker,
		Detector:     h.detector,
		Extractor:    h.extractor,
		Notifier:     h.notifier,
		Transcripts:  h.transcripts,
		Metrics:      h.metrics,
		Logger:       h.logger,
		Config: Config{
			AIReadTimeout: h.cfg.AIReadTimeout,
			GoodbyeGrace:  h.cfg.GoodbyeGrace,
			DoctorID:      h.cfg.DoctorID,
		},
	})
	if err := b.Run(r.Context()); err != nil {
		h.logger.Error("outbound call ended with error", "session_id", session.ID(), "error", err)
	}
}

// HandleInboundStream serves the media stream of a caller-initiated
// call. Inbound calls converse freely but do not book.
func (h *Handler) HandleInboundStream(w http.ResponseWriter, r *http.Request) {
	caller, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("media stream upgrade failed", "error", err)
		return
	}

	session := NewCallSession("inbound")
	ai, err := h.dialModel(r.Context())
	if err != nil {
		h.logger.Error("model connection failed", "session_id", session.ID(), "error", err)
		caller.Close()
		return
	}

	if err := realtime.InitializeInbound(ai, h.cfg.Voice); err != nil {
		h.logger.Error("session initialization failed", "session_id", session.ID(), "error", err)
		ai.Close()
		caller.Close()
		return
	}

	b := New(session, caller, ai, Options{
		Transcripts: h.transcripts,
		Metrics:     h.metrics,
		Logger:      h.logger,
		Config: Config{
			AIReadTimeout: h.cfg.AIReadTimeout,
			GoodbyeGrace:  h.cfg.GoodbyeGrace,
		},
	})
	if err := b.Run(r.Context()); err != nil {
		h.logger.Error("inbound call ended with error", "session_id", session.ID(), "error", err)
	}
}

func (h *Handler) dialModel(ctx context.Context) (*realtime.Conn, error) {
	return realtime.Dial(ctx, realtime.DialConfig{
		URL:        h.cfg.RealtimeURL,
		APIKey:     h.cfg.APIKey,
		MaxRetries: h.cfg.DialRetries,
		RetryDelay: h.cfg.DialDelay,
	}, h.logger)
}
