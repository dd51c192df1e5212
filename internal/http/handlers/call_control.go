// Package handlers holds the HTTP endpoints of the scheduling
// service: Twilio webhooks, operator call control, and diagnostics.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/allballa/dental-scheduler/internal/bridge"
	"github.com/allballa/dental-scheduler/internal/store"
	"github.com/allballa/dental-scheduler/internal/telephony"
	"github.com/allballa/dental-scheduler/pkg/logging"
)

// CallPlacer starts an outbound call through the telephony provider.
type CallPlacer interface {
	CreateCall(ctx context.Context, to, twimlURL string) (string, error)
}

// DatabaseVerifier runs the store's diagnostic self-check.
type DatabaseVerifier interface {
	Verify(ctx context.Context) (*store.VerifyReport, error)
}

// AppointmentReader looks up booked appointments.
type AppointmentReader interface {
	AppointmentsForPatient(ctx context.Context, patientID int64) ([]store.Appointment, error)
}

// CallControlHandler hosts the Twilio webhooks and the operator
// endpoints that place calls and inspect state.
type CallControlHandler struct {
	placer       CallPlacer
	verifier     DatabaseVerifier
	appointments AppointmentReader
	transcripts  *bridge.TranscriptStore
	logger       *logging.Logger

	// publicHost is the externally reachable host Twilio connects
	// back to. Empty means trust the request's Host header.
	publicHost string
	callTo     string
}

// CallControlConfig collects the handler dependencies.
type CallControlConfig struct {
	Placer       CallPlacer
	Verifier     DatabaseVerifier
	Appointments AppointmentReader
	Transcripts  *bridge.TranscriptStore
	Logger       *logging.Logger
	PublicHost   string
	CallTo       string
}

// NewCallControlHandler wires the call-control endpoints.
func NewCallControlHandler(cfg CallControlConfig) *CallControlHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &CallControlHandler{
		placer:       cfg.Placer,
		verifier:     cfg.Verifier,
		appointments: cfg.Appointments,
		transcripts:  cfg.Transcripts,
		logger:       cfg.Logger,
		publicHost:   cfg.PublicHost,
		callTo:       cfg.CallTo,
	}
}

// Status reports that the media stream server is up.
func (h *CallControlHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Twilio Media Stream Server is running!"})
}

// Health is the liveness probe.
func (h *CallControlHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// IncomingCall answers Twilio's inbound-call webhook with TwiML that
// opens the inbound media stream.
func (h *CallControlHandler) IncomingCall(w http.ResponseWriter, r *http.Request) {
	h.writeStreamTwiML(w, r, "/media-stream-inbound")
}

// OutboundCallTwiML is fetched by Twilio once an outbound call is
// answered; it opens the outbound media stream.
func (h *CallControlHandler) OutboundCallTwiML(w http.ResponseWriter, r *http.Request) {
	h.writeStreamTwiML(w, r, "/media-stream-outbound")
}

func (h *CallControlHandler) writeStreamTwiML(w http.ResponseWriter, r *http.Request, path string) {
	twiml, err := telephony.ConnectStreamTwiML(h.host(r), path)
	if err != nil {
		h.logger.Error("twiml render failed", "error", err)
		http.Error(w, "twiml render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(twiml))
}

// MakeCall places the outreach call to the configured patient number.
func (h *CallControlHandler) MakeCall(w http.ResponseWriter, r *http.Request) {
	if h.placer == nil {
		http.Error(w, "call placement not configured", http.StatusServiceUnavailable)
		return
	}
	if h.callTo == "" {
		http.Error(w, "no destination number configured", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	twimlURL := fmt.Sprintf("https://%s/outbound-call-twiml", h.host(r))
	sid, err := h.placer.CreateCall(ctx, h.callTo, twimlURL)
	if err != nil {
		h.logger.Error("placing outbound call failed", "to", h.callTo, "error", err)
		http.Error(w, "call placement failed", http.StatusBadGateway)
		return
	}

	h.logger.Info("outbound call placed", "to", h.callTo, "call_sid", sid)
	writeJSON(w, http.StatusOK, map[string]string{"call_sid": sid, "to": h.callTo})
}

// VerifyDatabase runs the store diagnostics and reports the counts.
func (h *CallControlHandler) VerifyDatabase(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		http.Error(w, "database not configured", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	report, err := h.verifier.Verify(ctx)
	if err != nil {
		h.logger.Error("database verification failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "failed",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "report": report})
}

// PatientAppointments lists the booked appointments of one patient.
func (h *CallControlHandler) PatientAppointments(w http.ResponseWriter, r *http.Request) {
	if h.appointments == nil {
		http.Error(w, "database not configured", http.StatusServiceUnavailable)
		return
	}
	patientID, err := strconv.ParseInt(chi.URLParam(r, "patientID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	appts, err := h.appointments.AppointmentsForPatient(r.Context(), patientID)
	if err != nil {
		h.logger.Error("appointment lookup failed", "patient_id", patientID, "error", err)
		http.Error(w, "appointment lookup failed", http.StatusInternalServerError)
		return
	}
	if appts == nil {
		appts = []store.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"patient_id":   patientID,
		"appointments": appts,
	})
}

// GetCallTranscript returns the stored transcript of one call.
func (h *CallControlHandler) GetCallTranscript(w http.ResponseWriter, r *http.Request) {
	streamSID := chi.URLParam(r, "streamSID")
	if streamSID == "" {
		http.Error(w, "streamSID required", http.StatusBadRequest)
		return
	}

	messages, err := h.transcripts.List(r.Context(), streamSID, 0)
	if err != nil {
		h.logger.Error("transcript lookup failed", "stream_sid", streamSID, "error", err)
		http.Error(w, "transcript lookup failed", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []bridge.TranscriptMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stream_sid": streamSID,
		"messages":   messages,
	})
}

func (h *CallControlHandler) host(r *http.Request) string {
	if h.publicHost != "" {
		return h.publicHost
	}
	return r.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
