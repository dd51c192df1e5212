// Package router assembles the HTTP surface of the scheduling
// service.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/allballa/dental-scheduler/internal/bridge"
	"github.com/allballa/dental-scheduler/internal/http/handlers"
	httpmiddleware "github.com/allballa/dental-scheduler/internal/http/middleware"
	"github.com/allballa/dental-scheduler/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger      *logging.Logger
	CallControl *handlers.CallControlHandler
	Streams     *bridge.Handler

	MetricsHandler http.Handler

	// OperatorSecret guards /make-call, /verify-database and the
	// transcript lookup. Empty leaves the operator routes mounted but
	// rejecting everything.
	OperatorSecret string

	// WebhookRatePerSecond bounds the Twilio webhook endpoints.
	// Zero disables rate limiting.
	WebhookRatePerSecond float64
	WebhookBurst         int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: Twilio webhooks and probes.
	r.Group(func(public chi.Router) {
		if cfg.WebhookRatePerSecond > 0 {
			public.Use(httpmiddleware.RateLimit(cfg.WebhookRatePerSecond, cfg.WebhookBurst))
		}
		public.Get("/", cfg.CallControl.Status)
		public.Get("/healthz", cfg.CallControl.Health)
		// Twilio fetches TwiML with either verb depending on how the
		// webhook is configured.
		public.Get("/incoming-call", cfg.CallControl.IncomingCall)
		public.Post("/incoming-call", cfg.CallControl.IncomingCall)
		public.Get("/outbound-call-twiml", cfg.CallControl.OutboundCallTwiML)
		public.Post("/outbound-call-twiml", cfg.CallControl.OutboundCallTwiML)
	})

	// Media streams are websocket upgrades; no rate limiting.
	if cfg.Streams != nil {
		r.Get("/media-stream-inbound", cfg.Streams.HandleInboundStream)
		r.Get("/media-stream-outbound", cfg.Streams.HandleOutboundStream)
	}

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Operator endpoints behind bearer auth.
	r.Group(func(operator chi.Router) {
		operator.Use(httpmiddleware.OperatorJWT(cfg.OperatorSecret))
		operator.Get("/make-call", cfg.CallControl.MakeCall)
		operator.Get("/verify-database", cfg.CallControl.VerifyDatabase)
		operator.Get("/patients/{patientID}/appointments", cfg.CallControl.PatientAppointments)
		operator.Get("/transcripts/{streamSID}", cfg.CallControl.GetCallTranscript)
	})

	return r
}
