// Package notify fans booking confirmations out to patients.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/allballa/dental-scheduler/internal/store"
	"github.com/allballa/dental-scheduler/pkg/logging"
)

var whatsappTracer = otel.Tracer("scheduler.internal.notify.whatsapp")

const apiBase = "https://api.twilio.com/2010-04-01"

// WhatsAppSender delivers messages over Twilio's WhatsApp channel.
type WhatsAppSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewWhatsAppSender builds a sender with sane defaults. from is the
// bare number; the whatsapp: prefix is added on send.
func NewWhatsAppSender(accountSID, authToken, from string, logger *logging.Logger) *WhatsAppSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &WhatsAppSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    apiBase,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Send delivers one WhatsApp message.
func (s *WhatsAppSender) Send(ctx context.Context, to, body string) error {
	if s.accountSID == "" || s.authToken == "" {
		return errors.New("notify: twilio credentials missing")
	}
	if to == "" {
		return errors.New("notify: to required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("notify: body required")
	}

	ctx, span := whatsappTracer.Start(ctx, "notify.whatsapp.send")
	defer span.End()
	span.SetAttributes(attribute.String("scheduler.to", to))

	payload := url.Values{}
	payload.Set("To", "whatsapp:"+to)
	payload.Set("From", "whatsapp:"+s.from)
	payload.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("notify: send whatsapp: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("notify: whatsapp send failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		span.RecordError(err)
		return err
	}
	s.logger.Info("whatsapp message sent", "to", to)
	return nil
}

// MessageSender sends one message to one recipient.
type MessageSender interface {
	Send(ctx context.Context, to, body string) error
}

// Service formats and delivers booking notifications. A nil service
// skips everything.
type Service struct {
	sender MessageSender
	to     string
	logger *logging.Logger
}

// NewService wires a notification service. to overrides the patient
// phone when set, which keeps demo environments pointed at a test
// handset.
func NewService(sender MessageSender, to string, logger *logging.Logger) *Service {
	if sender == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{sender: sender, to: to, logger: logger}
}

// BookingConfirmed tells the patient their appointment is saved.
func (s *Service) BookingConfirmed(ctx context.Context, patient *store.Patient, slot store.Slot) error {
	if s == nil {
		return nil
	}
	to := s.to
	if to == "" {
		to = patient.Phone
	}
	if to == "" {
		s.logger.Warn("no recipient for booking notification", "patient_id", patient.ID)
		return nil
	}
	body := fmt.Sprintf(
		"Hello %s, your appointment at Allballa Dental Center is confirmed for %s from %s to %s. See you then!",
		patient.Name, slot.Date, slot.StartTime, slot.EndTime)
	if err := s.sender.Send(ctx, to, body); err != nil {
		return fmt.Errorf("notify: booking confirmation: %w", err)
	}
	return nil
}
