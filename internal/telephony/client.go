package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/allballa/dental-scheduler/pkg/logging"
)

var callTracer = otel.Tracer("scheduler.internal.telephony.client")

const apiBase = "https://api.twilio.com/2010-04-01"

// Client places calls through Twilio's REST API.
type Client struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient builds a REST client with sane defaults.
func NewClient(accountSID, authToken, from string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
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

// CreateCall dials the patient and points the call at the TwiML
// endpoint that will bridge it onto a media stream. It returns the
// call SID, retrying transient failures.
func (c *Client) CreateCall(ctx context.Context, to, twimlURL string) (string, error) {
	if c.accountSID == "" || c.authToken == "" {
		return "", errors.New("telephony: twilio credentials missing")
	}
	if to == "" {
		return "", errors.New("telephony: to required")
	}
	if c.from == "" {
		return "", errors.New("telephony: from required")
	}

	ctx, span := callTracer.Start(ctx, "telephony.call.create")
	defer span.End()
	span.SetAttributes(attribute.String("scheduler.to", to))

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", c.from)
	payload.Set("Url", twimlURL)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, c.accountSID)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			lastErr = err
			break
		}
		req.SetBasicAuth(c.accountSID, c.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				var parsed struct {
					SID string `json:"sid"`
				}
				if err := json.Unmarshal(body, &parsed); err != nil {
					return "", fmt.Errorf("telephony: decode call response: %w", err)
				}
				c.logger.Info("outbound call created", "call_sid", parsed.SID, "to", to)
				return parsed.SID, nil
			}
			lastErr = fmt.Errorf("telephony: create call failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			// Don't retry non-rate-limit 4xx errors.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
				break
			}
		}

		if attempt < 3 {
			sleep := time.Duration(200+rand.Intn(300)) * time.Millisecond
			time.Sleep(sleep)
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
	}
	return "", lastErr
}
