// Package extraction asks a chat completion model to translate an
// utterance to English and pull out appointment details.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/allballa/dental-scheduler/pkg/logging"
)

var extractTracer = otel.Tracer("scheduler.internal.extraction.client")

const systemPrompt = "You translate call transcripts to English and extract appointment details. " +
	"Respond with a JSON object holding exactly three keys: " +
	"\"translation\" (the utterance translated to English, or the original text if already English), " +
	"\"date\" (the appointment date as YYYY-MM-DD, or null if none is stated), " +
	"\"time\" (the appointment start time as HH:MM:SS 24-hour, or null if none is stated). " +
	"Never guess a date or time that is not explicit in the text."

// Result is what the model extracted from one utterance. Date and
// Time are empty when the utterance stated none; callers validate
// the formats before trusting them.
type Result struct {
	Translation string `json:"translation"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

// Client calls the OpenAI chat completions endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient builds an extraction client with sane defaults.
func NewClient(endpoint, apiKey, model string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat formatSpec    `json:"response_format"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type formatSpec struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract translates the utterance and pulls out any stated
// appointment date and time.
func (c *Client) Extract(ctx context.Context, utterance string) (*Result, error) {
	if c.apiKey == "" {
		return nil, errors.New("extraction: api key missing")
	}
	if utterance == "" {
		return nil, errors.New("extraction: utterance required")
	}

	ctx, span := extractTracer.Start(ctx, "extraction.chat")
	defer span.End()
	span.SetAttributes(attribute.Int("scheduler.utterance_len", len(utterance)))

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: utterance},
		},
		ResponseFormat: formatSpec{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("extraction: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("extraction: call model: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("extraction: model returned status %d", resp.StatusCode)
		span.RecordError(err)
		return nil, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("extraction: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("extraction: empty response")
	}

	var result Result
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("extraction: decode content: %w", err)
	}
	c.logger.Debug("extraction completed",
		"date", result.Date,
		"time", result.Time)
	return &result, nil
}
