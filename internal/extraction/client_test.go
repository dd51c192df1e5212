package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/allballa/dental-scheduler/pkg/logging"
)

func chatReply(t *testing.T, content string) string {
	t.Helper()
	reply := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	raw, err := json.Marshal(reply)
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	return string(raw)
}

func TestExtract(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		w.Write([]byte(chatReply(t, `{"translation":"I have scheduled your appointment for March 10th at 9 AM","date":"2026-03-10","time":"09:00:00"}`)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "gpt-4o-mini", logging.Default())
	result, err := c.Extract(context.Background(), "cita el diez de marzo a las nueve")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %s", gotAuth)
	}
	if result.Date != "2026-03-10" || result.Time != "09:00:00" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Translation == "" {
		t.Fatal("expected translation")
	}
}

func TestExtractNullFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply(t, `{"translation":"hello there","date":null,"time":null}`)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "gpt-4o-mini", logging.Default())
	result, err := c.Extract(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Date != "" || result.Time != "" {
		t.Fatalf("expected empty date and time, got %+v", result)
	}
}

func TestExtractServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "gpt-4o-mini", logging.Default())
	if _, err := c.Extract(context.Background(), "anything"); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestExtractRequiresKey(t *testing.T) {
	c := NewClient("http://unused", "", "gpt-4o-mini", nil)
	if _, err := c.Extract(context.Background(), "anything"); err == nil {
		t.Fatal("expected error without api key")
	}
}
