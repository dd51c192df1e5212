package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/allballa/dental-scheduler/pkg/logging"
)

func TestConnectStreamTwiML(t *testing.T) {
	twiml, err := ConnectStreamTwiML("calls.example.com", "/media-stream-outbound")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(twiml, "<?xml") {
		t.Fatalf("missing xml header: %s", twiml)
	}
	if !strings.Contains(twiml, `<Stream url="wss://calls.example.com/media-stream-outbound">`) &&
		!strings.Contains(twiml, `<Stream url="wss://calls.example.com/media-stream-outbound"></Stream>`) {
		t.Fatalf("missing stream element: %s", twiml)
	}
	if !strings.Contains(twiml, "<Connect>") {
		t.Fatalf("missing connect element: %s", twiml)
	}
}

func TestCreateCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC1" || pass != "token" {
			t.Errorf("bad auth: %s/%s", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("To") != "+15550001111" || r.Form.Get("From") != "+15550002222" {
			t.Errorf("unexpected numbers: %v", r.Form)
		}
		if r.Form.Get("Url") != "https://calls.example.com/outbound-call-twiml" {
			t.Errorf("unexpected twiml url: %s", r.Form.Get("Url"))
		}
		w.Write([]byte(`{"sid":"CA123","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewClient("AC1", "token", "+15550002222", logging.Default())
	c.baseURL = srv.URL

	sid, err := c.CreateCall(context.Background(), "+15550001111", "https://calls.example.com/outbound-call-twiml")
	if err != nil {
		t.Fatalf("create call: %v", err)
	}
	if sid != "CA123" {
		t.Fatalf("unexpected sid: %s", sid)
	}
}

func TestCreateCallRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"sid":"CA456"}`))
	}))
	defer srv.Close()

	c := NewClient("AC1", "token", "+15550002222", logging.Default())
	c.baseURL = srv.URL

	sid, err := c.CreateCall(context.Background(), "+15550001111", "https://example.com/twiml")
	if err != nil {
		t.Fatalf("create call: %v", err)
	}
	if sid != "CA456" || calls.Load() != 2 {
		t.Fatalf("expected retry then success, got sid %s after %d calls", sid, calls.Load())
	}
}

func TestCreateCallDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"message":"invalid number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("AC1", "token", "+15550002222", logging.Default())
	c.baseURL = srv.URL

	if _, err := c.CreateCall(context.Background(), "+15550001111", "https://example.com/twiml"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single attempt, got %d", calls.Load())
	}
}

func TestCreateCallRequiresCredentials(t *testing.T) {
	c := NewClient("", "", "+15550002222", nil)
	if _, err := c.CreateCall(context.Background(), "+15550001111", "https://example.com/twiml"); err == nil {
		t.Fatal("expected credentials error")
	}
}
