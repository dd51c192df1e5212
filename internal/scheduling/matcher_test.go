package scheduling

import (
	"strings"
	"testing"
	"time"

	"github.com/allballa/dental-scheduler/internal/store"
)

var testNow = time.Date(2026, time.March, 9, 10, 0, 0, 0, time.UTC)

func testAvailability() []store.Slot {
	return []store.Slot{
		{ID: 1, Date: "2026-03-10", StartTime: "09:00:00", EndTime: "09:30:00", Status: store.SlotAvailable},
		{ID: 2, Date: "2026-03-10", StartTime: "10:00:00", EndTime: "10:30:00", Status: store.SlotAvailable},
		{ID: 3, Date: "2026-03-12", StartTime: "14:00:00", EndTime: "14:30:00", Status: store.SlotAvailable},
	}
}

func TestExtractDateExpression(t *testing.T) {
	cases := map[string]string{
		"can I come tomorrow morning":            "tomorrow",
		"how about the day after tomorrow":       "the day after tomorrow",
		"next Friday would be great":             "next Friday",
		"can we do next week":                    "next week",
		"maybe this Wednesday":                   "this Wednesday",
		"I want March 10th":                      "March 10th",
		"the 10th of March works":                "10th of March",
		"2026-03-12 please":                      "2026-03-12",
		"what about 3/12/2026":                   "3/12/2026",
		"March 10th, 2026 if possible":           "March 10th, 2026",
	}
	for transcript, want := range cases {
		got, ok := ExtractDateExpression(transcript)
		if !ok {
			t.Errorf("no date found in %q", transcript)
			continue
		}
		if got != want {
			t.Errorf("transcript %q: got %q, want %q", transcript, got, want)
		}
	}

	if _, ok := ExtractDateExpression("I just wanted to say hello"); ok {
		t.Error("expected no date in greeting")
	}
}

func TestResolveDateRelative(t *testing.T) {
	cases := map[string]string{
		"tomorrow":               "2026-03-10",
		"the day after tomorrow": "2026-03-11",
		"next Friday":            "2026-03-16",
		"next week":              "2026-03-16",
		"this Wednesday":         "2026-03-12",
	}
	for expr, want := range cases {
		got, err := ResolveDate(expr, testNow)
		if err != nil {
			t.Errorf("resolve %q: %v", expr, err)
			continue
		}
		if got != want {
			t.Errorf("resolve %q: got %s, want %s", expr, got, want)
		}
	}
}

func TestResolveDateAbsolute(t *testing.T) {
	cases := map[string]string{
		"2026-03-12":        "2026-03-12",
		"3/12/2026":         "2026-03-12",
		"3-12-2026":         "2026-03-12",
		"March 10th, 2026":  "2026-03-10",
		"10th of March 2026": "2026-03-10",
		"March 10th":        "2026-03-10",
		"10th of march":     "2026-03-10",
		"3/12":              "2026-03-12",
	}
	for expr, want := range cases {
		got, err := ResolveDate(expr, testNow)
		if err != nil {
			t.Errorf("resolve %q: %v", expr, err)
			continue
		}
		if got != want {
			t.Errorf("resolve %q: got %s, want %s", expr, got, want)
		}
	}
}

func TestResolveDateUnparseable(t *testing.T) {
	if _, err := ResolveDate("45/88", testNow); err == nil {
		t.Fatal("expected error for impossible date")
	}
}

func TestMatchAvailabilityOffer(t *testing.T) {
	m := MatchAvailability("could I come in tomorrow", testAvailability(), testNow)
	if m.Outcome != OutcomeOffer {
		t.Fatalf("expected offer, got %v (%s)", m.Outcome, m.Message)
	}
	if m.Date != "2026-03-10" {
		t.Fatalf("unexpected date: %s", m.Date)
	}
	if len(m.Slots) != 2 || m.Slots[0].ID != 1 {
		t.Fatalf("unexpected slots: %+v", m.Slots)
	}
	if !strings.Contains(m.Message, "09:00:00 to 09:30:00") {
		t.Fatalf("message missing slot window: %s", m.Message)
	}
	if !strings.Contains(m.Message, "book the 09:00:00 slot") {
		t.Fatalf("message missing booking offer: %s", m.Message)
	}
}

func TestMatchAvailabilityAlternatives(t *testing.T) {
	m := MatchAvailability("how about March 11th", testAvailability(), testNow)
	if m.Outcome != OutcomeAlternatives {
		t.Fatalf("expected alternatives, got %v", m.Outcome)
	}
	if !strings.Contains(m.Message, "no available slots on 2026-03-11") {
		t.Fatalf("unexpected message: %s", m.Message)
	}
	if !strings.Contains(m.Message, "2026-03-10, 2026-03-12") {
		t.Fatalf("expected distinct alternative dates: %s", m.Message)
	}
}

func TestMatchAvailabilityNextWeek(t *testing.T) {
	m := MatchAvailability("can we do next week", testAvailability(), testNow)
	if m.Outcome != OutcomeAlternatives {
		t.Fatalf("expected alternatives, got %v (%s)", m.Outcome, m.Message)
	}
	if m.Date != "2026-03-16" {
		t.Fatalf("unexpected date: %s", m.Date)
	}
}

func TestMatchAvailabilityNoSlots(t *testing.T) {
	m := MatchAvailability("how about tomorrow", nil, testNow)
	if m.Outcome != OutcomeNoSlots {
		t.Fatalf("expected no slots, got %v", m.Outcome)
	}
}

func TestMatchAvailabilityNoDate(t *testing.T) {
	m := MatchAvailability("yes that sounds good", testAvailability(), testNow)
	if m.Outcome != OutcomeNoDate {
		t.Fatalf("expected no date, got %v", m.Outcome)
	}
	if m.Message != "" {
		t.Fatalf("expected no message, got %s", m.Message)
	}
}

func TestMatchAvailabilityUnparsed(t *testing.T) {
	m := MatchAvailability("put me down for 45/88", testAvailability(), testNow)
	if m.Outcome != OutcomeUnparsed {
		t.Fatalf("expected unparsed, got %v", m.Outcome)
	}
	if !strings.Contains(m.Message, "specify the date again") {
		t.Fatalf("unexpected message: %s", m.Message)
	}
}

func TestDistinctDatesLimit(t *testing.T) {
	slots := []store.Slot{
		{Date: "2026-03-10"}, {Date: "2026-03-10"},
		{Date: "2026-03-11"}, {Date: "2026-03-12"}, {Date: "2026-03-13"},
	}
	dates := distinctDates(slots, 3)
	if len(dates) != 3 {
		t.Fatalf("expected 3 dates, got %v", dates)
	}
	if dates[0] != "2026-03-10" || dates[2] != "2026-03-12" {
		t.Fatalf("unexpected dates: %v", dates)
	}
}
