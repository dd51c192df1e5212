package scheduling

import (
	"context"
	"regexp"
	"strings"

	"github.com/allballa/dental-scheduler/internal/extraction"
	"github.com/allballa/dental-scheduler/internal/store"
	"github.com/allballa/dental-scheduler/pkg/logging"
)

// confirmationPhrases are the fixed wordings the assistant is
// instructed to use when finalizing a booking. The lexical gate keys
// on these, so the instructions and this list must stay in sync.
var confirmationPhrases = []string{
	"scheduled your appointment",
	"booked your appointment",
	"confirmed your appointment",
	"successfully scheduled",
	"appointment is set for",
	"i have scheduled your appointment for",
	"your appointment is confirmed for",
	"successfully booked for",
}

var (
	isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	isoTime = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)
)

// ContainsConfirmation reports whether the assistant utterance
// contains one of the fixed confirmation phrases.
func ContainsConfirmation(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range confirmationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Extractor pulls structured appointment details out of an utterance.
type Extractor interface {
	Extract(ctx context.Context, utterance string) (*extraction.Result, error)
}

// Detector decides whether an assistant utterance constitutes a
// committed booking of a specific open slot.
type Detector struct {
	extractor Extractor
	logger    *logging.Logger
}

// NewDetector wires a confirmation detector.
func NewDetector(extractor Extractor, logger *logging.Logger) *Detector {
	if logger == nil {
		logger = logging.Default()
	}
	return &Detector{extractor: extractor, logger: logger}
}

// DetectBooking runs the cheap lexical gate first and only then the
// extraction call. It returns the slot to book when the extracted
// date and start time exactly match an open slot, and nil otherwise.
// Malformed or missing extraction fields are discarded, never
// guessed at.
func (d *Detector) DetectBooking(ctx context.Context, utterance string, availability []store.Slot) *store.Slot {
	if !ContainsConfirmation(utterance) {
		return nil
	}
	d.logger.Info("confirmation phrase detected in assistant response", "utterance", utterance)

	info, err := d.extractor.Extract(ctx, utterance)
	if err != nil {
		d.logger.Warn("appointment extraction failed", "error", err)
		return nil
	}

	date := info.Date
	start := info.Time
	if !isoDate.MatchString(date) {
		if date != "" {
			d.logger.Warn("discarding malformed extracted date", "date", date)
		}
		date = ""
	}
	if !isoTime.MatchString(start) {
		if start != "" {
			d.logger.Warn("discarding malformed extracted time", "time", start)
		}
		start = ""
	}
	if date == "" || start == "" {
		d.logger.Info("no confirmable date and time extracted")
		return nil
	}

	for i := range availability {
		if availability[i].Date == date && availability[i].StartTime == start {
			slot := availability[i]
			return &slot
		}
	}
	d.logger.Warn("extracted appointment does not match any open slot",
		"date", date,
		"time", start)
	return nil
}
