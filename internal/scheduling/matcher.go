package scheduling

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/allballa/dental-scheduler/internal/store"
)

// datePatterns are tried in order, most specific first, so a full
// date with a year wins over a bare month-day fragment of it.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4})`),
	regexp.MustCompile(`(?i)((?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4})`),
	regexp.MustCompile(`(\d{4}-\d{1,2}-\d{1,2})`),
	regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})`),
	regexp.MustCompile(`(\d{1,2}-\d{1,2}-\d{4})`),
	regexp.MustCompile(`(?i)(the\s+day\s+after\s+tomorrow)`),
	regexp.MustCompile(`(?i)(next\s+(?:Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday))`),
	regexp.MustCompile(`(?i)(next\s+week)`),
	regexp.MustCompile(`(?i)(this\s+(?:Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday))`),
	regexp.MustCompile(`(?i)(tomorrow)`),
	regexp.MustCompile(`(?i)((?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(?:st|nd|rd|th)?)`),
	regexp.MustCompile(`(?i)(\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?(?:January|February|March|April|May|June|July|August|September|October|November|December))`),
	regexp.MustCompile(`(\d{1,2}/\d{1,2})`),
	regexp.MustCompile(`(\d{1,2}-\d{1,2})`),
}

var (
	ordinalSuffix = regexp.MustCompile(`(?i)(\d{1,2})(?:st|nd|rd|th)`)
	fourDigitYear = regexp.MustCompile(`\d{4}`)
)

// Outcome classifies what an utterance yielded against availability.
type Outcome int

const (
	// OutcomeNoDate means no date expression was found; nothing to do.
	OutcomeNoDate Outcome = iota
	// OutcomeUnparsed means a date expression was found but could not
	// be normalized.
	OutcomeUnparsed
	// OutcomeOffer means open slots exist on the requested date.
	OutcomeOffer
	// OutcomeAlternatives means the date had no slots but others do.
	OutcomeAlternatives
	// OutcomeNoSlots means nothing is open at all.
	OutcomeNoSlots
)

// Match is the result of checking an utterance against availability.
// Message is the guidance to speak back to the caller, and Slots
// holds the openings on the requested date when Outcome is
// OutcomeOffer, first one first.
type Match struct {
	Outcome Outcome
	Date    string
	Slots   []store.Slot
	Message string
}

// ExtractDateExpression returns the first date-like phrase in the
// transcript, or false if none of the patterns match.
func ExtractDateExpression(transcript string) (string, bool) {
	for _, pattern := range datePatterns {
		if m := pattern.FindStringSubmatch(transcript); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ResolveDate normalizes a date expression to YYYY-MM-DD. Relative
// expressions use fixed offsets from now: tomorrow is one day out,
// day after tomorrow two, "next <weekday>" seven, "this <weekday>"
// three.
func ResolveDate(expr string, now time.Time) (string, error) {
	lower := strings.ToLower(expr)
	switch {
	case strings.Contains(lower, "day after tomorrow"):
		return now.AddDate(0, 0, 2).Format("2006-01-02"), nil
	case strings.Contains(lower, "tomorrow"):
		return now.AddDate(0, 0, 1).Format("2006-01-02"), nil
	case strings.Contains(lower, "next"):
		return now.AddDate(0, 0, 7).Format("2006-01-02"), nil
	case strings.Contains(lower, "this"):
		return now.AddDate(0, 0, 3).Format("2006-01-02"), nil
	}

	cleaned := normalizeDateWords(expr)
	hasYear := fourDigitYear.MatchString(cleaned)

	layouts := []string{
		"2006-1-2",
		"1/2/2006",
		"1-2-2006",
		"January 2 2006",
		"2 January 2006",
	}
	if !hasYear {
		cleaned = fmt.Sprintf("%s %d", cleaned, now.Year())
		layouts = append(layouts, "1/2 2006", "1-2 2006")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("scheduling: unparseable date %q", expr)
}

// normalizeDateWords strips ordinal suffixes, commas and "of", and
// capitalizes month names so time.Parse accepts spoken forms like
// "10th of march, 2026".
func normalizeDateWords(expr string) string {
	s := ordinalSuffix.ReplaceAllString(expr, "$1")
	s = strings.ReplaceAll(s, ",", " ")
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		if strings.EqualFold(f, "of") {
			continue
		}
		if f[0] >= 'a' && f[0] <= 'z' {
			f = strings.ToUpper(f[:1]) + strings.ToLower(f[1:])
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// MatchAvailability checks a caller utterance for a requested date
// and compares it with the open slots.
func MatchAvailability(transcript string, availability []store.Slot, now time.Time) Match {
	expr, ok := ExtractDateExpression(transcript)
	if !ok {
		return Match{Outcome: OutcomeNoDate}
	}

	date, err := ResolveDate(expr, now)
	if err != nil {
		return Match{
			Outcome: OutcomeUnparsed,
			Message: "I'm having trouble understanding that date. Could you please specify the date again?",
		}
	}

	var matching []store.Slot
	for _, slot := range availability {
		if slot.Date == date {
			matching = append(matching, slot)
		}
	}
	if len(matching) > 0 {
		var lines []string
		for _, slot := range matching {
			lines = append(lines, fmt.Sprintf("- %s to %s", slot.StartTime, slot.EndTime))
		}
		return Match{
			Outcome: OutcomeOffer,
			Date:    date,
			Slots:   matching,
			Message: fmt.Sprintf("I found available slots on %s:\n%s\nWould you like me to book the %s slot for you?",
				date, strings.Join(lines, "\n"), matching[0].StartTime),
		}
	}

	alternatives := distinctDates(availability, 3)
	if len(alternatives) == 0 {
		return Match{
			Outcome: OutcomeNoSlots,
			Date:    date,
			Message: "I'm sorry, but we currently have no open appointment slots. Please suggest calling back later.",
		}
	}
	return Match{
		Outcome: OutcomeAlternatives,
		Date:    date,
		Message: fmt.Sprintf("I'm sorry, but there are no available slots on %s. We do have openings on: %s. Would any of those work for you?",
			date, strings.Join(alternatives, ", ")),
	}
}

func distinctDates(slots []store.Slot, limit int) []string {
	seen := make(map[string]bool, len(slots))
	var dates []string
	for _, slot := range slots {
		if seen[slot.Date] {
			continue
		}
		seen[slot.Date] = true
		dates = append(dates, slot.Date)
		if len(dates) == limit {
			break
		}
	}
	return dates
}
