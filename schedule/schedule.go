package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Status describes whether a session can still be reserved.
type Status string

const (
	StatusOpen   Status = "open"
	StatusBooked Status = "booked"
	StatusFull   Status = "full"
)

// Slot is one session extracted from the schedule page.
type Slot struct {
	Name   string
	Time   string
	Status Status
}

// Selectors locate the pieces of a session card in the schedule HTML. The
// site builds its class names with CSS modules, so the node selectors match
// on stable fragments rather than the full hashed class.
type Selectors struct {
	Card         string
	Time         string
	Name         string
	ReserveLabel string
	BookedLabel  string
}

// Matcher picks the slot a run is after. Time is compared after
// normalization; Name only when both sides have one.
type Matcher struct {
	Class string
	Time  string
}

// Parse extracts session slots from schedule page HTML. It never touches the
// network; the caller supplies whatever the browser currently renders. Cards
// without a readable time are skipped.
func Parse(html string, sel Selectors) ([]Slot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schedule HTML: %w", err)
	}

	var slots []Slot
	doc.Find(sel.Card).Each(func(_ int, card *goquery.Selection) {
		timeText := normalize(card.Find(sel.Time).First().Text())
		if timeText == "" {
			return
		}

		slots = append(slots, Slot{
			Name:   normalize(card.Find(sel.Name).First().Text()),
			Time:   NormalizeTime(timeText),
			Status: cardStatus(card, sel),
		})
	})

	return slots, nil
}

// cardStatus reads the booking state out of one session card. A card with a
// reserve control is open; a card announcing the booked label is held by the
// account; anything else cannot be booked.
func cardStatus(card *goquery.Selection, sel Selectors) Status {
	open := false
	card.Find("button").Each(func(_ int, b *goquery.Selection) {
		if strings.EqualFold(normalize(b.Text()), sel.ReserveLabel) {
			open = true
		}
	})
	if open {
		return StatusOpen
	}

	if sel.BookedLabel != "" &&
		strings.Contains(strings.ToLower(card.Text()), strings.ToLower(sel.BookedLabel)) {
		return StatusBooked
	}

	return StatusFull
}

// Find returns the first slot matching m. The name check is skipped when
// either side is empty, which covers schedules that render cards without a
// separate name node.
func Find(slots []Slot, m Matcher) (Slot, bool) {
	want := NormalizeTime(m.Time)
	for _, s := range slots {
		if s.Time != want {
			continue
		}
		if m.Class != "" && s.Name != "" && !strings.EqualFold(s.Name, m.Class) {
			continue
		}
		return s, true
	}
	return Slot{}, false
}

// TargetDate returns the calendar date daysAhead days past now, at midnight
// local time.
func TargetDate(now time.Time, daysAhead int) time.Time {
	d := now.AddDate(0, 0, daysAhead)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// DayLabel renders the day of month the way the calendar labels its day
// buttons.
func DayLabel(t time.Time) string {
	return strconv.Itoa(t.Day())
}

// NormalizeTime lowercases a display time and collapses its whitespace so
// "6:15 PM" and "6:15 pm" compare equal.
func NormalizeTime(s string) string {
	return strings.ToLower(normalize(s))
}

// normalize replaces runs of whitespace with single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
