package classbook

import (
	"fmt"
	"time"

	"classbook/browser"
	"classbook/schedule"
)

// Flow holds every site-specific selector the runner touches, so a site
// redesign is a config edit rather than a code change.
type Flow struct {
	BaseURL string

	Login    LoginFlow
	Popups   []string
	Schedule ScheduleFlow

	// ConfirmationMarker appears once a reservation is accepted.
	ConfirmationMarker string
}

// LoginFlow walks from the landing page to a signed-in session.
type LoginFlow struct {
	// AccountMenu opens the menu holding the sign-in control. Optional for
	// sites that show sign-in directly.
	AccountMenu string

	SignIn   string
	Username string
	Password string

	// Submit is clicked when set; otherwise the password field is
	// submitted with Enter.
	Submit string

	// LoggedInMarker only renders for a signed-in account.
	LoggedInMarker string
}

// ScheduleFlow drives the schedule page: opening it, picking the day and
// hunting for the session card.
type ScheduleFlow struct {
	// Open is clicked to reach the schedule from the signed-in landing
	// page. Optional when login already lands there.
	Open string

	// LocationFilter is a printf pattern selecting a studio filter control;
	// %s is the location name. Optional.
	LocationFilter string

	// DayButton is a printf pattern; %s is the day-of-month label.
	DayButton string

	// CardFragment, TimeFragment and NameFragment are the stable parts of
	// the CSS-module class names on the session card pieces.
	CardFragment string
	TimeFragment string
	NameFragment string

	ReserveLabel string
	BookedLabel  string

	// The schedule renders sessions lazily, so the runner scrolls in steps
	// until the target time shows up.
	ScrollPasses int
	ScrollStep   int
	ScrollPause  time.Duration
}

// DefaultFlow matches the production site the tool was written against.
func DefaultFlow() Flow {
	return Flow{
		BaseURL: "https://www.corepoweryoga.com/",
		Login: LoginFlow{
			AccountMenu:    "img[alt='Profile Icon']",
			SignIn:         "button[data-position='profile.1-sign-in']",
			Username:       "input[name='username']",
			Password:       "input[name='password']",
			LoggedInMarker: browser.TextMarker("Book a Class"),
		},
		Popups: []string{
			browser.TextButton("Close"),
			"button[aria-label*='close' i]",
		},
		Schedule: ScheduleFlow{
			Open:         browser.TextMarker("Book a Class"),
			DayButton:    "//button[contains(@class, 'calendar-day') and normalize-space(.) = '%s']",
			CardFragment: "session-card_sessionCard",
			TimeFragment: "session-card_sessionTime",
			NameFragment: "session-card_sessionName",
			ReserveLabel: "Reserve",
			BookedLabel:  "Booked",
			ScrollPasses: 25,
			ScrollStep:   400,
			ScrollPause:  300 * time.Millisecond,
		},
		ConfirmationMarker: browser.TextMarker("Reserved"),
	}
}

// DaySelector renders the calendar control for a day label.
func (s ScheduleFlow) DaySelector(label string) string {
	return fmt.Sprintf(s.DayButton, label)
}

// LocationSelector renders the studio filter control for a location name.
func (s ScheduleFlow) LocationSelector(location string) string {
	return fmt.Sprintf(s.LocationFilter, location)
}

// CardSelector is the selector for the session card showing timeText. A
// non-empty className narrows the match further, since two sessions can
// start at the same time and the click must land on the card the schedule
// matcher chose.
func (s ScheduleFlow) CardSelector(timeText, className string) string {
	sel := fmt.Sprintf("//div[contains(@class, %s)][.//div[contains(@class, %s)][.//text()[contains(., %s)]]]",
		browser.XPathString(s.CardFragment),
		browser.XPathString(s.TimeFragment),
		browser.XPathString(timeText))
	if className != "" {
		sel += fmt.Sprintf("[.//div[contains(@class, %s)][.//text()[contains(., %s)]]]",
			browser.XPathString(s.NameFragment),
			browser.XPathString(className))
	}
	return sel
}

// ReserveButton matches the reserve control by its exact visible text.
func (s ScheduleFlow) ReserveButton() string {
	return browser.ExactButton(s.ReserveLabel)
}

// Selectors converts the card fragments into the set the schedule parser
// consumes.
func (s ScheduleFlow) Selectors() schedule.Selectors {
	return schedule.Selectors{
		Card:         fragmentSelector(s.CardFragment),
		Time:         fragmentSelector(s.TimeFragment),
		Name:         fragmentSelector(s.NameFragment),
		ReserveLabel: s.ReserveLabel,
		BookedLabel:  s.BookedLabel,
	}
}

func fragmentSelector(fragment string) string {
	return fmt.Sprintf("div[class*=%q]", fragment)
}
