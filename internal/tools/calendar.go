package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Interval is a half-open time range
type Interval struct {
	Start time.Time
	End   time.Time
}

// EventRequest describes a calendar event to create
type EventRequest struct {
	Summary       string
	Description   string
	Start         time.Time
	End           time.Time
	TimeZone      string
	AttendeeEmail string
}

// CreatedEvent identifies an event on the remote calendar
type CreatedEvent struct {
	ID   string
	Link string
}

// Calendar is the remote calendar of one connected user
type Calendar interface {
	FreeBusy(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]Interval, error)
	CreateEvent(ctx context.Context, calendarID string, ev EventRequest) (*CreatedEvent, error)
}

// CalendarConnector opens a user's calendar with the turn's access token
type CalendarConnector func(ctx context.Context, accessToken string) (Calendar, error)

// Window is a requested availability range on one day, as "HH:MM" times
type Window struct {
	Min string
	Max string
}

// lastMinute is the latest clock time a window may end at on its day
const lastMinute = 23*60 + 59

// repairWindow fills defaults and fixes ranges models commonly get wrong:
// an identical start and end is widened by one hour, and an end not after
// the start falls back to the end of the business day, or to one hour after
// the start when the business day is already over. Ends never pass 23:59.
func repairWindow(timeMin, timeMax, dayStart, dayEnd string) Window {
	if timeMin == "" {
		timeMin = dayStart
	}
	if timeMax == "" {
		timeMax = dayEnd
	}
	timeMin = normalizeClock(timeMin)
	timeMax = normalizeClock(timeMax)

	start := clockMinutes(timeMin)
	if timeMin == timeMax {
		timeMax = formatClock(min(start+60, lastMinute))
	}

	if clockMinutes(timeMax) <= start {
		timeMax = normalizeClock(dayEnd)
		if clockMinutes(timeMax) <= start {
			timeMax = formatClock(min(start+60, lastMinute))
		}
	}

	return Window{Min: timeMin, Max: timeMax}
}

func clockMinutes(clock string) int {
	h, m, _ := parseClock(clock)
	return h*60 + m
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// freeSlots walks the range in fixed steps. A slot is free when it does not
// overlap any busy interval, and it must end within the range.
func freeSlots(start, end time.Time, busy []Interval, step time.Duration) []Interval {
	var slots []Interval
	for cur := start; cur.Before(end); cur = cur.Add(step) {
		slotEnd := cur.Add(step)
		if slotEnd.After(end) {
			continue
		}

		free := true
		for _, b := range busy {
			if cur.Before(b.End) && slotEnd.After(b.Start) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, Interval{Start: cur, End: slotEnd})
		}
	}
	return slots
}

// resolveDate turns "today", "tomorrow" or YYYY-MM-DD into midnight in loc
func resolveDate(date string, now time.Time, loc *time.Location) (time.Time, error) {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch strings.ToLower(strings.TrimSpace(date)) {
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	}
	return time.ParseInLocation(time.DateOnly, strings.TrimSpace(date), loc)
}

func atClock(day time.Time, clock string) time.Time {
	h, m, _ := parseClock(clock)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}

func parseClock(s string) (int, int, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 || len(ms) != 2 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

func normalizeClock(s string) string {
	h, m, err := parseClock(s)
	if err != nil {
		return s
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

var localDateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseDateTime accepts RFC 3339 or a local date-time interpreted in loc
func parseDateTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range localDateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date-time %q", s)
}
