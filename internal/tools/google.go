package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleCalendarConnector opens Google Calendar with a caller-supplied
// access token. The token lives only as long as the returned client.
func GoogleCalendarConnector(opts ...option.ClientOption) CalendarConnector {
	return func(ctx context.Context, accessToken string) (Calendar, error) {
		if accessToken == "" {
			return nil, errors.New("missing access token")
		}
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
		svc, err := calendar.NewService(ctx, append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)...)
		if err != nil {
			return nil, fmt.Errorf("create calendar service: %w", err)
		}
		return &googleCalendar{svc: svc}, nil
	}
}

type googleCalendar struct {
	svc *calendar.Service
}

func (g *googleCalendar) FreeBusy(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]Interval, error) {
	resp, err := g.svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: timeMin.Format(time.RFC3339),
		TimeMax: timeMax.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("query free/busy: %w", err)
	}

	cal, ok := resp.Calendars[calendarID]
	if !ok {
		return nil, nil
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("free/busy for %s: %s", calendarID, cal.Errors[0].Reason)
	}

	busy := make([]Interval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("parse busy start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("parse busy end: %w", err)
		}
		busy = append(busy, Interval{Start: start, End: end})
	}
	return busy, nil
}

func (g *googleCalendar) CreateEvent(ctx context.Context, calendarID string, ev EventRequest) (*CreatedEvent, error) {
	event := &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: ev.TimeZone},
		End:         &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: ev.TimeZone},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
	if ev.AttendeeEmail != "" {
		event.Attendees = []*calendar.EventAttendee{{Email: ev.AttendeeEmail}}
	}

	created, err := g.svc.Events.Insert(calendarID, event).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &CreatedEvent{ID: created.Id, Link: created.HtmlLink}, nil
}
