package gcalendar

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Client wraps the Google Calendar API service for one credential.
type Client struct {
	service *calendar.Service
}

// NewClientFromToken creates a Calendar client from a bearer access token.
// Token refresh is owned by the caller (the token lifecycle manager); this
// client never refreshes on its own.
func NewClientFromToken(ctx context.Context, accessToken string) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &Client{service: svc}, nil
}

// NewClientFromService wraps an existing calendar service. Used by tests
// pointed at an httptest server via option.WithEndpoint.
func NewClientFromService(svc *calendar.Service) *Client {
	return &Client{service: svc}
}

// InsertEvent creates a new calendar event and returns it.
func (c *Client) InsertEvent(ctx context.Context, req EventRequest) (Event, error) {
	created, err := c.service.Events.Insert(calendarID(req.CalendarID), toAPIEvent(req)).Context(ctx).Do()
	if err != nil {
		return Event{}, classify("insert event", err)
	}
	return fromAPIEvent(created), nil
}

// UpdateEvent replaces an existing event's content.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, req EventRequest) (Event, error) {
	updated, err := c.service.Events.Update(calendarID(req.CalendarID), eventID, toAPIEvent(req)).Context(ctx).Do()
	if err != nil {
		return Event{}, classify("update event", err)
	}
	return fromAPIEvent(updated), nil
}

// DeleteEvent removes an event. ErrNotFound means it was already gone.
func (c *Client) DeleteEvent(ctx context.Context, calID, eventID string) error {
	if err := c.service.Events.Delete(calendarID(calID), eventID).Context(ctx).Do(); err != nil {
		return classify("delete event", err)
	}
	return nil
}

// ListEvents returns single (expanded) events within the time range.
func (c *Client) ListEvents(ctx context.Context, req ListEventsRequest) ([]Event, error) {
	call := c.service.Events.List(calendarID(req.CalendarID)).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(req.TimeMin.Format(time.RFC3339)).
		TimeMax(req.TimeMax.Format(time.RFC3339))
	if req.MaxResults > 0 {
		call = call.MaxResults(req.MaxResults)
	}

	res, err := call.Context(ctx).Do()
	if err != nil {
		return nil, classify("list events", err)
	}

	events := make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		events = append(events, fromAPIEvent(item))
	}
	return events, nil
}

func calendarID(id string) string {
	if id == "" {
		return "primary"
	}
	return id
}

func toAPIEvent(req EventRequest) *calendar.Event {
	ev := &calendar.Event{
		Summary:     req.Summary,
		Description: req.Description,
	}
	if req.AllDay {
		d := req.Date.Format("2006-01-02")
		ev.Start = &calendar.EventDateTime{Date: d}
		// All-day end dates are exclusive.
		ev.End = &calendar.EventDateTime{Date: req.Date.AddDate(0, 0, 1).Format("2006-01-02")}
		return ev
	}
	ev.Start = &calendar.EventDateTime{
		DateTime: req.StartTime.Format(time.RFC3339),
		TimeZone: req.Timezone,
	}
	ev.End = &calendar.EventDateTime{
		DateTime: req.EndTime.Format(time.RFC3339),
		TimeZone: req.Timezone,
	}
	return ev
}

func fromAPIEvent(ev *calendar.Event) Event {
	out := Event{
		ID:          ev.Id,
		Summary:     ev.Summary,
		Description: ev.Description,
		HtmlLink:    ev.HtmlLink,
	}
	if ev.Start != nil {
		if ev.Start.Date != "" {
			out.AllDay = true
			out.StartTime, _ = time.Parse("2006-01-02", ev.Start.Date)
		} else {
			out.StartTime, _ = time.Parse(time.RFC3339, ev.Start.DateTime)
		}
	}
	if ev.End != nil {
		if ev.End.Date != "" {
			out.EndTime, _ = time.Parse("2006-01-02", ev.End.Date)
		} else {
			out.EndTime, _ = time.Parse(time.RFC3339, ev.End.DateTime)
		}
	}
	return out
}
