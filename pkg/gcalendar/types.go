package gcalendar

import "time"

// EventRequest is the input for creating or updating a calendar event.
type EventRequest struct {
	CalendarID  string
	Summary     string
	Description string

	// AllDay events carry a date only; timed events carry Start/End.
	AllDay bool
	Date   time.Time

	StartTime time.Time
	EndTime   time.Time
	Timezone  string // e.g. "Asia/Ho_Chi_Minh"
}

// Event is a simplified representation of an external calendar event.
type Event struct {
	ID          string
	Summary     string
	Description string
	HtmlLink    string
	AllDay      bool
	StartTime   time.Time
	EndTime     time.Time
}

// ListEventsRequest is the input for listing calendar events.
type ListEventsRequest struct {
	CalendarID string
	TimeMin    time.Time
	TimeMax    time.Time
	MaxResults int64
}
