// Package gcalendar reads and edits a Google Calendar with a service
// account.
package gcalendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/secretaria-app/secretaria/internal/googleauth"
)

const (
	// DefaultCalendarID is the calendar of the authenticated account.
	DefaultCalendarID = "primary"
	// DefaultTimeZone applies to event times written without an offset.
	DefaultTimeZone = "Europe/Madrid"
	// DefaultMaxResults bounds event listings when no limit is given.
	DefaultMaxResults = 50

	maxResultsCap = 250
	untitled      = "(Sin titulo)"
)

// ErrInvalidEvent is returned when a new event lacks required fields.
var ErrInvalidEvent = errors.New("event needs a summary, a start and an end")

// Attendee is a guest of an event.
type Attendee struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Event is the flattened view of a calendar event. Start and End hold an
// RFC 3339 time, or a YYYY-MM-DD date for all-day events.
type Event struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Start       string     `json:"start"`
	End         string     `json:"end"`
	HTMLLink    string     `json:"html_link"`
	Attendees   []Attendee `json:"attendees"`
}

// NewEvent describes an event to create.
type NewEvent struct {
	Summary     string   `json:"summary"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Attendees   []string `json:"attendees"`
}

// Range selects events by time. Empty bounds are open.
type Range struct {
	TimeMin    string
	TimeMax    string
	MaxResults int
}

// Client wraps the Calendar service for one calendar.
type Client struct {
	svc        *calendar.Service
	calendarID string
	loc        *time.Location
	now        func() time.Time
}

// New creates a client from service-account credentials.
func New(ctx context.Context, creds googleauth.Credentials, calendarID, timeZone string, opts ...option.ClientOption) (*Client, error) {
	auth, err := googleauth.ClientOptions(ctx, creds, calendar.CalendarScope)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, calendarID, timeZone, append(auth, opts...)...)
}

// NewWithOptions creates a client from raw client options.
func NewWithOptions(ctx context.Context, calendarID, timeZone string, opts ...option.ClientOption) (*Client, error) {
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}
	if timeZone == "" {
		timeZone = DefaultTimeZone
	}
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar time zone %q: %w", timeZone, err)
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &Client{svc: svc, calendarID: calendarID, loc: loc, now: time.Now}, nil
}

// List returns single (expanded) events ordered by start time.
func (c *Client) List(ctx context.Context, r Range) ([]Event, error) {
	limit := r.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	call := c.svc.Events.List(c.calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(int64(min(limit, maxResultsCap))).
		Context(ctx)
	if r.TimeMin != "" {
		call = call.TimeMin(r.TimeMin)
	}
	if r.TimeMax != "" {
		call = call.TimeMax(r.TimeMax)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	out := make([]Event, 0, len(resp.Items))
	for _, e := range resp.Items {
		out = append(out, toEvent(e))
	}
	return out, nil
}

// Today lists the events between local midnight and the next midnight.
func (c *Client) Today(ctx context.Context) ([]Event, error) {
	return c.List(ctx, c.days(1))
}

// Week lists the events of the next seven days starting at local midnight.
func (c *Client) Week(ctx context.Context) ([]Event, error) {
	return c.List(ctx, c.days(7))
}

func (c *Client) days(n int) Range {
	now := c.now().In(c.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
	return Range{
		TimeMin: start.Format(time.RFC3339),
		TimeMax: start.AddDate(0, 0, n).Format(time.RFC3339),
	}
}

// Create inserts an event and returns it as stored.
func (c *Client) Create(ctx context.Context, ev NewEvent) (*Event, error) {
	if strings.TrimSpace(ev.Summary) == "" || ev.Start == "" || ev.End == "" {
		return nil, ErrInvalidEvent
	}
	body := &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       c.eventTime(ev.Start),
		End:         c.eventTime(ev.End),
	}
	for _, email := range ev.Attendees {
		if email = strings.TrimSpace(email); email != "" {
			body.Attendees = append(body.Attendees, &calendar.EventAttendee{Email: email})
		}
	}
	created, err := c.svc.Events.Insert(c.calendarID, body).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	out := toEvent(created)
	return &out, nil
}

// Delete removes an event.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.svc.Events.Delete(c.calendarID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}
	return nil
}

// eventTime maps "YYYY-MM-DD" to an all-day date. Date-times without an
// offset are interpreted in the client's time zone.
func (c *Client) eventTime(s string) *calendar.EventDateTime {
	s = strings.TrimSpace(s)
	if len(s) == len("2006-01-02") {
		return &calendar.EventDateTime{Date: s}
	}
	if hasOffset(s) {
		return &calendar.EventDateTime{DateTime: s}
	}
	return &calendar.EventDateTime{DateTime: s, TimeZone: c.loc.String()}
}

func hasOffset(s string) bool {
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		return true
	}
	// The time part starts after "T"; a sign there is an offset.
	if i := strings.IndexAny(s, "Tt "); i >= 0 {
		return strings.ContainsAny(s[i:], "+-")
	}
	return false
}

func toEvent(e *calendar.Event) Event {
	out := Event{
		ID:          e.Id,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		HTMLLink:    e.HtmlLink,
		Start:       when(e.Start),
		End:         when(e.End),
		Attendees:   make([]Attendee, 0, len(e.Attendees)),
	}
	if out.Summary == "" {
		out.Summary = untitled
	}
	for _, a := range e.Attendees {
		out.Attendees = append(out.Attendees, Attendee{Email: a.Email, Name: a.DisplayName})
	}
	return out
}

func when(t *calendar.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}
