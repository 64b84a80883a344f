// Package gcal pushes tasks and events to the user's Google Calendar.
//
// The caller owns the user session and passes the user's OAuth access
// token with each request.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"studycal/internal/apperr"
	appLog "studycal/internal/log"
	"studycal/internal/model"
)

// PrimaryCalendar is the calendar id new events are inserted into.
const PrimaryCalendar = "primary"

// ErrNoToken is returned when a request carries no access token.
var ErrNoToken = errors.New("gcal: missing access token")

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint overrides the Calendar API base URL.
	Endpoint string
}

// EventRequest is what gets sent to the provider.
type EventRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Start       time.Time    `json:"startDate"`
	End         time.Time    `json:"endDate"`
	Repeat      model.Repeat `json:"repeat,omitempty"`
}

// Inserted is the provider's answer for a created event.
type Inserted struct {
	ID       string `json:"id"`
	HTMLLink string `json:"htmlLink,omitempty"`
	Status   string `json:"status,omitempty"`
}

type Client struct {
	oauth    *oauth2.Config
	endpoint string
	loc      *time.Location
}

// New returns a client sending times in loc (time.Local when nil).
func New(cfg Config, loc *time.Location) *Client {
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{calendar.CalendarEventsScope},
		},
		endpoint: cfg.Endpoint,
		loc:      loc,
	}
}

// AuthCodeURL is the consent page URL for the calendar events scope.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// BuildEvent converts req into the Calendar API representation.
func BuildEvent(req EventRequest, loc *time.Location) *calendar.Event {
	if loc == nil {
		loc = time.Local
	}
	ev := &calendar.Event{
		Summary:     req.Title,
		Description: req.Description,
		Start: &calendar.EventDateTime{
			DateTime: req.Start.In(loc).Format(time.RFC3339),
			TimeZone: loc.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: req.End.In(loc).Format(time.RFC3339),
			TimeZone: loc.String(),
		},
	}
	if rule := req.Repeat.RRule(); rule != "" {
		ev.Recurrence = []string{"RRULE:" + rule}
	}
	return ev
}

func (c *Client) service(ctx context.Context, token string) (*calendar.Service, error) {
	httpClient := c.oauth.Client(ctx, &oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.endpoint != "" {
		ep := c.endpoint
		if !strings.HasSuffix(ep, "/") {
			ep += "/"
		}
		opts = append(opts, option.WithEndpoint(ep))
	}
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create calendar service: %w", err)
	}
	return srv, nil
}

// InsertEvent creates req on the user's primary calendar.
func (c *Client) InsertEvent(ctx context.Context, token string, req EventRequest) (Inserted, error) {
	const op = "gcal.insert"
	if strings.TrimSpace(token) == "" {
		return Inserted{}, ErrNoToken
	}
	if strings.TrimSpace(req.Title) == "" {
		return Inserted{}, apperr.Validation(op, "title is required")
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return Inserted{}, apperr.Validation(op, "startDate and endDate are required")
	}

	srv, err := c.service(ctx, token)
	if err != nil {
		return Inserted{}, apperr.Transport(op, err)
	}
	created, err := srv.Events.Insert(PrimaryCalendar, BuildEvent(req, c.loc)).Context(ctx).Do()
	if err != nil {
		appLog.Error("gcal insert failed", err, "title", req.Title)
		return Inserted{}, apperr.Transport(op, err)
	}
	appLog.Info("gcal event created", "id", created.Id)
	return Inserted{ID: created.Id, HTMLLink: created.HtmlLink, Status: created.Status}, nil
}
