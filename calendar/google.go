package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/warp/vacation-engine/vacation"
)

// Google is a calendar adapter backed by a Google Calendar. Events are
// created as all-day entries on the configured calendar.
type Google struct {
	svc        *gcal.Service
	calendarID string
}

// NewGoogle builds an adapter for calendarID using the given OAuth2 token
// source.
func NewGoogle(ctx context.Context, calendarID string, ts oauth2.TokenSource) (*Google, error) {
	svc, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar client: %w", err)
	}
	return &Google{svc: svc, calendarID: calendarID}, nil
}

// Google all-day events carry bare dates, not datetimes.
func allDayEvent(title string, start, endExclusive vacation.Day) *gcal.Event {
	return &gcal.Event{
		Summary: title,
		Start:   &gcal.EventDateTime{Date: start.String()},
		End:     &gcal.EventDateTime{Date: endExclusive.String()},
	}
}

func (g *Google) CreateAllDayEvent(ctx context.Context, title string, start, endExclusive vacation.Day) (string, error) {
	created, err := g.svc.Events.Insert(g.calendarID, allDayEvent(title, start, endExclusive)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create calendar event: %w", err)
	}
	return created.Id, nil
}

func (g *Google) UpdateAllDayEvent(ctx context.Context, eventID, title string, start, endExclusive vacation.Day) error {
	_, err := g.svc.Events.Patch(g.calendarID, eventID, allDayEvent(title, start, endExclusive)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update calendar event %q: %w", eventID, err)
	}
	return nil
}

func (g *Google) DeleteEvent(ctx context.Context, eventID string) error {
	err := g.svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do()
	if isNotFound(err) {
		// Already gone; deleting twice is fine.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete calendar event %q: %w", eventID, err)
	}
	return nil
}

func (g *Google) FindEvent(ctx context.Context, eventID string) (bool, error) {
	ev, err := g.svc.Events.Get(g.calendarID, eventID).Context(ctx).Do()
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up calendar event %q: %w", eventID, err)
	}
	// Deleted events are returned with status "cancelled".
	return ev.Status != "cancelled", nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
