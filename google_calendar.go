package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const extendedPropertyKey = "prayersync"

type GoogleCalendarProvider struct {
	service *calendar.Service
}

func NewGoogleCalendarProvider(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*GoogleCalendarProvider, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &GoogleCalendarProvider{service: service}, nil
}

func (g *GoogleCalendarProvider) GetCalendar(ctx context.Context, calendarID string) error {
	_, err := g.service.CalendarList.Get(calendarID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get calendar: %w", err)
	}
	return nil
}

func (g *GoogleCalendarProvider) AddEvent(ctx context.Context, calendarID string, event *Event) (string, error) {
	createdEvent, err := g.service.Events.Insert(calendarID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create event: %w", err)
	}
	return createdEvent.Id, nil
}

func (g *GoogleCalendarProvider) DeleteEvent(ctx context.Context, calendarID string, eventID string) error {
	err := g.service.Events.Delete(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

func (g *GoogleCalendarProvider) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*Event, error) {
	var result []*Event
	pageToken := ""

	for {
		events, err := g.service.Events.List(calendarID).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			PageToken(pageToken).
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}

		for _, item := range events.Items {
			result = append(result, fromGoogleEvent(item))
		}

		pageToken = events.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return result, nil
}

func toGoogleEvent(event *Event) *calendar.Event {
	googleEvent := &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		ColorId:     event.ColorID,
		Start: &calendar.EventDateTime{
			DateTime: event.Start.Format(time.RFC3339),
			TimeZone: event.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: event.End.Format(time.RFC3339),
			TimeZone: event.TimeZone,
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{extendedPropertyKey: event.Key},
		},
	}
	if event.NoReminders {
		googleEvent.Reminders = &calendar.EventReminders{
			UseDefault:      false,
			ForceSendFields: []string{"UseDefault"},
		}
	}
	return googleEvent
}

func fromGoogleEvent(item *calendar.Event) *Event {
	event := &Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		ColorID:     item.ColorId,
		Status:      item.Status,
	}
	if item.Start != nil {
		event.Start, _ = time.Parse(time.RFC3339, item.Start.DateTime)
		event.TimeZone = item.Start.TimeZone
	}
	if item.End != nil {
		event.End, _ = time.Parse(time.RFC3339, item.End.DateTime)
	}
	if item.ExtendedProperties != nil {
		event.Key = item.ExtendedProperties.Private[extendedPropertyKey]
	}
	return event
}
