package main

import (
	"context"
	"time"
)

// eventMarker is written into the description of every event we create so that
// cleanup can find them again without the local database.
const eventMarker = "Added by prayersync"

type CalendarProvider interface {
	GetCalendar(ctx context.Context, calendarID string) error
	AddEvent(ctx context.Context, calendarID string, event *Event) (string, error)
	DeleteEvent(ctx context.Context, calendarID string, eventID string) error
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*Event, error)
}

// Event is a single prayer time block. Start and End carry the wall clock in the
// event's TimeZone.
type Event struct {
	ID          string
	Key         string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	ColorID     string
	NoReminders bool
	Status      string
}
