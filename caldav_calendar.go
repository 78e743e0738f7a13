package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
)

const (
	icalProdID    = "-//bobuk//prayersync//EN"
	icalKeyProp   = "X-PRAYERSYNC-KEY"
	icalUIDPrefix = "prayersync-"
)

type CalDAVProvider struct {
	client    *caldav.Client
	serverURL string
}

func NewCalDAVProvider(ctx context.Context, serverURL, username, password string) (*CalDAVProvider, error) {
	baseURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid CalDAV server URL: %w", err)
	}

	var httpClient webdav.HTTPClient = http.DefaultClient
	if username != "" && password != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(httpClient, username, password)
	}

	c, err := caldav.NewClient(httpClient, baseURL.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create CalDAV client: %w", err)
	}

	// Empty path means server root
	if _, err := c.FindCalendars(ctx, ""); err != nil {
		return nil, fmt.Errorf("failed to connect to CalDAV server: %w", err)
	}

	return &CalDAVProvider{
		client:    c,
		serverURL: serverURL,
	}, nil
}

func (c *CalDAVProvider) GetCalendar(ctx context.Context, calendarID string) error {
	calURL, err := url.Parse(calendarID)
	if err != nil {
		return fmt.Errorf("invalid calendar URL: %w", err)
	}

	homeSetPath := "/"
	if calURL.Path != "" {
		parts := strings.Split(strings.TrimRight(calURL.Path, "/"), "/")
		if len(parts) > 1 {
			homeSetPath = "/" + strings.Join(parts[:len(parts)-1], "/")
		}
	}

	calendars, err := c.client.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if strings.TrimRight(cal.Path, "/") == strings.TrimRight(calURL.Path, "/") {
			return nil
		}
	}

	return fmt.Errorf("calendar not found at path: %s", calURL.Path)
}

func (c *CalDAVProvider) AddEvent(ctx context.Context, calendarID string, event *Event) (string, error) {
	calURL, err := url.Parse(calendarID)
	if err != nil {
		return "", fmt.Errorf("invalid calendar URL: %w", err)
	}

	eventUID := icalUIDPrefix + uuid.NewString()

	cal := newICalendar()
	if tz := newVTimezone(event.Start.Location(), event.Start, event.End); tz != nil {
		cal.Children = append(cal.Children, tz)
	}
	cal.Children = append(cal.Children, newICalEvent(eventUID, event).Component)

	path := eventPath(calURL, eventUID)
	if _, err := c.client.PutCalendarObject(ctx, path, cal); err != nil {
		return "", fmt.Errorf("failed to create event: %w", err)
	}

	return eventUID, nil
}

func (c *CalDAVProvider) DeleteEvent(ctx context.Context, calendarID string, eventID string) error {
	calURL, err := url.Parse(calendarID)
	if err != nil {
		return fmt.Errorf("invalid calendar URL: %w", err)
	}

	// caldav.Client embeds the webdav client which owns resource removal
	if err := c.client.Client.RemoveAll(ctx, eventPath(calURL, eventID)); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

func (c *CalDAVProvider) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*Event, error) {
	calURL, err := url.Parse(calendarID)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar URL: %w", err)
	}

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: timeMin,
				End:   timeMax,
			}},
		},
	}

	objects, err := c.client.QueryCalendar(ctx, calURL.Path, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	var result []*Event
	for _, obj := range objects {
		for _, comp := range obj.Data.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			result = append(result, fromICalComponent(comp))
		}
	}

	return result, nil
}

func eventPath(calURL *url.URL, eventUID string) string {
	return strings.TrimRight(calURL.Path, "/") + "/" + eventUID + ".ics"
}

func newICalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icalProdID)
	return cal
}

// setRawProp writes a property without a VALUE parameter. SetText would tag
// X- properties with VALUE=TEXT.
func setRawProp(props ical.Props, name, value string) {
	prop := ical.NewProp(name)
	prop.Value = value
	props.Set(prop)
}

func newICalEvent(uid string, event *Event) *ical.Event {
	icalEvent := ical.NewEvent()
	icalEvent.Props.SetText(ical.PropUID, uid)
	icalEvent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	icalEvent.Props.SetText(ical.PropSummary, event.Summary)
	if event.Description != "" {
		icalEvent.Props.SetText(ical.PropDescription, event.Description)
	}
	icalEvent.Props.SetDateTime(ical.PropDateTimeStart, event.Start)
	icalEvent.Props.SetDateTime(ical.PropDateTimeEnd, event.End)
	icalEvent.Props.SetText(ical.PropStatus, "CONFIRMED")
	if event.Key != "" {
		setRawProp(icalEvent.Props, icalKeyProp, event.Key)
	}
	return icalEvent
}

func fromICalComponent(comp *ical.Component) *Event {
	status := strings.ToLower(getTextProp(comp.Props, ical.PropStatus))
	if status == "" {
		status = "confirmed"
	}

	start, _ := comp.Props.DateTime(ical.PropDateTimeStart, time.UTC)
	end, _ := comp.Props.DateTime(ical.PropDateTimeEnd, time.UTC)

	event := &Event{
		ID:          getTextProp(comp.Props, ical.PropUID),
		Key:         getTextProp(comp.Props, icalKeyProp),
		Summary:     getTextProp(comp.Props, ical.PropSummary),
		Description: getTextProp(comp.Props, ical.PropDescription),
		Start:       start,
		End:         end,
		Status:      status,
	}
	if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
		event.TimeZone = prop.Params.Get(ical.ParamTimezoneID)
	}
	return event
}

func getTextProp(props ical.Props, name string) string {
	prop := props.Get(name)
	if prop == nil {
		return ""
	}
	return prop.Value
}

// newVTimezone describes loc between from and to: one observance for the offset
// in effect at from, then one per transition. Nil for UTC, which needs no TZID.
func newVTimezone(loc *time.Location, from, to time.Time) *ical.Component {
	if loc == nil || loc == time.UTC {
		return nil
	}

	tz := ical.NewComponent(ical.CompTimezone)
	setRawProp(tz.Props, ical.PropTimezoneID, loc.String())

	start := from.In(loc)
	_, offset := start.Zone()
	tz.Children = append(tz.Children, newObservance(start, offset, offset, "19700101T000000"))

	end := to.In(loc)
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		next := day.AddDate(0, 0, 1)
		if next.After(end) {
			next = end
		}
		_, before := day.Zone()
		_, after := next.Zone()
		if before == after {
			continue
		}
		at := findTransition(day, next)
		onset := at.In(time.FixedZone("", before)).Format(icalLocalLayout)
		tz.Children = append(tz.Children, newObservance(at.In(loc), before, after, onset))
	}
	return tz
}

const icalLocalLayout = "20060102T150405"

// findTransition narrows [lo, hi) down to the first second with hi's offset.
func findTransition(lo, hi time.Time) time.Time {
	_, target := hi.Zone()
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2)
		if _, off := mid.Zone(); off == target {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi.Truncate(time.Second)
}

func newObservance(t time.Time, from, to int, onset string) *ical.Component {
	name := ical.CompTimezoneStandard
	if t.IsDST() {
		name = ical.CompTimezoneDaylight
	}
	obs := ical.NewComponent(name)
	setRawProp(obs.Props, ical.PropDateTimeStart, onset)
	setRawProp(obs.Props, ical.PropTimezoneOffsetFrom, formatUTCOffset(from))
	setRawProp(obs.Props, ical.PropTimezoneOffsetTo, formatUTCOffset(to))
	if abbr, _ := t.Zone(); abbr != "" {
		setRawProp(obs.Props, ical.PropTimezoneName, abbr)
	}
	return obs
}

// formatUTCOffset renders seconds east of UTC as +hhmm.
func formatUTCOffset(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d%02d", sign, seconds/3600, seconds%3600/60)
}
