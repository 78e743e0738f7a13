package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func propValue(t *testing.T, comp *ical.Component, name string) string {
	t.Helper()
	prop := comp.Props.Get(name)
	require.NotNil(t, prop, name)
	return prop.Value
}

func TestNewVTimezoneLondon(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	tz := newVTimezone(loc,
		time.Date(2025, time.March, 1, 5, 0, 0, 0, loc),
		time.Date(2025, time.April, 30, 22, 0, 0, 0, loc))
	require.NotNil(t, tz)
	assert.Equal(t, ical.CompTimezone, tz.Name)
	assert.Equal(t, "Europe/London", propValue(t, tz, ical.PropTimezoneID))
	require.Len(t, tz.Children, 2)

	initial := tz.Children[0]
	assert.Equal(t, ical.CompTimezoneStandard, initial.Name)
	assert.Equal(t, "+0000", propValue(t, initial, ical.PropTimezoneOffsetFrom))
	assert.Equal(t, "+0000", propValue(t, initial, ical.PropTimezoneOffsetTo))

	bst := tz.Children[1]
	assert.Equal(t, ical.CompTimezoneDaylight, bst.Name)
	assert.Equal(t, "20250330T010000", propValue(t, bst, ical.PropDateTimeStart))
	assert.Equal(t, "+0000", propValue(t, bst, ical.PropTimezoneOffsetFrom))
	assert.Equal(t, "+0100", propValue(t, bst, ical.PropTimezoneOffsetTo))
	assert.Equal(t, "BST", propValue(t, bst, ical.PropTimezoneName))
}

func TestNewVTimezoneFixedOffset(t *testing.T) {
	assert.Nil(t, newVTimezone(time.UTC, date(2025, time.March, 1), date(2025, time.April, 1)))

	loc, err := time.LoadLocation("Asia/Karachi")
	require.NoError(t, err)
	tz := newVTimezone(loc, date(2025, time.March, 1).In(loc), date(2025, time.April, 1).In(loc))
	require.NotNil(t, tz)
	require.Len(t, tz.Children, 1)
	assert.Equal(t, "+0500", propValue(t, tz.Children[0], ical.PropTimezoneOffsetTo))
}

func TestFormatUTCOffset(t *testing.T) {
	assert.Equal(t, "+0000", formatUTCOffset(0))
	assert.Equal(t, "+0530", formatUTCOffset(5*3600+30*60))
	assert.Equal(t, "-0330", formatUTCOffset(-(3*3600 + 30*60)))
}

func TestCalDAVAddEvent(t *testing.T) {
	var body []byte
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		path = r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	client, err := caldav.NewClient(srv.Client(), srv.URL)
	require.NoError(t, err)
	provider := &CalDAVProvider{client: client, serverURL: srv.URL}

	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	event := &Event{
		Key:         eventMaghrib,
		Summary:     "Maghrib",
		Description: eventMarker,
		Start:       time.Date(2025, time.March, 30, 19, 30, 0, 0, loc),
		End:         time.Date(2025, time.March, 30, 21, 0, 0, 0, loc),
		TimeZone:    "Europe/London",
	}

	id, err := provider.AddEvent(context.Background(), srv.URL+"/calendars/me/prayers/", event)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, icalUIDPrefix))
	assert.Equal(t, "/calendars/me/prayers/"+id+".ics", path)

	out := string(body)
	assert.Contains(t, out, icalKeyProp+":"+eventMaghrib)
	assert.NotContains(t, out, "VALUE=TEXT")

	cal, err := ical.NewDecoder(bytes.NewReader(body)).Decode()
	require.NoError(t, err)
	require.Len(t, cal.Children, 2)
	tz := cal.Children[0]
	assert.Equal(t, ical.CompTimezone, tz.Name)
	assert.Equal(t, "Europe/London", propValue(t, tz, ical.PropTimezoneID))

	events := cal.Events()
	require.Len(t, events, 1)
	start, err := events[0].DateTimeStart(nil)
	require.NoError(t, err)
	assert.True(t, start.Equal(event.Start), start.String())

	parsed := fromICalComponent(events[0].Component)
	assert.Equal(t, eventMaghrib, parsed.Key)
	assert.Equal(t, id, parsed.ID)
	assert.True(t, isOurEvent(parsed))
}
