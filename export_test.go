package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportICS(t *testing.T) {
	f := newSyncFixture(t, nil)

	var buf bytes.Buffer
	n, err := exportICS(&buf, f.tt, f.planner, date(2025, time.March, 1), date(2025, time.March, 2))
	require.NoError(t, err)
	assert.Equal(t, 15, n)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
	assert.Contains(t, out, "PRODID:"+icalProdID)
	assert.Contains(t, out, "SUMMARY:Maghrib")
	assert.Contains(t, out, "TZID=Europe/London")
	assert.Contains(t, out, "20250301T173000")
	assert.Contains(t, out, icalKeyProp+":"+eventMaghrib)
	assert.Contains(t, out, "X-WR-TIMEZONE:Europe/London")
	assert.NotContains(t, out, "VALUE=TEXT")
	assert.Contains(t, out, "BEGIN:VTIMEZONE")
	assert.Contains(t, out, "TZID:Europe/London")
	assert.Zero(t, f.provider.addCalls)

	cal, err := ical.NewDecoder(strings.NewReader(out)).Decode()
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 15)
	require.NotEmpty(t, cal.Children)
	assert.Equal(t, ical.CompTimezone, cal.Children[0].Name)

	parsed := fromICalComponent(events[0].Component)
	assert.Equal(t, "Europe/London", parsed.TimeZone)
	assert.True(t, strings.HasPrefix(parsed.ID, icalUIDPrefix))
	assert.True(t, isOurEvent(parsed))

	keys := map[string]int{}
	for _, event := range events {
		keys[fromICalComponent(event.Component).Key]++
	}
	assert.Equal(t, 2, keys[eventMaghrib])
	assert.Empty(t, keys[""])
}
