package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	got, err := parseDate(" 1/3/2025 ")
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.March, 1), got)

	got, err = parseDate("31/12/2025")
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.December, 31), got)

	for _, bad := range []string{"2025-03-01", "31/02/2025", "03/13/2025", ""} {
		_, err := parseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestPromptRange(t *testing.T) {
	var out bytes.Buffer
	start, end, err := promptRange(strings.NewReader("bad\n01/03/2025\n02/03/2025\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.March, 1), start)
	assert.Equal(t, date(2025, time.March, 2), end)
	assert.Contains(t, out.String(), "Attempt 1: Invalid format")
}

func TestPromptRangeAsksAgainWhenEndBeforeStart(t *testing.T) {
	var out bytes.Buffer
	input := "05/03/2025\n01/03/2025\n01/03/2025\n01/03/2025\n"
	start, end, err := promptRange(strings.NewReader(input), &out)
	require.NoError(t, err)
	assert.Equal(t, start, end)
	assert.Contains(t, out.String(), "End date must be on or after the start date.")
}

func TestPromptRangeTooManyAttempts(t *testing.T) {
	input := strings.Repeat("nope\n", maxDateInputAttempts)
	_, _, err := promptRange(strings.NewReader(input), &bytes.Buffer{})
	assert.ErrorIs(t, err, errTooManyAttempts)
}

func TestPromptRangeEOF(t *testing.T) {
	_, _, err := promptRange(strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestResolveRangeFlags(t *testing.T) {
	start, end, err := resolveRange("01/03/2025", "31/03/2025", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.March, 1), start)
	assert.Equal(t, date(2025, time.March, 31), end)

	_, _, err = resolveRange("02/03/2025", "01/03/2025", nil, nil)
	assert.Error(t, err)

	_, _, err = resolveRange("02-03-2025", "03/03/2025", nil, nil)
	assert.Error(t, err)
}

func TestOptionalRange(t *testing.T) {
	_, _, limited, err := optionalRange("", "")
	require.NoError(t, err)
	assert.False(t, limited)

	_, _, _, err = optionalRange("01/03/2025", "")
	assert.Error(t, err)

	start, end, limited, err := optionalRange("01/03/2025", "02/03/2025")
	require.NoError(t, err)
	assert.True(t, limited)
	assert.Equal(t, date(2025, time.March, 1), start)
	assert.Equal(t, date(2025, time.March, 2), end)
}

func TestMonthBounds(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	now := time.Date(2024, time.February, 14, 22, 0, 0, 0, loc)
	assert.Equal(t, date(2024, time.February, 1), firstOfMonth(now))
	assert.Equal(t, date(2024, time.February, 29), lastOfMonth(now))
}
