package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	dateInputLayout      = "2/1/2006"
	maxDateInputAttempts = 5
	displayDateLayout    = "02 Jan 2006"
	storageDateLayout    = "2006-01-02"
)

var errTooManyAttempts = errors.New("maximum date input attempts exceeded")

// civilDate strips the clock and location, keeping only the calendar date.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// parseDate reads DD/MM/YYYY.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateInputLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use DD/MM/YYYY", s)
	}
	return t, nil
}

func promptDate(in *bufio.Reader, out io.Writer, prompt string) (time.Time, error) {
	for attempt := 1; attempt <= maxDateInputAttempts; attempt++ {
		fmt.Fprint(out, prompt)
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return time.Time{}, fmt.Errorf("failed to read date: %w", err)
		}
		day, perr := parseDate(line)
		if perr == nil {
			return day, nil
		}
		fmt.Fprintf(out, "Attempt %d: Invalid format. Use DD/MM/YYYY.\n", attempt)
		log.Warn().Str("input", strings.TrimSpace(line)).Msg("Invalid date input")
	}
	return time.Time{}, errTooManyAttempts
}

// promptRange asks for a start and end date until the end is not before the start.
func promptRange(in io.Reader, out io.Writer) (time.Time, time.Time, error) {
	reader := bufio.NewReader(in)
	for {
		start, err := promptDate(reader, out, "Enter start date (DD/MM/YYYY): ")
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end, err := promptDate(reader, out, "Enter end date (DD/MM/YYYY): ")
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if !end.Before(start) {
			return start, end, nil
		}
		fmt.Fprintln(out, "End date must be on or after the start date.")
		log.Warn().Msg("End date is before start date")
	}
}

// resolveRange uses the flag values when both are given and prompts otherwise.
func resolveRange(startFlag, endFlag string, in io.Reader, out io.Writer) (time.Time, time.Time, error) {
	if startFlag == "" || endFlag == "" {
		return promptRange(in, out)
	}
	start, err := parseDate(startFlag)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate(endFlag)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s",
			end.Format(displayDateLayout), start.Format(displayDateLayout))
	}
	return start, end, nil
}

// optionalRange is for commands that act on everything unless a range is given.
func optionalRange(startFlag, endFlag string) (time.Time, time.Time, bool, error) {
	if startFlag == "" && endFlag == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	if startFlag == "" || endFlag == "" {
		return time.Time{}, time.Time{}, false, errors.New("both --start-date and --end-date are required")
	}
	start, end, err := resolveRange(startFlag, endFlag, nil, io.Discard)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	return start, end, true, nil
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func lastOfMonth(t time.Time) time.Time {
	return firstOfMonth(t).AddDate(0, 1, -1)
}
