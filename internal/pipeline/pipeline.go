package pipeline

import (
	"errors"
	"time"
)

// Source names the vendor segment of raw object paths.
const Source = "alphavantage"

// Run modes.
const (
	ModeDaily    = "daily"
	ModeBackfill = "backfill"
)

// RunDateLayout is the format of run dates.
const RunDateLayout = "2006-01-02"

// ErrNoSuccess is returned by a job in which no item succeeded.
var ErrNoSuccess = errors.New("no items processed successfully")

// RunDate returns date, or today's UTC date when date is empty.
func RunDate(date string, now time.Time) string {
	if date != "" {
		return date
	}
	return now.UTC().Format(RunDateLayout)
}

// ExitCode maps a job error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
