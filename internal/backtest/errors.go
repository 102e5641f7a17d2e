package backtest

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// InputValidationError reports request fields that failed validation before
// any simulation work started. Fields maps a field name to a readable message.
type InputValidationError struct {
	Fields map[string]string
}

func (e *InputValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid input: " + strings.Join(msgs, "; ")
}

func invalidField(field, msg string) *InputValidationError {
	return &InputValidationError{Fields: map[string]string{field: msg}}
}

// DataGapError is returned when an instrument (or a currency pair) has no
// observations for part of the requested window. The window is never clipped
// to the available data.
type DataGapError struct {
	Instrument  string
	MissingFrom time.Time
	MissingTo   time.Time
}

func (e *DataGapError) Error() string {
	if e.MissingFrom.Equal(e.MissingTo) {
		return fmt.Sprintf("no data for %s at %s", e.Instrument, e.MissingFrom.Format("2006-01-02"))
	}
	return fmt.Sprintf("no data for %s between %s and %s",
		e.Instrument,
		e.MissingFrom.Format("2006-01-02"),
		e.MissingTo.Format("2006-01-02"),
	)
}

// InsufficientInstrumentsError is returned when an analysis needs more
// instruments than were supplied, e.g. correlation on a single instrument.
type InsufficientInstrumentsError struct {
	Count    int
	Required int
}

func (e *InsufficientInstrumentsError) Error() string {
	return fmt.Sprintf("at least %d instruments are required, got %d", e.Required, e.Count)
}
