package backtest

import "time"

// DrawdownEvent is a decline from a running peak. Depth is the fractional
// decline from the peak to the trough (0.3 means the value fell 30%). EndDate
// is nil while the peak has not been recovered by the end of the window.
type DrawdownEvent struct {
	StartDate    time.Time  `json:"startDate"`
	TroughDate   time.Time  `json:"troughDate"`
	EndDate      *time.Time `json:"endDate"`
	Depth        float64    `json:"depth"`
	LengthMonths int        `json:"lengthMonths"`
	Recovered    bool       `json:"recovered"`
}

func runningPeak(values []float64) []float64 {
	peaks := make([]float64, len(values))
	for i, v := range values {
		if i == 0 || v > peaks[i-1] {
			peaks[i] = v
			continue
		}
		peaks[i] = peaks[i-1]
	}
	return peaks
}

// Drawdowns lists every decline below the running peak of values, in order.
// An event ends when the value gets back to its peak.
func Drawdowns(dates []time.Time, values []float64) []DrawdownEvent {
	events := []DrawdownEvent{}
	if len(values) == 0 {
		return events
	}

	peaks := runningPeak(values)
	peakIdx := 0
	var current *DrawdownEvent

	for i := 1; i < len(values); i++ {
		if values[i] >= peaks[i] {
			if current != nil {
				end := dates[i]
				current.EndDate = &end
				current.Recovered = true
				current.LengthMonths = monthsBetween(current.StartDate, end)
				events = append(events, *current)
				current = nil
			}
			peakIdx = i
			continue
		}

		depth := 0.0
		if peaks[i] > 0 {
			depth = 1 - values[i]/peaks[i]
		}
		if current == nil {
			current = &DrawdownEvent{StartDate: dates[peakIdx], TroughDate: dates[i], Depth: depth}
		} else if depth > current.Depth {
			current.Depth = depth
			current.TroughDate = dates[i]
		}
	}

	if current != nil {
		current.LengthMonths = monthsBetween(current.StartDate, dates[len(dates)-1])
		events = append(events, *current)
	}
	return events
}

func emptyDrawdown(dates []time.Time) DrawdownEvent {
	var start time.Time
	if len(dates) > 0 {
		start = dates[0]
	}
	end := start
	return DrawdownEvent{StartDate: start, TroughDate: start, EndDate: &end, Recovered: true}
}

func deepest(events []DrawdownEvent, dates []time.Time) DrawdownEvent {
	if len(events) == 0 {
		return emptyDrawdown(dates)
	}
	best := events[0]
	for _, e := range events[1:] {
		if e.Depth > best.Depth {
			best = e
		}
	}
	return best
}

func longest(events []DrawdownEvent, dates []time.Time) DrawdownEvent {
	if len(events) == 0 {
		return emptyDrawdown(dates)
	}
	best := events[0]
	for _, e := range events[1:] {
		if e.LengthMonths > best.LengthMonths {
			best = e
		}
	}
	return best
}
