package printer

// Status is the result of one poll of the printer. It is rebuilt from
// scratch on every fetch and never stored anywhere.
type Status struct {
	State            string `json:"state"`
	Printing         bool   `json:"printing"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// Idle reports whether the printer has no active job left. A job that
// reports as printing with nothing remaining counts as idle, matching the
// firmware behavior at the tail end of a print.
func (s Status) Idle() bool {
	return !s.Printing || s.RemainingSeconds <= 0
}

// remainingSeconds picks the remaining print time from firmware fields.
// When the response carries an elapsed/total pair the difference wins,
// clamped so a stale total can never yield a negative remainder.
func remainingSeconds(elapsedMS, totalMS, remainingMS int64) int {
	if totalMS > 0 {
		d := totalMS - elapsedMS
		if d < 0 {
			d = 0
		}
		return int(d / 1000)
	}
	if remainingMS < 0 {
		remainingMS = 0
	}
	return int(remainingMS / 1000)
}
