package attendance

import (
	"errors"
	"time"
)

// Policy holds the lateness thresholds used to classify a scan.
type Policy struct {
	OnTimeWithin time.Duration
	LateWithin   time.Duration
}

// DefaultPolicy is 15 minutes for on-time and one hour before a scan counts as absent.
func DefaultPolicy() Policy {
	return Policy{OnTimeWithin: 15 * time.Minute, LateWithin: 60 * time.Minute}
}

func (p Policy) Validate() error {
	if p.OnTimeWithin < 0 {
		return errors.New("on-time threshold must not be negative")
	}
	if p.LateWithin <= p.OnTimeWithin {
		return errors.New("late threshold must be greater than on-time threshold")
	}
	return nil
}

// Classify derives the status of a scan from its delay after the session start.
// Scans before the start are on time. Boundaries are inclusive: a scan exactly
// OnTimeWithin after the start is on time, one second later is late.
func (p Policy) Classify(sessionStart, scanTime time.Time) Status {
	delay := scanTime.Sub(sessionStart)
	switch {
	case delay <= p.OnTimeWithin:
		return StatusOnTime
	case delay <= p.LateWithin:
		return StatusLate
	default:
		return StatusAbsentLate
	}
}
