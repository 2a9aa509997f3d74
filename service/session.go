package service

import (
	"math/big"
	"time"
)

// Default auto-scheduling window: voting opens two minutes after creation and
// lasts two hours.
const (
	DefaultStartLead = 120 * time.Second
	DefaultDuration  = 7200 * time.Second
)

// Schedule fills in election times a caller leaves out.
type Schedule struct {
	StartLead time.Duration
	Duration  time.Duration
}

func NewSchedule(startLead, duration time.Duration) Schedule {
	if startLead <= 0 {
		startLead = DefaultStartLead
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return Schedule{StartLead: startLead, Duration: duration}
}

// Window returns the start and end Unix timestamps for an election created at
// now. A nil start becomes now+StartLead and a nil end becomes
// start+Duration. Supplied values are returned untouched.
func (s Schedule) Window(now time.Time, start, end *big.Int) (*big.Int, *big.Int) {
	if start == nil {
		start = big.NewInt(now.Add(s.StartLead).Unix())
	}
	if end == nil {
		end = new(big.Int).Add(start, big.NewInt(int64(s.Duration/time.Second)))
	}
	return start, end
}

// validateWindow checks that both times lie strictly in the future and that the
// election ends after it starts. The first violation wins.
func validateWindow(now time.Time, start, end *big.Int) *Error {
	current := big.NewInt(now.Unix())

	if start.Cmp(current) <= 0 {
		return invalidWindow("start must be future")
	}
	if end.Cmp(current) <= 0 {
		return invalidWindow("end must be future")
	}
	if end.Cmp(start) <= 0 {
		return invalidWindow("end must follow start")
	}
	return nil
}
