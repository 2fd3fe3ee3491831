package clock

import "time"

// Clock abstracts time to keep pipeline runs deterministic in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time {
	return f.At
}
