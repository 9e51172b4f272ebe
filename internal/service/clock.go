package service

import "time"

// Clock supplies server-authoritative time. Every duration the attempt
// lifecycle computes derives from it; client-supplied timestamps are
// never consulted.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
