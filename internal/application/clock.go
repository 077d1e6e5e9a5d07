package application

import "time"

// Clock abstraction supaya gampang ditest; the Process pipeline stamps
// records with Clock.Now() when the entity has no timestamp of its own.
type Clock interface {
	Now() time.Time
}

// SystemClock implementasi default, pakai time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
