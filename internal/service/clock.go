package service

import "time"

// Clock supplies the current time; tests inject a controllable one.
type Clock func() time.Time

func (c Clock) orDefault() Clock {
	if c == nil {
		return time.Now
	}
	return c
}
