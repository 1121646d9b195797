package domain

import "time"

// VideoState is the authoritative playback tuple of a room:
// "the video was at Timestamp seconds, playing-or-not, as of LastUpdated".
// An empty URL means the room is not watching anything.
type VideoState struct {
	URL         string
	Timestamp   float64
	LastUpdated time.Time
	Playing     bool
}

// Projected returns the estimated live position at now.
// A paused video does not advance.
func (v VideoState) Projected(now time.Time) float64 {
	if !v.Playing {
		return v.Timestamp
	}
	return v.Timestamp + now.Sub(v.LastUpdated).Seconds()
}

// VideoUpdate is a partial patch of VideoState. Nil means "field omitted";
// a present zero value (empty URL, timestamp 0) is still applied.
type VideoUpdate struct {
	URL       *string
	Timestamp *float64
	Playing   *bool
}

// Apply merges the present fields into v and stamps LastUpdated.
func (v *VideoState) Apply(u VideoUpdate, now time.Time) {
	if u.URL != nil {
		v.URL = *u.URL
	}
	if u.Timestamp != nil {
		v.Timestamp = *u.Timestamp
	}
	if u.Playing != nil {
		v.Playing = *u.Playing
	}
	v.LastUpdated = now
}
