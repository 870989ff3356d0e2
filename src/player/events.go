package player

import (
	"time"
)

// Events emitted by a Session. An event is published only when the associated
// part of the state actually changed, commands that have no effect are
// silent.

// StatusEvent is emitted when the playback status changes.
type StatusEvent struct {
	Status Status
}

// PlaylistEvent is emitted when the queue contents or the play position
// change.
type PlaylistEvent struct {
	Index int
}

// TimeEvent is emitted when the playback position changes.
type TimeEvent struct {
	Time time.Duration
}

// DurationEvent is emitted when the duration of the current track becomes
// known or changes.
type DurationEvent struct {
	Duration time.Duration
}

// VolumeEvent is emitted when the volume or mute state changes.
type VolumeEvent struct {
	Volume float32
	Muted  bool
}

// ModeEvent is emitted when the repeat mode or shuffle state changes.
type ModeEvent struct {
	Repeat    RepeatMode
	Shuffling bool
}
