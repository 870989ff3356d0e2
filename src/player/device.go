package player

import (
	"context"
	"time"

	"soniq/src/util"
)

// A Device is a handle to a single audio output resource.
//
// All command methods are fire and forget: they request a change and return
// immediately, they never fail synchronously. The device reports what actually
// happened through its event emitter. Runtime failures surface exclusively as
// a DeviceErrorEvent.
//
// Every call to Load starts a new generation. Events are tagged with the
// generation of the media they belong to so that consumers can discard events
// from a superseded load.
type Device interface {
	util.Eventer

	// Load stops and releases whatever was playing before, then begins
	// loading the specified locator asynchronously. Playback starts as soon
	// as the media is ready. The returned generation tags all events for
	// this media.
	Load(ctx context.Context, uri string) int

	// Play and Pause request a playback state change. The device confirms
	// through a DeviceStateEvent, which may also occur without a prior
	// request when playback is controlled externally.
	Play(ctx context.Context)
	Pause(ctx context.Context)

	// Seek moves the playback position, clamped to [0, duration]. It is a
	// no-op when no media is loaded.
	Seek(ctx context.Context, t time.Duration)

	// SetVolume adjusts the output volume, clamped to [0, 1].
	SetVolume(ctx context.Context, vol float32)

	// Stop halts playback and releases the loaded media.
	Stop(ctx context.Context)
}

// ProgressEvent is emitted when the playback position has progressed.
type ProgressEvent struct {
	Gen  int
	Time time.Duration
}

// DurationKnownEvent is emitted once the device has determined the duration
// of the loaded media.
type DurationKnownEvent struct {
	Gen      int
	Duration time.Duration
}

// EndedEvent is emitted when the loaded media has played to completion.
type EndedEvent struct {
	Gen int
}

// DeviceStateEvent is emitted when the device starts or stops playing, either
// as confirmation of a Play/Pause call or because of external control.
type DeviceStateEvent struct {
	Gen     int
	Playing bool
}

// DeviceErrorEvent is emitted when the device has failed. Errors that concern
// a specific media carry its generation.
type DeviceErrorEvent struct {
	Gen int
	Err error
}
