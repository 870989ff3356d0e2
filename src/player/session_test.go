package player

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"soniq/src/util"
)

func newTestSession(t *testing.T) (*Session, *FakeDevice) {
	t.Helper()
	dev := &FakeDevice{}
	sess := NewSession(dev, 0.75)
	sess.controlDebounce = 50 * time.Millisecond
	sess.seekDebounce = 30 * time.Millisecond
	t.Cleanup(sess.Close)
	return sess, dev
}

func waitForState(t *testing.T, sess *Session, cond func(State) bool) State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		state := sess.Snapshot()
		if cond(state) {
			checkStateInvariants(t, state)
			return state
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for state, last: %+v", state)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func checkStateInvariants(t *testing.T, state State) {
	t.Helper()
	if (state.Track == nil) != (state.QueueIndex == -1) {
		t.Fatalf("Track/index invariant violated: track=%v index=%v", state.Track, state.QueueIndex)
	}
	if state.Time < 0 {
		t.Fatalf("Negative playback position: %v", state.Time)
	}
	if state.Duration > 0 && state.Time > state.Duration {
		t.Fatalf("Position beyond duration: %v > %v", state.Time, state.Duration)
	}
}

// Scenario: a fresh queue loads, the device reports its duration and the
// session starts playing. Skipping advances to the next track.
func TestSessionPlayQueue(t *testing.T) {
	sess, dev := newTestSession(t)
	tracks := queueTracks(3)

	sess.PlayQueue(tracks, 0, true)
	state := waitForState(t, sess, func(s State) bool { return s.Status == StatusLoading })
	if state.Track == nil || state.Track.ID != "track1" {
		t.Fatalf("Unexpected track: %+v", state.Track)
	}
	if state.Time != 0 {
		t.Fatalf("Unexpected time: %v", state.Time)
	}
	if !reflect.DeepEqual(dev.Loads(), []string{tracks[0].AudioURI}) {
		t.Fatalf("Unexpected loads: %v", dev.Loads())
	}

	dev.Events().Emit(DurationKnownEvent{Gen: dev.Gen(), Duration: 180 * time.Second})
	state = waitForState(t, sess, func(s State) bool { return s.Status == StatusPlaying })
	if state.Duration != 180*time.Second {
		t.Fatalf("Unexpected duration: %v", state.Duration)
	}

	sess.Next()
	state = waitForState(t, sess, func(s State) bool { return s.Status == StatusLoading })
	if state.Track.ID != "track2" || state.Time != 0 || state.Duration != 0 {
		t.Fatalf("Unexpected state after next: %+v", state)
	}
	if loads := dev.Loads(); loads[len(loads)-1] != tracks[1].AudioURI {
		t.Fatalf("Unexpected loads: %v", loads)
	}
}

// Scenario: the last track ends without repeat, the queue is exhausted.
func TestSessionEndOfQueue(t *testing.T) {
	sess, dev := newTestSession(t)
	sess.PlayQueue(queueTracks(2), 1, true)
	dev.Events().Emit(DurationKnownEvent{Gen: dev.Gen(), Duration: 60 * time.Second})
	waitForState(t, sess, func(s State) bool { return s.Status == StatusPlaying })

	dev.Events().Emit(EndedEvent{Gen: dev.Gen()})
	state := waitForState(t, sess, func(s State) bool { return s.Status == StatusEnded })
	if state.Track != nil || state.QueueIndex != -1 {
		t.Fatalf("Queue exhaustion should deselect: %+v", state)
	}
	if state.QueueLen != 2 {
		t.Fatalf("Queue contents should be retained: %+v", state)
	}
	if dev.StopCalls() == 0 {
		t.Fatal("Device was not stopped")
	}
}

// Scenario: the last track ends with repeat all, playback wraps around.
func TestSessionEndedRepeatAll(t *testing.T) {
	sess, dev := newTestSession(t)
	tracks := queueTracks(2)
	sess.PlayQueue(tracks, 1, true)
	if err := sess.SetRepeat(RepeatAll); err != nil {
		t.Fatal(err)
	}
	dev.Events().Emit(DurationKnownEvent{Gen: dev.Gen(), Duration: 60 * time.Second})
	waitForState(t, sess, func(s State) bool { return s.Status == StatusPlaying })

	dev.Events().Emit(EndedEvent{Gen: dev.Gen()})
	state := waitForState(t, sess, func(s State) bool { return s.Status == StatusLoading })
	if state.QueueIndex != 0 || state.Track.ID != "track1" {
		t.Fatalf("Repeat all should wrap to the first track: %+v", state)
	}

	dev.Events().Emit(DurationKnownEvent{Gen: dev.Gen(), Duration: 60 * time.Second})
	waitForState(t, sess, func(s State) bool { return s.Status == StatusPlaying })
}

// Scenario: a track ends with repeat one, the same track restarts without a
// reload.
func TestSessionEndedRepeatOne(t *testing.T) {
	sess, dev := newTestSession(t)
	sess.PlayQueue(queueTracks(2), 0, true)
	if err := sess.SetRepeat(RepeatOne); err != nil {
		t.Fatal(err)
	}
	dev.Events().Emit(DurationKnownEvent{Gen: dev.Gen(), Duration: 60 * time.Second})
	waitForState(t, sess, func(s State) bool { return s.Status == StatusPlaying })
	dev.Events().Emit(ProgressEvent{Gen: dev.Gen(), Time: 60 * time.Second})
	waitForState(t, sess, func(s State) bool { return s.Time == 60*time.Second })

	dev.Events().Emit(EndedEvent{Gen: dev.Gen()})
	state := waitForState(t, sess, func(s State) bool { return s.Time == 0 })
	if state.Status != StatusPlaying || state.QueueIndex != 0 {
		t.Fatalf("Repeat one should restart the same track: %+v", state)
	}
	if len(dev.Loads()) != 1 {
		t.Fatalf("Repeat one should not reload: %v", dev.Loads())
	}
	if seeks := dev.Seeks(); len(seeks) == 0 || seeks[len(seeks)-1] != 0 {
		t.Fatalf("Expected a seek to the track start: %v", seeks)
	}
	if dev.PlayCalls() == 0 {
		t.Fatal("Expected a play request")
	}
}

// Scenario: previous at the first track stays at the first track.
func TestSessionPreviousAtStart(t *testing.T) {
	sess, dev := newTestSession(t)
	tracks := queueTracks(2)
	sess.PlayQueue(tracks, 0, true)

	sess.Previous()
	state := waitForState(t, sess, func(s State) bool { return s.Status == StatusLoading })
	if state.QueueIndex != 0 {
		t.Fatalf("Previous at the first track should stay: %+v", state)
	}
	if !reflect.DeepEqual(dev.Loads(), []string{tracks[0].AudioURI, tracks[0].AudioURI}) {
		t.Fatalf("Unexpected loads: %v", dev.Loads())
	}
}

// Scenario: events of a superseded load are discarded.
func TestSessionStaleGeneration(t *testing.T) {
	sess, dev := newTestSession(t)
	sess.PlayQueue(queueTracks(1), 0, true)
	waitForState(t, sess, func(s State) bool { return s.Status == StatusLoading })
	staleGen := dev.Gen()

	sess.PlayQueue(queueTracks(2), 1, true)
	waitForState(t, sess, func(s State) bool { return s.Track != nil && s.Track.ID == "track2" })

	dev.Events().Emit(DurationKnownEvent{Gen: staleGen, Duration: 999 * time.Second})
	dev.Events().Emit(EndedEvent{Gen: staleGen})
	dev.Events().Emit(DurationKnownEvent{Gen: dev.Gen(), Duration: 120 * time.Second})

	state := waitForState(t, sess, func(s State) bool { return s.Status == StatusPlaying })
	if state.Duration != 120*time.Second {
		t.Fatalf("Stale duration was applied: %v", state.Duration)
	}
	if state.Track.ID != "track2" {
		t.Fatalf("Stale ended event advanced the queue: %+v", state)
	}
}

func TestSessionPauseIdempotent(t *testing.T) {
	sess, dev := newTestSession(t)
	sess.PlayQueue(queueTracks(1), 0, true)
	dev.Events().Emit(DurationKnownEvent{Gen: dev.Gen(), Duration: 60 * time.Second})
	waitForState(t, sess, func(s State) bool { return s.Status == StatusPlaying })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := sess.Events().Listen(ctx)

	sess.Pause()
	sess.Pause()
	waitForState(t, sess, func(s State) bool { return s.Status == StatusPaused })
	time.Sleep(50 * time.Millisecond)

	numStatus := 0
	for {
		select {
		case event := <-events:
			if _, ok := event.(StatusEvent); ok {
				numStatus++
			}
			continue
		default:
		}
		break
	}
	if numStatus != 1 {
		t.Fatalf("Expected exactly one status event, got %d", numStatus)
	}
}

func TestSessionExternalPause(t *testing.T) {
	sess, dev := newTestSession(t)
	sess.PlayQueue(queueTracks(1), 0, true)
	dev.Events().Emit(DurationKnownEvent{Gen: dev.Gen(), Duration: 60 * time.Second})
	waitForState(t, sess, func(s State) bool { return s.Status == StatusPlaying })

	// Let the debounce window of the initial load pass, then pause from the
	// outside, e.g. an OS media key.
	time.Sleep(sess.controlDebounce + 20*time.Millisecond)
	dev.Events().Emit(DeviceStateEvent{Gen: dev.Gen(), Playing: false})
	waitForState(t, sess, func(s State) bool { return s.Status == StatusPaused })

	// A device event contradicting a just issued command is an echo and must
	// not flicker the status.
	sess.Resume()
	dev.Events().Emit(DeviceStateEvent{Gen: dev.Gen(), Playing: false})
	time.Sleep(20 * time.Millisecond)
	if state := sess.Snapshot(); state.Status != StatusPlaying {
		t.Fatalf("Echoed device event flipped the status: %+v", state)
	}
}

func TestSessionSeekCoalescing(t *testing.T) {
	sess, dev := newTestSession(t)
	sess.PlayQueue(queueTracks(1), 0, true)
	dev.Events().Emit(DurationKnownEvent{Gen: dev.Gen(), Duration: 300 * time.Second})
	waitForState(t, sess, func(s State) bool { return s.Status == StatusPlaying })

	if err := sess.Seek(10 * time.Second); err != nil {
		t.Fatal(err)
	}
	if err := sess.Seek(20 * time.Second); err != nil {
		t.Fatal(err)
	}
	if err := sess.Seek(30 * time.Second); err != nil {
		t.Fatal(err)
	}

	if state := sess.Snapshot(); state.Time != 30*time.Second {
		t.Fatalf("Seek should update the position optimistically: %v", state.Time)
	}

	time.Sleep(3 * sess.seekDebounce)
	seeks := dev.Seeks()
	if want := []time.Duration{10 * time.Second, 30 * time.Second}; !reflect.DeepEqual(seeks, want) {
		t.Fatalf("Seeks were not coalesced: %v", seeks)
	}
}

func TestSessionSeekValidation(t *testing.T) {
	sess, dev := newTestSession(t)

	if err := sess.Seek(-time.Second); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("Expected ErrInvalidCommand, got %v", err)
	}
	// Seeking without a track is a no-op, not an error.
	if err := sess.Seek(10 * time.Second); err != nil {
		t.Fatal(err)
	}
	if len(dev.Seeks()) != 0 {
		t.Fatalf("Seek without a track should not reach the device: %v", dev.Seeks())
	}

	sess.PlayQueue(queueTracks(1), 0, true)
	dev.Events().Emit(DurationKnownEvent{Gen: dev.Gen(), Duration: 100 * time.Second})
	waitForState(t, sess, func(s State) bool { return s.Status == StatusPlaying })
	if err := sess.Seek(500 * time.Second); err != nil {
		t.Fatal(err)
	}
	if state := sess.Snapshot(); state.Time != 100*time.Second {
		t.Fatalf("Seek was not clamped to the duration: %v", state.Time)
	}
}

func TestSessionVolume(t *testing.T) {
	sess, dev := newTestSession(t)

	if err := sess.SetVolume(0.5); err != nil {
		t.Fatal(err)
	}
	if state := sess.Snapshot(); state.Volume != 0.5 || state.Muted {
		t.Fatalf("Unexpected volume state: %+v", state)
	}

	// Volume zero mutes.
	if err := sess.SetVolume(0); err != nil {
		t.Fatal(err)
	}
	if state := sess.Snapshot(); !state.Muted {
		t.Fatalf("Volume zero should mute: %+v", state)
	}
	// Raising the volume unmutes.
	if err := sess.SetVolume(0.8); err != nil {
		t.Fatal(err)
	}
	if state := sess.Snapshot(); state.Muted {
		t.Fatalf("Raising the volume should unmute: %+v", state)
	}

	sess.ToggleMute()
	if state := sess.Snapshot(); !state.Muted || state.Volume != 0.8 {
		t.Fatalf("Mute should not forget the volume: %+v", state)
	}
	if dev.Volume() != 0 {
		t.Fatalf("Mute should silence the device: %v", dev.Volume())
	}

	if err := sess.SetVolume(2); err != nil {
		t.Fatal(err)
	}
	if state := sess.Snapshot(); state.Volume != 1 {
		t.Fatalf("Volume was not clamped: %v", state.Volume)
	}

	if err := sess.SetVolume(float32(math.NaN())); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("Expected ErrInvalidCommand, got %v", err)
	}
}

func TestSessionVolumeEvent(t *testing.T) {
	sess, _ := newTestSession(t)
	util.TestEventEmission(t, sess, VolumeEvent{Volume: 0.5, Muted: false}, func() {
		if err := sess.SetVolume(0.5); err != nil {
			t.Fatal(err)
		}
	})
	util.TestEventEmission(t, sess, VolumeEvent{Volume: 0.5, Muted: true}, func() {
		sess.ToggleMute()
	})
}

func TestSessionNextOnEmptyQueue(t *testing.T) {
	sess, dev := newTestSession(t)
	sess.Next()
	sess.Previous()
	if state := sess.Snapshot(); state.Status != StatusIdle {
		t.Fatalf("Unexpected state: %+v", state)
	}
	if len(dev.Loads()) != 0 {
		t.Fatalf("Unexpected loads: %v", dev.Loads())
	}
}

func TestSessionRemoveCurrentTrack(t *testing.T) {
	sess, dev := newTestSession(t)
	sess.PlayQueue(queueTracks(2), 0, true)
	dev.Events().Emit(DurationKnownEvent{Gen: dev.Gen(), Duration: 60 * time.Second})
	waitForState(t, sess, func(s State) bool { return s.Status == StatusPlaying })

	sess.RemoveFromQueue("track1")
	state := waitForState(t, sess, func(s State) bool { return s.Status == StatusIdle })
	if state.Track != nil || state.QueueLen != 1 {
		t.Fatalf("Unexpected state after removal: %+v", state)
	}
	if dev.StopCalls() == 0 {
		t.Fatal("Device was not stopped")
	}
}

func TestSessionDeviceError(t *testing.T) {
	sess, dev := newTestSession(t)
	sess.PlayQueue(queueTracks(1), 0, true)
	waitForState(t, sess, func(s State) bool { return s.Status == StatusLoading })

	dev.Events().Emit(DeviceErrorEvent{Gen: dev.Gen(), Err: errors.New("locator unreachable")})
	state := waitForState(t, sess, func(s State) bool { return s.Status == StatusErrored })
	if state.Err == "" {
		t.Fatal("Error reason should be exposed")
	}
	if state.Track == nil {
		t.Fatal("The current track should be retained for display")
	}

	// A fresh queue dismisses the error.
	sess.PlayQueue(queueTracks(2), 0, true)
	state = waitForState(t, sess, func(s State) bool { return s.Status == StatusLoading })
	if state.Err != "" {
		t.Fatalf("Error should be dismissed: %+v", state)
	}
}

func TestSessionPlayQueueWithoutAutoplay(t *testing.T) {
	sess, dev := newTestSession(t)
	sess.PlayQueue(queueTracks(1), 0, false)
	state := waitForState(t, sess, func(s State) bool { return s.Status == StatusPaused })
	if state.Track == nil {
		t.Fatalf("Track should be selected: %+v", state)
	}
	if dev.PauseCalls() == 0 {
		t.Fatal("Device was not paused")
	}

	sess.Resume()
	waitForState(t, sess, func(s State) bool { return s.Status == StatusPlaying })
}
