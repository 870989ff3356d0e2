package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"soniq/src/library"
	"soniq/src/util"
)

// Status describes the playback condition of a Session.
type Status string

const (
	// StatusIdle means no track is selected.
	StatusIdle Status = "idle"
	// StatusLoading means a track is being loaded by the device.
	StatusLoading Status = "loading"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
	// StatusEnded means the queue has played to exhaustion.
	StatusEnded Status = "ended"
	// StatusErrored means the device reported a failure. The current track is
	// retained for display, playback resumes on the next load command.
	StatusErrored Status = "errored"
)

// ErrInvalidCommand is returned by commands that are given nonsensical
// arguments. It reflects programmer error, runtime failures never surface
// through command return values.
var ErrInvalidCommand = errors.New("invalid command")

// State is an immutable snapshot of a Session.
type State struct {
	Track      *library.Track `json:"track"`
	Status     Status         `json:"status"`
	Time       time.Duration  `json:"time"`
	Duration   time.Duration  `json:"duration"`
	Volume     float32        `json:"volume"`
	Muted      bool           `json:"muted"`
	Repeat     RepeatMode     `json:"repeat"`
	Shuffling  bool           `json:"shuffling"`
	QueueIndex int            `json:"queueindex"`
	QueueLen   int            `json:"queuelen"`
	Err        string         `json:"error,omitempty"`
}

// A Session owns one Device and one Queue and reconciles user commands with
// the events the device emits.
//
// All state transitions are serialized: commands run in the calling goroutine
// under the session lock, device events are applied by a single goroutine
// taking the same lock. Commands never wait for the device, the effect of a
// command arrives later as a device event.
//
// Consumers observe the session through Snapshot and the event emitter, never
// through a live reference to its state.
type Session struct {
	dev    Device
	events util.Emitter

	ctx    context.Context
	cancel context.CancelFunc

	// controlDebounce suppresses device play/pause events that arrive right
	// after a user command, the device would otherwise briefly flip the
	// status back while it catches up.
	controlDebounce time.Duration
	// seekDebounce is the window in which rapid seeks are coalesced into a
	// single trailing device call.
	seekDebounce time.Duration

	lock     sync.Mutex
	queue    *Queue
	status   Status
	time     time.Duration
	duration time.Duration
	volume   float32
	muted    bool
	repeat   RepeatMode
	lastErr  string

	// Generation of the most recent Load. Device events tagged with any
	// other generation belong to a superseded load and are dropped.
	gen         int
	lastControl time.Time
	seekTimer   *time.Timer
	pendingSeek time.Duration
}

// NewSession creates a session around the specified device and starts
// consuming its events.
func NewSession(dev Device, volume float32) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		dev:             dev,
		ctx:             ctx,
		cancel:          cancel,
		controlDebounce: 500 * time.Millisecond,
		seekDebounce:    200 * time.Millisecond,
		queue:           NewQueue(),
		status:          StatusIdle,
		volume:          clampVolume(volume),
		repeat:          RepeatNone,
		gen:             -1,
		pendingSeek:     -1,
	}
	dev.SetVolume(ctx, s.volume)
	events := dev.Events().Listen(ctx)
	go s.run(events)
	return s
}

// Close detaches the session from its device. Pending device events are
// discarded.
func (s *Session) Close() {
	s.cancel()
}

// Events implements the util.Eventer interface.
func (s *Session) Events() *util.Emitter {
	return &s.events
}

// Snapshot returns a copy of the current playback state.
func (s *Session) Snapshot() State {
	s.lock.Lock()
	defer s.lock.Unlock()

	state := State{
		Status:     s.status,
		Time:       s.time,
		Duration:   s.duration,
		Volume:     s.volume,
		Muted:      s.muted,
		Repeat:     s.repeat,
		Shuffling:  s.queue.Shuffling(),
		QueueIndex: s.queue.Index(),
		QueueLen:   s.queue.Len(),
		Err:        s.lastErr,
	}
	if track, ok := s.queue.Current(); ok {
		state.Track = &track
	}
	return state
}

// QueueTracks returns a copy of the queued tracks in playback order.
func (s *Session) QueueTracks() []library.Track {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.queue.Tracks()
}

// PlayQueue replaces the queue with the specified tracks and starts loading
// the track at the start index. The index is clamped to the new queue. When
// play is false the track is loaded but left paused.
//
// PlayQueue dismisses an errored state.
func (s *Session) PlayQueue(tracks []library.Track, startIndex int, play bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.queue.SetTracks(tracks, startIndex)
	s.lastErr = ""
	if s.queue.Len() == 0 {
		s.stopLocked(StatusIdle)
		s.events.Emit(PlaylistEvent{Index: -1})
		return
	}
	s.loadCurrentLocked(play)
}

// Pause requests the device to pause. The status is updated optimistically,
// the device confirms asynchronously.
func (s *Session) Pause() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.status != StatusPlaying && s.status != StatusLoading {
		return
	}
	s.lastControl = time.Now()
	s.dev.Pause(s.ctx)
	s.setStatus(StatusPaused)
}

// Resume requests the device to continue playing a paused track.
func (s *Session) Resume() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.status != StatusPaused {
		return
	}
	s.lastControl = time.Now()
	s.dev.Play(s.ctx)
	s.setStatus(StatusPlaying)
}

// Seek moves the playback position of the current track. The position is
// updated optimistically. Rapid successive seeks are coalesced, the device
// receives the first and the most recent position of a burst.
func (s *Session) Seek(t time.Duration) error {
	if t < 0 {
		return fmt.Errorf("%w: seek to %v", ErrInvalidCommand, t)
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.queue.Current(); !ok {
		return nil
	}
	if s.duration > 0 && t > s.duration {
		t = s.duration
	}
	s.setTime(t)

	if s.seekTimer == nil {
		s.dev.Seek(s.ctx, t)
		s.pendingSeek = -1
		s.seekTimer = time.AfterFunc(s.seekDebounce, s.flushSeek)
	} else {
		s.pendingSeek = t
	}
	return nil
}

func (s *Session) flushSeek() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.pendingSeek >= 0 {
		s.dev.Seek(s.ctx, s.pendingSeek)
		s.pendingSeek = -1
		s.seekTimer = time.AfterFunc(s.seekDebounce, s.flushSeek)
		return
	}
	s.seekTimer = nil
}

func (s *Session) resetSeekLocked() {
	if s.seekTimer != nil {
		s.seekTimer.Stop()
		s.seekTimer = nil
	}
	s.pendingSeek = -1
}

// SetVolume adjusts the playback volume, a uniform float in [0, 1]. Setting
// the volume to zero mutes, raising it above zero unmutes.
func (s *Session) SetVolume(vol float32) error {
	if math.IsNaN(float64(vol)) {
		return fmt.Errorf("%w: volume is NaN", ErrInvalidCommand)
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	vol = clampVolume(vol)
	muted := s.muted
	if vol == 0 {
		muted = true
	} else if s.muted {
		muted = false
	}
	s.setVolumeLocked(vol, muted)
	return nil
}

// ToggleMute silences the device without forgetting the volume.
func (s *Session) ToggleMute() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.setVolumeLocked(s.volume, !s.muted)
}

func (s *Session) setVolumeLocked(vol float32, muted bool) {
	changed := vol != s.volume || muted != s.muted
	s.volume, s.muted = vol, muted
	effective := vol
	if muted {
		effective = 0
	}
	s.dev.SetVolume(s.ctx, effective)
	if changed {
		s.events.Emit(VolumeEvent{Volume: vol, Muted: muted})
	}
}

// Next skips to the next track in the queue. At the end of the queue, repeat
// all wraps around to the first track, otherwise playback stops.
func (s *Session) Next() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.queue.Index() == -1 {
		return
	}
	if _, stop := s.queue.Advance(s.repeat); stop {
		s.queue.Deselect()
		s.stopLocked(StatusIdle)
		s.events.Emit(PlaylistEvent{Index: -1})
		return
	}
	s.loadCurrentLocked(true)
}

// Previous moves to the previous track. There is no wraparound, at the first
// track it restarts that track.
func (s *Session) Previous() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.queue.Index() == -1 {
		return
	}
	s.queue.Retreat()
	s.loadCurrentLocked(true)
}

// SetRepeat sets the repeat mode. The currently playing audio is unaffected.
func (s *Session) SetRepeat(mode RepeatMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown repeat mode %q", ErrInvalidCommand, mode)
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	if mode == s.repeat {
		return nil
	}
	s.repeat = mode
	s.events.Emit(ModeEvent{Repeat: s.repeat, Shuffling: s.queue.Shuffling()})
	return nil
}

// ToggleShuffle switches the queue between shuffled and original order. The
// currently playing audio is unaffected.
func (s *Session) ToggleShuffle() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.queue.ToggleShuffle()
	s.events.Emit(ModeEvent{Repeat: s.repeat, Shuffling: s.queue.Shuffling()})
	s.events.Emit(PlaylistEvent{Index: s.queue.Index()})
}

// AddToQueue appends a track to the end of the queue.
func (s *Session) AddToQueue(track library.Track) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.queue.Add(track)
	s.events.Emit(PlaylistEvent{Index: s.queue.Index()})
}

// RemoveFromQueue removes the first track with the specified id from the
// queue. Removing the track that is currently playing stops playback.
func (s *Session) RemoveFromQueue(id string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	wasCurrent, ok := s.queue.Remove(id)
	if !ok {
		return
	}
	if wasCurrent {
		s.queue.Deselect()
		s.stopLocked(StatusIdle)
	}
	s.events.Emit(PlaylistEvent{Index: s.queue.Index()})
}

// ClearQueue empties the queue and stops playback.
func (s *Session) ClearQueue() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.queue.Clear()
	s.stopLocked(StatusIdle)
	s.events.Emit(PlaylistEvent{Index: -1})
}

// loadCurrentLocked points the device at the current queue track. Any load
// that may still be in flight is superseded, its remaining events are dropped
// by the generation check.
func (s *Session) loadCurrentLocked(play bool) {
	track, ok := s.queue.Current()
	if !ok {
		s.stopLocked(StatusIdle)
		return
	}
	s.resetSeekLocked()
	s.lastErr = ""
	s.gen = s.dev.Load(s.ctx, track.AudioURI)
	s.setTime(0)
	s.setDuration(0)
	if play {
		s.setStatus(StatusLoading)
	} else {
		s.lastControl = time.Now()
		s.dev.Pause(s.ctx)
		s.setStatus(StatusPaused)
	}
	s.events.Emit(PlaylistEvent{Index: s.queue.Index()})
}

func (s *Session) stopLocked(status Status) {
	s.resetSeekLocked()
	s.dev.Stop(s.ctx)
	s.gen = -1
	s.setTime(0)
	s.setDuration(0)
	s.setStatus(status)
}

func (s *Session) run(events <-chan interface{}) {
	for event := range events {
		s.handleDeviceEvent(event)
	}
}

func (s *Session) handleDeviceEvent(event interface{}) {
	s.lock.Lock()
	defer s.lock.Unlock()

	switch t := event.(type) {
	case ProgressEvent:
		if t.Gen != s.gen {
			log.Debugf("Dropping stale progress event, gen %d != %d", t.Gen, s.gen)
			return
		}
		if s.seekTimer != nil {
			// A seek is pending, the reported position belongs to the past.
			return
		}
		tm := t.Time
		if tm < 0 {
			tm = 0
		}
		if s.duration > 0 && tm > s.duration {
			tm = s.duration
		}
		s.setTime(tm)

	case DurationKnownEvent:
		if t.Gen != s.gen {
			log.Debugf("Dropping stale duration event, gen %d != %d", t.Gen, s.gen)
			return
		}
		s.setDuration(t.Duration)
		switch s.status {
		case StatusLoading:
			s.setStatus(StatusPlaying)
		case StatusPaused:
			// The user paused while the track was still loading and the
			// device started playing regardless. Pause it again.
			s.dev.Pause(s.ctx)
		}

	case EndedEvent:
		if t.Gen != s.gen {
			log.Debugf("Dropping stale ended event, gen %d != %d", t.Gen, s.gen)
			return
		}
		s.handleTrackEndedLocked()

	case DeviceStateEvent:
		if t.Gen != s.gen {
			return
		}
		if time.Since(s.lastControl) < s.controlDebounce {
			// Probably an echo of a command this session just issued.
			return
		}
		if t.Playing && (s.status == StatusPaused || s.status == StatusLoading) {
			s.setStatus(StatusPlaying)
		} else if !t.Playing && s.status == StatusPlaying {
			s.setStatus(StatusPaused)
		}

	case DeviceErrorEvent:
		// Generation 0 marks errors that concern the device as a whole.
		if t.Gen != 0 && t.Gen != s.gen {
			log.Debugf("Dropping stale error event, gen %d != %d: %v", t.Gen, s.gen, t.Err)
			return
		}
		log.Errorf("Playback device error: %v", t.Err)
		s.lastErr = t.Err.Error()
		s.setStatus(StatusErrored)

	default:
		log.Debugf("Unmapped device event %#v", event)
	}
}

func (s *Session) handleTrackEndedLocked() {
	if s.repeat == RepeatOne {
		if _, ok := s.queue.Current(); ok {
			s.lastControl = time.Now()
			s.setTime(0)
			s.dev.Seek(s.ctx, 0)
			s.dev.Play(s.ctx)
			s.setStatus(StatusPlaying)
			return
		}
	}
	if _, stop := s.queue.Advance(s.repeat); stop {
		s.queue.Deselect()
		s.stopLocked(StatusEnded)
		s.events.Emit(PlaylistEvent{Index: -1})
		return
	}
	s.loadCurrentLocked(true)
}

func (s *Session) setStatus(status Status) {
	if status == s.status {
		return
	}
	s.status = status
	if status != StatusErrored {
		s.lastErr = ""
	}
	s.events.Emit(StatusEvent{Status: status})
}

func (s *Session) setTime(t time.Duration) {
	if t == s.time {
		return
	}
	s.time = t
	s.events.Emit(TimeEvent{Time: t})
}

func (s *Session) setDuration(d time.Duration) {
	if d == s.duration {
		return
	}
	s.duration = d
	s.events.Emit(DurationEvent{Duration: d})
}

func clampVolume(vol float32) float32 {
	if vol < 0 {
		return 0
	}
	if vol > 1 {
		return 1
	}
	return vol
}
