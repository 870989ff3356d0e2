package player

import (
	"math/rand"

	"soniq/src/library"
)

// RepeatMode determines what happens when the end of a track is reached.
type RepeatMode string

const (
	RepeatNone RepeatMode = "none"
	RepeatOne  RepeatMode = "one"
	RepeatAll  RepeatMode = "all"
)

// Valid reports whether the mode is one of the known repeat modes.
func (mode RepeatMode) Valid() bool {
	return mode == RepeatNone || mode == RepeatOne || mode == RepeatAll
}

// A Queue is an ordered collection of tracks with a play position.
//
// The zero index is the first track, an index of -1 means that no track is
// selected. The queue is a plain data structure, it performs no I/O and knows
// nothing about playback. It is not safe for concurrent use by itself, the
// Session serializes all access.
//
// A track normally occurs at most once. Queueing the same track twice through
// Add is permitted, disabling shuffle then relocates the play position to the
// first occurrence of the current track's id.
type Queue struct {
	tracks    []library.Track
	index     int
	shuffling bool

	// The order the queue had before shuffling was enabled, used to restore
	// it exactly when shuffling is disabled again.
	original []library.Track
}

func NewQueue() *Queue {
	return &Queue{index: -1}
}

// SetTracks replaces the contents of the queue. The start index is clamped to
// the bounds of the new list. An empty list empties the queue and deselects.
//
// The new list is used in the order given, even while shuffling is enabled.
func (q *Queue) SetTracks(tracks []library.Track, startIndex int) {
	q.tracks = append([]library.Track{}, tracks...)
	if len(q.tracks) == 0 {
		q.index = -1
		q.original = nil
		return
	}
	if startIndex < 0 {
		startIndex = 0
	} else if startIndex >= len(q.tracks) {
		startIndex = len(q.tracks) - 1
	}
	q.index = startIndex
	if q.shuffling {
		q.original = append([]library.Track{}, tracks...)
	}
}

// Tracks returns a copy of the queued tracks.
func (q *Queue) Tracks() []library.Track {
	return append([]library.Track{}, q.tracks...)
}

func (q *Queue) Len() int {
	return len(q.tracks)
}

// Index returns the current play position or -1 if no track is selected.
func (q *Queue) Index() int {
	return q.index
}

// Current returns the track at the play position.
func (q *Queue) Current() (library.Track, bool) {
	if q.index < 0 || q.index >= len(q.tracks) {
		return library.Track{}, false
	}
	return q.tracks[q.index], true
}

// Deselect clears the play position.
func (q *Queue) Deselect() {
	q.index = -1
}

// Advance moves the play position to the next track and returns the new
// index. When the end of the queue is reached, RepeatAll wraps around to the
// first track. Otherwise the second return value is true and the play
// position is left unchanged so that the caller can tell a queue that played
// to exhaustion apart from one that never started.
func (q *Queue) Advance(mode RepeatMode) (int, bool) {
	if len(q.tracks) == 0 {
		return -1, true
	}
	if q.index+1 < len(q.tracks) {
		q.index++
		return q.index, false
	}
	if mode == RepeatAll {
		q.index = 0
		return 0, false
	}
	return q.index, true
}

// Retreat moves the play position to the previous track. There is no
// wraparound: retreating from the first track stays at the first track.
func (q *Queue) Retreat() int {
	if q.index > 0 {
		q.index--
	}
	return q.index
}

// ToggleShuffle switches between the shuffled and the original track order.
//
// Enabling shuffle keeps the current track at the play position by moving it
// to the front, the remaining tracks are placed after it in uniformly random
// order. Disabling shuffle restores the exact pre-shuffle order and relocates
// the play position to wherever the current track sits in it.
func (q *Queue) ToggleShuffle() {
	if !q.shuffling {
		q.shuffling = true
		q.original = append([]library.Track{}, q.tracks...)
		if len(q.tracks) == 0 {
			return
		}

		shuffled := make([]library.Track, 0, len(q.tracks))
		if q.index >= 0 {
			shuffled = append(shuffled, q.tracks[q.index])
		}
		rest := make([]library.Track, 0, len(q.tracks))
		for i, track := range q.tracks {
			if i != q.index {
				rest = append(rest, track)
			}
		}
		rand.Shuffle(len(rest), func(i, j int) {
			rest[i], rest[j] = rest[j], rest[i]
		})
		q.tracks = append(shuffled, rest...)
		if q.index >= 0 {
			q.index = 0
		}
		return
	}

	q.shuffling = false
	current, ok := q.Current()
	q.tracks = q.original
	q.original = nil
	if !ok {
		return
	}
	q.index = 0
	for i, track := range q.tracks {
		if track.ID == current.ID {
			q.index = i
			break
		}
	}
}

// Shuffling reports whether the queue is in shuffled order.
func (q *Queue) Shuffling() bool {
	return q.shuffling
}

// Add appends a track to the end of the queue. The play position is not
// altered. While shuffling, the track is appended to the visible end and to
// the end of the saved original order.
func (q *Queue) Add(track library.Track) {
	q.tracks = append(q.tracks, track)
	if q.shuffling {
		q.original = append(q.original, track)
	}
}

// Remove deletes the first track with the specified id from the queue. The
// second return value indicates whether a track was removed at all. The first
// return value indicates whether the removed track was the current one, what
// happens to playback in that case is up to the caller.
func (q *Queue) Remove(id string) (wasCurrent, ok bool) {
	at := -1
	for i, track := range q.tracks {
		if track.ID == id {
			at = i
			break
		}
	}
	if at == -1 {
		return false, false
	}

	wasCurrent = at == q.index
	q.tracks = append(q.tracks[:at], q.tracks[at+1:]...)
	if at < q.index {
		q.index--
	} else if q.index >= len(q.tracks) {
		q.index = len(q.tracks) - 1
	}

	if q.shuffling {
		for i, track := range q.original {
			if track.ID == id {
				q.original = append(q.original[:i], q.original[i+1:]...)
				break
			}
		}
	}
	return wasCurrent, true
}

// Clear removes all tracks and deselects.
func (q *Queue) Clear() {
	q.tracks = nil
	q.original = nil
	q.index = -1
}
