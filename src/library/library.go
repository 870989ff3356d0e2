package library

import (
	"context"
	"fmt"
	"time"
)

// Track holds all information associated with a single piece of music.
//
// Tracks are immutable values. The Duration field is a hint supplied by the
// catalog, the authoritative duration is reported by the playback device once
// the track has been loaded.
type Track struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Artist   string        `json:"artist,omitempty"`
	Album    string        `json:"album,omitempty"`
	Duration time.Duration `json:"duration"`
	AudioURI string        `json:"audiouri"`
	ArtURI   string        `json:"arturi,omitempty"`
}

func (track Track) String() string {
	return fmt.Sprintf("%s - %s (%v)", track.Artist, track.Title, track.Duration)
}

// A Catalog supplies ordered lists of tracks from some external source.
//
// How the catalog searches or paginates is of no concern to the playback
// core, it only consumes the resulting track lists.
type Catalog interface {
	// Tracks performs a search in the catalog. An empty query lists all
	// tracks. Pages are numbered from 1.
	Tracks(ctx context.Context, query string, page int) ([]Track, error)
}
