package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"soniq/src/library"
)

// Client talks to the catalog and playlist REST service.
//
// It implements library.Catalog. Playlist mutations are performed on behalf
// of the UI layer, the playback core itself never calls them.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type jsonSong struct {
	ID           string  `json:"_id"`
	Title        string  `json:"title"`
	Artist       string  `json:"artist"`
	Album        string  `json:"album"`
	Duration     float64 `json:"duration"`
	FilePath     string  `json:"filePath"`
	CoverArtPath string  `json:"coverArtPath"`
}

func (song *jsonSong) track() library.Track {
	return library.Track{
		ID:       song.ID,
		Title:    song.Title,
		Artist:   song.Artist,
		Album:    song.Album,
		Duration: time.Duration(song.Duration * float64(time.Second)),
		AudioURI: song.FilePath,
		ArtURI:   song.CoverArtPath,
	}
}

// Tracks implements the library.Catalog interface.
func (c *Client) Tracks(ctx context.Context, query string, page int) ([]library.Track, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	if query != "" {
		q.Set("search", query)
	}
	q.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/songs?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not fetch catalog page: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("could not fetch catalog page: http status %d", res.StatusCode)
	}

	var body struct {
		Songs []jsonSong `json:"songs"`
		Page  int        `json:"page"`
		Pages int        `json:"pages"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("malformed catalog response: %w", err)
	}

	tracks := make([]library.Track, len(body.Songs))
	for i, song := range body.Songs {
		tracks[i] = song.track()
	}
	log.WithField("query", query).Debugf("Fetched %d tracks, page %d/%d", len(tracks), body.Page, body.Pages)
	return tracks, nil
}

// AddToPlaylist appends a track to a stored playlist.
func (c *Client) AddToPlaylist(ctx context.Context, playlistID, trackID string) error {
	return c.putSong(ctx, playlistID, "add-song", trackID)
}

// RemoveFromPlaylist removes a track from a stored playlist.
func (c *Client) RemoveFromPlaylist(ctx context.Context, playlistID, trackID string) error {
	return c.putSong(ctx, playlistID, "remove-song", trackID)
}

func (c *Client) putSong(ctx context.Context, playlistID, action, trackID string) error {
	b, err := json.Marshal(map[string]string{"songId": trackID})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/playlists/%s/%s", c.baseURL, url.PathEscape(playlistID), action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("could not update playlist: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("could not update playlist: http status %d", res.StatusCode)
	}
	return nil
}
