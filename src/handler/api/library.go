package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (api *API) trackSearch(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.FormValue("page"))
	tracks, err := api.catalog.Tracks(r.Context(), r.FormValue("search"), page)
	if errors.Is(err, context.Canceled) {
		return
	} else if err != nil {
		WriteError(w, r, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"tracks": tracks,
	})
}

func (api *API) playlistAddSong(w http.ResponseWriter, r *http.Request) {
	api.playlistMutation(w, r, api.playlists.AddToPlaylist)
}

func (api *API) playlistRemoveSong(w http.ResponseWriter, r *http.Request) {
	api.playlistMutation(w, r, api.playlists.RemoveFromPlaylist)
}

func (api *API) playlistMutation(w http.ResponseWriter, r *http.Request, mutate func(ctx context.Context, playlistID, trackID string) error) {
	var data struct {
		SongID string `json:"songId"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := mutate(r.Context(), chi.URLParam(r, "playlistID"), data.SongID); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}
