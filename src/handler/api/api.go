package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"soniq/src/library"
	"soniq/src/player"
)

// Playlists mutates stored playlists on the catalog service.
type Playlists interface {
	AddToPlaylist(ctx context.Context, playlistID, trackID string) error
	RemoveFromPlaylist(ctx context.Context, playlistID, trackID string) error
}

// API contains the state that is accessible over the REST API.
type API struct {
	session   *player.Session
	catalog   library.Catalog
	playlists Playlists
}

// InitRouter attaches all API routes to the specified router.
func InitRouter(r chi.Router, session *player.Session, catalog library.Catalog, playlists Playlists) {
	api := API{session: session, catalog: catalog, playlists: playlists}
	r.Route("/player", func(r chi.Router) {
		r.Use(jsonCtx)
		r.Get("/", api.playerState)
		r.Route("/queue", func(r chi.Router) {
			r.Get("/", api.queueContents)
			r.Put("/", api.queueSet)
			r.Post("/", api.queueAdd)
			r.Delete("/", api.queueRemove)
			r.Post("/clear", api.queueClear)
		})
		r.Post("/next", api.playerNext)
		r.Post("/previous", api.playerPrevious)
		r.Get("/time", api.playerGetTime)
		r.Post("/time", api.playerSetTime)
		r.Get("/playstate", api.playerGetPlaystate)
		r.Post("/playstate", api.playerSetPlaystate)
		r.Get("/volume", api.playerGetVolume)
		r.Post("/volume", api.playerSetVolume)
		r.Post("/mute", api.playerToggleMute)
		r.Post("/repeat", api.playerSetRepeat)
		r.Post("/shuffle", api.playerToggleShuffle)
		r.Get("/events", api.playerEvents)
	})

	r.Route("/tracks", func(r chi.Router) {
		r.Use(jsonCtx)
		r.Get("/", api.trackSearch)
	})

	r.Route("/playlists/{playlistID}", func(r chi.Router) {
		r.Use(jsonCtx)
		r.Put("/add-song", api.playlistAddSong)
		r.Put("/remove-song", api.playlistRemoveSong)
	})
}

// WriteError writes an error to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	log.Errorf("Error serving %s: %v", r.RemoteAddr, err)
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
	})
}

func jsonCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
