package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"soniq/src/library"
	"soniq/src/player"
	"soniq/src/util/eventsource"
)

func (api *API) playerState(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(api.session.Snapshot())
}

func (api *API) queueContents(w http.ResponseWriter, r *http.Request) {
	state := api.session.Snapshot()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"index":  state.QueueIndex,
		"tracks": api.session.QueueTracks(),
	})
}

func (api *API) queueSet(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Tracks []library.Track `json:"tracks"`
		Index  int             `json:"index"`
		Play   bool            `json:"play"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	api.session.PlayQueue(data.Tracks, data.Index, data.Play)
	w.Write([]byte("{}"))
}

func (api *API) queueAdd(w http.ResponseWriter, r *http.Request) {
	var track library.Track
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&track); err != nil {
		WriteError(w, r, err)
		return
	}

	api.session.AddToQueue(track)
	w.Write([]byte("{}"))
}

func (api *API) queueRemove(w http.ResponseWriter, r *http.Request) {
	var data struct {
		ID string `json:"id"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	api.session.RemoveFromQueue(data.ID)
	w.Write([]byte("{}"))
}

func (api *API) queueClear(w http.ResponseWriter, r *http.Request) {
	api.session.ClearQueue()
	w.Write([]byte("{}"))
}

func (api *API) playerNext(w http.ResponseWriter, r *http.Request) {
	api.session.Next()
	w.Write([]byte("{}"))
}

func (api *API) playerPrevious(w http.ResponseWriter, r *http.Request) {
	api.session.Previous()
	w.Write([]byte("{}"))
}

func (api *API) playerGetTime(w http.ResponseWriter, r *http.Request) {
	state := api.session.Snapshot()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"time":     state.Time.Seconds(),
		"duration": state.Duration.Seconds(),
	})
}

func (api *API) playerSetTime(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Time float64 `json:"time"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := api.session.Seek(time.Duration(data.Time * float64(time.Second))); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerGetPlaystate(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"playstate": api.session.Snapshot().Status,
	})
}

func (api *API) playerSetPlaystate(w http.ResponseWriter, r *http.Request) {
	var data struct {
		State string `json:"playstate"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	switch player.Status(data.State) {
	case player.StatusPlaying:
		api.session.Resume()
	case player.StatusPaused:
		api.session.Pause()
	default:
		WriteError(w, r, player.ErrInvalidCommand)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerGetVolume(w http.ResponseWriter, r *http.Request) {
	state := api.session.Snapshot()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"volume": state.Volume,
		"muted":  state.Muted,
	})
}

func (api *API) playerSetVolume(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Volume float32 `json:"volume"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := api.session.SetVolume(data.Volume); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerToggleMute(w http.ResponseWriter, r *http.Request) {
	api.session.ToggleMute()
	w.Write([]byte("{}"))
}

func (api *API) playerSetRepeat(w http.ResponseWriter, r *http.Request) {
	var data struct {
		Repeat string `json:"repeat"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := api.session.SetRepeat(player.RepeatMode(data.Repeat)); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerToggleShuffle(w http.ResponseWriter, r *http.Request) {
	api.session.ToggleShuffle()
	w.Write([]byte("{}"))
}

func (api *API) playerEvents(w http.ResponseWriter, r *http.Request) {
	clientLog := log.WithField("client", uuid.New())
	clientLog.Infof("Event stream connected from %s", r.RemoteAddr)
	defer clientLog.Info("Event stream disconnected")

	listener := api.session.Events().Listen(r.Context())

	es, err := eventsource.Begin(w, r)
	if err != nil {
		clientLog.Errorf("%v", err)
		return
	}

	// Bring the client up to date before relaying live events.
	state := api.session.Snapshot()
	es.EventJSON("state", state)
	es.EventJSON("queue", map[string]interface{}{
		"index":  state.QueueIndex,
		"tracks": api.session.QueueTracks(),
	})

	for {
		var event interface{}
		select {
		case event = <-listener:
		case <-r.Context().Done():
			return
		}

		switch t := event.(type) {
		case player.StatusEvent:
			es.EventJSON("status", map[string]interface{}{"status": t.Status})
		case player.PlaylistEvent:
			es.EventJSON("queue", map[string]interface{}{
				"index":  t.Index,
				"tracks": api.session.QueueTracks(),
			})
		case player.TimeEvent:
			es.EventJSON("time", map[string]interface{}{"time": t.Time.Seconds()})
		case player.DurationEvent:
			es.EventJSON("duration", map[string]interface{}{"duration": t.Duration.Seconds()})
		case player.VolumeEvent:
			es.EventJSON("volume", map[string]interface{}{"volume": t.Volume, "muted": t.Muted})
		case player.ModeEvent:
			es.EventJSON("mode", map[string]interface{}{"repeat": t.Repeat, "shuffling": t.Shuffling})
		default:
			clientLog.Debugf("Unmapped session event %#v", event)
		}
	}
}
