package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTracks(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/songs" {
			t.Errorf("Unexpected path: %q", r.URL.Path)
		}
		if q := r.URL.Query().Get("search"); q != "aphex" {
			t.Errorf("Unexpected search query: %q", q)
		}
		if p := r.URL.Query().Get("page"); p != "2" {
			t.Errorf("Unexpected page: %q", p)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"songs": []map[string]interface{}{
				{
					"_id":      "t1",
					"title":    "Xtal",
					"artist":   "Aphex Twin",
					"duration": 293,
					"filePath": "https://cdn.example.com/xtal.mp3",
				},
			},
			"page":  2,
			"pages": 4,
		})
	}))
	defer srv.Close()

	tracks, err := NewClient(srv.URL).Tracks(ctx, "aphex", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Fatalf("Unexpected number of tracks: %d", len(tracks))
	}
	if tracks[0].ID != "t1" || tracks[0].Title != "Xtal" {
		t.Fatalf("Unexpected track: %v", tracks[0])
	}
	if tracks[0].Duration != 293*time.Second {
		t.Fatalf("Unexpected duration: %v", tracks[0].Duration)
	}
}

func TestTracksBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).Tracks(context.Background(), "", 1); err == nil {
		t.Fatal("Expected an error")
	}
}

func TestAddToPlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("Unexpected method: %q", r.Method)
		}
		if r.URL.Path != "/playlists/pl1/add-song" {
			t.Errorf("Unexpected path: %q", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
		}
		if body["songId"] != "t1" {
			t.Errorf("Unexpected song id: %q", body["songId"])
		}
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).AddToPlaylist(context.Background(), "pl1", "t1"); err != nil {
		t.Fatal(err)
	}
}
