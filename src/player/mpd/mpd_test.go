package mpd

import (
	"context"
	"os"
	"testing"
	"time"

	"soniq/src/player"
)

// Exercises a real MPD server. Set SONIQ_TEST_MPD to the server address and
// SONIQ_TEST_MPD_URI to a locator the server can play.
func TestDeviceLoad(t *testing.T) {
	address := os.Getenv("SONIQ_TEST_MPD")
	uri := os.Getenv("SONIQ_TEST_MPD_URI")
	if address == "" || uri == "" {
		t.Skip("SONIQ_TEST_MPD is not set")
	}

	dev, err := Connect("tcp", address, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	events := dev.Events().Listen(ctx)

	gen := dev.Load(ctx, uri)
	for event := range events {
		switch e := event.(type) {
		case player.DurationKnownEvent:
			if e.Gen != gen {
				t.Fatalf("Unexpected generation: %d != %d", e.Gen, gen)
			}
			if e.Duration <= 0 {
				t.Fatalf("Unexpected duration: %v", e.Duration)
			}
			dev.Stop(ctx)
			return
		case player.DeviceErrorEvent:
			t.Fatalf("Device error: %v", e.Err)
		}
	}
	t.Fatal("Timed out waiting for the duration")
}
