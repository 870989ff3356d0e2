package mpd

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	log "github.com/sirupsen/logrus"

	"soniq/src/player"
	"soniq/src/util"
)

// Device implements player.Device on top of an MPD server. The MPD queue is
// used as a scratchpad holding at most one track, queue logic lives in the
// session.
//
// Commands dial a fresh connection per call. Sharing a connection with the
// idle watcher corrupts the protocol stream.
type Device struct {
	emitter util.Emitter

	network, address, password string

	watcher *mpd.Watcher
	cancel  context.CancelFunc

	lock sync.Mutex
	gen  int
	// stopped is set when playback was halted on purpose, either by Stop or
	// because the loaded media ended. It tells the status poller that a
	// subsequent "stop" state is not news.
	stopped       bool
	durationKnown bool
	lastElapsed   time.Duration
	lastPlaying   bool
	haveState     bool
}

var _ player.Device = &Device{} // Enforce interface implementation.

// Connect sets up a device for the MPD server at the specified address.
func Connect(network, address string, password *string) (*Device, error) {
	passwd := ""
	if password != nil {
		passwd = *password
	}
	watcher, err := mpd.NewWatcher(network, address, passwd, "player", "mixer")
	if err != nil {
		return nil, fmt.Errorf("unable to connect to MPD: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	dev := &Device{
		network:  network,
		address:  address,
		password: passwd,
		watcher:  watcher,
		cancel:   cancel,
		stopped:  true,
	}
	go dev.watchLoop(ctx)
	go dev.pollLoop(ctx)
	return dev, nil
}

// Close releases the connection to the MPD server.
func (d *Device) Close() error {
	d.cancel()
	return d.watcher.Close()
}

// Events implements the util.Eventer interface.
func (d *Device) Events() *util.Emitter {
	return &d.emitter
}

func (d *Device) Load(ctx context.Context, uri string) int {
	d.lock.Lock()
	d.gen++
	gen := d.gen
	d.stopped = false
	d.durationKnown = false
	d.lastElapsed = 0
	d.haveState = false
	d.lock.Unlock()

	go d.withMpd(gen, func(mpdc *mpd.Client) error {
		if d.currentGen() != gen {
			// Superseded before the connection came up.
			return nil
		}
		if err := mpdc.Clear(); err != nil {
			return err
		}
		if err := mpdc.Add(uri); err != nil {
			return err
		}
		return mpdc.Play(0)
	})
	return gen
}

func (d *Device) Play(ctx context.Context) {
	go d.withMpd(d.currentGen(), func(mpdc *mpd.Client) error {
		status, err := mpdc.Status()
		if err != nil {
			return err
		}
		if status["state"] == "stop" {
			return mpdc.Play(0)
		}
		return mpdc.Pause(false)
	})
}

func (d *Device) Pause(ctx context.Context) {
	go d.withMpd(d.currentGen(), func(mpdc *mpd.Client) error {
		return mpdc.Pause(true)
	})
}

func (d *Device) Seek(ctx context.Context, t time.Duration) {
	go d.withMpd(d.currentGen(), func(mpdc *mpd.Client) error {
		// The scratchpad queue holds a single track at position 0.
		return mpdc.Seek(0, int(t/time.Second))
	})
}

func (d *Device) SetVolume(ctx context.Context, vol float32) {
	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	go d.withMpd(d.currentGen(), func(mpdc *mpd.Client) error {
		return mpdc.SetVolume(int(vol * 100))
	})
}

func (d *Device) Stop(ctx context.Context) {
	d.lock.Lock()
	d.stopped = true
	gen := d.gen
	d.lock.Unlock()

	go d.withMpd(gen, func(mpdc *mpd.Client) error {
		if err := mpdc.Stop(); err != nil {
			return err
		}
		return mpdc.Clear()
	})
}

func (d *Device) currentGen() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.gen
}

func (d *Device) withMpd(gen int, fn func(*mpd.Client) error) {
	client, err := mpd.DialAuthenticated(d.network, d.address, d.password)
	if err != nil {
		// Generation 0 concerns the device as a whole.
		d.emitter.Emit(player.DeviceErrorEvent{Gen: 0, Err: fmt.Errorf("unable to connect to MPD: %w", err)})
		return
	}
	defer client.Close()
	if err := fn(client); err != nil {
		d.emitter.Emit(player.DeviceErrorEvent{Gen: gen, Err: fmt.Errorf("mpd: %w", err)})
	}
}

func (d *Device) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-d.watcher.Event:
			if !ok {
				return
			}
			d.pollStatus()
		case err, ok := <-d.watcher.Error:
			if !ok {
				return
			}
			log.Errorf("MPD watcher: %v", err)
		}
	}
}

// pollLoop drives progress updates. MPD emits an idle event on state changes
// but not while a track simply plays on.
func (d *Device) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.lock.Lock()
			idle := d.stopped
			d.lock.Unlock()
			if !idle {
				d.pollStatus()
			}
		}
	}
}

func (d *Device) pollStatus() {
	client, err := mpd.DialAuthenticated(d.network, d.address, d.password)
	if err != nil {
		d.emitter.Emit(player.DeviceErrorEvent{Gen: 0, Err: fmt.Errorf("unable to connect to MPD: %w", err)})
		return
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		d.emitter.Emit(player.DeviceErrorEvent{Gen: 0, Err: fmt.Errorf("mpd: %w", err)})
		return
	}
	d.applyStatus(status)
}

func (d *Device) applyStatus(status mpd.Attrs) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.stopped {
		return
	}
	gen := d.gen

	if status["state"] == "stop" {
		if !d.durationKnown {
			// The load has not come up yet.
			return
		}
		// Nothing else empties the single track scratchpad, the media has
		// played to completion.
		d.stopped = true
		d.emitter.Emit(player.EndedEvent{Gen: gen})
		return
	}

	if duration, err := strconv.ParseFloat(status["duration"], 64); err == nil && duration > 0 {
		if !d.durationKnown {
			d.durationKnown = true
			d.emitter.Emit(player.DurationKnownEvent{
				Gen:      gen,
				Duration: time.Duration(duration * float64(time.Second)),
			})
		}
	}

	if elapsed, err := strconv.ParseFloat(status["elapsed"], 64); err == nil {
		t := time.Duration(elapsed * float64(time.Second))
		if t != d.lastElapsed {
			d.lastElapsed = t
			d.emitter.Emit(player.ProgressEvent{Gen: gen, Time: t})
		}
	}

	playing := status["state"] == "play"
	if !d.haveState || playing != d.lastPlaying {
		d.haveState = true
		d.lastPlaying = playing
		d.emitter.Emit(player.DeviceStateEvent{Gen: gen, Playing: playing})
	}
}
