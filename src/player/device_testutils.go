package player

import (
	"context"
	"sync"
	"time"

	"soniq/src/util"
)

// FakeDevice is a Device implementation for use in tests. It records all
// commands it receives, tests drive its behavior by emitting device events
// through Events().
type FakeDevice struct {
	emitter util.Emitter

	lock   sync.Mutex
	gen    int
	loads  []string
	seeks  []time.Duration
	plays  int
	pauses int
	stops  int
	volume float32
}

var _ Device = &FakeDevice{} // Enforce interface implementation.

func (d *FakeDevice) Events() *util.Emitter {
	return &d.emitter
}

func (d *FakeDevice) Load(ctx context.Context, uri string) int {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.gen++
	d.loads = append(d.loads, uri)
	return d.gen
}

func (d *FakeDevice) Play(ctx context.Context) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.plays++
}

func (d *FakeDevice) Pause(ctx context.Context) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.pauses++
}

func (d *FakeDevice) Seek(ctx context.Context, t time.Duration) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.seeks = append(d.seeks, t)
}

func (d *FakeDevice) SetVolume(ctx context.Context, vol float32) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.volume = vol
}

func (d *FakeDevice) Stop(ctx context.Context) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.stops++
}

// Gen returns the generation of the most recent load.
func (d *FakeDevice) Gen() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.gen
}

// Loads returns the locators passed to Load in order.
func (d *FakeDevice) Loads() []string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]string{}, d.loads...)
}

// Seeks returns the positions passed to Seek in order.
func (d *FakeDevice) Seeks() []time.Duration {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]time.Duration{}, d.seeks...)
}

// PauseCalls returns the number of times Pause was requested.
func (d *FakeDevice) PauseCalls() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.pauses
}

// PlayCalls returns the number of times Play was requested.
func (d *FakeDevice) PlayCalls() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.plays
}

// StopCalls returns the number of times Stop was requested.
func (d *FakeDevice) StopCalls() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.stops
}

// Volume returns the volume most recently pushed to the device.
func (d *FakeDevice) Volume() float32 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.volume
}
