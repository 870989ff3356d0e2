package util

import (
	"context"
	"sync"
	"time"
)

// An Eventer is a type that emits events through an Emitter.
type Eventer interface {
	Events() *Emitter
}

// Emitter is a single producer, multiple consumer event fanout.
//
// Events are delivered to each listener in the order they are emitted. A
// listener that does not keep up with the emission rate has events dropped,
// consumers must be able to recover from missed events.
//
// The zero value is ready for use.
type Emitter struct {
	// The release attribute determines how much time an event should be
	// buffered to prevent the emission of duplicate events.
	// A zero value disables buffering.
	Release time.Duration

	lock      sync.Mutex
	listeners map[chan interface{}]struct{}
	release   map[interface{}]struct{}
}

// Emit broadcasts an event to all current listeners.
func (emitter *Emitter) Emit(event interface{}) {
	emitter.lock.Lock()
	defer emitter.lock.Unlock()

	if emitter.Release == 0 {
		emitter.broadcast(event)
		return
	}

	// Check whether an equal event is already scheduled.
	if emitter.release == nil {
		emitter.release = map[interface{}]struct{}{}
	}
	if _, ok := emitter.release[event]; ok {
		return
	}
	emitter.release[event] = struct{}{}
	time.AfterFunc(emitter.Release, func() {
		emitter.lock.Lock()
		defer emitter.lock.Unlock()
		delete(emitter.release, event)
		emitter.broadcast(event)
	})
}

func (emitter *Emitter) broadcast(event interface{}) {
	for listener := range emitter.listeners {
		select {
		case listener <- event:
		default:
			// The listener is saturated. Drop the event rather than stalling
			// the emitting goroutine or reordering later events.
		}
	}
}

// Listen registers a new listener channel. The listener is removed and its
// channel closed when the context is canceled.
func (emitter *Emitter) Listen(ctx context.Context) <-chan interface{} {
	emitter.lock.Lock()
	defer emitter.lock.Unlock()

	if emitter.listeners == nil {
		emitter.listeners = map[chan interface{}]struct{}{}
	}
	ch := make(chan interface{}, 128)
	emitter.listeners[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		emitter.lock.Lock()
		defer emitter.lock.Unlock()
		delete(emitter.listeners, ch)
		close(ch)
	}()
	return ch
}
