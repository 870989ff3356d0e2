package util

import (
	"context"
	"testing"
	"time"
)

func TestEmission(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var em Emitter

	l := em.Listen(ctx)
	em.Emit("test")

	select {
	case msg := <-l:
		if msg != "test" {
			t.Errorf("Event malformed: %v", msg)
			return
		}
	case <-time.After(time.Millisecond * 100):
		t.Error("Event was not emitted")
	}
}

func TestEmissionOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var em Emitter

	l := em.Listen(ctx)
	for i := 0; i < 10; i++ {
		em.Emit(i)
	}

	for i := 0; i < 10; i++ {
		select {
		case msg := <-l:
			if msg != i {
				t.Fatalf("Events emitted out of order: got %v, want %v", msg, i)
			}
		case <-time.After(time.Millisecond * 100):
			t.Fatal("Event was not emitted")
		}
	}
}

func TestBufferedEmission(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var em Emitter
	em.Release = time.Millisecond * 50

	const repeat = 3

	l := em.Listen(ctx)
	for i := 0; i < repeat; i++ {
		em.Emit("test")
	}
	time.Sleep(time.Millisecond * 100)
	em.Emit("end")

	var numReceived uint
outer:
	for {
		select {
		case event := <-l:
			if event == "test" {
				numReceived++
			} else if event == "end" {
				break outer
			}
		case <-time.After(time.Millisecond * 500):
			t.Errorf("Event was not emitted")
			return
		}
	}

	if numReceived != 1 {
		t.Errorf("Event was repeated too many times: %v", numReceived)
	}
}

func TestListenerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var em Emitter
	l := em.Listen(ctx)
	cancel()

	for {
		select {
		case _, ok := <-l:
			if !ok {
				return
			}
		case <-time.After(time.Second):
			t.Fatal("Listener channel was not closed")
		}
	}
}
