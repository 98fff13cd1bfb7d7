// Package canbus receives raw frames from a SocketCAN interface and hands
// them to a single consumer, one frame per call.
package canbus

import (
	"context"
	"sync"
	"time"

	"github.com/brutella/can"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Bus is the part of github.com/brutella/can used here.
type Bus interface {
	SubscribeFunc(can.HandlerFunc)
	ConnectAndPublish() error
	Disconnect() error
}

// newBus is a package variable so tests can substitute a scripted bus.
var newBus = func(name string) (Bus, error) {
	return can.NewBusForInterfaceWithName(name)
}

// ErrClosed is returned by Receive once the receiver is closed or the bus
// stops delivering frames.
var ErrClosed = errors.New("can bus closed")

// Receiver adapts the bus's subscription callbacks to a pull interface.
// The subscription handler blocks until the consumer takes the frame, so
// at most one frame is in flight and none are buffered past the consumer.
type Receiver struct {
	bus       Bus
	frames    chan can.Frame
	runErr    chan error
	closed    chan struct{}
	closeOnce sync.Once
}

// Open connects to the named SocketCAN interface and starts receiving.
func Open(name string) (*Receiver, error) {
	bus, err := newBus(name)
	if err != nil {
		return nil, err
	}
	return newReceiver(name, bus), nil
}

func newReceiver(name string, bus Bus) *Receiver {
	r := &Receiver{
		bus:    bus,
		frames: make(chan can.Frame),
		runErr: make(chan error, 1),
		closed: make(chan struct{}),
	}
	bus.SubscribeFunc(r.handleFrame)
	go func() {
		r.runErr <- r.bus.ConnectAndPublish()
	}()
	log.WithField("interface", name).Info("CAN bus opened and subscribed")
	return r
}

func (r *Receiver) handleFrame(frm can.Frame) {
	select {
	case r.frames <- frm:
	case <-r.closed:
	}
}

// Receive waits up to timeout for the next frame. The boolean result is
// false when the wait timed out, which on a quiet bus is not an error.
func (r *Receiver) Receive(ctx context.Context, timeout time.Duration) (can.Frame, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frm := <-r.frames:
		return frm, true, nil
	case err := <-r.runErr:
		if err == nil {
			err = ErrClosed
		}
		return can.Frame{}, false, err
	case <-r.closed:
		return can.Frame{}, false, ErrClosed
	case <-timer.C:
		return can.Frame{}, false, nil
	case <-ctx.Done():
		return can.Frame{}, false, ctx.Err()
	}
}

// Close disconnects from the bus and releases any handler blocked on the
// hand-off. It is safe to call more than once.
func (r *Receiver) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.closed)
		if derr := r.bus.Disconnect(); derr != nil {
			log.WithField("err", derr).Warn("unable to disconnect can bus")
			err = derr
		}
	})
	return err
}
