// Package j1939 streams vehicle positions decoded from J1939 CAN traffic.
//
// A stream reads raw frames either from a candump-format log file or from a
// live SocketCAN interface, filters the traffic down to the vehicle position
// parameter group (PGN 65267) and yields decoded latitude/longitude pairs in
// the order the frames arrived. The caller drives the stream by pulling:
//
//	stream := j1939.StreamPositions(ctx, "can0", nil)
//	defer stream.Close()
//	for stream.Next() {
//		pos := stream.Position()
//		// ...
//	}
//	if err := stream.Err(); err != nil {
//		// ...
//	}
package j1939

import (
	"context"
	"time"

	"github.com/brutella/can"
	"github.com/pkg/errors"

	"github.com/jd3nn1s/j1939/canbus"
)

// ErrLiveCANUnavailable is reported on the first pull of a live stream when
// no CAN transport is wired in, e.g. on a build or deployment without
// SocketCAN support.
var ErrLiveCANUnavailable = errors.New("live CAN interface requires 'github.com/brutella/can'")

// Position is a single decoded vehicle position in degrees. Positive
// latitude is north, positive longitude is east.
type Position struct {
	Latitude  float64
	Longitude float64
}

// FrameReceiver yields raw frames from a live CAN interface. The boolean
// result is false when no frame arrived within the timeout, which is normal
// bus behavior rather than an error.
type FrameReceiver interface {
	Receive(ctx context.Context, timeout time.Duration) (can.Frame, bool, error)
	Close() error
}

// Transport opens a live CAN interface by name.
type Transport func(channel string) (FrameReceiver, error)

// liveTransport is the transport used when Options.Transport is nil. It is
// a package variable so tests can model a build without CAN support.
var liveTransport Transport = func(channel string) (FrameReceiver, error) {
	return canbus.Open(channel)
}

const (
	// DefaultReceiveTimeout bounds each wait for a live frame.
	DefaultReceiveTimeout = time.Second
	// DefaultPollInterval is the wait between end-of-file checks while
	// following a log file.
	DefaultPollInterval = 100 * time.Millisecond
)

// Options control a position stream. The zero duration fields fall back to
// the package defaults; the booleans are taken as given.
type Options struct {
	// Follow keeps a file stream waiting for new records at end of file,
	// the way tail -f does. When false the stream ends at end of file.
	Follow bool

	// PollInterval is the wait between end-of-file checks in follow mode.
	PollInterval time.Duration

	// ReceiveTimeout is the longest a live stream waits for each frame.
	ReceiveTimeout time.Duration

	// EndOnTimeout ends a live stream cleanly when the bus yields no frame
	// within ReceiveTimeout. When false the stream keeps waiting, which is
	// what a long-running tracker wants.
	EndOnTimeout bool

	// Transport opens the live CAN interface. Nil selects the SocketCAN
	// transport backed by github.com/brutella/can.
	Transport Transport

	// IsEmbeddedHost reports whether this host is the kind of embedded
	// board that normally carries a CAN controller; a false answer only
	// produces an advisory warning at live stream start. Nil selects
	// hardware detection via github.com/kidoman/embd.
	IsEmbeddedHost func() bool
}

// DefaultOptions returns the options used when StreamPositions is given nil:
// log files are followed indefinitely and a live stream ends on the first
// empty receive.
func DefaultOptions() Options {
	return Options{
		Follow:         true,
		PollInterval:   DefaultPollInterval,
		ReceiveTimeout: DefaultReceiveTimeout,
		EndOnTimeout:   true,
	}
}

// Stats are per-stream counters, updated as the stream is pulled. They are
// only meaningful from the goroutine driving the stream.
type Stats struct {
	// Frames counts raw frames pulled from the source.
	Frames uint64
	// Malformed counts log records that could not be parsed.
	Malformed uint64
	// Filtered counts frames rejected by the PGN and length checks.
	Filtered uint64
	// Positions counts decoded positions yielded to the caller.
	Positions uint64
}
