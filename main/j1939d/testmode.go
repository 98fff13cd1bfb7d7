package main

import (
	"context"
	"time"

	"github.com/brutella/can"

	"github.com/jd3nn1s/j1939"
)

const testSourceAddress = 0x4A

// testTransport fabricates a bus that wanders a position back and forth,
// so the whole pipeline can be exercised on a desk without CAN hardware.
func testTransport(string) (j1939.FrameReceiver, error) {
	return &testReceiver{
		pos: j1939.Position{Latitude: 37.3206542, Longitude: -121.9073762},
	}, nil
}

type testReceiver struct {
	pos  j1939.Position
	down bool
}

func (t *testReceiver) Receive(ctx context.Context, timeout time.Duration) (can.Frame, bool, error) {
	select {
	case <-time.After(time.Millisecond * 20):
	case <-ctx.Done():
		return can.Frame{}, false, ctx.Err()
	}

	if t.down {
		t.pos.Latitude -= 0.0001
		t.pos.Longitude -= 0.0001
	} else {
		t.pos.Latitude += 0.0001
		t.pos.Longitude += 0.0001
	}

	if t.pos.Latitude >= 37.34 {
		t.down = true
	} else if t.pos.Latitude <= 37.30 {
		t.down = false
	}

	return j1939.PositionFrame(t.pos, testSourceAddress), true, nil
}

func (t *testReceiver) Close() error {
	return nil
}
