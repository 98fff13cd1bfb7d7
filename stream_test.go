package j1939

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brutella/can"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

var logLines = []string{
	"(1609459200.000000) can0 18FEF34A [8] 0E 23 6A 93 1E DE 81 34",
	"(1609459200.100000) can0 18FEF34A [8] 0F 24 6B 94 1F DF 82 35",
	"(1609459201.000000) can0 12345678 [8] 01 02 03 04 05 06 07 08",
	"(1609459201.100000) can0 18FEF34A [8] 10 25 6C 95 20 E0 83 36",
}

var logPositions = []Position{
	{Latitude: 37.3206542, Longitude: -121.9073762},
	{Latitude: 39.0049551, Longitude: -120.2230753},
	{Latitude: 40.689256, Longitude: -118.5387744},
}

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trip.log")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func appendLog(t *testing.T, path string, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	assert.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(content)
	assert.NoError(t, err)
}

func collect(t *testing.T, s *Stream) []Position {
	t.Helper()
	var positions []Position
	for s.Next() {
		positions = append(positions, s.Position())
	}
	return positions
}

func assertPositions(t *testing.T, want []Position, got []Position) {
	t.Helper()
	if !assert.Equal(t, len(want), len(got)) {
		return
	}
	for i := range want {
		assert.InDelta(t, want[i].Latitude, got[i].Latitude, 1e-6)
		assert.InDelta(t, want[i].Longitude, got[i].Longitude, 1e-6)
	}
}

type receiveStep struct {
	frm can.Frame
	ok  bool
	err error
}

type receiverStub struct {
	steps  []receiveStep
	closed bool
}

func (r *receiverStub) Receive(ctx context.Context, timeout time.Duration) (can.Frame, bool, error) {
	if err := ctx.Err(); err != nil {
		return can.Frame{}, false, err
	}
	if len(r.steps) == 0 {
		return can.Frame{}, false, errors.New("receive past end of script")
	}
	step := r.steps[0]
	r.steps = r.steps[1:]
	return step.frm, step.ok, step.err
}

func (r *receiverStub) Close() error {
	r.closed = true
	return nil
}

func stubTransport(rcv *receiverStub) Transport {
	return func(string) (FrameReceiver, error) {
		return rcv, nil
	}
}

func TestStreamFromFile(t *testing.T) {
	content := logLines[0] + "\n" +
		"this is not a can frame\n" +
		logLines[1] + "\n" +
		"\n" +
		logLines[2] + "\n" +
		logLines[3] // no trailing newline
	path := writeLog(t, content)

	s := StreamPositions(context.Background(), path, &Options{Follow: false})
	defer s.Close()

	positions := collect(t, s)
	assert.NoError(t, s.Err())
	assertPositions(t, logPositions, positions)
	assert.Equal(t, Stats{Frames: 4, Malformed: 1, Filtered: 1, Positions: 3}, s.Stats())

	// the stream stays ended
	assert.False(t, s.Next())
	assert.NoError(t, s.Err())
}

func TestStreamFromFileFollow(t *testing.T) {
	path := writeLog(t, logLines[0]+"\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts := DefaultOptions()
	opts.PollInterval = 2 * time.Millisecond
	s := StreamPositions(ctx, path, &opts)
	defer s.Close()

	assert.True(t, s.Next())
	assert.InDelta(t, logPositions[0].Latitude, s.Position().Latitude, 1e-6)

	appendLog(t, path, logLines[1]+"\n")
	assert.True(t, s.Next())
	assert.InDelta(t, logPositions[1].Latitude, s.Position().Latitude, 1e-6)

	// release the blocked pull
	time.AfterFunc(20*time.Millisecond, cancel)
	assert.False(t, s.Next())
	assert.Equal(t, context.Canceled, s.Err())
}

func TestStreamLive(t *testing.T) {
	wrongPGN := positionFrame()
	wrongPGN.ID = 0x18F0034A

	rcv := &receiverStub{steps: []receiveStep{
		{frm: positionFrame(), ok: true},
		{frm: wrongPGN, ok: true},
		{},
	}}

	opts := DefaultOptions()
	opts.Transport = stubTransport(rcv)
	opts.IsEmbeddedHost = func() bool { return true }
	s := StreamPositions(context.Background(), "can0", &opts)
	defer s.Close()

	positions := collect(t, s)
	assert.NoError(t, s.Err())
	assertPositions(t, logPositions[:1], positions)
	assert.Equal(t, Stats{Frames: 2, Filtered: 1, Positions: 1}, s.Stats())
	assert.True(t, rcv.closed)
}

func TestStreamLiveNoPositions(t *testing.T) {
	wrongPGN := positionFrame()
	wrongPGN.ID = 0x18F0034A

	rcv := &receiverStub{steps: []receiveStep{
		{frm: wrongPGN, ok: true},
		{},
	}}

	opts := DefaultOptions()
	opts.Transport = stubTransport(rcv)
	opts.IsEmbeddedHost = func() bool { return true }
	s := StreamPositions(context.Background(), "can0", &opts)
	defer s.Close()

	positions := collect(t, s)
	assert.Empty(t, positions)
	assert.NoError(t, s.Err())
	assert.Equal(t, Stats{Frames: 1, Filtered: 1}, s.Stats())
}

func TestStreamLiveKeepsWaiting(t *testing.T) {
	rcv := &receiverStub{steps: []receiveStep{
		{},
		{},
		{frm: positionFrame(), ok: true},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts := DefaultOptions()
	opts.EndOnTimeout = false
	opts.Transport = stubTransport(rcv)
	opts.IsEmbeddedHost = func() bool { return true }
	s := StreamPositions(ctx, "can0", &opts)
	defer s.Close()

	assert.True(t, s.Next())
	assert.InDelta(t, logPositions[0].Latitude, s.Position().Latitude, 1e-6)
	// both quiet receives were waited out before the frame arrived
	assert.Empty(t, rcv.steps)

	cancel()
	assert.False(t, s.Next())
	assert.Equal(t, context.Canceled, s.Err())
	assert.True(t, rcv.closed)
}

func TestStreamLiveOpenError(t *testing.T) {
	opts := DefaultOptions()
	opts.IsEmbeddedHost = func() bool { return true }
	opts.Transport = func(string) (FrameReceiver, error) {
		return nil, errors.New("no such interface")
	}
	s := StreamPositions(context.Background(), "can0", &opts)
	defer s.Close()

	assert.False(t, s.Next())
	if assert.Error(t, s.Err()) {
		assert.Contains(t, s.Err().Error(), "could not open CAN interface 'can0'")
	}
	assert.False(t, s.Next())
}

func TestStreamLiveUnavailable(t *testing.T) {
	origTransport := liveTransport
	defer func() {
		liveTransport = origTransport
	}()
	liveTransport = nil

	s := StreamPositions(context.Background(), "can0", nil)
	defer s.Close()

	assert.False(t, s.Next())
	assert.Equal(t, ErrLiveCANUnavailable, s.Err())
	assert.Contains(t, s.Err().Error(), "github.com/brutella/can")
}

func TestStreamAdvisoryOnWorkstation(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	rcv := &receiverStub{steps: []receiveStep{
		{frm: positionFrame(), ok: true},
		{frm: positionFrame(), ok: true},
		{},
	}}
	opts := DefaultOptions()
	opts.Transport = stubTransport(rcv)
	opts.IsEmbeddedHost = func() bool { return false }
	s := StreamPositions(context.Background(), "can0", &opts)
	defer s.Close()

	positions := collect(t, s)
	assert.Len(t, positions, 2)
	assert.Equal(t, 1, countAdvisories(hook))
}

func TestStreamNoAdvisoryOnEmbeddedHost(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	rcv := &receiverStub{steps: []receiveStep{{}}}
	opts := DefaultOptions()
	opts.Transport = stubTransport(rcv)
	opts.IsEmbeddedHost = func() bool { return true }
	s := StreamPositions(context.Background(), "can0", &opts)
	defer s.Close()

	assert.False(t, s.Next())
	assert.NoError(t, s.Err())
	assert.Equal(t, 0, countAdvisories(hook))
}

func countAdvisories(hook *test.Hook) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel && strings.Contains(e.Message, "Raspberry Pi") {
			n++
		}
	}
	return n
}

func TestStreamCancelBeforeFirstPull(t *testing.T) {
	opened := false
	opts := DefaultOptions()
	opts.IsEmbeddedHost = func() bool { return true }
	opts.Transport = func(string) (FrameReceiver, error) {
		opened = true
		return &receiverStub{}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := StreamPositions(ctx, "can0", &opts)
	defer s.Close()

	assert.False(t, s.Next())
	assert.Equal(t, context.Canceled, s.Err())
	assert.False(t, opened)
}

func TestStreamsAreIndependent(t *testing.T) {
	path := writeLog(t, logLines[0]+"\n"+logLines[1]+"\n")

	s1 := StreamPositions(context.Background(), path, &Options{Follow: false})
	defer s1.Close()
	s2 := StreamPositions(context.Background(), path, &Options{Follow: false})
	defer s2.Close()

	assert.True(t, s1.Next())
	assert.True(t, s2.Next())
	assert.InDelta(t, logPositions[0].Latitude, s1.Position().Latitude, 1e-6)
	assert.InDelta(t, logPositions[0].Latitude, s2.Position().Latitude, 1e-6)

	assert.True(t, s1.Next())
	assert.True(t, s2.Next())
	assert.InDelta(t, logPositions[1].Latitude, s1.Position().Latitude, 1e-6)
	assert.InDelta(t, logPositions[1].Latitude, s2.Position().Latitude, 1e-6)

	assert.False(t, s1.Next())
	assert.False(t, s2.Next())
	assert.NoError(t, s1.Err())
	assert.NoError(t, s2.Err())
}

func TestStreamClose(t *testing.T) {
	path := writeLog(t, logLines[0]+"\n"+logLines[1]+"\n")

	s := StreamPositions(context.Background(), path, &Options{Follow: false})
	assert.True(t, s.Next())
	assert.NoError(t, s.Close())
	assert.False(t, s.Next())
	assert.NoError(t, s.Err())
	assert.NoError(t, s.Close())
}

func TestStreamCloseBeforeFirstPull(t *testing.T) {
	s := StreamPositions(context.Background(), "can0", nil)
	assert.NoError(t, s.Close())
	assert.False(t, s.Next())
	assert.NoError(t, s.Err())
}
