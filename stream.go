package j1939

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/brutella/can"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/jd3nn1s/j1939/canlog"
)

// Stream yields decoded vehicle positions one at a time. It is driven from
// a single goroutine; cancel the stream's context to interrupt a blocked
// Next from elsewhere.
type Stream struct {
	ctx    context.Context
	source string
	opts   Options

	started bool
	done    bool
	src     frameSource
	pos     Position
	err     error
	stats   Stats
}

// StreamPositions creates a position stream over the named source. A source
// naming an existing regular file is read as a candump-format log,
// anything else is opened as a live CAN interface. The source is not
// touched until the first call to Next, so open failures surface through
// Err after the first pull rather than here.
//
// A nil opts selects DefaultOptions. A nil ctx is treated as
// context.Background.
func StreamPositions(ctx context.Context, source string, opts *Options) *Stream {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ReceiveTimeout <= 0 {
		o.ReceiveTimeout = DefaultReceiveTimeout
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Stream{
		ctx:    ctx,
		source: source,
		opts:   o,
	}
}

// Next advances to the next decoded position, blocking until one is
// available. It returns false when the stream ends; Err tells a clean end
// from a failure. Frames that are not valid position broadcasts and log
// records that cannot be parsed are skipped, not surfaced.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	if !s.started {
		s.started = true
		if err := s.ctx.Err(); err != nil {
			s.fail(err)
			return false
		}
		if err := s.start(); err != nil {
			s.fail(err)
			return false
		}
	}
	for {
		frm, err := s.src.next(s.ctx)
		if err != nil {
			switch errors.Cause(err) {
			case io.EOF:
				s.finish()
			case canlog.ErrMalformed:
				s.stats.Malformed++
				log.WithError(err).Debug("skipping unparseable log record")
				continue
			default:
				s.fail(err)
			}
			return false
		}
		s.stats.Frames++
		pos, ok := DecodePosition(frm)
		if !ok {
			s.stats.Filtered++
			continue
		}
		s.stats.Positions++
		s.pos = pos
		return true
	}
}

// Position returns the position decoded by the most recent successful Next.
func (s *Stream) Position() Position {
	return s.pos
}

// Err returns the error that ended the stream. It is nil while the stream
// is live and after a clean end, such as end of a log file or a live
// receive timeout with EndOnTimeout set. A canceled context surfaces here
// as that context's error.
func (s *Stream) Err() error {
	return s.err
}

// Stats returns a snapshot of the stream's counters.
func (s *Stream) Stats() Stats {
	return s.stats
}

// Close releases the underlying file or bus. The stream ends; Next returns
// false from then on. Close may be called any number of times.
func (s *Stream) Close() error {
	return s.shutdown()
}

func (s *Stream) start() error {
	if info, err := os.Stat(s.source); err == nil && info.Mode().IsRegular() {
		r, err := canlog.Open(s.source, canlog.ReaderConfig{
			Follow:       s.opts.Follow,
			PollInterval: s.opts.PollInterval,
		})
		if err != nil {
			return err
		}
		s.src = &fileSource{reader: r}
		return nil
	}

	transport := s.opts.Transport
	if transport == nil {
		transport = liveTransport
	}
	if transport == nil {
		return ErrLiveCANUnavailable
	}
	embedded := s.opts.IsEmbeddedHost
	if embedded == nil {
		embedded = isEmbeddedHost
	}
	if !embedded() {
		log.WithField("interface", s.source).
			Warn("live CAN access is typically supported on embedded hosts such as the Raspberry Pi")
	}
	rcv, err := transport(s.source)
	if err != nil {
		return errors.Wrapf(err, "could not open CAN interface '%s'", s.source)
	}
	s.src = &busSource{
		receiver:     rcv,
		timeout:      s.opts.ReceiveTimeout,
		endOnTimeout: s.opts.EndOnTimeout,
	}
	return nil
}

func (s *Stream) fail(err error) {
	s.err = err
	if cerr := s.shutdown(); cerr != nil {
		log.WithError(cerr).Warn("closing frame source")
	}
}

func (s *Stream) finish() {
	if cerr := s.shutdown(); cerr != nil {
		s.err = cerr
	}
}

func (s *Stream) shutdown() error {
	s.done = true
	if s.src == nil {
		return nil
	}
	err := s.src.close()
	s.src = nil
	return err
}

// frameSource yields raw frames until io.EOF ends the stream cleanly.
type frameSource interface {
	next(ctx context.Context) (can.Frame, error)
	close() error
}

type fileSource struct {
	reader *canlog.Reader
}

func (s *fileSource) next(ctx context.Context) (can.Frame, error) {
	rec, err := s.reader.Next(ctx)
	if err != nil {
		return can.Frame{}, err
	}
	return rec.Frame, nil
}

func (s *fileSource) close() error {
	return s.reader.Close()
}

type busSource struct {
	receiver     FrameReceiver
	timeout      time.Duration
	endOnTimeout bool
}

func (s *busSource) next(ctx context.Context) (can.Frame, error) {
	for {
		frm, ok, err := s.receiver.Receive(ctx, s.timeout)
		if err != nil {
			return can.Frame{}, err
		}
		if ok {
			return frm, nil
		}
		if s.endOnTimeout {
			return can.Frame{}, io.EOF
		}
	}
}

func (s *busSource) close() error {
	return s.receiver.Close()
}
