package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/jd3nn1s/j1939"
)

// positionForwarder is the slice of forwarder.UDPForwarder used here.
type positionForwarder interface {
	Forward(pos j1939.Position) error
}

// positionStreamer runs one position stream at a time and hands decoded
// positions to the forwarder. It satisfies Retryable, so a failed stream
// is reopened from scratch.
type positionStreamer struct {
	ctx       context.Context
	cfg       Config
	transport j1939.Transport
	fwd       positionForwarder
	printPos  bool

	stream *j1939.Stream
	last   j1939.Stats
}

func (ps *positionStreamer) Open() error {
	opts := j1939.DefaultOptions()
	opts.Follow = ps.cfg.Follow
	opts.EndOnTimeout = ps.cfg.EndOnTimeout
	opts.ReceiveTimeout = ps.cfg.ReceiveTimeout.Duration
	opts.PollInterval = ps.cfg.PollInterval.Duration
	opts.Transport = ps.transport

	ps.last = j1939.Stats{}
	ps.stream = j1939.StreamPositions(ps.ctx, ps.cfg.Source, &opts)
	return nil
}

func (ps *positionStreamer) Start(ctx context.Context) error {
	for ps.stream.Next() {
		pos := ps.stream.Position()
		if ps.printPos {
			fmt.Printf("%+v\n", pos)
		}
		if ps.fwd != nil {
			if err := ps.fwd.Forward(pos); err != nil {
				log.WithField("err", err).Warn("unable to queue position for forwarding")
			}
		}
		ps.observe()
	}
	ps.observe()
	return ps.stream.Err()
}

func (ps *positionStreamer) Close() error {
	if ps.stream == nil {
		return nil
	}
	return ps.stream.Close()
}

func (ps *positionStreamer) Name() string {
	return "positions"
}

// observe pushes the growth of the stream counters since the last look
// into the process-wide metrics.
func (ps *positionStreamer) observe() {
	st := ps.stream.Stats()
	framesTotal.Add(float64(st.Frames - ps.last.Frames))
	malformedTotal.Add(float64(st.Malformed - ps.last.Malformed))
	filteredTotal.Add(float64(st.Filtered - ps.last.Filtered))
	positionsTotal.Add(float64(st.Positions - ps.last.Positions))
	ps.last = st
}
