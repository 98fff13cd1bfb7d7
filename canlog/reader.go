package canlog

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultPollInterval is the wait between end-of-file checks when a reader
// follows a growing file.
const DefaultPollInterval = 100 * time.Millisecond

// ReaderConfig controls how a Reader treats the end of the file.
type ReaderConfig struct {
	// Follow keeps Next waiting for appended records instead of returning
	// io.EOF, the way tail -f does.
	Follow bool
	// PollInterval is the wait between end-of-file checks in follow mode.
	// Zero selects DefaultPollInterval.
	PollInterval time.Duration
}

// Reader reads records from a candump-format log file in order.
type Reader struct {
	file *os.File
	buf  *bufio.Reader
	cfg  ReaderConfig

	// pending holds a line the writer has not finished yet. It is only
	// handed out once its newline arrives, so a record appended in two
	// writes is still parsed as one line.
	pending strings.Builder
}

// Open opens the log file at path for reading.
func Open(path string, cfg ReaderConfig) (*Reader, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open log file '%s'", path)
	}
	return &Reader{
		file: f,
		buf:  bufio.NewReader(f),
		cfg:  cfg,
	}, nil
}

// Next returns the next record. In follow mode it blocks until a record is
// appended or ctx ends; otherwise it returns io.EOF at end of file. A line
// that cannot be parsed comes back as an error with cause ErrMalformed and
// the reader remains usable, so callers can skip bad records and go on.
func (r *Reader) Next(ctx context.Context) (Record, error) {
	for {
		line, err := r.readLine(ctx)
		if err != nil {
			return Record{}, err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		return ParseRecord(line)
	}
}

// readLine returns the next complete line. bufio clears a stored io.EOF on
// the following read, so polling again after a wait picks up data appended
// since the last attempt.
func (r *Reader) readLine(ctx context.Context) (string, error) {
	for {
		chunk, err := r.buf.ReadString('\n')
		r.pending.WriteString(chunk)
		if err == nil {
			line := r.pending.String()
			r.pending.Reset()
			return line, nil
		}
		if err != io.EOF {
			return "", err
		}
		if !r.cfg.Follow {
			if r.pending.Len() > 0 {
				line := r.pending.String()
				r.pending.Reset()
				return line, nil
			}
			return "", io.EOF
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
