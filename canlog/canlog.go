// Package canlog reads and writes CAN frame logs in the candump text
// format, one frame per line:
//
//	(1609459200.000000) can0 18FEF34A [8] 0E 23 6A 93 1E DE 81 34
//
// The fields are the capture time in seconds since the epoch, the bus
// channel, the hexadecimal frame identifier, the data length in brackets
// and the data bytes.
package canlog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brutella/can"
	"github.com/pkg/errors"
)

// ErrMalformed is the cause of every parse failure, so callers can tell a
// bad record from an I/O problem with errors.Cause.
var ErrMalformed = errors.New("malformed log record")

const maxFrameData = 8

// Record is one logged frame.
type Record struct {
	Time    time.Time
	Channel string
	Frame   can.Frame
}

// ParseRecord parses a single candump-format line. The returned error has
// ErrMalformed as its cause whenever the line itself is at fault.
func ParseRecord(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return Record{}, errors.Wrapf(ErrMalformed, "expected at least 4 fields, have %d", len(fields))
	}

	ts, err := parseTimestamp(fields[0])
	if err != nil {
		return Record{}, err
	}

	id, err := strconv.ParseUint(fields[2], 16, 32)
	if err != nil {
		return Record{}, errors.Wrapf(ErrMalformed, "bad frame identifier %q", fields[2])
	}

	lenField := fields[3]
	if len(lenField) < 3 || lenField[0] != '[' || lenField[len(lenField)-1] != ']' {
		return Record{}, errors.Wrapf(ErrMalformed, "bad length field %q", lenField)
	}
	length, err := strconv.ParseUint(lenField[1:len(lenField)-1], 10, 8)
	if err != nil || length > maxFrameData {
		return Record{}, errors.Wrapf(ErrMalformed, "bad length field %q", lenField)
	}

	data := fields[4:]
	if uint64(len(data)) != length {
		return Record{}, errors.Wrapf(ErrMalformed, "length %d but %d data bytes", length, len(data))
	}

	rec := Record{
		Time:    ts,
		Channel: fields[1],
		Frame: can.Frame{
			ID:     uint32(id),
			Length: uint8(length),
		},
	}
	for i, b := range data {
		v, err := strconv.ParseUint(b, 16, 8)
		if err != nil || len(b) != 2 {
			return Record{}, errors.Wrapf(ErrMalformed, "bad data byte %q", b)
		}
		rec.Frame.Data[i] = uint8(v)
	}
	return rec, nil
}

// parseTimestamp parses "(sec.frac)" without going through a float, so
// microsecond captures survive round trips exactly.
func parseTimestamp(field string) (time.Time, error) {
	if len(field) < 3 || field[0] != '(' || field[len(field)-1] != ')' {
		return time.Time{}, errors.Wrapf(ErrMalformed, "bad timestamp %q", field)
	}
	secPart, fracPart, hasFrac := strings.Cut(field[1:len(field)-1], ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrMalformed, "bad timestamp %q", field)
	}
	var nsec int64
	if hasFrac {
		if fracPart == "" || len(fracPart) > 9 {
			return time.Time{}, errors.Wrapf(ErrMalformed, "bad timestamp %q", field)
		}
		frac, err := strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return time.Time{}, errors.Wrapf(ErrMalformed, "bad timestamp %q", field)
		}
		for i := len(fracPart); i < 9; i++ {
			frac *= 10
		}
		nsec = frac
	}
	return time.Unix(sec, nsec), nil
}

// FormatRecord renders a record as a candump-format line without the
// trailing newline. Only the first Length data bytes are written.
func FormatRecord(rec Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "(%d.%06d) %s %08X [%d]",
		rec.Time.Unix(), rec.Time.Nanosecond()/1000, rec.Channel, rec.Frame.ID, rec.Frame.Length)
	length := rec.Frame.Length
	if length > maxFrameData {
		length = maxFrameData
	}
	for _, v := range rec.Frame.Data[:length] {
		fmt.Fprintf(&b, " %02X", v)
	}
	return b.String()
}
