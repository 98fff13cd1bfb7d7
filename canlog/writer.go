package canlog

import (
	"fmt"
	"io"
	"time"

	"github.com/brutella/can"
	"github.com/pkg/errors"
)

// Writer appends candump-format records to an underlying writer, one line
// per frame.
type Writer struct {
	w   io.Writer
	now func() time.Time
}

// NewWriter returns a Writer appending to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:   w,
		now: time.Now,
	}
}

// WriteRecord appends one record.
func (w *Writer) WriteRecord(rec Record) error {
	if _, err := fmt.Fprintln(w.w, FormatRecord(rec)); err != nil {
		return errors.Wrap(err, "could not write log record")
	}
	return nil
}

// WriteFrame stamps the frame with the current time and appends it.
func (w *Writer) WriteFrame(channel string, frm can.Frame) error {
	return w.WriteRecord(Record{
		Time:    w.now(),
		Channel: channel,
		Frame:   frm,
	})
}
