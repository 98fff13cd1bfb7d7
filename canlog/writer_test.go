package canlog

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestWriterFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.now = func() time.Time {
		return time.Unix(1609459200, 0)
	}

	assert.NoError(t, w.WriteFrame("can0", refRecord().Frame))
	assert.Equal(t, refLine+"\n", buf.String())
}

func TestWriterRecordRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	assert.NoError(t, w.WriteRecord(refRecord()))
	rec, err := ParseRecord(strings.TrimSuffix(buf.String(), "\n"))
	assert.NoError(t, err)
	assert.Equal(t, refRecord(), rec)
}

func TestWriterError(t *testing.T) {
	w := NewWriter(failWriter{})
	err := w.WriteRecord(refRecord())
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "could not write log record")
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) {
	return 0, errors.New("sink failed")
}
