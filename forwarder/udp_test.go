package forwarder

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"net"
	"testing"
	"time"

	"github.com/jd3nn1s/j1939"
	"github.com/stretchr/testify/assert"
)

func TestUDPForwarder(t *testing.T) {
	pc, err := net.ListenPacket("udp", "localhost:0")
	if err != nil {
		log.Fatal(err)
	}
	defer pc.Close()
	udpAddr := pc.LocalAddr().(*net.UDPAddr)
	config := fmt.Sprintf(`
Server = "127.0.0.1"
Port = %d
`, udpAddr.Port)

	recvData := struct {
		data []byte
		len  int
	}{}

	dataChan := make(chan struct{}, 1)
	go func() {
		buffer := make([]byte, 1024)
		assert.NoError(t, pc.SetReadDeadline(time.Now().Add(time.Second*3)))
		n, _, err := pc.ReadFrom(buffer)
		assert.NoError(t, err)
		recvData.data = buffer
		recvData.len = n
		dataChan <- struct{}{}
	}()

	udp, err := NewUDPForwarderFromReader(bytes.NewBufferString(config))
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = udp.Start(ctx)
	}()

	pos := j1939.Position{
		Latitude:  37.3206542,
		Longitude: -121.9073762,
	}
	assert.NoError(t, udp.Forward(pos))

	<-dataChan
	assert.Equal(t, 17, recvData.len)

	hdr := Header{}
	recvPos := j1939.Position{}
	rdr := bytes.NewReader(recvData.data)
	assert.NoError(t, binary.Read(rdr, binary.LittleEndian, &hdr))
	assert.NoError(t, binary.Read(rdr, binary.LittleEndian, &recvPos))
	assert.Equal(t, uint8(TypePosition), hdr.Type)
	assert.Equal(t, pos, recvPos)
}

func TestUDPForwarderBadConfig(t *testing.T) {
	_, err := NewUDPForwarderFromReader(bytes.NewBufferString("not = [valid"))
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "unable to load udp forwarder configuration")
	}
}
