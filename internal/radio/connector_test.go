package radio

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWireFrame_DecodesPositionIntegerScaled(t *testing.T) {
	lat := int32(452000000)
	lon := int32(-1220000000)
	f := wireFrame{From: 0x11111111, Port: string(PortPosition), Position: &wirePosition{LatitudeI: &lat, LongitudeI: &lon}}
	pr := f.toPacketRecord()
	assert.Equal(t, "!11111111", pr.FromID)
	require.NotNil(t, pr.Decoded.Position)
	assert.Equal(t, lat, *pr.Decoded.Position.LatitudeI)
}

func TestWireFrame_DecodesTraceroute(t *testing.T) {
	f := wireFrame{From: 1, Port: string(PortTraceroute), Traceroute: &wireTracerouteFrame{Route: []uint32{1, 2, 3}}}
	pr := f.toPacketRecord()
	require.NotNil(t, pr.Decoded.Traceroute)
	assert.Equal(t, []uint32{1, 2, 3}, pr.Decoded.Traceroute.Route)
}

func TestConnector_LoopbackDeliversFrameAndReconnects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := net.LookupPort("tcp", portStr)
	require.NoError(t, err)

	accepted := make(chan net.Conn, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- conn
		}
	}()

	c := NewConnector(host, port, 10*time.Millisecond, 50*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	conn := <-accepted
	frame := `{"from":286331153,"port":"TEXT_MESSAGE_APP","text":{"text":"hello"}}` + "\n"
	_, err = conn.Write([]byte(frame))
	require.NoError(t, err)

	select {
	case pr := <-c.Packets():
		assert.Equal(t, "!11111111", pr.FromID)
		require.NotNil(t, pr.Decoded.Text)
		assert.Equal(t, "hello", pr.Decoded.Text.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet")
	}
	assert.True(t, c.IsConnected())

	conn.Close()
	select {
	case conn2 := <-accepted:
		conn2.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reconnect")
	}
}
