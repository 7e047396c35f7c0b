// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createAssociationPair(t *testing.T) (*Association, *Association) {
	t.Helper()

	conn1, conn2 := net.Pipe()
	loggerFactory := logging.NewDefaultLoggerFactory()

	type result struct {
		a   *Association
		err error
	}
	serverCh := make(chan result, 1)

	go func() {
		server, err := Server(Config{
			Name:          "server",
			NetConn:       conn1,
			LoggerFactory: loggerFactory,
		})
		serverCh <- result{server, err}
	}()

	client, err := Client(Config{
		Name:          "client",
		NetConn:       conn2,
		LoggerFactory: loggerFactory,
	})
	require.NoError(t, err, "client handshake should succeed")

	res := <-serverCh
	require.NoError(t, res.err, "server handshake should succeed")

	return client, res.a
}

func closeAssociationPair(t *testing.T, client, server *Association) {
	t.Helper()

	assert.NoError(t, client.Close(), "client close should succeed")
	assert.NoError(t, server.Close(), "server close should succeed")
}

func TestAssocHandshake(t *testing.T) {
	lim := test.TimeOut(10 * time.Second)
	defer lim.Stop()

	client, server := createAssociationPair(t)

	assert.Equal(t, established, client.getState())
	assert.Equal(t, established, server.getState())

	closeAssociationPair(t, client, server)
}

func TestAssocReliableOrdered(t *testing.T) {
	lim := test.TimeOut(10 * time.Second)
	defer lim.Stop()

	const si uint16 = 1
	const msg1 = "ABC"
	const msg2 = "DEFG"

	client, server := createAssociationPair(t)
	defer closeAssociationPair(t, client, server)

	s0, err := client.OpenStream(si, PayloadTypeWebRTCBinary)
	require.NoError(t, err, "OpenStream should succeed")

	n, err := s0.WriteSCTP([]byte(msg1), PayloadTypeWebRTCBinary)
	require.NoError(t, err)
	assert.Equal(t, len(msg1), n, "unexpected length of written data")

	s1, err := server.AcceptStream()
	require.NoError(t, err, "AcceptStream should succeed")
	assert.Equal(t, si, s1.StreamIdentifier())

	buf := make([]byte, 32)
	n, ppi, err := s1.ReadSCTP(buf)
	require.NoError(t, err)
	assert.Equal(t, msg1, string(buf[:n]), "unexpected received data")
	assert.Equal(t, PayloadTypeWebRTCBinary, ppi, "unexpected ppi")

	// send in the other direction too
	n, err = s1.WriteSCTP([]byte(msg2), PayloadTypeWebRTCString)
	require.NoError(t, err)
	assert.Equal(t, len(msg2), n, "unexpected length of written data")

	n, ppi, err = s0.ReadSCTP(buf)
	require.NoError(t, err)
	assert.Equal(t, msg2, string(buf[:n]), "unexpected received data")
	assert.Equal(t, PayloadTypeWebRTCString, ppi, "unexpected ppi")

	assert.True(t, client.BytesSent() > 0, "should have sent bytes")
	assert.True(t, client.BytesReceived() > 0, "should have received bytes")
}

func TestAssocReliableUnordered(t *testing.T) {
	lim := test.TimeOut(10 * time.Second)
	defer lim.Stop()

	const si uint16 = 2
	const msg = "unordered-message"

	client, server := createAssociationPair(t)
	defer closeAssociationPair(t, client, server)

	s0, err := client.OpenStream(si, PayloadTypeWebRTCBinary)
	require.NoError(t, err)
	s0.SetReliabilityParams(true, ReliabilityTypeReliable, 0)

	_, err = s0.WriteSCTP([]byte(msg), PayloadTypeWebRTCBinary)
	require.NoError(t, err)

	s1, err := server.AcceptStream()
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, _, err := s1.ReadSCTP(buf)
	require.NoError(t, err)
	assert.Equal(t, msg, string(buf[:n]), "unexpected received data")
}

func TestAssocFragmentedMessage(t *testing.T) {
	lim := test.TimeOut(10 * time.Second)
	defer lim.Stop()

	const si uint16 = 3

	client, server := createAssociationPair(t)
	defer closeAssociationPair(t, client, server)

	// larger than maxPayloadSize so the message is fragmented into
	// multiple DATA chunks
	msg := make([]byte, int(client.maxPayloadSize())*3+10)
	for i := range msg {
		msg[i] = byte(i % 256) //nolint:gosec // G115
	}

	s0, err := client.OpenStream(si, PayloadTypeWebRTCBinary)
	require.NoError(t, err)

	n, err := s0.WriteSCTP(msg, PayloadTypeWebRTCBinary)
	require.NoError(t, err)
	assert.Equal(t, len(msg), n)

	s1, err := server.AcceptStream()
	require.NoError(t, err)

	buf := make([]byte, len(msg)+1)
	n, _, err = s1.ReadSCTP(buf)
	require.NoError(t, err)
	assert.Equal(t, msg, buf[:n], "unexpected received data")
}

func TestAssocMaxMessageSize(t *testing.T) {
	lim := test.TimeOut(10 * time.Second)
	defer lim.Stop()

	client, server := createAssociationPair(t)
	defer closeAssociationPair(t, client, server)

	assert.Equal(t, defaultMaxMessageSize, client.MaxMessageSize())

	s0, err := client.OpenStream(7, PayloadTypeWebRTCBinary)
	require.NoError(t, err)

	big := make([]byte, int(client.MaxMessageSize())+1)
	_, err = s0.WriteSCTP(big, PayloadTypeWebRTCBinary)
	assert.ErrorIs(t, err, ErrOutboundPacketTooLarge)

	client.SetMaxMessageSize(uint32(len(big))) //nolint:gosec // G115
	assert.Equal(t, uint32(len(big)), client.MaxMessageSize()) //nolint:gosec // G115
}

func TestAssocShutdown(t *testing.T) {
	lim := test.TimeOut(10 * time.Second)
	defer lim.Stop()

	client, server := createAssociationPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Shutdown(ctx), "shutdown should succeed")

	// shutdown in a non-established state should fail
	err := client.Shutdown(ctx)
	assert.ErrorIs(t, err, ErrShutdownNonEstablished)

	assert.NoError(t, client.Close())
	assert.NoError(t, server.Close())
}

func TestAssocAbort(t *testing.T) {
	lim := test.TimeOut(10 * time.Second)
	defer lim.Stop()

	client, server := createAssociationPair(t)

	client.Abort("test abort")

	// the server should tear down on the received ABORT; AcceptStream
	// unblocks with io.EOF once the accept channel is closed.
	_, err := server.AcceptStream()
	assert.ErrorIs(t, err, io.EOF)

	assert.NoError(t, server.Close())
	assert.NoError(t, client.Close())
}

func TestAssocStreamReset(t *testing.T) {
	lim := test.TimeOut(10 * time.Second)
	defer lim.Stop()

	const si uint16 = 5
	const msg = "going away"

	client, server := createAssociationPair(t)
	defer closeAssociationPair(t, client, server)

	s0, err := client.OpenStream(si, PayloadTypeWebRTCBinary)
	require.NoError(t, err)

	_, err = s0.WriteSCTP([]byte(msg), PayloadTypeWebRTCBinary)
	require.NoError(t, err)

	s1, err := server.AcceptStream()
	require.NoError(t, err)

	buf := make([]byte, 32)
	n, _, err := s1.ReadSCTP(buf)
	require.NoError(t, err)
	assert.Equal(t, msg, string(buf[:n]))

	// reset the outgoing stream; the peer sees io.EOF on read
	require.NoError(t, s0.Close())

	_, _, err = s1.ReadSCTP(buf)
	assert.ErrorIs(t, err, io.EOF, "read should return EOF after reset")

	// the peer resets its outgoing stream in response
	require.NoError(t, s1.Close())
}

func TestAssocOpenStreamAfterClose(t *testing.T) {
	lim := test.TimeOut(10 * time.Second)
	defer lim.Stop()

	client, server := createAssociationPair(t)
	closeAssociationPair(t, client, server)

	_, err := client.OpenStream(9, PayloadTypeWebRTCBinary)
	assert.ErrorIs(t, err, ErrAssociationClosed)
}

func TestAssocActiveHeartbeat(t *testing.T) {
	lim := test.TimeOut(10 * time.Second)
	defer lim.Stop()

	client, server := createAssociationPair(t)
	defer closeAssociationPair(t, client, server)

	assert.Equal(t, float64(0), client.SRTT(), "no RTT measured yet")

	client.ActiveHeartbeat()

	// wait for the heartbeat-ack to come back
	deadline := time.Now().Add(3 * time.Second)
	for client.SRTT() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, client.SRTT() > 0, "SRTT should have been measured")
}

// blackholeDATAConn swallows every packet carrying the first DATA chunk TSN
// it observes, so that one message is lost on every transmission attempt.
type blackholeDATAConn struct {
	net.Conn

	mu       sync.Mutex
	lostTSN  uint32
	haveTSN  bool
	nDropped int
}

func (c *blackholeDATAConn) Write(b []byte) (int, error) {
	pkt := &packet{}
	if err := pkt.unmarshal(b); err == nil {
		for _, ch := range pkt.chunks {
			d, ok := ch.(*chunkPayloadData)
			if !ok {
				continue
			}
			c.mu.Lock()
			if !c.haveTSN {
				c.haveTSN = true
				c.lostTSN = d.tsn
			}
			drop := d.tsn == c.lostTSN
			if drop {
				c.nDropped++
			}
			c.mu.Unlock()
			if drop {
				return len(b), nil
			}
		}
	}

	return c.Conn.Write(b)
}

func (c *blackholeDATAConn) droppedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.nDropped
}

func TestAssocUnreliableTimed(t *testing.T) {
	lim := test.TimeOut(30 * time.Second)
	defer lim.Stop()

	const si uint16 = 11

	conn1, conn2 := net.Pipe()
	lossy := &blackholeDATAConn{Conn: conn2}
	loggerFactory := logging.NewDefaultLoggerFactory()

	type result struct {
		a   *Association
		err error
	}
	serverCh := make(chan result, 1)

	go func() {
		server, err := Server(Config{
			Name:          "server",
			NetConn:       conn1,
			LoggerFactory: loggerFactory,
		})
		serverCh <- result{server, err}
	}()

	client, err := Client(Config{
		Name:          "client",
		NetConn:       lossy,
		LoggerFactory: loggerFactory,
	})
	require.NoError(t, err)

	res := <-serverCh
	require.NoError(t, res.err)
	server := res.a
	defer closeAssociationPair(t, client, server)

	// take an RTT sample so the retransmission timer drops to its floor
	client.ActiveHeartbeat()
	deadline := time.Now().Add(3 * time.Second)
	for client.SRTT() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, client.SRTT() > 0)

	s0, err := client.OpenStream(si, PayloadTypeWebRTCBinary)
	require.NoError(t, err)
	s0.SetReliabilityParams(false, ReliabilityTypeTimed, 10)

	_, err = s0.WriteSCTP([]byte("lost"), PayloadTypeWebRTCBinary)
	require.NoError(t, err)

	// let the first message go out (and be swallowed) in its own packet
	time.Sleep(100 * time.Millisecond)

	_, err = s0.WriteSCTP([]byte("kept"), PayloadTypeWebRTCBinary)
	require.NoError(t, err)

	s1, err := server.AcceptStream()
	require.NoError(t, err)

	// the first message is never delivered; once its lifetime expires the
	// sender advances the forward TSN and the receiver skips ahead, so the
	// second message arrives in order.
	buf := make([]byte, 32)
	n, _, err := s1.ReadSCTP(buf)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(buf[:n]), "the expired message should have been skipped")

	// the forward TSN moves the cumulative ack past the abandoned chunk, so
	// nothing stays buffered on the sender
	deadline = time.Now().Add(10 * time.Second)
	for client.BufferedAmount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 0, client.BufferedAmount(), "abandoned chunk should have been acked away")

	assert.GreaterOrEqual(t, lossy.droppedCount(), 1, "the lost message should have hit the blackhole")
}

func TestAssocTSNWrapAround(t *testing.T) {
	lim := test.TimeOut(10 * time.Second)
	defer lim.Stop()

	const si uint16 = 13
	const nMessages = 8
	const startTSN = uint32(0xFFFFFFFD)

	conn1, conn2 := net.Pipe()
	loggerFactory := logging.NewDefaultLoggerFactory()

	client := createAssociation(Config{
		Name:          "client",
		NetConn:       conn2,
		LoggerFactory: loggerFactory,
	})
	// place the initial TSN just below the wrap so the messages below
	// cross it
	client.nextTSN = startTSN
	client.initialTSN = startTSN
	client.nextRSN = startTSN
	client.minRTTMeasureTSN = startTSN
	client.cumAckPoint = startTSN - 1
	client.advancedAckPoint = startTSN - 1

	server := createAssociation(Config{
		Name:          "server",
		NetConn:       conn1,
		LoggerFactory: loggerFactory,
	})

	server.init(false)
	client.init(true)

	serverHs := make(chan error, 1)
	go func() {
		serverHs <- <-server.handshakeDoneCh
	}()
	require.NoError(t, <-client.handshakeDoneCh, "client handshake should succeed")
	require.NoError(t, <-serverHs, "server handshake should succeed")

	s0, err := client.OpenStream(si, PayloadTypeWebRTCBinary)
	require.NoError(t, err)

	msgs := make([]string, nMessages)
	for i := range msgs {
		msgs[i] = string(rune('A' + i))
		_, err = s0.WriteSCTP([]byte(msgs[i]), PayloadTypeWebRTCBinary)
		require.NoError(t, err)
	}

	s1, err := server.AcceptStream()
	require.NoError(t, err)

	buf := make([]byte, 32)
	for i := 0; i < nMessages; i++ {
		n, _, readErr := s1.ReadSCTP(buf)
		require.NoError(t, readErr)
		assert.Equal(t, msgs[i], string(buf[:n]), "message %d should arrive in order", i)
	}

	// the outbound TSN counter wrapped past zero
	client.lock.RLock()
	nextTSN := client.nextTSN
	client.lock.RUnlock()
	assert.True(t, sna32LT(nextTSN, startTSN), "nextTSN should have wrapped")
	assert.True(t, nextTSN < nMessages, "nextTSN should be a small post-wrap value")

	closeAssociationPair(t, client, server)
}

func TestConfigValidation(t *testing.T) {
	loggerFactory := logging.NewDefaultLoggerFactory()
	conn1, conn2 := net.Pipe()
	defer conn1.Close() //nolint:errcheck,gosec
	defer conn2.Close() //nolint:errcheck,gosec

	_, err := Client(Config{LoggerFactory: loggerFactory})
	assert.ErrorIs(t, err, errNilNetConn)

	_, err = Client(Config{NetConn: conn1})
	assert.ErrorIs(t, err, errNilLoggerFactory)

	_, err = Server(Config{NetConn: conn1, LoggerFactory: loggerFactory, RTOMax: -1})
	assert.ErrorIs(t, err, errInvalidRTOMax)
}

func TestGetMaxTSNOffset(t *testing.T) {
	// small buffers are clamped at the minimum offset
	assert.Equal(t, uint32(minTSNOffset), getMaxTSNOffset(0))
	assert.Equal(t, uint32(minTSNOffset), getMaxTSNOffset(100*1000))

	// large buffers are clamped at the maximum offset
	assert.Equal(t, uint32(maxTSNOffset), getMaxTSNOffset(100*1024*1024))

	// in between scales with the buffer size
	offset := getMaxTSNOffset(2 * 1024 * 1024)
	assert.Equal(t, uint32(16777), offset)
}
