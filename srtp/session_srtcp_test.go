// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package srtp

import (
	"net"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"
	"github.com/stretchr/testify/require"
)

func buildSessionSRTCPPair(t *testing.T) (*SessionSRTCP, *SessionSRTCP) {
	t.Helper()

	aPipe, bPipe := net.Pipe()
	config := func() *Config {
		return &Config{
			Profile: ProtectionProfileAes128CmHmacSha1_80,
			Keys: SessionKeys{
				LocalMasterKey:   testMasterKey,
				LocalMasterSalt:  testMasterSalt,
				RemoteMasterKey:  testMasterKey,
				RemoteMasterSalt: testMasterSalt,
			},
		}
	}

	aSession, err := NewSessionSRTCP(aPipe, config())
	require.NoError(t, err)

	bSession, err := NewSessionSRTCP(bPipe, config())
	require.NoError(t, err)

	return aSession, bSession
}

func TestSessionSRTCPValidation(t *testing.T) {
	_, err := NewSessionSRTCP(nil, &Config{})
	require.ErrorIs(t, err, errNoConn)

	aPipe, _ := net.Pipe()
	_, err = NewSessionSRTCP(aPipe, nil)
	require.ErrorIs(t, err, errNoConfig)
}

func TestSessionSRTCPAccept(t *testing.T) {
	defer test.TimeOut(time.Second * 10).Stop()

	const ssrc = 5000
	aSession, bSession := buildSessionSRTCPPair(t)

	raw := testRTCPPacket(t, ssrc)

	aWriteStream, err := aSession.OpenWriteStream()
	require.NoError(t, err)

	go func() {
		_, _ = aWriteStream.Write(raw)
	}()

	bReadStream, readSSRC, err := bSession.AcceptStream()
	require.NoError(t, err)
	require.Equal(t, uint32(ssrc), readSSRC)

	buf := make([]byte, 1500)
	n, _, err := bReadStream.ReadRTCP(buf)
	require.NoError(t, err)
	require.Equal(t, raw, buf[:n])

	require.NoError(t, aSession.Close())
	require.NoError(t, bSession.Close())
}

func TestSessionSRTCPOpenReadStream(t *testing.T) {
	defer test.TimeOut(time.Second * 10).Stop()

	const ssrc = 5000
	aSession, bSession := buildSessionSRTCPPair(t)

	bReadStream, err := bSession.OpenReadStream(ssrc)
	require.NoError(t, err)

	aWriteStream, err := aSession.OpenWriteStream()
	require.NoError(t, err)

	raw := testRTCPPacket(t, ssrc)
	go func() {
		_, _ = aWriteStream.Write(raw)
	}()

	buf := make([]byte, 1500)
	n, err := bReadStream.Read(buf)
	require.NoError(t, err)
	require.Equal(t, raw, buf[:n])

	require.NoError(t, bReadStream.Close())
	require.NoError(t, aSession.Close())
	require.NoError(t, bSession.Close())
}
