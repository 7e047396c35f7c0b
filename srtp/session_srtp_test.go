// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package srtp

import (
	"net"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/transport/v3/test"
	"github.com/stretchr/testify/require"
)

func buildSessionSRTPPair(t *testing.T) (*SessionSRTP, *SessionSRTP) {
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

	aSession, err := NewSessionSRTP(aPipe, config())
	require.NoError(t, err)

	bSession, err := NewSessionSRTP(bPipe, config())
	require.NoError(t, err)

	return aSession, bSession
}

func TestSessionSRTPValidation(t *testing.T) {
	_, err := NewSessionSRTP(nil, &Config{})
	require.ErrorIs(t, err, errNoConn)

	aPipe, _ := net.Pipe()
	_, err = NewSessionSRTP(aPipe, nil)
	require.ErrorIs(t, err, errNoConfig)
}

func TestSessionSRTPAccept(t *testing.T) {
	defer test.TimeOut(time.Second * 10).Stop()

	const ssrc = 5000
	aSession, bSession := buildSessionSRTPPair(t)

	raw := testRTPPacket(t, 5000, ssrc)

	aWriteStream, err := aSession.OpenWriteStream()
	require.NoError(t, err)

	go func() {
		_, _ = aWriteStream.Write(raw)
	}()

	bReadStream, readSSRC, err := bSession.AcceptStream()
	require.NoError(t, err)
	require.Equal(t, uint32(ssrc), readSSRC)
	require.Equal(t, uint32(ssrc), bReadStream.GetSSRC())

	buf := make([]byte, 1500)
	n, header, err := bReadStream.ReadRTP(buf)
	require.NoError(t, err)
	require.Equal(t, raw, buf[:n])
	require.Equal(t, uint16(5000), header.SequenceNumber)

	require.NoError(t, aSession.Close())
	require.NoError(t, bSession.Close())
}

func TestSessionSRTPOpenReadStream(t *testing.T) {
	defer test.TimeOut(time.Second * 10).Stop()

	const ssrc = 5000
	aSession, bSession := buildSessionSRTPPair(t)

	bReadStream, err := bSession.OpenReadStream(ssrc)
	require.NoError(t, err)

	aWriteStream, err := aSession.OpenWriteStream()
	require.NoError(t, err)

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	go func() {
		_, _ = aWriteStream.WriteRTP(&rtp.Header{
			Version:        2,
			SequenceNumber: 100,
			SSRC:           ssrc,
		}, payload)
	}()

	buf := make([]byte, 1500)
	n, header, err := bReadStream.ReadRTP(buf)
	require.NoError(t, err)
	require.Equal(t, uint16(100), header.SequenceNumber)
	require.Equal(t, payload, buf[n-len(payload):n])

	require.NoError(t, bReadStream.Close())
	require.NoError(t, aSession.Close())
	require.NoError(t, bSession.Close())
}
