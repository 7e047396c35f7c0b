// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package srtp

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func testRTPPacket(t *testing.T, seq uint16, ssrc uint32) []byte {
	t.Helper()

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    96,
			SequenceNumber: seq,
			Timestamp:      54321,
			SSRC:           ssrc,
		},
		Payload: []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07},
	}
	raw, err := pkt.Marshal()
	require.NoError(t, err)
	return raw
}

func rtpOverhead(t *testing.T, profile ProtectionProfile) int {
	t.Helper()

	rtpTag, err := profile.AuthTagRTPLen()
	require.NoError(t, err)
	aeadTag, err := profile.AEADAuthTagLen()
	require.NoError(t, err)
	return rtpTag + aeadTag
}

func TestRTPLifecycle(t *testing.T) {
	for _, profile := range []ProtectionProfile{
		ProtectionProfileAes128CmHmacSha1_80,
		ProtectionProfileAes128CmHmacSha1_32,
		ProtectionProfileAeadAes128Gcm,
	} {
		profile := profile
		t.Run(profile.String(), func(t *testing.T) {
			masterKey, masterSalt := testKeys(t, profile)

			encCtx, err := CreateContext(masterKey, masterSalt, profile)
			require.NoError(t, err)
			decCtx, err := CreateContext(masterKey, masterSalt, profile)
			require.NoError(t, err)

			raw := testRTPPacket(t, 5000, 0xcafebabe)

			encrypted, err := encCtx.EncryptRTP(nil, raw, nil)
			require.NoError(t, err)
			require.Len(t, encrypted, len(raw)+rtpOverhead(t, profile))

			decrypted, err := decCtx.DecryptRTP(nil, encrypted, nil)
			require.NoError(t, err)
			require.Equal(t, raw, decrypted)
		})
	}
}

func TestRTPAuthTagMismatch(t *testing.T) {
	for _, profile := range []ProtectionProfile{
		ProtectionProfileAes128CmHmacSha1_80,
		ProtectionProfileAeadAes128Gcm,
	} {
		profile := profile
		t.Run(profile.String(), func(t *testing.T) {
			masterKey, masterSalt := testKeys(t, profile)

			encCtx, err := CreateContext(masterKey, masterSalt, profile)
			require.NoError(t, err)
			decCtx, err := CreateContext(masterKey, masterSalt, profile)
			require.NoError(t, err)

			encrypted, err := encCtx.EncryptRTP(nil, testRTPPacket(t, 5000, 0xcafebabe), nil)
			require.NoError(t, err)

			encrypted[len(encrypted)-1] ^= 0xff
			_, err = decCtx.DecryptRTP(nil, encrypted, nil)
			require.Error(t, err)
		})
	}
}

func TestRTPReplayProtection(t *testing.T) {
	masterKey, masterSalt := testKeys(t, ProtectionProfileAes128CmHmacSha1_80)

	encCtx, err := CreateContext(masterKey, masterSalt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)
	decCtx, err := CreateContext(masterKey, masterSalt, ProtectionProfileAes128CmHmacSha1_80, SRTPReplayProtection(64))
	require.NoError(t, err)

	encrypted, err := encCtx.EncryptRTP(nil, testRTPPacket(t, 5000, 0xcafebabe), nil)
	require.NoError(t, err)

	_, err = decCtx.DecryptRTP(nil, encrypted, nil)
	require.NoError(t, err)

	_, err = decCtx.DecryptRTP(nil, encrypted, nil)
	require.ErrorIs(t, err, errDuplicated)
}

func TestRolloverCount(t *testing.T) {
	const ssrc = 0xcafebabe
	masterKey, masterSalt := testKeys(t, ProtectionProfileAes128CmHmacSha1_80)

	encCtx, err := CreateContext(masterKey, masterSalt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)
	decCtx, err := CreateContext(masterKey, masterSalt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)

	// Crossing the 16-bit sequence number boundary must increment the ROC on both sides.
	for _, seq := range []uint16{65534, 65535, 0, 1} {
		raw := testRTPPacket(t, seq, ssrc)

		encrypted, encErr := encCtx.EncryptRTP(nil, raw, nil)
		require.NoError(t, encErr)

		decrypted, decErr := decCtx.DecryptRTP(nil, encrypted, nil)
		require.NoError(t, decErr)
		require.Equal(t, raw, decrypted)
	}

	encRoc, ok := encCtx.ROC(ssrc)
	require.True(t, ok)
	require.Equal(t, uint32(1), encRoc)

	decRoc, ok := decCtx.ROC(ssrc)
	require.True(t, ok)
	require.Equal(t, uint32(1), decRoc)
}

func TestSetROCOutOfBandKeying(t *testing.T) {
	const ssrc = 0xcafebabe
	masterKey, masterSalt := testKeys(t, ProtectionProfileAes128CmHmacSha1_80)

	encCtx, err := CreateContext(masterKey, masterSalt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)
	encCtx.SetROC(ssrc, 3)

	encrypted, err := encCtx.EncryptRTP(nil, testRTPPacket(t, 100, ssrc), nil)
	require.NoError(t, err)

	// A receiver joining mid-stream decodes only after learning the ROC.
	decCtx, err := CreateContext(masterKey, masterSalt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)
	_, err = decCtx.DecryptRTP(nil, encrypted, nil)
	require.ErrorIs(t, err, errFailedToVerifyAuthTag)

	decCtx, err = CreateContext(masterKey, masterSalt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)
	decCtx.SetROC(ssrc, 3)
	_, err = decCtx.DecryptRTP(nil, encrypted, nil)
	require.NoError(t, err)
}

func TestRTPTooShort(t *testing.T) {
	masterKey, masterSalt := testKeys(t, ProtectionProfileAes128CmHmacSha1_80)

	decCtx, err := CreateContext(masterKey, masterSalt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)

	// Valid header but no room for the auth tag.
	raw := testRTPPacket(t, 5000, 0xcafebabe)
	_, err = decCtx.DecryptRTP(nil, raw[:13], nil)
	require.Error(t, err)
}
