// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package srtp

import (
	"testing"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/require"
)

func testRTCPPacket(t *testing.T, ssrc uint32) []byte {
	t.Helper()

	raw, err := (&rtcp.PictureLossIndication{
		SenderSSRC: ssrc,
		MediaSSRC:  ssrc,
	}).Marshal()
	require.NoError(t, err)
	return raw
}

func rtcpOverhead(t *testing.T, profile ProtectionProfile) int {
	t.Helper()

	rtcpTag, err := profile.AuthTagRTCPLen()
	require.NoError(t, err)
	aeadTag, err := profile.AEADAuthTagLen()
	require.NoError(t, err)
	return rtcpTag + aeadTag + srtcpIndexSize
}

func TestRTCPLifecycle(t *testing.T) {
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

			raw := testRTCPPacket(t, 0xcafebabe)

			encrypted, err := encCtx.EncryptRTCP(nil, raw, nil)
			require.NoError(t, err)
			require.Len(t, encrypted, len(raw)+rtcpOverhead(t, profile))

			decrypted, err := decCtx.DecryptRTCP(nil, encrypted, nil)
			require.NoError(t, err)
			require.Equal(t, raw, decrypted)

			// Each encrypted packet consumes one SRTCP index.
			index, ok := encCtx.Index(0xcafebabe)
			require.True(t, ok)
			require.Equal(t, uint32(1), index)
		})
	}
}

func TestRTCPAuthTagMismatch(t *testing.T) {
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

			encrypted, err := encCtx.EncryptRTCP(nil, testRTCPPacket(t, 0xcafebabe), nil)
			require.NoError(t, err)

			// Tamper with the encrypted payload, not the ESRTCP word.
			encrypted[9] ^= 0xff
			_, err = decCtx.DecryptRTCP(nil, encrypted, nil)
			require.Error(t, err)
		})
	}
}

func TestRTCPReplayProtection(t *testing.T) {
	masterKey, masterSalt := testKeys(t, ProtectionProfileAes128CmHmacSha1_80)

	encCtx, err := CreateContext(masterKey, masterSalt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)
	decCtx, err := CreateContext(masterKey, masterSalt, ProtectionProfileAes128CmHmacSha1_80, SRTCPReplayProtection(64))
	require.NoError(t, err)

	encrypted, err := encCtx.EncryptRTCP(nil, testRTCPPacket(t, 0xcafebabe), nil)
	require.NoError(t, err)

	_, err = decCtx.DecryptRTCP(nil, encrypted, nil)
	require.NoError(t, err)

	_, err = decCtx.DecryptRTCP(nil, encrypted, nil)
	require.ErrorIs(t, err, errDuplicated)
}

func TestRTCPTooShort(t *testing.T) {
	masterKey, masterSalt := testKeys(t, ProtectionProfileAes128CmHmacSha1_80)

	decCtx, err := CreateContext(masterKey, masterSalt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)

	_, err = decCtx.DecryptRTCP(nil, testRTCPPacket(t, 0xcafebabe), nil)
	require.ErrorIs(t, err, errTooShortRTCP)
}
