// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package srtp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	testMasterKey = []byte{
		0x0d, 0xcd, 0x21, 0x3e, 0x4c, 0xbc, 0xf2, 0x8f,
		0x01, 0x7f, 0x69, 0x94, 0x40, 0x1e, 0x28, 0x89,
	}
	testMasterSalt = []byte{
		0x62, 0x77, 0x60, 0x38, 0xc0, 0x6d, 0xc9, 0x41,
		0x9f, 0x6d, 0xd9, 0x43, 0x3e, 0x7c,
	}
)

func testKeys(t *testing.T, profile ProtectionProfile) (masterKey, masterSalt []byte) {
	t.Helper()

	keyLen, err := profile.KeyLen()
	require.NoError(t, err)
	saltLen, err := profile.SaltLen()
	require.NoError(t, err)

	return testMasterKey[:keyLen], testMasterSalt[:saltLen]
}

func TestContextValidation(t *testing.T) {
	_, err := CreateContext(testMasterKey[:10], testMasterSalt, ProtectionProfileAes128CmHmacSha1_80)
	require.ErrorIs(t, err, errShortSrtpMasterKey)

	_, err = CreateContext(testMasterKey, testMasterSalt[:6], ProtectionProfileAes128CmHmacSha1_80)
	require.ErrorIs(t, err, errShortSrtpMasterSalt)

	_, err = CreateContext(testMasterKey, testMasterSalt, ProtectionProfile(0x1234))
	require.ErrorIs(t, err, errNoSuchSRTPProfile)
}

func TestContextROC(t *testing.T) {
	c, err := CreateContext(testMasterKey, testMasterSalt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)

	_, ok := c.ROC(123)
	require.False(t, ok)

	c.SetROC(123, 100)
	roc, ok := c.ROC(123)
	require.True(t, ok)
	require.Equal(t, uint32(100), roc)
}

func TestContextIndex(t *testing.T) {
	c, err := CreateContext(testMasterKey, testMasterSalt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)

	_, ok := c.Index(123)
	require.False(t, ok)

	c.SetIndex(123, 100)
	index, ok := c.Index(123)
	require.True(t, ok)
	require.Equal(t, uint32(100), index)

	// The SRTCP index is 31 bits and must wrap.
	c.SetIndex(123, maxSRTCPIndex+1)
	index, ok = c.Index(123)
	require.True(t, ok)
	require.Equal(t, uint32(0), index)
}

func TestProtectionProfileLengths(t *testing.T) {
	for _, test := range []struct {
		profile                                              ProtectionProfile
		keyLen, saltLen, rtpTag, rtcpTag, aeadTag, authKeyLen int
	}{
		{ProtectionProfileAes128CmHmacSha1_80, 16, 14, 10, 10, 0, 20},
		{ProtectionProfileAes128CmHmacSha1_32, 16, 14, 4, 10, 0, 20},
		{ProtectionProfileAeadAes128Gcm, 16, 12, 0, 0, 16, 0},
	} {
		keyLen, err := test.profile.KeyLen()
		require.NoError(t, err)
		require.Equal(t, test.keyLen, keyLen, "profile: %s", test.profile)

		saltLen, err := test.profile.SaltLen()
		require.NoError(t, err)
		require.Equal(t, test.saltLen, saltLen, "profile: %s", test.profile)

		rtpTag, err := test.profile.AuthTagRTPLen()
		require.NoError(t, err)
		require.Equal(t, test.rtpTag, rtpTag, "profile: %s", test.profile)

		rtcpTag, err := test.profile.AuthTagRTCPLen()
		require.NoError(t, err)
		require.Equal(t, test.rtcpTag, rtcpTag, "profile: %s", test.profile)

		aeadTag, err := test.profile.AEADAuthTagLen()
		require.NoError(t, err)
		require.Equal(t, test.aeadTag, aeadTag, "profile: %s", test.profile)

		authKeyLen, err := test.profile.AuthKeyLen()
		require.NoError(t, err)
		require.Equal(t, test.authKeyLen, authKeyLen, "profile: %s", test.profile)
	}

	unknown := ProtectionProfile(0x1234)
	_, err := unknown.KeyLen()
	require.ErrorIs(t, err, errNoSuchSRTPProfile)
	require.Contains(t, unknown.String(), "Unknown")
}
