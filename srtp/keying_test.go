// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package srtp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testKeyingMaterialExporter struct {
	label    string
	material []byte
}

func (e *testKeyingMaterialExporter) ExportKeyingMaterial(label string, _ []byte, length int) ([]byte, error) {
	e.label = label

	e.material = make([]byte, length)
	for i := range e.material {
		e.material[i] = byte(i)
	}
	return e.material, nil
}

func TestExtractSessionKeysFromDTLS(t *testing.T) {
	for _, isClient := range []bool{true, false} {
		config := &Config{Profile: ProtectionProfileAes128CmHmacSha1_80}
		exporter := &testKeyingMaterialExporter{}

		err := config.ExtractSessionKeysFromDTLS(exporter, isClient)
		require.NoError(t, err)
		require.Equal(t, labelExtractorDtlsSrtp, exporter.label)

		keyLen, err := config.Profile.KeyLen()
		require.NoError(t, err)
		saltLen, err := config.Profile.SaltLen()
		require.NoError(t, err)

		clientKey := exporter.material[:keyLen]
		serverKey := exporter.material[keyLen : 2*keyLen]
		clientSalt := exporter.material[2*keyLen : 2*keyLen+saltLen]
		serverSalt := exporter.material[2*keyLen+saltLen:]

		if isClient {
			require.Equal(t, clientKey, config.Keys.LocalMasterKey)
			require.Equal(t, clientSalt, config.Keys.LocalMasterSalt)
			require.Equal(t, serverKey, config.Keys.RemoteMasterKey)
			require.Equal(t, serverSalt, config.Keys.RemoteMasterSalt)
		} else {
			require.Equal(t, serverKey, config.Keys.LocalMasterKey)
			require.Equal(t, serverSalt, config.Keys.LocalMasterSalt)
			require.Equal(t, clientKey, config.Keys.RemoteMasterKey)
			require.Equal(t, clientSalt, config.Keys.RemoteMasterSalt)
		}
	}
}
