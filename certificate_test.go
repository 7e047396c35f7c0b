// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateCertificate(t *testing.T) {
	cert, err := GenerateCertificate(nil)
	require.NoError(t, err)
	require.NotNil(t, cert.x509Cert)
	require.False(t, cert.Expires().IsZero())
}

func TestCertificateEquals(t *testing.T) {
	sk1, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	sk2, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	cert1, err := GenerateCertificate(sk1)
	require.NoError(t, err)
	cert2, err := GenerateCertificate(sk2)
	require.NoError(t, err)

	require.True(t, cert1.Equals(*cert1))
	require.False(t, cert1.Equals(*cert2))
}

func TestCertificateGetFingerprints(t *testing.T) {
	cert, err := GenerateCertificate(nil)
	require.NoError(t, err)

	fingerprints, err := cert.GetFingerprints()
	require.NoError(t, err)
	require.Len(t, fingerprints, 1)
	require.Equal(t, "sha-256", fingerprints[0].Algorithm)

	// Lowercase colon separated hex, 32 octets for SHA-256.
	require.Regexp(t, regexp.MustCompile(`^([0-9a-f]{2}:){31}[0-9a-f]{2}$`), fingerprints[0].Value)
}

func TestCertificatePEMRoundTrip(t *testing.T) {
	cert, err := GenerateCertificate(nil)
	require.NoError(t, err)

	pems, err := cert.PEM()
	require.NoError(t, err)

	parsed, err := CertificateFromPEM(pems)
	require.NoError(t, err)
	require.True(t, cert.Equals(*parsed))

	_, err = CertificateFromPEM("not pem at all")
	require.ErrorIs(t, err, errCertificatePEMFormat)
}

func TestNewCertificateBadKeyType(t *testing.T) {
	_, err := GenerateCertificate(struct{}{})
	require.ErrorIs(t, err, ErrPrivateKeyType)
}
