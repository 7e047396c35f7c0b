// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

import "errors"

var (
	// ErrCertificateExpired indicates that an x509 certificate has expired.
	ErrCertificateExpired = errors.New("x509Cert expired")

	// ErrNoTurnCredentials indicates that a TURN server URL was provided
	// without the required credentials.
	ErrNoTurnCredentials = errors.New("turn server credentials required")

	// ErrTurnCredentials indicates that the provided TURN credentials are
	// partial or malformed.
	ErrTurnCredentials = errors.New("invalid turn server credentials")

	// ErrPrivateKeyType indicates that a key is not a supported private
	// key type.
	ErrPrivateKeyType = errors.New("private key type not supported")

	// ErrNoSRTPProtectionProfile indicates that the DTLS handshake completed
	// without negotiating an SRTP protection profile.
	ErrNoSRTPProtectionProfile = errors.New("DTLS handshake completed with no SRTP protection profile negotiated")

	errICEConnectionNotStarted = errors.New("the ICE connection is not started")
	errICERoleUnknown          = errors.New("unknown ICE Role")
	errICEProtocolUnknown      = errors.New("unknown protocol")
	errICECandidateTypeUnknown = errors.New("unknown candidate type")
	errNetworkTypeUnknown      = errors.New("unknown network type")

	errInvalidDTLSStart      = errors.New("attempted to start DTLSTransport that is not in new state")
	errNoRemoteCertificate   = errors.New("peer didn't provide certificate via DTLS")
	errNoMatchingFingerprint = errors.New("no matching fingerprint")
	errDTLSNotEstablished    = errors.New("DTLS not established")

	errSCTPNotStarted = errors.New("the SCTP transport is not started")

	errCertificatePEMFormat = errors.New("bad certificate PEM format")

	errSettingEngineSetAnsweringDTLSRole = errors.New("SetAnsweringDTLSRole must be DTLSRoleClient or DTLSRoleServer")
)

func flattenErrs(errs []error) error {
	filtered := []error{}
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}

	if len(filtered) == 0 {
		return nil
	}
	return errors.Join(filtered...)
}
