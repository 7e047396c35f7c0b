// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/amberlink/rtcnet/internal/mux"
	"github.com/amberlink/rtcnet/srtp"
	"github.com/pion/dtls/v3"
	"github.com/pion/dtls/v3/pkg/crypto/fingerprint"
	dtlsnet "github.com/pion/dtls/v3/pkg/net"
	"github.com/pion/logging"
)

// DTLSTransport allows an application access to information about the DTLS
// transport over which SCTP packets are sent and received, as well as the
// SRTP/SRTCP sessions keyed from the handshake.
type DTLSTransport struct {
	lock sync.RWMutex

	iceTransport          *ICETransport
	certificates          []Certificate
	remoteParameters      DTLSParameters
	remoteCertificate     []byte
	state                 DTLSTransportState
	srtpProtectionProfile srtp.ProtectionProfile

	onStateChangeHandler func(DTLSTransportState)

	conn      *dtls.Conn
	connState *dtls.State

	srtpSession   *srtp.SessionSRTP
	srtcpSession  *srtp.SessionSRTCP
	srtpEndpoint  *mux.Endpoint
	srtcpEndpoint *mux.Endpoint

	api *API
	log logging.LeveledLogger
}

// NewDTLSTransport creates a new DTLSTransport. If no certificates are
// provided a single self-signed ECDSA P-256 certificate is generated.
func (api *API) NewDTLSTransport(transport *ICETransport, certificates []Certificate) (*DTLSTransport, error) {
	t := &DTLSTransport{
		iceTransport: transport,
		state:        DTLSTransportStateNew,
		api:          api,
		log:          transport.loggerFactory.NewLogger("ortc"),
	}

	if len(certificates) > 0 {
		now := time.Now()
		for _, x509Cert := range certificates {
			if !x509Cert.Expires().IsZero() && now.After(x509Cert.Expires()) {
				return nil, ErrCertificateExpired
			}
			t.certificates = append(t.certificates, x509Cert)
		}
	} else {
		certificate, err := GenerateCertificate(nil)
		if err != nil {
			return nil, err
		}
		t.certificates = []Certificate{*certificate}
	}

	return t, nil
}

// ICETransport returns the currently-configured ICETransport
func (t *DTLSTransport) ICETransport() *ICETransport {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.iceTransport
}

// GetLocalParameters returns the DTLS parameters of the local DTLSTransport
// upon construction.
func (t *DTLSTransport) GetLocalParameters() (DTLSParameters, error) {
	fingerprints := []DTLSFingerprint{}

	for _, c := range t.certificates {
		prints, err := c.GetFingerprints()
		if err != nil {
			return DTLSParameters{}, err
		}
		fingerprints = append(fingerprints, prints...)
	}

	return DTLSParameters{
		Role:         DTLSRoleAuto, // always returns the default role
		Fingerprints: fingerprints,
	}, nil
}

// GetRemoteCertificate returns the certificate chain in use by the remote
// side, returns an empty list prior to selection of the remote certificate.
func (t *DTLSTransport) GetRemoteCertificate() []byte {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.remoteCertificate
}

// State returns the current DTLS transport state.
func (t *DTLSTransport) State() DTLSTransportState {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.state
}

// OnStateChange sets a handler that is fired when the DTLS transport state
// changes.
func (t *DTLSTransport) OnStateChange(f func(DTLSTransportState)) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.onStateChangeHandler = f
}

// onStateChange requires the caller holds the lock.
func (t *DTLSTransport) onStateChange(state DTLSTransportState) {
	t.state = state
	if handler := t.onStateChangeHandler; handler != nil {
		handler(state)
	}
}

func (t *DTLSTransport) role() DTLSRole {
	// If the remote has an explicit role, run the inverse.
	switch t.remoteParameters.Role {
	case DTLSRoleClient:
		return DTLSRoleServer
	case DTLSRoleServer:
		return DTLSRoleClient
	default:
	}

	// If the application overrode the answering role, honor it.
	switch t.api.settingEngine.dtls.answeringRole {
	case DTLSRoleClient:
		return DTLSRoleClient
	case DTLSRoleServer:
		return DTLSRoleServer
	default:
	}

	// The controlled ICE role acts as the DTLS client.
	if t.iceTransport.Role() == ICERoleControlling {
		return DTLSRoleServer
	}
	return DTLSRoleClient
}

// Start DTLS transport negotiation with the parameters of the remote DTLS
// transport.
func (t *DTLSTransport) Start(remoteParameters DTLSParameters) error {
	// Take the lock only while preparing. The handshake itself is blocking
	// and must run unlocked so that Stop and the ICE callbacks stay live.
	prepareTransport := func() (DTLSRole, *mux.Endpoint, *dtls.Config, error) {
		t.lock.Lock()
		defer t.lock.Unlock()

		if t.state != DTLSTransportStateNew {
			return DTLSRole(0), nil, nil, errInvalidDTLSStart
		}
		if err := t.iceTransport.ensureConn(); err != nil {
			return DTLSRole(0), nil, nil, err
		}

		dtlsEndpoint := t.iceTransport.newEndpoint(mux.MatchDTLS)
		t.srtpEndpoint = t.iceTransport.newEndpoint(mux.MatchSRTP)
		t.srtcpEndpoint = t.iceTransport.newEndpoint(mux.MatchSRTCP)
		t.remoteParameters = remoteParameters

		cert := t.certificates[0]
		t.onStateChange(DTLSTransportStateConnecting)

		return t.role(), dtlsEndpoint, &dtls.Config{
			Certificates: []tls.Certificate{
				{
					Certificate: [][]byte{cert.x509Cert.Raw},
					PrivateKey:  cert.privateKey,
				},
			},
			SRTPProtectionProfiles: []dtls.SRTPProtectionProfile{
				dtls.SRTP_AEAD_AES_128_GCM,
				dtls.SRTP_AES128_CM_HMAC_SHA1_80,
			},
			ClientAuth:         dtls.RequireAnyClientCert,
			InsecureSkipVerify: true,
			LoggerFactory:      t.api.settingEngine.LoggerFactory,
		}, nil
	}

	role, dtlsEndpoint, dtlsConfig, err := prepareTransport()
	if err != nil {
		return err
	}

	// Connect as DTLS Client/Server, function is blocking and we
	// must not hold the DTLSTransport lock
	var dtlsConn *dtls.Conn
	packetConn := dtlsnet.PacketConnFromConn(dtlsEndpoint)
	if role == DTLSRoleClient {
		dtlsConn, err = dtls.Client(packetConn, dtlsEndpoint.RemoteAddr(), dtlsConfig)
	} else {
		dtlsConn, err = dtls.Server(packetConn, dtlsEndpoint.RemoteAddr(), dtlsConfig)
	}
	if err == nil {
		// dtls/v3 constructs the conn without handshaking; drive the
		// blocking handshake here.
		err = dtlsConn.Handshake()
	}

	// Re-take the lock, nothing beyond here is blocking
	t.lock.Lock()
	defer t.lock.Unlock()

	if err != nil {
		t.onStateChange(DTLSTransportStateFailed)
		return err
	}

	srtpProfile, ok := dtlsConn.SelectedSRTPProtectionProfile()
	if !ok {
		t.onStateChange(DTLSTransportStateFailed)
		return ErrNoSRTPProtectionProfile
	}

	switch srtpProfile {
	case dtls.SRTP_AEAD_AES_128_GCM:
		t.srtpProtectionProfile = srtp.ProtectionProfileAeadAes128Gcm
	case dtls.SRTP_AES128_CM_HMAC_SHA1_80:
		t.srtpProtectionProfile = srtp.ProtectionProfileAes128CmHmacSha1_80
	default:
		t.onStateChange(DTLSTransportStateFailed)
		return ErrNoSRTPProtectionProfile
	}

	connState, ok := dtlsConn.ConnectionState()
	if !ok {
		t.onStateChange(DTLSTransportStateFailed)
		return errNoRemoteCertificate
	}

	// Check the fingerprint if a certificate was exchanged
	remoteCerts := connState.PeerCertificates
	if len(remoteCerts) == 0 {
		t.onStateChange(DTLSTransportStateFailed)
		return errNoRemoteCertificate
	}
	t.remoteCertificate = remoteCerts[0]

	if !t.api.settingEngine.dtls.disableFingerprintVerification {
		parsedRemoteCert, parseErr := x509.ParseCertificate(t.remoteCertificate)
		if parseErr != nil {
			t.onStateChange(DTLSTransportStateFailed)
			return parseErr
		}

		if err = t.validateFingerPrint(parsedRemoteCert); err != nil {
			t.onStateChange(DTLSTransportStateFailed)
			return err
		}
	}

	t.conn = dtlsConn
	t.connState = &connState
	t.onStateChange(DTLSTransportStateConnected)

	return nil
}

// Stop stops and closes the DTLSTransport object.
func (t *DTLSTransport) Stop() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	// Try closing everything and collect the errors
	var closeErrs []error

	if t.srtpSession != nil {
		if err := t.srtpSession.Close(); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}

	if t.srtcpSession != nil {
		if err := t.srtcpSession.Close(); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}

	if t.conn != nil {
		// dtls connection may be closed on sctp close.
		if err := t.conn.Close(); err != nil &&
			!errors.Is(err, dtls.ErrConnClosed) &&
			!strings.Contains(err.Error(), "use of closed network connection") {
			closeErrs = append(closeErrs, err)
		}
	}

	t.onStateChange(DTLSTransportStateClosed)

	return flattenErrs(closeErrs)
}

func (t *DTLSTransport) validateFingerPrint(remoteCert *x509.Certificate) error {
	for _, fp := range t.remoteParameters.Fingerprints {
		hashAlgo, err := fingerprint.HashFromString(fp.Algorithm)
		if err != nil {
			return err
		}

		remoteValue, err := fingerprint.Fingerprint(remoteCert, hashAlgo)
		if err != nil {
			return err
		}

		if strings.EqualFold(remoteValue, fp.Value) {
			return nil
		}
	}

	return errNoMatchingFingerprint
}

// startSRTP keys the SRTP and SRTCP sessions from the completed DTLS
// handshake. The caller must not hold the lock.
func (t *DTLSTransport) startSRTP() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.srtpSession != nil && t.srtcpSession != nil {
		return nil
	}
	if t.connState == nil {
		return errDTLSNotEstablished
	}

	srtpConfig := &srtp.Config{
		Profile:       t.srtpProtectionProfile,
		LoggerFactory: t.api.settingEngine.LoggerFactory,
	}

	err := srtpConfig.ExtractSessionKeysFromDTLS(t.connState, t.role() == DTLSRoleClient)
	if err != nil {
		return fmt.Errorf("failed to extract srtp session keys: %w", err)
	}

	srtpSession, err := srtp.NewSessionSRTP(t.srtpEndpoint, srtpConfig)
	if err != nil {
		return fmt.Errorf("failed to start srtp: %w", err)
	}

	srtcpSession, err := srtp.NewSessionSRTCP(t.srtcpEndpoint, srtpConfig)
	if err != nil {
		return fmt.Errorf("failed to start srtcp: %w", err)
	}

	t.srtpSession = srtpSession
	t.srtcpSession = srtcpSession

	return nil
}

// GetSRTPSession returns the SRTP session keyed from the DTLS handshake,
// starting it on first use.
func (t *DTLSTransport) GetSRTPSession() (*srtp.SessionSRTP, error) {
	t.lock.RLock()
	if t.srtpSession != nil {
		defer t.lock.RUnlock()
		return t.srtpSession, nil
	}
	t.lock.RUnlock()

	if err := t.startSRTP(); err != nil {
		return nil, err
	}

	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.srtpSession, nil
}

// GetSRTCPSession returns the SRTCP session keyed from the DTLS handshake,
// starting it on first use.
func (t *DTLSTransport) GetSRTCPSession() (*srtp.SessionSRTCP, error) {
	t.lock.RLock()
	if t.srtcpSession != nil {
		defer t.lock.RUnlock()
		return t.srtcpSession, nil
	}
	t.lock.RUnlock()

	if err := t.startSRTP(); err != nil {
		return nil, err
	}

	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.srtcpSession, nil
}
