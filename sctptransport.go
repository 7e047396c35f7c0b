// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

import (
	"sync"

	"github.com/amberlink/rtcnet/sctp"
	"github.com/pion/logging"
)

// sctpMaxMessageSize is the default maximum size of data that can be
// passed to a stream's write methods in one message.
const sctpMaxMessageSize uint32 = 65536

// SCTPTransport provides details about the SCTP transport and carries the
// association the streams run on.
type SCTPTransport struct {
	lock sync.RWMutex

	dtlsTransport *DTLSTransport

	state     SCTPTransportState
	isStarted bool

	maxMessageSize uint32

	onErrorHandler func(error)

	association *sctp.Association

	api *API
	log logging.LeveledLogger
}

// NewSCTPTransport creates an SCTPTransport on top of a DTLSTransport.
func (api *API) NewSCTPTransport(dtls *DTLSTransport) *SCTPTransport {
	return &SCTPTransport{
		dtlsTransport:  dtls,
		state:          SCTPTransportStateConnecting,
		maxMessageSize: sctpMaxMessageSize,
		api:            api,
		log:            dtls.log,
	}
}

// Transport returns the DTLSTransport instance the SCTPTransport is sending
// over.
func (t *SCTPTransport) Transport() *DTLSTransport {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.dtlsTransport
}

// GetCapabilities returns the SCTPCapabilities of the SCTPTransport.
func (t *SCTPTransport) GetCapabilities() SCTPCapabilities {
	return SCTPCapabilities{
		MaxMessageSize: sctpMaxMessageSize,
	}
}

// Start the SCTPTransport. Since both sides initiate simultaneously, the
// association is always brought up in the active role; INIT collisions are
// resolved by the association itself.
func (t *SCTPTransport) Start(remoteCaps SCTPCapabilities) error {
	if t.isTransportStarted() {
		return nil
	}

	dtlsTransport := t.Transport()
	if dtlsTransport == nil || dtlsTransport.conn == nil {
		return errDTLSNotEstablished
	}

	maxMessageSize := sctpMaxMessageSize
	if remoteCaps.MaxMessageSize != 0 && remoteCaps.MaxMessageSize < maxMessageSize {
		maxMessageSize = remoteCaps.MaxMessageSize
	}

	loggerFactory := t.api.settingEngine.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	sctpAssociation, err := sctp.Client(sctp.Config{
		NetConn:              dtlsTransport.conn,
		MaxReceiveBufferSize: t.api.settingEngine.sctp.maxReceiveBufferSize,
		MaxMessageSize:       maxMessageSize,
		LoggerFactory:        loggerFactory,
	})
	if err != nil {
		t.lock.Lock()
		t.state = SCTPTransportStateClosed
		t.lock.Unlock()
		return err
	}

	t.lock.Lock()
	t.association = sctpAssociation
	t.maxMessageSize = maxMessageSize
	t.isStarted = true
	t.state = SCTPTransportStateConnected
	t.lock.Unlock()

	return nil
}

// Stop stops the SCTPTransport
func (t *SCTPTransport) Stop() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.association == nil {
		return nil
	}

	err := t.association.Close()
	t.association = nil
	t.state = SCTPTransportStateClosed

	return err
}

// OpenStream opens an SCTP stream with the given identifier and default
// payload protocol identifier.
func (t *SCTPTransport) OpenStream(identifier uint16, defaultPayloadType sctp.PayloadProtocolIdentifier) (*sctp.Stream, error) {
	association, err := t.getAssociation()
	if err != nil {
		return nil, err
	}

	return association.OpenStream(identifier, defaultPayloadType)
}

// AcceptStream blocks until the remote peer opens a new stream. Errors are
// also reported through the OnError handler, after which no further streams
// will arrive.
func (t *SCTPTransport) AcceptStream() (*sctp.Stream, error) {
	association, err := t.getAssociation()
	if err != nil {
		return nil, err
	}

	stream, err := association.AcceptStream()
	if err != nil {
		t.log.Errorf("Failed to accept stream: %v", err)
		t.lock.Lock()
		t.state = SCTPTransportStateClosed
		t.lock.Unlock()
		t.onError(err)
		return nil, err
	}

	return stream, nil
}

// Association returns the underlying SCTP association, or nil before Start
// has completed.
func (t *SCTPTransport) Association() *sctp.Association {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.association
}

// State returns the current SCTP transport state.
func (t *SCTPTransport) State() SCTPTransportState {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.state
}

// MaxMessageSize returns the negotiated maximum message size, the smaller
// of the local and remote limits.
func (t *SCTPTransport) MaxMessageSize() uint32 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.maxMessageSize
}

// OnError sets a handler that is invoked when the association errors.
func (t *SCTPTransport) OnError(f func(error)) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.onErrorHandler = f
}

func (t *SCTPTransport) onError(err error) {
	t.lock.RLock()
	handler := t.onErrorHandler
	t.lock.RUnlock()

	if handler != nil {
		handler(err)
	}
}

func (t *SCTPTransport) isTransportStarted() bool {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.isStarted
}

func (t *SCTPTransport) getAssociation() (*sctp.Association, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if t.association == nil {
		return nil, errSCTPNotStarted
	}
	return t.association, nil
}
