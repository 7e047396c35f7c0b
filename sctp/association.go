// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/pion/randutil"
)

// Both port numbers are fixed: the association runs on top of a connected
// DTLS flow, so the ports only matter for packet validation, not for
// demultiplexing. 5000 is the value commonly shown in SDP examples
// (RFC 8841 section 13.1).
const defaultSCTPSrcDstPort = 5000

// Seeded from crypto/rand, shared by all associations.
var randGen = randutil.NewMathRandomGenerator() // nolint:gochecknoglobals

// Association errors.
var (
	ErrChunk                         = errors.New("abort chunk, with following errors")
	ErrShutdownNonEstablished        = errors.New("shutdown called in non-established state")
	ErrAssociationClosedBeforeConn   = errors.New("association closed before connecting")
	ErrAssociationClosed             = errors.New("association closed")
	ErrSilentlyDiscard               = errors.New("silently discard")
	ErrInitNotStoredToSend           = errors.New("the init not stored to send")
	ErrCookieEchoNotStoredToSend     = errors.New("cookieEcho not stored to send")
	ErrSCTPPacketSourcePortZero      = errors.New("sctp packet must not have a source port of 0")
	ErrSCTPPacketDestinationPortZero = errors.New("sctp packet must not have a destination port of 0")
	ErrInitChunkBundled              = errors.New("init chunk must not be bundled with any other chunk")
	ErrInitChunkVerifyTagNotZero     = errors.New(
		"init chunk expects a verification tag of 0 on the packet when out-of-the-blue",
	)
	ErrHandleInitState            = errors.New("todo: handle Init when in state")
	ErrInitAckNoCookie            = errors.New("no cookie in InitAck")
	ErrInflightQueueTSNPop        = errors.New("unable to be popped from inflight queue TSN")
	ErrTSNRequestNotExist         = errors.New("requested non-existent TSN")
	ErrResetPacketInStateNotExist = errors.New("sending reset packet in non-established state")
	ErrParamterType               = errors.New("unexpected parameter type")
	ErrPayloadDataStateNotExist   = errors.New("sending payload data in non-established state")
	ErrChunkTypeUnhandled         = errors.New("unhandled chunk type")
	ErrHandshakeInitAck           = errors.New("handshake failed (INIT ACK)")
	ErrHandshakeCookieEcho        = errors.New("handshake failed (COOKIE ECHO)")
	ErrTooManyReconfigRequests    = errors.New("too many outstanding reconfig requests")
)

const (
	receiveMTU            uint32 = 8192 // read buffer for inbound packets (from DTLS)
	initialMTU            uint32 = 1228 // conservative MTU until path MTU is known
	initialRecvBufSize    uint32 = 1024 * 1024
	commonHeaderSize      uint32 = 12
	dataChunkHeaderSize   uint32 = 16
	defaultMaxMessageSize uint32 = 65536
)

// Association states (RFC 4960 section 4).
const (
	closed uint32 = iota
	cookieWait
	cookieEchoed
	established
	shutdownAckSent
	shutdownPending
	shutdownReceived
	shutdownSent
)

// SACK scheduling modes; only tests use anything but ackModeNormal.
const (
	ackModeNormal int = iota
	ackModeNoDelay
	ackModeAlwaysDelay
)

// SACK transmission states.
const (
	ackStateIdle      int = iota // ack timer is off
	ackStateImmediate            // a SACK goes out on the next send pass
	ackStateDelay                // ack timer is running
)

const (
	acceptChSize = 16
	// avgChunkSize is a rough estimate of the bytes carried per DATA chunk,
	// used to derive the TSN window from the receive buffer size.
	avgChunkSize = 500
	// minTSNOffset and maxTSNOffset clamp how far past the cumulative TSN
	// an inbound DATA chunk may be before it is dropped. See getMaxTSNOffset.
	minTSNOffset = 2000
	maxTSNOffset = 40000
	// maxReconfigRequests bounds the reconfig requests kept outstanding.
	maxReconfigRequests = 1000
)

func associationStateName(state uint32) string {
	switch state {
	case closed:
		return "Closed"
	case cookieWait:
		return "CookieWait"
	case cookieEchoed:
		return "CookieEchoed"
	case established:
		return "Established"
	case shutdownPending:
		return "ShutdownPending"
	case shutdownSent:
		return "ShutdownSent"
	case shutdownReceived:
		return "ShutdownReceived"
	case shutdownAckSent:
		return "ShutdownAckSent"
	default:
		return fmt.Sprintf("Invalid association state %d", state)
	}
}

// Association is a single SCTP association over one net.Conn. It holds the
// TCB parameters of RFC 4960 section 13.2 (verification tags, TSN state,
// congestion control) along with the stream table and the send machinery.
// Running over a single connected conn, it does not support multi-homing.
type Association struct {
	bytesReceived uint64
	bytesSent     uint64

	lock sync.RWMutex

	netConn net.Conn

	remoteVerificationTag uint32
	localVerificationTag  uint32
	state                 uint32
	initialTSN            uint32
	nextTSN               uint32 // TSN assigned to the next outbound DATA chunk
	lastRcvdTSN           uint32 // cumulative TSN of the receive side
	minRTTMeasureTSN      uint32 // lowest TSN eligible for an RTT sample

	forwardTSNQueued         bool
	fastRetransmitQueued     bool
	reconfigRetransmitQueued bool
	shutdownQueued           bool
	shutdownAckQueued        bool
	shutdownCompleteQueued   bool

	abortQueued bool
	abortCause  errorCause

	// RFC 6525 stream reconfiguration
	nextRSN          uint32
	reconfigs        map[uint32]*chunkReconfig
	reconfigRequests map[uint32]*paramOutgoingResetRequest

	sourcePort         uint16
	destinationPort    uint16
	maxInboundStreams  uint16
	maxOutboundStreams uint16
	stateCookie        *paramStateCookie
	recvTracker        *receivedChunkTracker
	outstanding        *outstandingQueue
	sendQueue          *sendQueue
	controlOutbox      *controlOutbox
	mtu                uint32
	maxTSNOffset       uint32       // see getMaxTSNOffset
	srtt               atomic.Value // float64
	cumAckPoint        uint32
	advancedAckPoint   uint32
	useForwardTSN      bool

	// Congestion control
	maxReceiveBufferSize uint32
	maxMessageSize       uint32
	cwnd                 uint32
	rwnd                 uint32
	ssthresh             uint32
	partialBytesAcked    uint32
	inFastRecovery       bool
	fastRecoverExitPoint uint32

	rtoMgr     *rtoManager
	t1Init     *rtxTimer
	t1Cookie   *rtxTimer
	t2Shutdown *rtxTimer
	t3RTX      *rtxTimer
	tReconfig  *rtxTimer
	ackTimer   *ackTimer

	// Handshake chunks kept around for retransmission
	pendingInit       *chunkInit
	pendingCookieEcho *chunkCookieEcho

	streams         map[uint16]*Stream
	acceptCh        chan *Stream
	recvLoopDoneCh  chan struct{}
	sendLoopWakeCh  chan struct{}
	sendLoopStopCh  chan struct{}
	handshakeDoneCh chan error

	stopSendLoopOnce sync.Once

	ackState int
	ackMode  int // for testing

	stats *associationStats

	// per inbound packet context
	wantDelayedAck   bool
	wantImmediateAck bool

	name string
	log  logging.LeveledLogger
}

// Config collects the arguments to createAssociation construction into
// a single structure.
type Config struct {
	Name                 string
	NetConn              net.Conn
	MaxReceiveBufferSize uint32
	MaxMessageSize       uint32
	LoggerFactory        logging.LoggerFactory
	MTU                  uint32

	// RTOMax is the maximum retransmission timeout in milliseconds.
	// A value of 0 selects the RFC 4960 default (60 seconds).
	RTOMax float64
}

func checkConfig(config Config) error {
	if config.NetConn == nil {
		return errNilNetConn
	}
	if config.LoggerFactory == nil {
		return errNilLoggerFactory
	}
	if config.RTOMax < 0 {
		return errInvalidRTOMax
	}

	return nil
}

// Server accepts a SCTP stream over a conn.
func Server(config Config) (*Association, error) {
	if err := checkConfig(config); err != nil {
		return nil, err
	}

	a := createAssociation(config)
	a.init(false)

	select {
	case err := <-a.handshakeDoneCh:
		if err != nil {
			return nil, err
		}

		return a, nil
	case <-a.recvLoopDoneCh:
		return nil, ErrAssociationClosedBeforeConn
	}
}

// Client opens a SCTP stream over a conn.
func Client(config Config) (*Association, error) {
	return createClientWithContext(context.Background(), config)
}

func createClientWithContext(ctx context.Context, config Config) (*Association, error) {
	if err := checkConfig(config); err != nil {
		return nil, err
	}

	assoc := createAssociation(config)
	assoc.init(true)

	select {
	case <-ctx.Done():
		assoc.log.Errorf("[%s] client handshake canceled: state=%s", assoc.name, associationStateName(assoc.getState()))
		assoc.Close() // nolint:errcheck,gosec

		return nil, ctx.Err()
	case err := <-assoc.handshakeDoneCh:
		if err != nil {
			return nil, err
		}

		return assoc, nil
	case <-assoc.recvLoopDoneCh:
		return nil, ErrAssociationClosedBeforeConn
	}
}

func createAssociation(config Config) *Association {
	maxReceiveBufferSize := config.MaxReceiveBufferSize
	if maxReceiveBufferSize == 0 {
		maxReceiveBufferSize = initialRecvBufSize
	}

	maxMessageSize := config.MaxMessageSize
	if maxMessageSize == 0 {
		maxMessageSize = defaultMaxMessageSize
	}

	mtu := config.MTU
	if mtu == 0 {
		mtu = initialMTU
	}

	tsn := randGen.Uint32()
	assoc := &Association{
		netConn:              config.NetConn,
		maxReceiveBufferSize: maxReceiveBufferSize,
		maxMessageSize:       maxMessageSize,

		// Advertise the protocol maximum so we never have to negotiate
		// down the peer's requested stream counts (RFC 4960 sec 5.1.1).
		maxOutboundStreams: math.MaxUint16,
		maxInboundStreams:  math.MaxUint16,

		recvTracker:          newReceivedPacketTracker(),
		outstanding:          newOutstandingQueue(),
		sendQueue:            newSendQueue(),
		controlOutbox:        newControlOutbox(),
		mtu:                  mtu,
		maxTSNOffset:         getMaxTSNOffset(maxReceiveBufferSize),
		localVerificationTag: randGen.Uint32(),
		initialTSN:           tsn,
		nextTSN:              tsn,
		nextRSN:              tsn,
		minRTTMeasureTSN:     tsn,
		state:                closed,
		rtoMgr:               newRTOManager(config.RTOMax),
		streams:              map[uint16]*Stream{},
		reconfigs:            map[uint32]*chunkReconfig{},
		reconfigRequests:     map[uint32]*paramOutgoingResetRequest{},
		acceptCh:             make(chan *Stream, acceptChSize),
		recvLoopDoneCh:       make(chan struct{}),
		sendLoopWakeCh:       make(chan struct{}, 1),
		sendLoopStopCh:       make(chan struct{}),
		handshakeDoneCh:      make(chan error),
		cumAckPoint:          tsn - 1,
		advancedAckPoint:     tsn - 1,
		stats:                &associationStats{},
		log:                  config.LoggerFactory.NewLogger("sctp"),
		name:                 config.Name,
	}

	if assoc.name == "" {
		assoc.name = fmt.Sprintf("%p", assoc)
	}

	// Initial cwnd per RFC 4960 sec 7.2.1: min(4*MTU, max(2*MTU, 4380)).
	assoc.setCWND(min32(4*assoc.MTU(), max32(2*assoc.MTU(), 4380)))
	assoc.log.Tracef("[%s] updated cwnd=%d ssthresh=%d inflight=%d (INI)",
		assoc.name, assoc.CWND(), assoc.ssthresh, assoc.outstanding.getNumBytes())

	assoc.srtt.Store(float64(0))
	assoc.t1Init = newRTXTimer(timerT1Init, assoc, maxInitRetrans, config.RTOMax)
	assoc.t1Cookie = newRTXTimer(timerT1Cookie, assoc, maxInitRetrans, config.RTOMax)
	assoc.t2Shutdown = newRTXTimer(timerT2Shutdown, assoc, noMaxRetrans, config.RTOMax)
	assoc.t3RTX = newRTXTimer(timerT3RTX, assoc, noMaxRetrans, config.RTOMax)
	assoc.tReconfig = newRTXTimer(timerReconfig, assoc, noMaxRetrans, config.RTOMax)
	assoc.ackTimer = newAckTimer(assoc)

	return assoc
}

func (a *Association) init(isClient bool) {
	a.lock.Lock()
	defer a.lock.Unlock()

	go a.recvLoop()
	go a.sendLoop()

	if isClient {
		init := &chunkInit{}
		init.initialTSN = a.nextTSN
		init.numOutboundStreams = a.maxOutboundStreams
		init.numInboundStreams = a.maxInboundStreams
		init.initiateTag = a.localVerificationTag
		init.advertisedReceiverWindowCredit = a.maxReceiveBufferSize
		declareSupportedExtensions(&init.chunkInitCommon)

		a.pendingInit = init

		err := a.sendInit()
		if err != nil {
			a.log.Errorf("[%s] failed to send init: %s", a.name, err.Error())
		}

		// Enter COOKIE-WAIT before starting T1-init. Setting the state
		// first avoids racing a timer expiration against the state change.
		a.setState(cookieWait)
		a.t1Init.start(a.rtoMgr.getRTO())
	}
}

// Shutdown initiates the shutdown sequence. The method blocks until the
// shutdown sequence is completed and the connection is closed, or until the
// passed context is done, in which case the context's error is returned.
func (a *Association) Shutdown(ctx context.Context) error {
	a.log.Debugf("[%s] closing association..", a.name)

	state := a.getState()

	if state != established {
		return fmt.Errorf("%w: shutdown %s", ErrShutdownNonEstablished, a.name)
	}

	// Attempt a graceful shutdown.
	a.setState(shutdownPending)

	a.lock.Lock()

	if a.outstanding.size() == 0 {
		// Nothing in flight, send SHUTDOWN right away.
		a.shutdownQueued = true
		a.wakeSendLoop()
		a.setState(shutdownSent)
	}

	a.lock.Unlock()

	select {
	case <-a.sendLoopStopCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the SCTP Association and cleans up any state.
func (a *Association) Close() error {
	a.log.Debugf("[%s] closing association..", a.name)

	err := a.close()

	// Wait for recvLoop to end
	<-a.recvLoopDoneCh

	a.log.Debugf("[%s] association closed", a.name)
	a.log.Debugf("[%s] stats nPackets (in) : %d", a.name, a.stats.getNumPacketsReceived())
	a.log.Debugf("[%s] stats nPackets (out) : %d", a.name, a.stats.getNumPacketsSent())
	a.log.Debugf("[%s] stats nDATAs (in) : %d", a.name, a.stats.getNumDATAs())
	a.log.Debugf("[%s] stats nSACKs (in) : %d", a.name, a.stats.getNumSACKsReceived())
	a.log.Debugf("[%s] stats nSACKs (out) : %d", a.name, a.stats.getNumSACKsSent())
	a.log.Debugf("[%s] stats nT3Timeouts : %d", a.name, a.stats.getNumT3Timeouts())
	a.log.Debugf("[%s] stats nAckTimeouts: %d", a.name, a.stats.getNumAckTimeouts())
	a.log.Debugf("[%s] stats nFastRetrans: %d", a.name, a.stats.getNumFastRetrans())

	return err
}

func (a *Association) close() error {
	a.log.Debugf("[%s] closing association..", a.name)

	a.setState(closed)

	err := a.netConn.Close()

	a.closeAllTimers()

	// let sendLoop exit
	a.stopSendLoopOnce.Do(func() { close(a.sendLoopStopCh) })

	return err
}

// Abort sends the abort packet with user initiated abort and immediately
// closes the connection.
func (a *Association) Abort(reason string) {
	a.log.Debugf("[%s] aborting association: %s", a.name, reason)

	a.lock.Lock()

	a.abortQueued = true
	a.abortCause = &errorCauseUserInitiatedAbort{
		upperLayerAbortReason: []byte(reason),
	}

	a.lock.Unlock()

	// short bound for the abort flush.
	_ = a.netConn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
	a.wakeSendLoop()

	// Unblock recvLoop even if the underlying connection is half-open so
	// that Abort returns promptly during teardown.
	_ = a.netConn.SetReadDeadline(time.Now())

	// Wait for recvLoop to end
	<-a.recvLoopDoneCh
}

func (a *Association) closeAllTimers() {
	a.t1Init.close()
	a.t1Cookie.close()
	a.t2Shutdown.close()
	a.t3RTX.close()
	a.tReconfig.close()
	a.ackTimer.close()
}

// unregisterStream removes a stream from the association.
// The caller should hold the association write lock.
func (a *Association) unregisterStream(s *Stream, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(a.streams, s.streamIdentifier)
	s.readErr = err
	s.readNotifier.Broadcast()
}

// setState atomically sets the state of the Association.
// The caller should hold the lock.
func (a *Association) setState(newState uint32) {
	oldState := atomic.SwapUint32(&a.state, newState)
	if newState != oldState {
		a.log.Debugf("[%s] state change: '%s' => '%s'",
			a.name,
			associationStateName(oldState),
			associationStateName(newState))
	}
}

// getState atomically returns the state of the Association.
func (a *Association) getState() uint32 {
	return atomic.LoadUint32(&a.state)
}

// BytesSent returns the number of bytes sent.
func (a *Association) BytesSent() uint64 {
	return atomic.LoadUint64(&a.bytesSent)
}

// BytesReceived returns the number of bytes received.
func (a *Association) BytesReceived() uint64 {
	return atomic.LoadUint64(&a.bytesReceived)
}

// MTU returns the association's current MTU.
func (a *Association) MTU() uint32 {
	return atomic.LoadUint32(&a.mtu)
}

// CWND returns the association's current congestion window (cwnd).
func (a *Association) CWND() uint32 {
	return atomic.LoadUint32(&a.cwnd)
}

func (a *Association) setCWND(cwnd uint32) {
	atomic.StoreUint32(&a.cwnd, cwnd)
}

// RWND returns the association's current receiver window (rwnd).
func (a *Association) RWND() uint32 {
	return atomic.LoadUint32(&a.rwnd)
}

func (a *Association) setRWND(rwnd uint32) {
	atomic.StoreUint32(&a.rwnd, rwnd)
}

// SRTT returns the latest smoothed round-trip time (srrt).
func (a *Association) SRTT() float64 {
	return a.srtt.Load().(float64) //nolint:forcetypeassert
}

// maxPayloadSize returns the largest DATA chunk payload that fits in a
// single packet at the current MTU.
func (a *Association) maxPayloadSize() uint32 {
	return a.MTU() - (commonHeaderSize + dataChunkHeaderSize)
}

// getMaxTSNOffset converts the receive buffer size into a limit on how far
// past the cumulative TSN inbound chunks may run, keeping the memory a
// misbehaving peer can pin to a small multiple of the configured buffer.
func getMaxTSNOffset(maxReceiveBufferSize uint32) uint32 {
	// The factor of 4 is empirical.
	offset := max32((maxReceiveBufferSize*4)/avgChunkSize, minTSNOffset)
	if offset > maxTSNOffset {
		offset = maxTSNOffset
	}

	return offset
}

// receiverWindowCredit returns the amount of a_rwnd to advertise, i.e. the
// receive buffer size minus what the reassembly queues currently hold.
// The caller should hold the lock.
func (a *Association) receiverWindowCredit() uint32 {
	var bytesQueued uint32
	for _, s := range a.streams {
		bytesQueued += uint32(s.getNumBytesInReassemblyQueue()) //nolint:gosec // G115
	}

	if bytesQueued >= a.maxReceiveBufferSize {
		return 0
	}

	return a.maxReceiveBufferSize - bytesQueued
}

// OpenStream opens a stream.
func (a *Association) OpenStream(
	streamIdentifier uint16,
	defaultPayloadType PayloadProtocolIdentifier,
) (*Stream, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	switch a.getState() {
	case shutdownAckSent, shutdownPending, shutdownReceived, shutdownSent, closed:
		return nil, ErrAssociationClosed
	}

	return a.getOrCreateStream(streamIdentifier, false, defaultPayloadType), nil
}

// AcceptStream accepts a stream.
func (a *Association) AcceptStream() (*Stream, error) {
	s, ok := <-a.acceptCh
	if !ok {
		return nil, io.EOF // no more incoming streams
	}

	return s, nil
}

// createStream creates a stream. The caller should hold the lock and check no stream exists for this id.
func (a *Association) createStream(streamIdentifier uint16, accept bool) *Stream {
	stream := &Stream{
		association:      a,
		streamIdentifier: streamIdentifier,
		reassemblyQueue:  newReassemblyQueue(streamIdentifier),
		log:              a.log,
		name:             fmt.Sprintf("%d:%s", streamIdentifier, a.name),
	}

	stream.readNotifier = sync.NewCond(&stream.lock)

	if accept {
		select {
		case a.acceptCh <- stream:
			a.streams[streamIdentifier] = stream
			a.log.Debugf("[%s] accepted a new stream (streamIdentifier: %d)",
				a.name, streamIdentifier)
		default:
			a.log.Debugf("[%s] dropped a new stream (acceptCh size: %d)",
				a.name, len(a.acceptCh))

			return nil
		}
	} else {
		a.streams[streamIdentifier] = stream
	}

	return stream
}

// getOrCreateStream gets or creates a stream. The caller should hold the lock.
func (a *Association) getOrCreateStream(
	streamIdentifier uint16,
	accept bool,
	defaultPayloadType PayloadProtocolIdentifier,
) *Stream {
	if s, ok := a.streams[streamIdentifier]; ok {
		s.SetDefaultPayloadType(defaultPayloadType)

		return s
	}

	s := a.createStream(streamIdentifier, accept)
	if s != nil {
		s.SetDefaultPayloadType(defaultPayloadType)
	}

	return s
}

// BufferedAmount returns total amount (in bytes) of currently buffered user data.
func (a *Association) BufferedAmount() int {
	a.lock.RLock()
	defer a.lock.RUnlock()

	return a.sendQueue.getNumBytes() + a.outstanding.getNumBytes()
}

// MaxMessageSize returns the maximum message size you can send.
func (a *Association) MaxMessageSize() uint32 {
	return atomic.LoadUint32(&a.maxMessageSize)
}

// SetMaxMessageSize sets the maximum message size you can send.
func (a *Association) SetMaxMessageSize(maxMsgSize uint32) {
	atomic.StoreUint32(&a.maxMessageSize, maxMsgSize)
}

// finishHandshake delivers the handshake result unless the association is
// torn down first. It reports whether the result was delivered.
func (a *Association) finishHandshake(handshakeErr error) bool {
	select {
	case a.handshakeDoneCh <- handshakeErr:
		return true
	case <-a.sendLoopStopCh:
	case <-a.recvLoopDoneCh:
	}

	return false
}
