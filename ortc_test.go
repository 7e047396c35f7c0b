// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

import (
	"sync"
	"testing"
	"time"

	"github.com/amberlink/rtcnet/sctp"
	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
	"github.com/pion/transport/v3/vnet"
	"github.com/stretchr/testify/require"
)

type vnetEnv struct {
	router *vnet.Router
	netA   *vnet.Net
	netB   *vnet.Net
}

func buildVNet(t *testing.T) *vnetEnv {
	t.Helper()

	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "1.2.3.0/24",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	require.NoError(t, err)

	netA, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"1.2.3.4"}})
	require.NoError(t, err)
	require.NoError(t, router.AddNet(netA))

	netB, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"1.2.3.5"}})
	require.NoError(t, err)
	require.NoError(t, router.AddNet(netB))

	require.NoError(t, router.Start())
	return &vnetEnv{router: router, netA: netA, netB: netB}
}

type testStack struct {
	ice  *ICETransport
	dtls *DTLSTransport
	sctp *SCTPTransport
}

func newTestStack(t *testing.T, n *vnet.Net) *testStack {
	t.Helper()

	settingEngine := SettingEngine{}
	settingEngine.SetNet(n)
	settingEngine.SetNetworkTypes([]NetworkType{NetworkTypeUDP4})

	api := NewAPI(WithSettingEngine(settingEngine))

	iceTransport, err := api.NewICETransport(ICEGatherOptions{})
	require.NoError(t, err)

	dtlsTransport, err := api.NewDTLSTransport(iceTransport, nil)
	require.NoError(t, err)

	return &testStack{
		ice:  iceTransport,
		dtls: dtlsTransport,
		sctp: api.NewSCTPTransport(dtlsTransport),
	}
}

func (s *testStack) close() error {
	return flattenErrs([]error{
		s.sctp.Stop(),
		s.dtls.Stop(),
		s.ice.Stop(),
	})
}

func exchangeCandidates(t *testing.T, a, b *testStack) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(2)

	require.NoError(t, a.ice.OnLocalCandidate(func(c *ICECandidate) {
		if c == nil {
			wg.Done()
			return
		}
		require.NoError(t, b.ice.AddRemoteCandidate(*c))
	}))
	require.NoError(t, a.ice.Gather())

	require.NoError(t, b.ice.OnLocalCandidate(func(c *ICECandidate) {
		if c == nil {
			wg.Done()
			return
		}
		require.NoError(t, a.ice.AddRemoteCandidate(*c))
	}))
	require.NoError(t, b.ice.Gather())

	wg.Wait()
}

// connectStacks brings up ICE, DTLS and SCTP between the two stacks with a
// acting as the controlling agent.
func connectStacks(t *testing.T, a, b *testStack) {
	t.Helper()

	exchangeCandidates(t, a, b)

	aICEParams, err := a.ice.GetLocalParameters()
	require.NoError(t, err)
	bICEParams, err := b.ice.GetLocalParameters()
	require.NoError(t, err)

	aDTLSParams, err := a.dtls.GetLocalParameters()
	require.NoError(t, err)
	bDTLSParams, err := b.dtls.GetLocalParameters()
	require.NoError(t, err)

	// Each stage blocks until the peer answers, run the sides in parallel.
	errs := make(chan error, 2)
	go func() {
		controlling := ICERoleControlling
		if iceErr := a.ice.Start(bICEParams, &controlling); iceErr != nil {
			errs <- iceErr
			return
		}
		if dtlsErr := a.dtls.Start(bDTLSParams); dtlsErr != nil {
			errs <- dtlsErr
			return
		}
		errs <- a.sctp.Start(b.sctp.GetCapabilities())
	}()
	go func() {
		if iceErr := b.ice.Start(aICEParams, nil); iceErr != nil {
			errs <- iceErr
			return
		}
		if dtlsErr := b.dtls.Start(aDTLSParams); dtlsErr != nil {
			errs <- dtlsErr
			return
		}
		errs <- b.sctp.Start(a.sctp.GetCapabilities())
	}()

	for i := 0; i < 2; i++ {
		require.NoError(t, <-errs)
	}
}

func TestTransportStackEndToEnd(t *testing.T) {
	defer test.TimeOut(time.Second * 60).Stop()

	env := buildVNet(t)
	defer func() {
		require.NoError(t, env.router.Stop())
	}()

	stackA := newTestStack(t, env.netA)
	stackB := newTestStack(t, env.netB)

	connectStacks(t, stackA, stackB)

	require.Equal(t, ICERoleControlling, stackA.ice.Role())
	require.Equal(t, ICERoleControlled, stackB.ice.Role())
	require.Equal(t, DTLSTransportStateConnected, stackA.dtls.State())
	require.Equal(t, DTLSTransportStateConnected, stackB.dtls.State())
	require.Equal(t, SCTPTransportStateConnected, stackA.sctp.State())
	require.Equal(t, SCTPTransportStateConnected, stackB.sctp.State())

	// The controlled side acts as the DTLS client.
	require.Equal(t, DTLSRoleClient, stackB.dtls.role())
	require.Equal(t, DTLSRoleServer, stackA.dtls.role())

	outStream, err := stackA.sctp.OpenStream(1, sctp.PayloadTypeWebRTCBinary)
	require.NoError(t, err)

	payload := []byte("ping over the full stack")
	_, err = outStream.Write(payload)
	require.NoError(t, err)

	inStream, err := stackB.sctp.AcceptStream()
	require.NoError(t, err)
	require.Equal(t, uint16(1), inStream.StreamIdentifier())

	buf := make([]byte, 1500)
	n, err := inStream.Read(buf)
	require.NoError(t, err)
	require.Equal(t, payload, buf[:n])

	// And back the other way.
	_, err = inStream.Write([]byte("pong"))
	require.NoError(t, err)

	n, err = outStream.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte("pong"), buf[:n])

	require.NoError(t, stackA.close())
	require.NoError(t, stackB.close())
}

func TestTransportStackMaxMessageSize(t *testing.T) {
	defer test.TimeOut(time.Second * 60).Stop()

	env := buildVNet(t)
	defer func() {
		require.NoError(t, env.router.Stop())
	}()

	stackA := newTestStack(t, env.netA)
	stackB := newTestStack(t, env.netB)

	require.Equal(t, sctpMaxMessageSize, stackA.sctp.GetCapabilities().MaxMessageSize)

	exchangeCandidates(t, stackA, stackB)

	aICEParams, err := stackA.ice.GetLocalParameters()
	require.NoError(t, err)
	bICEParams, err := stackB.ice.GetLocalParameters()
	require.NoError(t, err)
	aDTLSParams, err := stackA.dtls.GetLocalParameters()
	require.NoError(t, err)
	bDTLSParams, err := stackB.dtls.GetLocalParameters()
	require.NoError(t, err)

	errs := make(chan error, 2)
	go func() {
		controlling := ICERoleControlling
		if iceErr := stackA.ice.Start(bICEParams, &controlling); iceErr != nil {
			errs <- iceErr
			return
		}
		if dtlsErr := stackA.dtls.Start(bDTLSParams); dtlsErr != nil {
			errs <- dtlsErr
			return
		}
		// Remote advertises a smaller limit, the association honors it.
		errs <- stackA.sctp.Start(SCTPCapabilities{MaxMessageSize: 1200})
	}()
	go func() {
		if iceErr := stackB.ice.Start(aICEParams, nil); iceErr != nil {
			errs <- iceErr
			return
		}
		if dtlsErr := stackB.dtls.Start(aDTLSParams); dtlsErr != nil {
			errs <- dtlsErr
			return
		}
		errs <- stackB.sctp.Start(SCTPCapabilities{})
	}()
	for i := 0; i < 2; i++ {
		require.NoError(t, <-errs)
	}

	require.Equal(t, uint32(1200), stackA.sctp.MaxMessageSize())
	require.Equal(t, sctpMaxMessageSize, stackB.sctp.MaxMessageSize())

	require.NoError(t, stackA.close())
	require.NoError(t, stackB.close())
}

func TestICETransportRestart(t *testing.T) {
	api := NewAPI()

	iceTransport, err := api.NewICETransport(ICEGatherOptions{})
	require.NoError(t, err)

	before, err := iceTransport.GetLocalParameters()
	require.NoError(t, err)

	require.NoError(t, iceTransport.restart())

	after, err := iceTransport.GetLocalParameters()
	require.NoError(t, err)
	require.NotEqual(t, before.UsernameFragment, after.UsernameFragment)
	require.NotEqual(t, before.Password, after.Password)

	require.NoError(t, iceTransport.Stop())
}

func TestICETransportRestartOverConnectedStack(t *testing.T) {
	defer test.TimeOut(time.Second * 60).Stop()

	env := buildVNet(t)
	defer func() {
		require.NoError(t, env.router.Stop())
	}()

	stackA := newTestStack(t, env.netA)
	stackB := newTestStack(t, env.netB)

	connectStacks(t, stackA, stackB)

	outStream, err := stackA.sctp.OpenStream(1, sctp.PayloadTypeWebRTCBinary)
	require.NoError(t, err)
	_, err = outStream.Write([]byte("before restart"))
	require.NoError(t, err)

	inStream, err := stackB.sctp.AcceptStream()
	require.NoError(t, err)

	buf := make([]byte, 1500)
	n, err := inStream.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte("before restart"), buf[:n])

	selectedPair := func(transport *ICETransport) string {
		pair, pairErr := transport.agent.GetSelectedCandidatePair()
		require.NoError(t, pairErr)
		if pair == nil {
			return ""
		}
		return pair.String()
	}

	oldPairA := selectedPair(stackA.ice)
	oldPairB := selectedPair(stackB.ice)
	require.NotEmpty(t, oldPairA)
	require.NotEmpty(t, oldPairB)

	require.NoError(t, stackA.ice.restart())
	require.NoError(t, stackB.ice.restart())

	// Restart rotated the local credentials and discarded all candidates,
	// so both sides have to learn the peer's new credentials and gather
	// from scratch before connectivity checks can succeed again.
	aParams, err := stackA.ice.GetLocalParameters()
	require.NoError(t, err)
	bParams, err := stackB.ice.GetLocalParameters()
	require.NoError(t, err)
	require.NoError(t, stackA.ice.agent.SetRemoteCredentials(bParams.UsernameFragment, bParams.Password))
	require.NoError(t, stackB.ice.agent.SetRemoteCredentials(aParams.UsernameFragment, aParams.Password))

	exchangeCandidates(t, stackA, stackB)

	waitForNewPair := func(transport *ICETransport, old string) {
		for i := 0; i < 200; i++ {
			if pair := selectedPair(transport); pair != "" && pair != old {
				return
			}
			time.Sleep(100 * time.Millisecond)
		}
		require.Fail(t, "no new candidate pair selected after restart")
	}
	waitForNewPair(stackA.ice, oldPairA)
	waitForNewPair(stackB.ice, oldPairB)

	// The DTLS session and the SCTP association ride out the restart, the
	// already-open stream keeps working over the new pair.
	_, err = outStream.Write([]byte("after restart"))
	require.NoError(t, err)

	n, err = inStream.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte("after restart"), buf[:n])

	_, err = inStream.Write([]byte("and back"))
	require.NoError(t, err)
	n, err = outStream.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte("and back"), buf[:n])

	require.Equal(t, DTLSTransportStateConnected, stackA.dtls.State())
	require.Equal(t, SCTPTransportStateConnected, stackA.sctp.State())

	require.NoError(t, stackA.close())
	require.NoError(t, stackB.close())
}

func TestTransportStartBeforeICE(t *testing.T) {
	api := NewAPI()

	iceTransport, err := api.NewICETransport(ICEGatherOptions{})
	require.NoError(t, err)

	dtlsTransport, err := api.NewDTLSTransport(iceTransport, nil)
	require.NoError(t, err)

	// DTLS cannot start before the ICE connection exists.
	err = dtlsTransport.Start(DTLSParameters{})
	require.ErrorIs(t, err, errICEConnectionNotStarted)

	// SCTP cannot start before DTLS is established.
	sctpTransport := api.NewSCTPTransport(dtlsTransport)
	require.ErrorIs(t, sctpTransport.Start(SCTPCapabilities{}), errDTLSNotEstablished)

	// Streams are unavailable before Start.
	_, err = sctpTransport.AcceptStream()
	require.ErrorIs(t, err, errSCTPNotStarted)

	require.NoError(t, iceTransport.Stop())
}
