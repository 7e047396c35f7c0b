// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package ice

import (
	"context"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/stun/v3"
	"github.com/pion/transport/v3/test"
	"github.com/pion/transport/v3/vnet"
	"github.com/pion/turn/v4"
	"github.com/stretchr/testify/require"
)

type vnetEnv struct {
	router *vnet.Router
	netA   *vnet.Net
	netB   *vnet.Net
}

func buildVNet(t *testing.T) *vnetEnv {
	t.Helper()

	loggerFactory := logging.NewDefaultLoggerFactory()
	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "1.2.3.0/24",
		LoggerFactory: loggerFactory,
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

func newVNetAgent(t *testing.T, n *vnet.Net) *Agent {
	t.Helper()
	a, err := NewAgent(&AgentConfig{
		NetworkTypes: []NetworkType{NetworkTypeUDP4},
		Net:          n,
	})
	require.NoError(t, err)
	return a
}

func gatherAndExchangeCandidates(t *testing.T, aAgent, bAgent *Agent) {
	t.Helper()
	var wg sync.WaitGroup
	wg.Add(2)

	require.NoError(t, aAgent.OnCandidate(func(candidate Candidate) {
		if candidate == nil {
			wg.Done()
			return
		}
		c, err := UnmarshalCandidate(candidate.Marshal())
		require.NoError(t, err)
		require.NoError(t, bAgent.AddRemoteCandidate(c))
	}))
	require.NoError(t, aAgent.GatherCandidates())

	require.NoError(t, bAgent.OnCandidate(func(candidate Candidate) {
		if candidate == nil {
			wg.Done()
			return
		}
		c, err := UnmarshalCandidate(candidate.Marshal())
		require.NoError(t, err)
		require.NoError(t, aAgent.AddRemoteCandidate(c))
	}))
	require.NoError(t, bAgent.GatherCandidates())

	wg.Wait()
}

func connectAgents(t *testing.T, aAgent, bAgent *Agent) (*Conn, *Conn) {
	t.Helper()
	gatherAndExchangeCandidates(t, aAgent, bAgent)

	aUfrag, aPwd, err := aAgent.GetLocalUserCredentials()
	require.NoError(t, err)
	bUfrag, bPwd, err := bAgent.GetLocalUserCredentials()
	require.NoError(t, err)

	accepted := make(chan struct{})
	var aConn *Conn
	go func() {
		var acceptErr error
		aConn, acceptErr = aAgent.Accept(context.Background(), bUfrag, bPwd)
		require.NoError(t, acceptErr)
		close(accepted)
	}()

	bConn, err := bAgent.Dial(context.Background(), aUfrag, aPwd)
	require.NoError(t, err)

	<-accepted
	return aConn, bConn
}

func TestAgentConnectivityVNet(t *testing.T) {
	defer test.TimeOut(time.Second * 30).Stop()

	env := buildVNet(t)
	defer func() {
		require.NoError(t, env.router.Stop())
	}()

	aAgent := newVNetAgent(t, env.netA)
	bAgent := newVNetAgent(t, env.netB)

	aConn, bConn := connectAgents(t, aAgent, bAgent)

	payload := []byte("hello from a")
	_, err := aConn.Write(payload)
	require.NoError(t, err)

	buf := make([]byte, receiveMTU)
	n, err := bConn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, payload, buf[:n])

	payload = []byte("hello from b")
	_, err = bConn.Write(payload)
	require.NoError(t, err)

	n, err = aConn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, payload, buf[:n])

	require.NotZero(t, aConn.BytesSent())
	require.NotZero(t, aConn.BytesReceived())
	require.NotZero(t, bConn.BytesSent())
	require.NotZero(t, bConn.BytesReceived())

	pair, err := aAgent.GetSelectedCandidatePair()
	require.NoError(t, err)
	require.NotNil(t, pair)
	require.NotNil(t, pair.Local)
	require.NotNil(t, pair.Remote)

	require.NotZero(t, aAgent.ChecksSent())
	require.NotZero(t, aAgent.ChecksReceived())
	require.NotEmpty(t, aAgent.GetCandidatePairsStats())
	require.NotEmpty(t, aAgent.GetLocalCandidatesStats())
	require.NotEmpty(t, aAgent.GetRemoteCandidatesStats())

	// A second gather or start must be refused
	require.ErrorIs(t, aAgent.GatherCandidates(), ErrMultipleGatherAttempted)
	_, err = aAgent.Dial(context.Background(), "ufrag", "pwd")
	require.ErrorIs(t, err, ErrMultipleStart)

	require.NoError(t, aConn.Close())
	require.NoError(t, bConn.Close())
}

// natEnv models an agent on a private subnet behind a full-cone NAT,
// with a combined STUN/TURN server on the public side.
type natEnv struct {
	wan        *vnet.Router
	serverNet  *vnet.Net
	localNet   *vnet.Net
	turnServer *turn.Server
}

const (
	natTestServerIP   = "1.2.3.4"
	natTestExternalIP = "27.1.1.1"
	natTestLocalIP    = "192.168.0.10"
	natTestRealm      = "rtcnet.test"
	natTestUsername   = "user"
	natTestPassword   = "pass"
)

func buildNATVNet(t *testing.T) *natEnv {
	t.Helper()

	loggerFactory := logging.NewDefaultLoggerFactory()
	wan, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "0.0.0.0/0",
		LoggerFactory: loggerFactory,
	})
	require.NoError(t, err)

	serverNet, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{natTestServerIP}})
	require.NoError(t, err)
	require.NoError(t, wan.AddNet(serverNet))

	lan, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:      "192.168.0.0/24",
		StaticIPs: []string{natTestExternalIP},
		NATType: &vnet.NATType{
			MappingBehavior:   vnet.EndpointIndependent,
			FilteringBehavior: vnet.EndpointIndependent,
		},
		LoggerFactory: loggerFactory,
	})
	require.NoError(t, err)

	localNet, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{natTestLocalIP}})
	require.NoError(t, err)
	require.NoError(t, lan.AddNet(localNet))
	require.NoError(t, wan.AddRouter(lan))
	require.NoError(t, wan.Start())

	serverConn, err := serverNet.ListenPacket("udp4", natTestServerIP+":3478")
	require.NoError(t, err)

	authKey := turn.GenerateAuthKey(natTestUsername, natTestRealm, natTestPassword)
	turnServer, err := turn.NewServer(turn.ServerConfig{
		Realm: natTestRealm,
		AuthHandler: func(username, realm string, _ net.Addr) ([]byte, bool) {
			if username == natTestUsername && realm == natTestRealm {
				return authKey, true
			}
			return nil, false
		},
		PacketConnConfigs: []turn.PacketConnConfig{
			{
				PacketConn: serverConn,
				RelayAddressGenerator: &turn.RelayAddressGeneratorStatic{
					RelayAddress: net.ParseIP(natTestServerIP),
					Address:      "0.0.0.0",
					Net:          serverNet,
				},
			},
		},
		LoggerFactory: loggerFactory,
	})
	require.NoError(t, err)

	return &natEnv{wan: wan, serverNet: serverNet, localNet: localNet, turnServer: turnServer}
}

func (e *natEnv) stop(t *testing.T) {
	t.Helper()
	require.NoError(t, e.turnServer.Close())
	require.NoError(t, e.wan.Stop())
}

func TestAgentGatherBehindNAT(t *testing.T) {
	defer test.TimeOut(time.Second * 30).Stop()

	env := buildNATVNet(t)
	defer env.stop(t)

	stunURL, err := ParseURL("stun:" + natTestServerIP + ":3478")
	require.NoError(t, err)
	turnURL, err := ParseURL("turn:" + natTestServerIP + ":3478?transport=udp")
	require.NoError(t, err)
	turnURL.Username = natTestUsername
	turnURL.Password = natTestPassword

	agent, err := NewAgent(&AgentConfig{
		NetworkTypes: []NetworkType{NetworkTypeUDP4},
		Urls:         []*URL{stunURL, turnURL},
		Net:          env.localNet,
	})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, agent.Close())
	}()

	done := make(chan struct{})
	var mu sync.Mutex
	byType := map[CandidateType][]Candidate{}
	require.NoError(t, agent.OnCandidate(func(c Candidate) {
		if c == nil {
			close(done)
			return
		}
		mu.Lock()
		byType[c.Type()] = append(byType[c.Type()], c)
		mu.Unlock()
	}))
	require.NoError(t, agent.GatherCandidates())
	<-done

	require.NotEmpty(t, byType[CandidateTypeHost], "expected a host candidate on the private subnet")
	for _, c := range byType[CandidateTypeHost] {
		require.Equal(t, natTestLocalIP, c.Address())
	}

	// The STUN binding response carries the NAT's external mapping.
	require.Len(t, byType[CandidateTypeServerReflexive], 1)
	srflx := byType[CandidateTypeServerReflexive][0]
	require.Equal(t, natTestExternalIP, srflx.Address())
	require.NotNil(t, srflx.RelatedAddress())
	require.Equal(t, natTestLocalIP, srflx.RelatedAddress().Address)

	// The TURN allocation is on the server itself.
	require.Len(t, byType[CandidateTypeRelay], 1)
	require.Equal(t, natTestServerIP, byType[CandidateTypeRelay][0].Address())
}

func TestConnWriteRejectsSTUN(t *testing.T) {
	defer test.TimeOut(time.Second * 30).Stop()

	env := buildVNet(t)
	defer func() {
		require.NoError(t, env.router.Stop())
	}()

	aAgent := newVNetAgent(t, env.netA)
	bAgent := newVNetAgent(t, env.netB)

	aConn, bConn := connectAgents(t, aAgent, bAgent)

	msg, err := stun.Build(stun.BindingRequest, stun.TransactionID, stun.Fingerprint)
	require.NoError(t, err)

	_, err = aConn.Write(msg.Raw)
	require.ErrorIs(t, err, errICEWriteSTUNMessage)

	require.NoError(t, aConn.Close())
	require.NoError(t, bConn.Close())
}

func TestConnWriteDeadline(t *testing.T) {
	defer test.TimeOut(time.Second * 30).Stop()

	env := buildVNet(t)
	defer func() {
		require.NoError(t, env.router.Stop())
	}()

	aAgent := newVNetAgent(t, env.netA)
	bAgent := newVNetAgent(t, env.netB)

	aConn, bConn := connectAgents(t, aAgent, bAgent)

	require.NoError(t, aConn.SetWriteDeadline(time.Now().Add(-time.Second)))
	_, err := aConn.Write([]byte("late"))
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)

	// Clearing the deadline allows writes again
	require.NoError(t, aConn.SetWriteDeadline(time.Time{}))
	_, err = aConn.Write([]byte("on time"))
	require.NoError(t, err)

	require.NoError(t, aConn.Close())
	require.NoError(t, bConn.Close())
}

func TestAgentRestartCredentialValidation(t *testing.T) {
	a, err := NewAgent(&AgentConfig{})
	require.NoError(t, err)

	require.ErrorIs(t, a.Restart("ab", ""), ErrLocalUfragInsufficientBits)
	require.ErrorIs(t, a.Restart("", "tooshortpwd"), ErrLocalPwdInsufficientBits)

	require.NoError(t, a.Restart("", ""))
	ufrag, pwd, err := a.GetLocalUserCredentials()
	require.NoError(t, err)
	require.Len(t, ufrag, 16)
	require.Len(t, pwd, 32)

	require.NoError(t, a.Close())
	require.ErrorIs(t, a.Restart("", ""), ErrClosed)
}

func TestAgentGatherRequiresHandler(t *testing.T) {
	a, err := NewAgent(&AgentConfig{})
	require.NoError(t, err)

	require.ErrorIs(t, a.GatherCandidates(), ErrNoOnCandidateHandler)

	require.NoError(t, a.Close())
	require.ErrorIs(t, a.Close(), ErrClosed)
}

func TestAgentStartValidation(t *testing.T) {
	a, err := NewAgent(&AgentConfig{})
	require.NoError(t, err)

	_, err = a.Dial(context.Background(), "", "pwd")
	require.ErrorIs(t, err, ErrRemoteUfragEmpty)
	_, err = a.Accept(context.Background(), "ufrag", "")
	require.ErrorIs(t, err, ErrRemotePwdEmpty)

	require.ErrorIs(t, a.SetRemoteCredentials("", "pwd"), ErrRemoteUfragEmpty)
	require.ErrorIs(t, a.SetRemoteCredentials("ufrag", ""), ErrRemotePwdEmpty)

	require.NoError(t, a.Close())
}

func TestNewAgentValidation(t *testing.T) {
	_, err := NewAgent(&AgentConfig{PortMin: 2000, PortMax: 1000})
	require.ErrorIs(t, err, ErrPort)

	url, err := ParseURL("stun:stun.example.org")
	require.NoError(t, err)
	_, err = NewAgent(&AgentConfig{
		CandidateTypes: []CandidateType{CandidateTypeHost},
		Urls:           []*URL{url},
	})
	require.ErrorIs(t, err, ErrUselessUrlsProvided)

	_, err = NewAgent(&AgentConfig{
		NAT1To1IPs:             []string{"1.2.3.4"},
		NAT1To1IPCandidateType: CandidateTypeServerReflexive,
		CandidateTypes:         []CandidateType{CandidateTypeHost},
	})
	require.ErrorIs(t, err, ErrIneffectiveNAT1To1IPMappingSrflx)
}
