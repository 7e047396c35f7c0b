// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

import (
	"context"
	"sync"

	"github.com/amberlink/rtcnet/ice"
	"github.com/amberlink/rtcnet/internal/mux"
	"github.com/pion/logging"
)

// ICETransport allows an application access to information about the ICE
// transport over which packets are sent and received.
type ICETransport struct {
	lock sync.RWMutex

	role  ICERole
	state ICETransportState

	onConnectionStateChangeHandler       func(ICETransportState)
	onSelectedCandidatePairChangeHandler func(*ICECandidatePair)

	agent *ice.Agent
	conn  *ice.Conn
	mux   *mux.Mux

	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger
}

// NewICETransport creates a new ICETransport. The transport owns an ICE
// agent configured from the gather options and the SettingEngine.
func (api *API) NewICETransport(opts ICEGatherOptions) (*ICETransport, error) {
	validatedServers := []*ice.URL{}
	for _, server := range opts.ICEServers {
		urls, err := server.validate()
		if err != nil {
			return nil, err
		}
		validatedServers = append(validatedServers, urls...)
	}

	nat1To1CandidateType, err := getNAT1To1CandidateType(api.settingEngine.candidates.NAT1To1IPCandidateType)
	if err != nil {
		return nil, err
	}

	networkTypes := []ice.NetworkType{}
	for _, t := range api.settingEngine.candidates.ICENetworkTypes {
		iceNetworkType, typeErr := getICENetworkType(t)
		if typeErr != nil {
			return nil, typeErr
		}
		networkTypes = append(networkTypes, iceNetworkType)
	}

	loggerFactory := api.settingEngine.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	config := &ice.AgentConfig{
		Urls:                   validatedServers,
		PortMin:                api.settingEngine.ephemeralUDP.PortMin,
		PortMax:                api.settingEngine.ephemeralUDP.PortMax,
		LocalUfrag:             api.settingEngine.candidates.UsernameFragment,
		LocalPwd:               api.settingEngine.candidates.Password,
		DisconnectedTimeout:    api.settingEngine.timeout.ICEDisconnectedTimeout,
		FailedTimeout:          api.settingEngine.timeout.ICEFailedTimeout,
		KeepaliveInterval:      api.settingEngine.timeout.ICEKeepaliveInterval,
		HostAcceptanceMinWait:  api.settingEngine.timeout.ICEHostAcceptanceMinWait,
		SrflxAcceptanceMinWait: api.settingEngine.timeout.ICESrflxAcceptanceMinWait,
		PrflxAcceptanceMinWait: api.settingEngine.timeout.ICEPrflxAcceptanceMinWait,
		RelayAcceptanceMinWait: api.settingEngine.timeout.ICERelayAcceptanceMinWait,
		NetworkTypes:           networkTypes,
		NAT1To1IPs:             api.settingEngine.candidates.NAT1To1IPs,
		NAT1To1IPCandidateType: nat1To1CandidateType,
		Net:                    api.settingEngine.net,
		InterfaceFilter:        api.settingEngine.candidates.InterfaceFilter,
		LoggerFactory:          loggerFactory,
	}

	agent, err := ice.NewAgent(config)
	if err != nil {
		return nil, err
	}

	return &ICETransport{
		state:         ICETransportStateNew,
		agent:         agent,
		loggerFactory: loggerFactory,
		log:           loggerFactory.NewLogger("ortc"),
	}, nil
}

func getNAT1To1CandidateType(candidateType ICECandidateType) (ice.CandidateType, error) {
	switch candidateType {
	case ICECandidateTypeHost:
		return ice.CandidateTypeHost, nil
	case ICECandidateTypeSrflx:
		return ice.CandidateTypeServerReflexive, nil
	case ICECandidateType(Unknown):
		return ice.CandidateTypeUnspecified, nil
	default:
		return ice.CandidateTypeUnspecified, errICECandidateTypeUnknown
	}
}

// Gather ICE candidates.
func (t *ICETransport) Gather() error {
	return t.agent.GatherCandidates()
}

// OnLocalCandidate sets a handler that is invoked for every gathered local
// candidate. The handler is called with nil once gathering completed.
func (t *ICETransport) OnLocalCandidate(f func(*ICECandidate)) error {
	return t.agent.OnCandidate(func(candidate ice.Candidate) {
		if candidate == nil {
			f(nil)
			return
		}

		c, err := newICECandidateFromICE(candidate)
		if err != nil {
			t.log.Warnf("failed to convert ice candidate: %v", err)
			return
		}
		f(&c)
	})
}

// GetLocalCandidates returns the sequence of valid local candidates
// gathered so far.
func (t *ICETransport) GetLocalCandidates() ([]ICECandidate, error) {
	candidates, err := t.agent.GetLocalCandidates()
	if err != nil {
		return nil, err
	}

	return newICECandidatesFromICE(candidates)
}

// GetLocalParameters returns the ICE parameters of the local transport.
func (t *ICETransport) GetLocalParameters() (ICEParameters, error) {
	usernameFragment, password, err := t.agent.GetLocalUserCredentials()
	if err != nil {
		return ICEParameters{}, err
	}

	return ICEParameters{
		UsernameFragment: usernameFragment,
		Password:         password,
		ICELite:          false,
	}, nil
}

// Start incoming connectivity checks based on its configured role.
func (t *ICETransport) Start(params ICEParameters, role *ICERole) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if err := t.agent.OnConnectionStateChange(func(iceState ice.ConnectionState) {
		state := newICETransportStateFromICE(iceState)

		t.setState(state)
		t.onConnectionStateChange(state)
	}); err != nil {
		return err
	}
	if err := t.agent.OnSelectedCandidatePairChange(func(local, remote ice.Candidate) {
		candidates, err := newICECandidatesFromICE([]ice.Candidate{local, remote})
		if err != nil {
			t.log.Warnf("failed to convert selected pair: %v", err)
			return
		}
		t.onSelectedCandidatePairChange(NewICECandidatePair(&candidates[0], &candidates[1]))
	}); err != nil {
		return err
	}

	if role == nil {
		controlled := ICERoleControlled
		role = &controlled
	}
	t.role = *role

	// Drop the lock here to allow trickle-ICE candidates to be
	// added so that the agent can complete a connection
	t.lock.Unlock()

	var iceConn *ice.Conn
	var err error
	switch *role {
	case ICERoleControlling:
		iceConn, err = t.agent.Dial(context.TODO(),
			params.UsernameFragment,
			params.Password)

	case ICERoleControlled:
		iceConn, err = t.agent.Accept(context.TODO(),
			params.UsernameFragment,
			params.Password)

	default:
		err = errICERoleUnknown
	}

	// Reacquire the lock to set the connection/mux
	t.lock.Lock()
	if err != nil {
		return err
	}

	t.conn = iceConn

	config := mux.Config{
		Conn:          t.conn,
		BufferSize:    receiveMTU,
		LoggerFactory: t.loggerFactory,
	}
	t.mux = mux.NewMux(config)

	return nil
}

// Restart is not exposed currently because ORTC has users create a whole new ICETransport
// so for now lets keep it private so we don't cause ORTC users to depend on non-standard APIs
func (t *ICETransport) restart() error {
	return t.agent.Restart("", "")
}

// Stop irreversibly stops the ICETransport.
func (t *ICETransport) Stop() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.mux != nil {
		return t.mux.Close()
	} else if t.agent != nil {
		return t.agent.Close()
	}
	return nil
}

// OnSelectedCandidatePairChange sets a handler that is invoked when a new
// ICE candidate pair is selected
func (t *ICETransport) OnSelectedCandidatePairChange(f func(*ICECandidatePair)) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.onSelectedCandidatePairChangeHandler = f
}

func (t *ICETransport) onSelectedCandidatePairChange(pair *ICECandidatePair) {
	t.lock.RLock()
	handler := t.onSelectedCandidatePairChangeHandler
	t.lock.RUnlock()

	if handler != nil {
		handler(pair)
	}
}

// OnConnectionStateChange sets a handler that is fired when the ICE
// connection state changes.
func (t *ICETransport) OnConnectionStateChange(f func(ICETransportState)) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.onConnectionStateChangeHandler = f
}

func (t *ICETransport) onConnectionStateChange(state ICETransportState) {
	t.lock.RLock()
	handler := t.onConnectionStateChangeHandler
	t.lock.RUnlock()

	if handler != nil {
		handler(state)
	}
}

// Role indicates the current role of the ICE transport.
func (t *ICETransport) Role() ICERole {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.role
}

// SetRemoteCandidates sets the sequence of candidates associated with the
// remote ICETransport.
func (t *ICETransport) SetRemoteCandidates(remoteCandidates []ICECandidate) error {
	t.lock.RLock()
	defer t.lock.RUnlock()

	for _, c := range remoteCandidates {
		i, err := c.toICE()
		if err != nil {
			return err
		}
		if err = t.agent.AddRemoteCandidate(i); err != nil {
			return err
		}
	}

	return nil
}

// AddRemoteCandidate adds a candidate associated with the remote
// ICETransport.
func (t *ICETransport) AddRemoteCandidate(remoteCandidate ICECandidate) error {
	t.lock.RLock()
	defer t.lock.RUnlock()

	c, err := remoteCandidate.toICE()
	if err != nil {
		return err
	}

	return t.agent.AddRemoteCandidate(c)
}

// State returns the current ICE transport state.
func (t *ICETransport) State() ICETransportState {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.state
}

func (t *ICETransport) setState(state ICETransportState) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.state = state
}

func (t *ICETransport) newEndpoint(f mux.MatchFunc) *mux.Endpoint {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.mux.NewEndpoint(f)
}

func (t *ICETransport) ensureConn() error {
	if t.conn == nil || t.mux == nil {
		return errICEConnectionNotStarted
	}
	return nil
}
