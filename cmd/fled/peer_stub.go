package main

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/quorumwatch/fle/pkg/fle/core"
	"github.com/quorumwatch/fle/pkg/fle/types"
)

// parentPeerStub is the minimal types.ParentPeer this harness binary
// offers: its persisted state (last logged zxid, current epoch) comes
// straight from CLI flags rather than a real log/epoch store.
type parentPeerStub struct {
	self         types.ServerID
	learner      types.LearnerType
	lastZxid     types.ZXID
	currentEpoch int64

	mu    sync.Mutex
	state types.PeerState
	vote  types.Vote

	qv         types.QuorumVerifier
	lastSeenQV types.QuorumVerifier
}

func newParentPeerStub(cfg runConfig) *parentPeerStub {
	weights := make(map[types.ServerID]int64, len(cfg.peers))
	for sid := range cfg.peers {
		weights[sid] = 1
	}
	for sid, w := range cfg.weights {
		weights[sid] = w
	}
	qv := core.NewDefaultQuorumVerifier(weights, 1)

	return &parentPeerStub{
		self:         types.ServerID(cfg.id),
		learner:      cfg.learner,
		lastZxid:     types.ZXID(cfg.lastZxid),
		currentEpoch: cfg.currentEpoch,
		state:        types.StateLooking,
		vote: types.Vote{
			Leader:    types.ServerID(cfg.id),
			Zxid:      types.ZXID(cfg.lastZxid),
			PeerEpoch: cfg.currentEpoch,
		},
		qv: qv,
	}
}

func (p *parentPeerStub) GetMyID() types.ServerID           { return p.self }
func (p *parentPeerStub) GetLearnerType() types.LearnerType { return p.learner }
func (p *parentPeerStub) GetLastLoggedZxid() types.ZXID     { return p.lastZxid }
func (p *parentPeerStub) GetCurrentEpoch() int64            { return p.currentEpoch }

func (p *parentPeerStub) GetPeerState() types.PeerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *parentPeerStub) SetPeerState(state types.PeerState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

func (p *parentPeerStub) GetCurrentVote() types.Vote {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vote
}

func (p *parentPeerStub) setCurrentVote(v types.Vote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vote = v
}

func (p *parentPeerStub) GetCurrentAndNextConfigVoters() map[types.ServerID]struct{} {
	voters := p.qv.GetVotingMembers()
	if p.lastSeenQV != nil {
		for sid := range p.lastSeenQV.GetVotingMembers() {
			voters[sid] = struct{}{}
		}
	}
	return voters
}

func (p *parentPeerStub) GetQuorumVerifier() types.QuorumVerifier         { return p.qv }
func (p *parentPeerStub) GetLastSeenQuorumVerifier() types.QuorumVerifier { return p.lastSeenQV }

// ConfigFromString parses the wire format DefaultQuorumVerifier.String
// produces: "version=<n> members=server.<id>,server.<id>,...".
func (p *parentPeerStub) ConfigFromString(s string) (types.QuorumVerifier, error) {
	var version uint64
	var memberList string
	if _, err := fmt.Sscanf(s, "version=%d members=%s", &version, &memberList); err != nil {
		return nil, fmt.Errorf("fle: malformed quorum config %q: %w", s, err)
	}

	members := make(map[types.ServerID]struct{})
	for _, tok := range strings.Split(memberList, ",") {
		tok = strings.TrimPrefix(tok, "server.")
		id, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("fle: malformed member %q: %w", tok, err)
		}
		members[types.ServerID(id)] = struct{}{}
	}
	return core.NewUniformQuorumVerifier(members, version), nil
}

// ProcessReconfig swaps in qv as the last-seen verifier. This harness
// binary never runs a live reconfiguration, so it never reports
// abortLooking; a real ParentPeer backed by a persisted config store
// would compare qv against the active one and abort an in-flight
// LOOKING round when membership actually changed.
func (p *parentPeerStub) ProcessReconfig(qv types.QuorumVerifier) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeenQV = qv
	return false
}
