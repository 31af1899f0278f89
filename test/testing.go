package test

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quorumwatch/fle/pkg/fle"
	"github.com/quorumwatch/fle/pkg/fle/core"
	"github.com/quorumwatch/fle/pkg/fle/definition"
	"github.com/quorumwatch/fle/pkg/fle/types"
	"github.com/quorumwatch/fle/pkg/fle/wire"
)

// MemoryHub is an in-process message switch: one inbox per sid,
// frames moved by value, no sockets. Every peer of a test ensemble
// holds a MemoryTransport view onto the same hub.
type MemoryHub struct {
	mu      sync.Mutex
	inboxes map[types.ServerID]chan types.RawFrame
	closed  bool
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{inboxes: make(map[types.ServerID]chan types.RawFrame)}
}

func (h *MemoryHub) inbox(sid types.ServerID) chan types.RawFrame {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.inboxes[sid]
	if !ok {
		ch = make(chan types.RawFrame, 1024)
		h.inboxes[sid] = ch
	}
	return ch
}

// Inject delivers a hand-crafted frame to sid as if from sender,
// letting tests play the role of peers that aren't running a real
// Election.
func (h *MemoryHub) Inject(to, from types.ServerID, frame []byte) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return
	}
	select {
	case h.inbox(to) <- types.RawFrame{Sender: from, Frame: frame}:
	default:
	}
}

// InjectNotification encodes n on the 40-byte legacy wire format and
// delivers it to sid.
func (h *MemoryHub) InjectNotification(to types.ServerID, n types.Notification) {
	h.Inject(to, n.SenderSid, wire.EncodeLegacy(n))
}

// Transport returns self's view onto the hub.
func (h *MemoryHub) Transport(self types.ServerID) *MemoryTransport {
	return &MemoryTransport{hub: h, self: self, stopCh: make(chan struct{})}
}

// MemoryTransport implements types.Transport over a MemoryHub.
// Self-addressed frames are dropped, matching the contract the
// Election Core is written against.
type MemoryTransport struct {
	hub  *MemoryHub
	self types.ServerID

	stopCh   chan struct{}
	stopOnce sync.Once
}

func (t *MemoryTransport) SendTo(sid types.ServerID, frame []byte) error {
	if sid == t.self {
		return nil
	}
	select {
	case <-t.stopCh:
		return nil
	default:
	}
	cp := append([]byte(nil), frame...)
	t.hub.Inject(sid, t.self, cp)
	return nil
}

func (t *MemoryTransport) PollRecv(timeout time.Duration) (types.RawFrame, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case raw := <-t.hub.inbox(t.self):
		return raw, true
	case <-t.stopCh:
		return types.RawFrame{}, false
	case <-timer.C:
		return types.RawFrame{}, false
	}
}

func (t *MemoryTransport) HaveDelivered() bool { return true }

func (t *MemoryTransport) ConnectAll() {}

func (t *MemoryTransport) Halt() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// StubPeer is the in-memory ParentPeer a test ensemble member runs
// against: identity and persisted state are plain fields, the
// committed vote is written back by the harness once a round settles.
type StubPeer struct {
	Self         types.ServerID
	Learner      types.LearnerType
	LastZxid     types.ZXID
	CurrentEpoch int64

	mu         sync.Mutex
	state      types.PeerState
	vote       types.Vote
	qv         types.QuorumVerifier
	lastSeenQV types.QuorumVerifier
}

// NewStubPeer builds a participant peer voting among members.
func NewStubPeer(self types.ServerID, zxid types.ZXID, epoch int64, members map[types.ServerID]struct{}) *StubPeer {
	return &StubPeer{
		Self:         self,
		Learner:      types.Participant,
		LastZxid:     zxid,
		CurrentEpoch: epoch,
		state:        types.StateLooking,
		vote:         types.Vote{Leader: self, Zxid: zxid, PeerEpoch: epoch},
		qv:           core.NewUniformQuorumVerifier(members, 1),
	}
}

func (p *StubPeer) GetMyID() types.ServerID           { return p.Self }
func (p *StubPeer) GetLearnerType() types.LearnerType { return p.Learner }
func (p *StubPeer) GetLastLoggedZxid() types.ZXID     { return p.LastZxid }
func (p *StubPeer) GetCurrentEpoch() int64            { return p.CurrentEpoch }

func (p *StubPeer) GetPeerState() types.PeerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *StubPeer) SetPeerState(state types.PeerState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

func (p *StubPeer) GetCurrentVote() types.Vote {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vote
}

func (p *StubPeer) SetCurrentVote(v types.Vote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vote = v
}

func (p *StubPeer) GetCurrentAndNextConfigVoters() map[types.ServerID]struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	voters := p.qv.GetVotingMembers()
	if p.lastSeenQV != nil {
		for sid := range p.lastSeenQV.GetVotingMembers() {
			voters[sid] = struct{}{}
		}
	}
	return voters
}

func (p *StubPeer) GetQuorumVerifier() types.QuorumVerifier {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.qv
}

func (p *StubPeer) SetQuorumVerifier(qv types.QuorumVerifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.qv = qv
}

func (p *StubPeer) GetLastSeenQuorumVerifier() types.QuorumVerifier {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeenQV
}

func (p *StubPeer) ConfigFromString(s string) (types.QuorumVerifier, error) {
	var version uint64
	var memberList string
	if _, err := fmt.Sscanf(s, "version=%d members=%s", &version, &memberList); err != nil {
		return nil, fmt.Errorf("malformed quorum config %q: %w", s, err)
	}
	members := make(map[types.ServerID]struct{})
	var id int64
	for _, tok := range splitMembers(memberList) {
		if _, err := fmt.Sscanf(tok, "server.%d", &id); err != nil {
			return nil, fmt.Errorf("malformed member %q: %w", tok, err)
		}
		members[types.ServerID(id)] = struct{}{}
	}
	return core.NewUniformQuorumVerifier(members, version), nil
}

func (p *StubPeer) ProcessReconfig(qv types.QuorumVerifier) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeenQV = qv
	changed := qv.GetVersion() > p.qv.GetVersion()
	return p.state == types.StateLooking && changed
}

func splitMembers(list string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(list); i++ {
		if i == len(list) || list[i] == ',' {
			if i > start {
				out = append(out, list[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// ElectionCluster is an ensemble of Elections joined by one
// MemoryHub, mirroring the cluster harness shape the rest of the test
// suite drives everything through.
type ElectionCluster struct {
	T     *testing.T
	Hub   *MemoryHub
	Peers []*StubPeer
	Elect []*fle.Election

	group *sync.WaitGroup
}

// CreateCluster builds size participant peers with equal (zero) logs.
func CreateCluster(size int, t *testing.T) *ElectionCluster {
	zxids := make([]types.ZXID, size)
	return CreateClusterWithZxids(zxids, t)
}

// CreateClusterWithZxids builds one peer per entry, sids 1..n, each
// holding the given last-logged zxid.
func CreateClusterWithZxids(zxids []types.ZXID, t *testing.T) *ElectionCluster {
	members := make(map[types.ServerID]struct{}, len(zxids))
	for i := range zxids {
		members[types.ServerID(i+1)] = struct{}{}
	}

	cluster := &ElectionCluster{
		T:     t,
		Hub:   NewMemoryHub(),
		group: &sync.WaitGroup{},
	}
	for i, zxid := range zxids {
		sid := types.ServerID(i + 1)
		peer := NewStubPeer(sid, zxid, 0, cloneMembers(members))
		election := fle.New(peer, cluster.Hub.Transport(sid), fle.Options{
			Logger:     definition.NewDefaultLogger(),
			Registerer: prometheus.NewRegistry(),
		})
		cluster.Peers = append(cluster.Peers, peer)
		cluster.Elect = append(cluster.Elect, election)
	}
	return cluster
}

func cloneMembers(members map[types.ServerID]struct{}) map[types.ServerID]struct{} {
	cp := make(map[types.ServerID]struct{}, len(members))
	for sid := range members {
		cp[sid] = struct{}{}
	}
	return cp
}

// Run starts every peer, runs one election round each, and returns
// the per-peer winning votes. Peers that error (shutdown mid-round)
// report a zero Vote.
func (c *ElectionCluster) Run(timeout time.Duration) []types.Vote {
	votes := make([]types.Vote, len(c.Elect))
	for i, election := range c.Elect {
		c.group.Add(1)
		go func(i int, election *fle.Election) {
			defer c.group.Done()
			election.Start()
			vote, err := election.LookForLeader()
			if err != nil {
				return
			}
			c.Peers[i].SetCurrentVote(vote)
			votes[i] = vote
		}(i, election)
	}

	if !WaitThisOrTimeout(c.group.Wait, timeout) {
		c.T.Errorf("cluster did not settle within %s", timeout)
		PrintStackTrace(c.T)
	}
	return votes
}

// Off shuts every Election down.
func (c *ElectionCluster) Off() {
	var group sync.WaitGroup
	for _, election := range c.Elect {
		group.Add(1)
		go func(e *fle.Election) {
			defer group.Done()
			e.Shutdown()
		}(election)
	}
	group.Wait()
}

// AgreesOn asserts every participant settled on leader.
func (c *ElectionCluster) AgreesOn(leader types.ServerID, votes []types.Vote) {
	for i, vote := range votes {
		if vote.Leader != leader {
			c.T.Errorf("peer %d settled on %d, expected %d", i+1, vote.Leader, leader)
		}
	}
	for _, peer := range c.Peers {
		want := types.StateFollowing
		if peer.Self == leader {
			want = types.StateLeading
		}
		if got := peer.GetPeerState(); got != want {
			c.T.Errorf("peer %d state %s, expected %s", peer.Self, got, want)
		}
	}
}

func PrintStackTrace(t *testing.T) {
	buf := make([]byte, 1<<16)
	runtime.Stack(buf, true)
	t.Errorf("%s", buf)
}

func WaitThisOrTimeout(cb func(), duration time.Duration) bool {
	done := make(chan bool)
	go func() {
		cb()
		done <- true
	}()
	select {
	case <-done:
		return true
	case <-time.After(duration):
		return false
	}
}
