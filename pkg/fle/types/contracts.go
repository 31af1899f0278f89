package types

import "time"

// RawFrame is a single undecoded message as handed back by the
// Transport, paired with the sid of whoever sent it.
type RawFrame struct {
	Sender ServerID
	Frame  []byte
}

// Transport is the external collaborator that delivers framed
// messages between peer ids. FLE never assumes anything about how
// bytes cross the wire beyond this contract; pkg/fle/core.TCPTransport
// is the concrete implementation wired into cmd/fled.
type Transport interface {
	// SendTo is best-effort delivery; it must never block the caller
	// past a short internal deadline.
	SendTo(sid ServerID, frame []byte) error

	// PollRecv waits up to timeout for a raw frame, returning ok=false
	// on timeout.
	PollRecv(timeout time.Duration) (RawFrame, bool)

	// HaveDelivered reports whether every per-destination outbound
	// queue is currently empty.
	HaveDelivered() bool

	// ConnectAll (re)initiates connections to every known peer.
	ConnectAll()

	// Halt tears the transport down. Idempotent.
	Halt()
}

// QuorumVerifier is the external majority predicate. GetWeight
// returning 0 marks sid as a non-voter.
type QuorumVerifier interface {
	GetWeight(sid ServerID) int64
	ContainsQuorum(sids map[ServerID]struct{}) bool
	GetVotingMembers() map[ServerID]struct{}
	GetVersion() uint64
	String() string

	// GetNeedOracle reports whether this verifier is an Oracle-majority
	// variant that should be consulted to break ties. Plain majority
	// verifiers always return false.
	GetNeedOracle() bool

	// AskOracle consults the external arbiter; true means the arbiter
	// awards leadership to the local peer.
	AskOracle() bool

	// RevalidateVoteSet re-examines a vote set that failed the plain
	// quorum test. votes is the sid -> Vote map accumulated so far and
	// candidate the proposal under consideration; extendedTimeout is
	// true once the caller's poll timeout has backed off past its
	// floor. Only Oracle-majority variants ever return true.
	RevalidateVoteSet(votes map[ServerID]Vote, candidate Vote, extendedTimeout bool) bool
}

// ParentPeer is the consumed contract exposing the enclosing
// peer's identity, persisted state, and membership view. FLE never
// reaches for ambient/global peer state; everything is injected
// through this interface at Election construction.
type ParentPeer interface {
	GetMyID() ServerID
	GetLearnerType() LearnerType
	GetLastLoggedZxid() ZXID
	GetCurrentEpoch() int64

	GetPeerState() PeerState
	SetPeerState(state PeerState)

	GetCurrentVote() Vote

	// GetCurrentAndNextConfigVoters returns the union of voter sids
	// across the current config and any pending reconfiguration.
	GetCurrentAndNextConfigVoters() map[ServerID]struct{}

	GetQuorumVerifier() QuorumVerifier
	GetLastSeenQuorumVerifier() QuorumVerifier

	// ConfigFromString parses a wire-serialized QuorumVerifier.
	ConfigFromString(s string) (QuorumVerifier, error)

	// ProcessReconfig applies a newly-seen QuorumVerifier. abortLooking
	// is true iff the parent was LOOKING and the new config differs
	// from the old one, signaling the Election Core to abandon the
	// current round.
	ProcessReconfig(qv QuorumVerifier) (abortLooking bool)
}
