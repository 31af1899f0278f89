package types

import "fmt"

// Vote is an immutable ballot. Equality for election purposes
// (SameVote) considers only (Leader, Zxid, PeerEpoch); ElectionEpoch
// and the optional State/ConfigVersion are bookkeeping, not part of
// the candidate identity two peers compare when deciding a winner.
type Vote struct {
	Leader        ServerID
	Zxid          ZXID
	ElectionEpoch int64
	PeerEpoch     int64

	// State and ConfigVersion are only meaningful on votes derived
	// from an inbound Notification; a Vote synthesized locally from
	// the current Proposal leaves them at their zero value.
	State         PeerState
	ConfigVersion uint64
}

// SameVote reports whether two votes name the same candidate.
func SameVote(a, b Vote) bool {
	return a.Leader == b.Leader && a.Zxid == b.Zxid && a.PeerEpoch == b.PeerEpoch
}

func (v Vote) String() string {
	return fmt.Sprintf("Vote{leader=%d zxid=%d electionEpoch=%d peerEpoch=%d state=%s}",
		v.Leader, v.Zxid, v.ElectionEpoch, v.PeerEpoch, v.State)
}

// Notification is the decoded form of a received frame.
type Notification struct {
	SenderSid     ServerID
	LeaderSid     ServerID
	Zxid          ZXID
	ElectionEpoch int64
	PeerEpoch     int64
	SenderState   PeerState
	MsgVersion    int32

	// QuorumConfig carries the sender's serialized QuorumVerifier, if
	// the frame included a config trailer (msgVersion > 1).
	QuorumConfig []byte
}

// Vote extracts the ballot carried by a Notification, ignoring fields
// (sender identity, msgVersion, config) that aren't part of the
// candidate comparison.
func (n Notification) Vote() Vote {
	return Vote{
		Leader:        n.LeaderSid,
		Zxid:          n.Zxid,
		ElectionEpoch: n.ElectionEpoch,
		PeerEpoch:     n.PeerEpoch,
		State:         n.SenderState,
	}
}

// ToSend is an outbound notification addressed to a single recipient.
type ToSend struct {
	RecipientSid  ServerID
	LeaderSid     ServerID
	Zxid          ZXID
	ElectionEpoch int64
	PeerEpoch     int64
	SenderState   PeerState
	ConfigBytes   []byte
}
