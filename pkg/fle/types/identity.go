package types

import (
	"fmt"
	"math"
)

// ServerID identifies a single peer within the ensemble.
type ServerID int64

// ZXID is a monotonically increasing 64-bit transaction id; its upper
// 32 bits encode the accepted peerEpoch.
type ZXID int64

// Sentinel marks the fields a non-participant must never fill with
// its own identity: an observer proposes Sentinel instead of itself,
// so it can never win a comparison against a real candidate.
const Sentinel int64 = math.MinInt64

// PeerEpoch extracts the accepted-epoch component baked into the high
// 32 bits of a zxid.
func (z ZXID) PeerEpoch() int64 {
	return int64(z) >> 32
}

// PeerState is the closed set of participation states a peer can be
// in. Unrecognized wire values must be treated as discard-with-log,
// never panic or default silently to LOOKING.
type PeerState int32

const (
	StateLooking PeerState = iota
	StateFollowing
	StateLeading
	StateObserving
)

func (s PeerState) String() string {
	switch s {
	case StateLooking:
		return "LOOKING"
	case StateFollowing:
		return "FOLLOWING"
	case StateLeading:
		return "LEADING"
	case StateObserving:
		return "OBSERVING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int32(s))
	}
}

// ParsePeerState maps a wire-level senderState integer onto a
// PeerState, reporting ok=false for any value outside 0..3.
func ParsePeerState(v int32) (PeerState, bool) {
	if v < int32(StateLooking) || v > int32(StateObserving) {
		return 0, false
	}
	return PeerState(v), true
}

// LearnerType distinguishes peers that participate in elections from
// pure observers, who never propose themselves and never vote.
type LearnerType int32

const (
	Participant LearnerType = iota
	Observer
)
