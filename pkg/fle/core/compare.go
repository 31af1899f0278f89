package core

import "github.com/quorumwatch/fle/pkg/fle/types"

// totalOrderPredicate implements the Vote Comparator. It
// returns true when newV beats curV: the candidate must carry positive
// voting weight, and lexicographically (peerEpoch, zxid, leaderId) of
// newV must be strictly greater than that of curV. A zero-weight
// candidate never wins regardless of the other fields. This is the
// sole tie-break rule and must be identical across every peer.
func totalOrderPredicate(newV, curV types.Vote, qv types.QuorumVerifier) bool {
	if qv.GetWeight(newV.Leader) == 0 {
		return false
	}

	if newV.PeerEpoch != curV.PeerEpoch {
		return newV.PeerEpoch > curV.PeerEpoch
	}
	if newV.Zxid != curV.Zxid {
		return newV.Zxid > curV.Zxid
	}
	return newV.Leader > curV.Leader
}
