package core

import (
	"testing"

	"github.com/quorumwatch/fle/pkg/fle/types"
)

func TestVoteTracker_SingleVerifierQuorum(t *testing.T) {
	qv := uniformQV(1, 2, 3)
	candidate := vote(3, 5, 1)

	votes := map[types.ServerID]types.Vote{
		1: vote(3, 5, 1),
		2: vote(2, 5, 1),
	}
	if trackVote(votes, candidate, qv, nil) {
		t.Error("1 of 3 matching acks must not be a quorum")
	}

	votes[2] = vote(3, 5, 1)
	if !trackVote(votes, candidate, qv, nil) {
		t.Error("2 of 3 matching acks must be a quorum")
	}
}

// During reconfiguration a candidate must hold a majority in both the
// old and the new membership.
func TestVoteTracker_DualVerifier(t *testing.T) {
	current := NewUniformQuorumVerifier(map[types.ServerID]struct{}{1: {}, 2: {}, 3: {}}, 1)
	pending := NewUniformQuorumVerifier(map[types.ServerID]struct{}{3: {}, 4: {}, 5: {}}, 2)
	candidate := vote(3, 9, 1)

	// Majority of the old config only.
	votes := map[types.ServerID]types.Vote{
		1: candidate,
		2: candidate,
	}
	if trackVote(votes, candidate, current, pending) {
		t.Error("a vote winning only the old config must not have all quorums")
	}

	// Add a majority of the new config too.
	votes[3] = candidate
	votes[4] = candidate
	if !trackVote(votes, candidate, current, pending) {
		t.Error("majorities in both configs must have all quorums")
	}
}

// A pending verifier with a stale version is not consulted.
func TestVoteTracker_StalePendingIgnored(t *testing.T) {
	current := NewUniformQuorumVerifier(map[types.ServerID]struct{}{1: {}, 2: {}, 3: {}}, 5)
	stale := NewUniformQuorumVerifier(map[types.ServerID]struct{}{7: {}, 8: {}, 9: {}}, 4)
	candidate := vote(2, 1, 0)

	votes := map[types.ServerID]types.Vote{
		1: candidate,
		2: candidate,
	}
	if !trackVote(votes, candidate, current, stale) {
		t.Error("an outdated pending config must not veto the current quorum")
	}
}

// Only exact (leader, zxid, peerEpoch) matches ack the candidate.
func TestVoteTracker_EqualityIgnoresElectionEpoch(t *testing.T) {
	qv := uniformQV(1, 2, 3)
	candidate := vote(3, 5, 1)

	votes := map[types.ServerID]types.Vote{
		1: {Leader: 3, Zxid: 5, PeerEpoch: 1, ElectionEpoch: 40},
		2: {Leader: 3, Zxid: 5, PeerEpoch: 1, ElectionEpoch: 41},
	}
	if !trackVote(votes, candidate, qv, nil) {
		t.Error("electionEpoch must not take part in vote equality")
	}

	votes[2] = types.Vote{Leader: 3, Zxid: 6, PeerEpoch: 1}
	if trackVote(votes, candidate, qv, nil) {
		t.Error("a differing zxid must not ack the candidate")
	}
}
