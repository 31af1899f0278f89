package core

import "github.com/quorumwatch/fle/pkg/fle/types"

// voteTracker evaluates whether a candidate vote has an ack-quorum,
// under one or two overlapping QuorumVerifiers. Seeding a
// second tracker for a pending reconfiguration is what safely covers
// an in-flight membership change: a vote only wins if it holds a
// majority in both the old and the new configuration.
type voteTracker struct {
	verifiers []quorumAckSet
}

// quorumAckSet pairs a QuorumVerifier with the set of sids that have
// acked the candidate under consideration.
type quorumAckSet struct {
	verifier types.QuorumVerifier
	acked    map[types.ServerID]struct{}
}

// newVoteTracker seeds a tracker from the current verifier and, if a
// pending lastSeenQuorumVerifier exists with a strictly greater config
// version, from that one too.
func newVoteTracker(current, lastSeen types.QuorumVerifier) *voteTracker {
	t := &voteTracker{
		verifiers: []quorumAckSet{{verifier: current, acked: map[types.ServerID]struct{}{}}},
	}
	if lastSeen != nil && current != nil && lastSeen.GetVersion() > current.GetVersion() {
		t.verifiers = append(t.verifiers, quorumAckSet{verifier: lastSeen, acked: map[types.ServerID]struct{}{}})
	}
	return t
}

// tally records an ack from sender for every vote in votes that
// SameVote-matches candidate v, across every contained verifier.
func (t *voteTracker) tally(votes map[types.ServerID]types.Vote, v types.Vote) {
	for sender, vote := range votes {
		if !types.SameVote(vote, v) {
			continue
		}
		for i := range t.verifiers {
			t.verifiers[i].acked[sender] = struct{}{}
		}
	}
}

// hasAllQuorums returns true iff every contained verifier reports a
// quorum of acks under its own weights.
func (t *voteTracker) hasAllQuorums() bool {
	for _, qas := range t.verifiers {
		if qas.verifier == nil {
			continue
		}
		if !qas.verifier.ContainsQuorum(qas.acked) {
			return false
		}
	}
	return true
}

// trackVote is the convenience entry point: seed a
// tracker, tally every matching vote, and report quorum.
func trackVote(votes map[types.ServerID]types.Vote, v types.Vote, current, lastSeen types.QuorumVerifier) bool {
	t := newVoteTracker(current, lastSeen)
	t.tally(votes, v)
	return t.hasAllQuorums()
}
