package core

import "github.com/quorumwatch/fle/pkg/fle/types"

// checkLeader guards against a quorum of stale
// ballots re-electing a leader that has since crashed: a vote map
// naming leaderID is only trustworthy if either leaderID is ourselves
// in the current round, or the map still holds a fresh ballot from
// leaderID itself claiming LEADING.
func checkLeader(votes map[types.ServerID]types.Vote, leaderID types.ServerID, electionEpoch int64, self types.ServerID, logicalClock int64) bool {
	if leaderID == self {
		return electionEpoch == logicalClock
	}

	v, ok := votes[leaderID]
	return ok && v.State == types.StateLeading
}
