package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quorumwatch/fle/pkg/fle/types"
)

// DefaultQuorumVerifier is the weighted-majority QuorumVerifier: every
// named member carries an integer weight (1 unless overridden), and a
// quorum is any subset whose summed weight exceeds half the
// ensemble's total weight.
type DefaultQuorumVerifier struct {
	weights map[types.ServerID]int64
	total   int64
	version uint64
}

// NewUniformQuorumVerifier builds a verifier over members with weight
// 1 each, the common case.
func NewUniformQuorumVerifier(members map[types.ServerID]struct{}, version uint64) *DefaultQuorumVerifier {
	weights := make(map[types.ServerID]int64, len(members))
	for sid := range members {
		weights[sid] = 1
	}
	return NewDefaultQuorumVerifier(weights, version)
}

// NewDefaultQuorumVerifier builds a verifier from an explicit per-sid
// weight map, stamped with version (the reconfiguration generation it
// represents). A sid absent from weights is not a voter.
func NewDefaultQuorumVerifier(weights map[types.ServerID]int64, version uint64) *DefaultQuorumVerifier {
	cp := make(map[types.ServerID]int64, len(weights))
	var total int64
	for sid, w := range weights {
		cp[sid] = w
		total += w
	}
	return &DefaultQuorumVerifier{weights: cp, total: total, version: version}
}

func (v *DefaultQuorumVerifier) GetWeight(sid types.ServerID) int64 {
	return v.weights[sid]
}

func (v *DefaultQuorumVerifier) ContainsQuorum(sids map[types.ServerID]struct{}) bool {
	var sum int64
	for sid := range sids {
		sum += v.weights[sid]
	}
	return sum*2 > v.total
}

func (v *DefaultQuorumVerifier) GetVotingMembers() map[types.ServerID]struct{} {
	cp := make(map[types.ServerID]struct{}, len(v.weights))
	for sid := range v.weights {
		cp[sid] = struct{}{}
	}
	return cp
}

func (v *DefaultQuorumVerifier) GetVersion() uint64 { return v.version }

func (v *DefaultQuorumVerifier) String() string {
	ids := make([]int, 0, len(v.weights))
	for sid := range v.weights {
		ids = append(ids, int(sid))
	}
	sort.Ints(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("server.%d", id)
	}
	return fmt.Sprintf("version=%d members=%s", v.version, strings.Join(parts, ","))
}

func (v *DefaultQuorumVerifier) GetNeedOracle() bool { return false }

func (v *DefaultQuorumVerifier) AskOracle() bool { return false }

func (v *DefaultQuorumVerifier) RevalidateVoteSet(map[types.ServerID]types.Vote, types.Vote, bool) bool {
	return false
}

// Oracle is the external arbiter an OracleMajorityVerifier consults to
// break ties in a two-member ensemble, where neither a 1-of-2 nor a
// 0-of-2 ack set is a strict majority.
type Oracle interface {
	// Query reports whether the arbiter awards leadership to the local
	// peer. An unreachable arbiter reads as false: never lead without
	// an explicit grant.
	Query() bool
}

// OracleMajorityVerifier wraps a DefaultQuorumVerifier and exposes an
// Oracle to break the two-node tie the plain majority rule can never
// resolve on its own.
type OracleMajorityVerifier struct {
	*DefaultQuorumVerifier
	oracle Oracle
}

// NewOracleMajorityVerifier pairs base with oracle. Only meaningful
// when base has exactly two voting members; GetNeedOracle still
// reports true for larger ensembles, and whether the caller acts on
// it is a caller-side decision.
func NewOracleMajorityVerifier(base *DefaultQuorumVerifier, oracle Oracle) *OracleMajorityVerifier {
	return &OracleMajorityVerifier{DefaultQuorumVerifier: base, oracle: oracle}
}

func (v *OracleMajorityVerifier) GetNeedOracle() bool { return true }

func (v *OracleMajorityVerifier) AskOracle() bool {
	if v.oracle == nil {
		return false
	}
	return v.oracle.Query()
}

// RevalidateVoteSet re-checks a vote set that failed the plain quorum
// test. If the acks for candidate do form a quorum after all, that
// stands; otherwise, once the caller's timeout has extended past its
// floor, the arbiter decides whether the local peer may finalize with
// its own proposal anyway.
func (v *OracleMajorityVerifier) RevalidateVoteSet(votes map[types.ServerID]types.Vote, candidate types.Vote, extendedTimeout bool) bool {
	acked := make(map[types.ServerID]struct{}, len(votes))
	for sid, vote := range votes {
		if types.SameVote(vote, candidate) {
			acked[sid] = struct{}{}
		}
	}
	if v.ContainsQuorum(acked) {
		return true
	}
	if !extendedTimeout {
		return false
	}
	return v.AskOracle()
}
