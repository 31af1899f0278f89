package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quorumwatch/fle/pkg/fle/types"
)

func uniformQV(sids ...types.ServerID) *DefaultQuorumVerifier {
	members := make(map[types.ServerID]struct{}, len(sids))
	for _, sid := range sids {
		members[sid] = struct{}{}
	}
	return NewUniformQuorumVerifier(members, 1)
}

func vote(leader types.ServerID, zxid types.ZXID, epoch int64) types.Vote {
	return types.Vote{Leader: leader, Zxid: zxid, PeerEpoch: epoch}
}

func TestTotalOrderPredicate(t *testing.T) {
	qv := uniformQV(1, 2, 3)

	cases := []struct {
		name     string
		newV     types.Vote
		curV     types.Vote
		expected bool
	}{
		{"higher epoch wins", vote(1, 0, 2), vote(3, 9, 1), true},
		{"lower epoch loses", vote(3, 9, 1), vote(1, 0, 2), false},
		{"higher zxid wins on equal epoch", vote(1, 5, 1), vote(3, 3, 1), true},
		{"lower zxid loses on equal epoch", vote(3, 3, 1), vote(1, 5, 1), false},
		{"higher sid wins full tie", vote(2, 5, 1), vote(1, 5, 1), true},
		{"lower sid loses full tie", vote(1, 5, 1), vote(2, 5, 1), false},
		{"identical vote never beats itself", vote(2, 5, 1), vote(2, 5, 1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, totalOrderPredicate(tc.newV, tc.curV, qv))
		})
	}
}

// A zero-weight candidate never wins regardless of its log state.
func TestTotalOrderPredicate_ZeroWeightNeverWins(t *testing.T) {
	qv := uniformQV(1, 2, 3)

	outsider := vote(9, 1<<40, 99)
	require.False(t, totalOrderPredicate(outsider, vote(1, 0, 0), qv))
}

// Strictness: for distinct positive-weight candidates exactly one
// direction of the comparison holds.
func TestTotalOrderPredicate_Strict(t *testing.T) {
	qv := uniformQV(1, 2, 3)

	votes := []types.Vote{
		vote(1, 0, 0), vote(2, 0, 0), vote(3, 0, 0),
		vote(1, 5, 0), vote(2, 5, 1), vote(3, 2, 2),
	}
	for i, a := range votes {
		for j, b := range votes {
			if i == j {
				continue
			}
			ab := totalOrderPredicate(a, b, qv)
			ba := totalOrderPredicate(b, a, qv)
			require.NotEqual(t, ab, ba, "votes %v and %v must order strictly", a, b)
		}
	}
}
