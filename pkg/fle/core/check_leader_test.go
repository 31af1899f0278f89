package core

import (
	"testing"

	"github.com/quorumwatch/fle/pkg/fle/types"
)

func TestCheckLeader(t *testing.T) {
	leading := types.Vote{Leader: 3, Zxid: 5, PeerEpoch: 1, State: types.StateLeading}
	following := types.Vote{Leader: 3, Zxid: 5, PeerEpoch: 1, State: types.StateFollowing}

	cases := []struct {
		name     string
		votes    map[types.ServerID]types.Vote
		leader   types.ServerID
		epoch    int64
		self     types.ServerID
		clock    int64
		expected bool
	}{
		{
			name:     "self leader in current round",
			votes:    nil,
			leader:   1, epoch: 4, self: 1, clock: 4,
			expected: true,
		},
		{
			name:     "self leader in stale round",
			votes:    nil,
			leader:   1, epoch: 3, self: 1, clock: 4,
			expected: false,
		},
		{
			name:     "leader itself claims LEADING",
			votes:    map[types.ServerID]types.Vote{3: leading},
			leader:   3, epoch: 4, self: 1, clock: 4,
			expected: true,
		},
		{
			name:     "leader only seen FOLLOWING",
			votes:    map[types.ServerID]types.Vote{3: following},
			leader:   3, epoch: 4, self: 1, clock: 4,
			expected: false,
		},
		{
			name:     "no ballot from the named leader",
			votes:    map[types.ServerID]types.Vote{2: following},
			leader:   3, epoch: 4, self: 1, clock: 4,
			expected: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := checkLeader(tc.votes, tc.leader, tc.epoch, tc.self, tc.clock)
			if got != tc.expected {
				t.Errorf("checkLeader = %v, expected %v", got, tc.expected)
			}
		})
	}
}
