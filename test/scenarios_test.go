package test

import (
	"testing"
	"time"

	"github.com/quorumwatch/fle/pkg/fle"
	"github.com/quorumwatch/fle/pkg/fle/definition"
	"github.com/quorumwatch/fle/pkg/fle/types"
)

// Three peers, equal logs: every field of the total order ties except
// the server id, so the highest sid must lead.
func TestElection_ColdStartEqualLogs(t *testing.T) {
	cluster := CreateCluster(3, t)
	defer cluster.Off()

	votes := cluster.Run(15 * time.Second)
	cluster.AgreesOn(3, votes)

	for i, vote := range votes {
		if vote.Zxid != 0 || vote.PeerEpoch != 0 {
			t.Errorf("peer %d settled on unexpected ballot %s", i+1, vote)
		}
	}
}

// Peers hold zxids (5, 5, 3): a fresher log beats a higher sid, and
// between the two equally fresh peers the higher sid wins.
func TestElection_HigherZxidWinsOverHigherSid(t *testing.T) {
	cluster := CreateClusterWithZxids([]types.ZXID{5, 5, 3}, t)
	defer cluster.Off()

	votes := cluster.Run(15 * time.Second)
	cluster.AgreesOn(2, votes)
}

// A peer boots into an ensemble that settled long ago: its own round
// counter is far behind, so the FOLLOWING/LEADING ballots land in
// outOfElection, and once a majority of them names the same live
// leader the late peer adopts that round wholesale.
func TestElection_JoinExistingQuorum(t *testing.T) {
	hub := NewMemoryHub()
	members := map[types.ServerID]struct{}{1: {}, 2: {}, 3: {}, 4: {}}
	peer := NewStubPeer(4, 0, 0, members)
	election := fle.New(peer, hub.Transport(4), fle.Options{Logger: definition.NewDefaultLogger()})
	election.Start()
	defer election.Shutdown()

	const settledEpoch = 7
	ballots := []types.Notification{
		{SenderSid: 1, LeaderSid: 2, Zxid: 9, ElectionEpoch: settledEpoch, PeerEpoch: 1, SenderState: types.StateFollowing},
		{SenderSid: 2, LeaderSid: 2, Zxid: 9, ElectionEpoch: settledEpoch, PeerEpoch: 1, SenderState: types.StateLeading},
		{SenderSid: 3, LeaderSid: 2, Zxid: 9, ElectionEpoch: settledEpoch, PeerEpoch: 1, SenderState: types.StateFollowing},
	}

	done := make(chan types.Vote, 1)
	go func() {
		vote, err := election.LookForLeader()
		if err != nil {
			t.Errorf("lookForLeader: %v", err)
			return
		}
		done <- vote
	}()

	for _, n := range ballots {
		hub.InjectNotification(4, n)
	}

	select {
	case vote := <-done:
		if vote.Leader != 2 {
			t.Errorf("joined leader %d, expected 2", vote.Leader)
		}
		if vote.ElectionEpoch != settledEpoch {
			t.Errorf("joined epoch %d, expected %d", vote.ElectionEpoch, settledEpoch)
		}
		if clock := election.GetLogicalClock(); clock != settledEpoch {
			t.Errorf("logical clock %d, expected %d", clock, settledEpoch)
		}
		if state := peer.GetPeerState(); state != types.StateFollowing {
			t.Errorf("state %s, expected FOLLOWING", state)
		}
	case <-time.After(10 * time.Second):
		PrintStackTrace(t)
		t.Fatal("peer 4 failed to join the settled ensemble")
	}
}

// A laggard LOOKING peer joins two peers that already settled: the
// settled peers answer its ballots with their committed vote, letting
// it catch up without a fresh full round.
func TestElection_LaggardCatchesUp(t *testing.T) {
	cluster := CreateCluster(3, t)
	defer cluster.Off()

	// Only peers 2 and 3 elect first; peer 1 stays down.
	votes := make([]types.Vote, 3)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, i := range []int{1, 2} {
			i := i
			cluster.group.Add(1)
			go func() {
				defer cluster.group.Done()
				cluster.Elect[i].Start()
				vote, err := cluster.Elect[i].LookForLeader()
				if err != nil {
					return
				}
				cluster.Peers[i].SetCurrentVote(vote)
				votes[i] = vote
			}()
		}
		cluster.group.Wait()
	}()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("majority pair failed to settle")
	}
	if votes[1].Leader != 3 || votes[2].Leader != 3 {
		t.Fatalf("majority pair settled on %d/%d, expected 3", votes[1].Leader, votes[2].Leader)
	}

	// Peer 1 wakes up late and must fall in behind the same leader.
	cluster.Elect[0].Start()
	vote, err := cluster.Elect[0].LookForLeader()
	if err != nil {
		t.Fatalf("laggard lookForLeader: %v", err)
	}
	if vote.Leader != 3 {
		t.Errorf("laggard settled on %d, expected 3", vote.Leader)
	}
	if state := cluster.Peers[0].GetPeerState(); state != types.StateFollowing {
		t.Errorf("laggard state %s, expected FOLLOWING", state)
	}
}
