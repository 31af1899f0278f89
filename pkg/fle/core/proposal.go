package core

import (
	"sync"

	"github.com/quorumwatch/fle/pkg/fle/types"
)

// proposal is the mutable (proposedLeader, proposedZxid, proposedEpoch)
// triple the Election Core maintains across a lookForLeader round. It
// is guarded by its own mutex rather than relying on the caller to
// serialize access, since both the Core goroutine and (read-only) the
// Receive Worker and GetVote callers touch it via asVote.
type proposal struct {
	mutex sync.Mutex

	leader types.ServerID
	zxid   types.ZXID
	epoch  int64
}

func newProposal(self types.ServerID, zxid types.ZXID, epoch int64) *proposal {
	return &proposal{leader: self, zxid: zxid, epoch: epoch}
}

// set overwrites the triple under the monitor.
func (p *proposal) set(leader types.ServerID, zxid types.ZXID, epoch int64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.leader = leader
	p.zxid = zxid
	p.epoch = epoch
}

// get reads the triple under the monitor.
func (p *proposal) get() (types.ServerID, types.ZXID, int64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.leader, p.zxid, p.epoch
}

// asVote renders the current proposal as a Vote stamped with the
// given electionEpoch (the logical clock at read time).
func (p *proposal) asVote(electionEpoch int64) types.Vote {
	leader, zxid, epoch := p.get()
	return types.Vote{
		Leader:        leader,
		Zxid:          zxid,
		ElectionEpoch: electionEpoch,
		PeerEpoch:     epoch,
	}
}
