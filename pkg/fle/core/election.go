package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/quorumwatch/fle/pkg/fle/metrics"
	"github.com/quorumwatch/fle/pkg/fle/types"
)

// Election is the Election Core: the lookForLeader state
// machine plus the Send and Receive Workers it drives. One Election
// exists per local peer; ParentPeer and Transport are injected so the
// package never reaches for ambient global state.
type Election struct {
	self      types.ServerID
	parent    types.ParentPeer
	transport types.Transport
	logger    types.Logger
	metrics   *metrics.Collector
	config    Config

	proposal     *proposal
	logicalClock atomic.Int64 // the electionEpoch counter

	recvQueue *notificationQueue
	outbox    chan types.ToSend

	mu            sync.Mutex
	recvSet       map[types.ServerID]types.Vote
	outOfElection map[types.ServerID]types.Vote
	stillLooking  map[types.ServerID]struct{}

	// abortRound is raised by the Receive Worker when a membership
	// change lands mid-election; the Core observes it once per loop
	// iteration and abandons the round.
	abortRound atomic.Bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewElection builds an Election around parent and transport. cfg's
// zero-valued fields fall back to DefaultConfig().
func NewElection(parent types.ParentPeer, transport types.Transport, logger types.Logger, mc *metrics.Collector, cfg Config) *Election {
	self := parent.GetMyID()
	e := &Election{
		self:          self,
		parent:        parent,
		transport:     transport,
		logger:        logger,
		metrics:       mc,
		config:        cfg.withDefaults(),
		recvQueue:     newNotificationQueue(),
		outbox:        make(chan types.ToSend, 256),
		recvSet:       make(map[types.ServerID]types.Vote),
		outOfElection: make(map[types.ServerID]types.Vote),
		stillLooking:  make(map[types.ServerID]struct{}),
		stopCh:        make(chan struct{}),
	}
	e.proposal = newProposal(e.initID(), e.initLastLoggedZxid(), e.initEpoch())
	return e
}

// Start connects the transport and spawns the Send and Receive
// Workers. LookForLeader must be driven by the caller separately.
func (e *Election) Start() {
	e.transport.ConnectAll()
	e.wg.Add(2)
	go e.sendWorker()
	go e.receiveWorker()
}

// Shutdown stops both workers and tears the transport down. Idempotent.
func (e *Election) Shutdown() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.recvQueue.Close()
		e.transport.Halt()
	})
	e.wg.Wait()
}

// GetLogicalClock returns the current electionEpoch.
func (e *Election) GetLogicalClock() int64 {
	return e.logicalClock.Load()
}

// GetVote returns the locally proposed vote, stamped with the current
// logical clock.
func (e *Election) GetVote() types.Vote {
	return e.proposal.asVote(e.GetLogicalClock())
}

// StillLookingPeers reports the sids that sent us LOOKING ballots
// while we were already LEADING, for the leader subsystem to chase.
func (e *Election) StillLookingPeers() []types.ServerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	sids := make([]types.ServerID, 0, len(e.stillLooking))
	for sid := range e.stillLooking {
		sids = append(sids, sid)
	}
	return sids
}

// initID is the identity this peer proposes for itself at round
// entry: observers never propose themselves, so they start from the
// sentinel and can only ever adopt someone else's ballot.
func (e *Election) initID() types.ServerID {
	if e.parent.GetLearnerType() == types.Participant {
		return e.self
	}
	return types.ServerID(types.Sentinel)
}

func (e *Election) initLastLoggedZxid() types.ZXID {
	if e.parent.GetLearnerType() == types.Participant {
		return e.parent.GetLastLoggedZxid()
	}
	return types.ZXID(types.Sentinel)
}

func (e *Election) initEpoch() int64 {
	if e.parent.GetLearnerType() == types.Participant {
		return e.parent.GetCurrentEpoch()
	}
	return types.Sentinel
}

// LookForLeader runs one full election round and returns the winning
// vote. It returns ErrShutdown if the Election was stopped while
// still LOOKING, and ErrReconfigAborted if the Receive Worker applied
// a membership change mid-round.
func (e *Election) LookForLeader() (types.Vote, error) {
	round := uuid.New()
	e.metrics.RoundStarted()
	e.abortRound.Store(false)

	e.parent.SetPeerState(types.StateLooking)
	clock := e.logicalClock.Add(1)
	e.metrics.SetLogicalClock(clock)

	e.mu.Lock()
	e.recvSet = make(map[types.ServerID]types.Vote)
	e.outOfElection = make(map[types.ServerID]types.Vote)
	e.stillLooking = make(map[types.ServerID]struct{})
	e.mu.Unlock()

	e.proposal.set(e.initID(), e.initLastLoggedZxid(), e.initEpoch())
	e.logger.Infof("fle: round=%s epoch=%d starting with proposal %s", round, clock, e.proposal.asVote(clock))
	e.broadcastCurrentVote()

	notTimeout := e.config.MinNotificationInterval

	for {
		select {
		case <-e.stopCh:
			e.leaveInstance()
			return types.Vote{}, types.ErrShutdown
		default:
		}
		if e.abortRound.Load() {
			e.logger.Infof("fle: round=%s aborted by reconfiguration", round)
			e.leaveInstance()
			return types.Vote{}, types.ErrReconfigAborted
		}

		n, ok := e.recvQueue.Dequeue(notTimeout)
		if !ok {
			if e.abortRound.Load() {
				continue
			}
			if winner, won := e.handlePollTimeout(notTimeout); won {
				return winner, nil
			}
			notTimeout *= 2
			if notTimeout > e.config.MaxNotificationInterval {
				notTimeout = e.config.MaxNotificationInterval
			}
			continue
		}
		notTimeout = e.config.MinNotificationInterval

		qv := e.parent.GetQuorumVerifier()
		if !validVoter(n.SenderSid, qv) || !validVoter(n.LeaderSid, qv) {
			e.metrics.NotificationDiscarded("invalid_voter")
			e.logger.Debugf("fle: round=%s ignoring ballot from %d naming %d: not in the voting view", round, n.SenderSid, n.LeaderSid)
			continue
		}

		switch n.SenderState {
		case types.StateLooking:
			if winner, won := e.handleLookingNotification(n, qv); won {
				return winner, nil
			}

		case types.StateFollowing, types.StateLeading:
			if winner, won := e.handleEstablishedNotification(n, qv); won {
				return winner, nil
			}

		case types.StateObserving:
			e.metrics.NotificationDiscarded("observer_sender")
			e.logger.Debugf("fle: round=%s ignoring ballot from observing peer %d", round, n.SenderSid)

		default:
			e.metrics.NotificationDiscarded("unknown_state")
			e.logger.Warnf("fle: round=%s unknown sender state %d from %d", round, n.SenderState, n.SenderSid)
		}
	}
}

// validVoter reports whether sid holds positive weight under qv.
func validVoter(sid types.ServerID, qv types.QuorumVerifier) bool {
	return qv.GetWeight(sid) > 0
}

// handlePollTimeout is the no-notification branch of the main loop:
// rebroadcast if every earlier send already drained, otherwise ask
// the Transport to rebuild connections. An Oracle-majority verifier
// additionally gets a chance to finalize a minority vote set (the
// 2-node recovery case).
func (e *Election) handlePollTimeout(notTimeout time.Duration) (types.Vote, bool) {
	select {
	case <-e.stopCh:
		return types.Vote{}, false
	default:
	}

	if e.transport.HaveDelivered() {
		e.broadcastCurrentVote()
	} else {
		e.transport.ConnectAll()
	}

	qv := e.parent.GetQuorumVerifier()
	if qv.GetNeedOracle() {
		extended := notTimeout != e.config.MinNotificationInterval
		currentVote := e.proposal.asVote(e.GetLogicalClock())
		if qv.RevalidateVoteSet(e.snapshotRecvSet(), currentVote, extended) {
			e.logger.Infof("fle: oracle confirmed vote set, finalizing with %s", currentVote)
			e.commit(currentVote)
			return currentVote, true
		}
	}
	return types.Vote{}, false
}

// handleLookingNotification folds one LOOKING peer's ballot into the
// round: adopt a higher electionEpoch, compare the ballot against our
// own proposal under the total order, tally it, and check whether a
// quorum has now formed.
func (e *Election) handleLookingNotification(n types.Notification, qv types.QuorumVerifier) (types.Vote, bool) {
	if int64(e.parent.GetLastLoggedZxid()) == -1 || int64(n.Zxid) == -1 {
		e.logger.Debugf("fle: ignoring ballot from %d, transaction log not readable yet", n.SenderSid)
		return types.Vote{}, false
	}

	v := n.Vote()
	clock := e.GetLogicalClock()

	switch {
	case n.ElectionEpoch > clock:
		e.logicalClock.Store(n.ElectionEpoch)
		e.metrics.SetLogicalClock(n.ElectionEpoch)
		e.mu.Lock()
		e.recvSet = make(map[types.ServerID]types.Vote)
		e.mu.Unlock()

		init := types.Vote{Leader: e.initID(), Zxid: e.initLastLoggedZxid(), PeerEpoch: e.initEpoch()}
		if totalOrderPredicate(v, init, qv) {
			e.proposal.set(v.Leader, v.Zxid, v.PeerEpoch)
		} else {
			e.proposal.set(init.Leader, init.Zxid, init.PeerEpoch)
		}
		e.broadcastCurrentVote()

	case n.ElectionEpoch < clock:
		e.metrics.NotificationDiscarded("stale_round")
		e.logger.Debugf("fle: dropping stale ballot from %d: epoch %d < %d", n.SenderSid, n.ElectionEpoch, clock)
		return types.Vote{}, false

	default:
		if totalOrderPredicate(v, e.proposal.asVote(clock), qv) {
			e.proposal.set(v.Leader, v.Zxid, v.PeerEpoch)
			e.broadcastCurrentVote()
		}
	}

	e.mu.Lock()
	e.recvSet[n.SenderSid] = v
	e.mu.Unlock()

	currentVote := e.proposal.asVote(e.GetLogicalClock())
	if !trackVote(e.snapshotRecvSet(), currentVote, qv, e.parent.GetLastSeenQuorumVerifier()) {
		return types.Vote{}, false
	}

	e.metrics.SetQuorumReached(true)
	winner, preempted := e.finalize(currentVote, qv)
	e.metrics.SetQuorumReached(false)
	if preempted {
		return types.Vote{}, false
	}
	return winner, true
}

// finalize waits out the finalization window: a quorum exists
// for currentVote, but for one more FinalizeWait any strictly better
// ballot may still preempt the commit. The better ballot is pushed
// back onto the front of the inbound queue so the very next Dequeue
// observes it, and the caller restarts the main loop instead of
// declaring a winner.
func (e *Election) finalize(currentVote types.Vote, qv types.QuorumVerifier) (types.Vote, bool) {
	deadline := time.Now().Add(e.config.FinalizeWait)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		n, ok := e.recvQueue.Dequeue(remaining)
		if !ok {
			break
		}
		if totalOrderPredicate(n.Vote(), currentVote, qv) {
			e.recvQueue.Unget(n)
			return types.Vote{}, true
		}
	}

	winner := currentVote
	winner.ElectionEpoch = e.GetLogicalClock()
	e.commit(winner)
	return winner, false
}

// handleEstablishedNotification processes a ballot from a peer that
// already believes it is FOLLOWING or LEADING. A ballot from our own
// round tallies against recvSet; every such ballot additionally
// tallies against outOfElection, which is how a rebooted peer joins a
// settled ensemble whose round it missed. Both paths are guarded by
// checkLeader so a set of stale ballots can never re-elect a leader
// that has since crashed.
func (e *Election) handleEstablishedNotification(n types.Notification, qv types.QuorumVerifier) (types.Vote, bool) {
	v := n.Vote()
	clock := e.GetLogicalClock()
	lastSeen := e.parent.GetLastSeenQuorumVerifier()

	if n.ElectionEpoch == clock {
		e.mu.Lock()
		e.recvSet[n.SenderSid] = v
		e.mu.Unlock()

		votes := e.snapshotRecvSet()
		if trackVote(votes, v, qv, lastSeen) && checkLeader(votes, v.Leader, n.ElectionEpoch, e.self, clock) {
			winner := types.Vote{Leader: v.Leader, Zxid: v.Zxid, ElectionEpoch: n.ElectionEpoch, PeerEpoch: v.PeerEpoch}
			e.commit(winner)
			return winner, true
		}
	}

	// Before joining an established ensemble, verify that a majority
	// is following the same leader.
	e.mu.Lock()
	e.outOfElection[n.SenderSid] = v
	votes := make(map[types.ServerID]types.Vote, len(e.outOfElection))
	for k, val := range e.outOfElection {
		votes[k] = val
	}
	e.mu.Unlock()

	if trackVote(votes, v, qv, lastSeen) && checkLeader(votes, v.Leader, n.ElectionEpoch, e.self, clock) {
		e.logicalClock.Store(n.ElectionEpoch)
		e.metrics.SetLogicalClock(n.ElectionEpoch)
		winner := types.Vote{Leader: v.Leader, Zxid: v.Zxid, ElectionEpoch: n.ElectionEpoch, PeerEpoch: v.PeerEpoch}
		e.commit(winner)
		return winner, true
	}

	// 2-node recovery: a LEADING peer we cannot form a quorum with is
	// still accepted when the arbiter does not award us leadership.
	if n.SenderState == types.StateLeading && qv.GetNeedOracle() && !qv.AskOracle() {
		e.logger.Infof("fle: oracle indicates to follow %d", v.Leader)
		winner := types.Vote{Leader: v.Leader, Zxid: v.Zxid, ElectionEpoch: n.ElectionEpoch, PeerEpoch: v.PeerEpoch}
		e.commit(winner)
		return winner, true
	}

	return types.Vote{}, false
}

// snapshotRecvSet copies recvSet under the monitor so trackers can
// iterate without holding it.
func (e *Election) snapshotRecvSet() map[types.ServerID]types.Vote {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make(map[types.ServerID]types.Vote, len(e.recvSet))
	for k, v := range e.recvSet {
		cp[k] = v
	}
	return cp
}

// commit ends the round: move the parent peer out of LOOKING and
// discard whatever ballots are still queued (leaveInstance).
func (e *Election) commit(winner types.Vote) {
	switch {
	case winner.Leader == e.self:
		e.parent.SetPeerState(types.StateLeading)
	case e.parent.GetLearnerType() == types.Participant:
		e.parent.SetPeerState(types.StateFollowing)
	default:
		e.parent.SetPeerState(types.StateObserving)
	}
	e.logger.Infof("fle: elected %s, local state now %s", winner, e.parent.GetPeerState())
	e.leaveInstance()
}

// leaveInstance clears the inbound queue and both vote sets.
func (e *Election) leaveInstance() {
	e.recvQueue.Drain()
	e.mu.Lock()
	e.recvSet = make(map[types.ServerID]types.Vote)
	e.outOfElection = make(map[types.ServerID]types.Vote)
	e.mu.Unlock()
}

// abortCurrentRound is invoked by the Receive Worker when a
// reconfiguration replaced the membership mid-election.
func (e *Election) abortCurrentRound() {
	e.abortRound.Store(true)
	// Wake the Core out of its poll so the flag is seen promptly.
	e.recvQueue.Kick()
}

// broadcastCurrentVote enqueues our current proposal for delivery to
// every voting member across the current and pending configs.
// The Transport drops self-addressed frames, so our own ack is
// recorded straight into recvSet instead of looping over the wire;
// without it a two-member ensemble could never assemble a majority.
func (e *Election) broadcastCurrentVote() {
	vote := e.proposal.asVote(e.GetLogicalClock())
	state := e.parent.GetPeerState()
	configBytes := []byte(e.parent.GetQuorumVerifier().String())
	for sid := range e.parent.GetCurrentAndNextConfigVoters() {
		if sid == e.self {
			continue
		}
		e.enqueueSend(sid, vote, state, configBytes)
	}
	if e.parent.GetLearnerType() == types.Participant {
		e.mu.Lock()
		e.recvSet[e.self] = vote
		e.mu.Unlock()
	}
}

// replyWithProposal answers a laggard LOOKING peer with our own
// current ballot.
func (e *Election) replyWithProposal(sid types.ServerID) {
	vote := e.proposal.asVote(e.GetLogicalClock())
	configBytes := []byte(e.parent.GetQuorumVerifier().String())
	e.enqueueSend(sid, vote, e.parent.GetPeerState(), configBytes)
}

// replyWithCommittedVote answers a LOOKING peer with the vote the
// parent already committed to. The vote keeps its own electionEpoch.
func (e *Election) replyWithCommittedVote(sid types.ServerID) {
	vote := e.parent.GetCurrentVote()
	configBytes := []byte(e.parent.GetQuorumVerifier().String())
	e.enqueueSend(sid, vote, e.parent.GetPeerState(), configBytes)
}

// replyToNonVoter is the courtesy reply sent to senders outside the
// voting view. Unlike the other replies it stamps the local logical
// clock as the electionEpoch, not the vote's own.
func (e *Election) replyToNonVoter(sid types.ServerID) {
	vote := e.parent.GetCurrentVote()
	vote.ElectionEpoch = e.GetLogicalClock()
	configBytes := []byte(e.parent.GetQuorumVerifier().String())
	e.enqueueSend(sid, vote, e.parent.GetPeerState(), configBytes)
}

func (e *Election) enqueueSend(sid types.ServerID, vote types.Vote, state types.PeerState, configBytes []byte) {
	ts := types.ToSend{
		RecipientSid:  sid,
		LeaderSid:     vote.Leader,
		Zxid:          vote.Zxid,
		ElectionEpoch: vote.ElectionEpoch,
		PeerEpoch:     vote.PeerEpoch,
		SenderState:   state,
		ConfigBytes:   configBytes,
	}
	select {
	case e.outbox <- ts:
	default:
		e.metrics.FrameDropped("outbox_full")
	}
}

func (e *Election) trackStillLooking(sid types.ServerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stillLooking[sid] = struct{}{}
}
