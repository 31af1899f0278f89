package core

import (
	"time"

	"github.com/quorumwatch/fle/pkg/fle/types"
	"github.com/quorumwatch/fle/pkg/fle/wire"
)

const recvPollInterval = 3 * time.Second

// receiveWorker implements the inbound pipeline: decode an
// inbound frame, apply any reconfiguration side effect it carries,
// shortcut non-voters with a courtesy reply, then post the ballot and
// answer laggards or already-settled peers as needed.
func (e *Election) receiveWorker() {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		raw, ok := e.transport.PollRecv(recvPollInterval)
		if !ok {
			continue
		}

		// 1. decode
		n, err := wire.Decode(raw.Frame)
		if err != nil {
			e.metrics.FrameDropped(err.Error())
			e.logger.Warnf("fle: dropping frame from %d: %v", raw.Sender, err)
			continue
		}
		n.SenderSid = raw.Sender

		// 2. reconfiguration side effects: only a config strictly
		// newer than ours is applied.
		if len(n.QuorumConfig) > 0 {
			qv, cfgErr := e.parent.ConfigFromString(string(n.QuorumConfig))
			switch {
			case cfgErr != nil:
				e.logger.Warnf("fle: malformed quorum config from %d: %v", raw.Sender, cfgErr)
			case qv.GetVersion() > e.parent.GetQuorumVerifier().GetVersion():
				if e.parent.ProcessReconfig(qv) {
					e.logger.Infof("fle: membership changed mid-round, abandoning round")
					e.abortCurrentRound()
				}
			}
		}

		// 3. non-voter courtesy reply
		if !e.inVotingView(n.SenderSid) {
			e.replyToNonVoter(n.SenderSid)
			e.metrics.NotificationDiscarded("not_a_voter")
			continue
		}

		e.metrics.NotificationReceived()
		selfState := e.parent.GetPeerState()

		// 4-5. the state is already a closed enum after decode; post
		// the ballot to the Election Core.
		e.recvQueue.Enqueue(n)

		if n.SenderState != types.StateLooking {
			continue
		}

		switch {
		case selfState == types.StateLooking:
			// 6. laggard reply: a LOOKING sender stuck in an older
			// round gets our current ballot so it can catch up
			// instead of waiting out its own backoff.
			if n.ElectionEpoch < e.GetLogicalClock() {
				e.replyWithProposal(n.SenderSid)
			}

		default:
			// 7. we already settled; answer with the committed vote.
			e.replyWithCommittedVote(n.SenderSid)
			if selfState == types.StateLeading {
				e.trackStillLooking(n.SenderSid)
			}
		}
	}
}

// inVotingView reports whether sid is a voter in the current or the
// pending configuration.
func (e *Election) inVotingView(sid types.ServerID) bool {
	_, ok := e.parent.GetCurrentAndNextConfigVoters()[sid]
	return ok
}
