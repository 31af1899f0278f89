package core

import (
	"time"

	"github.com/quorumwatch/fle/pkg/fle/types"
	"github.com/quorumwatch/fle/pkg/fle/wire"
)

// sendWorker drains the outbound queue, handing each encoded frame to
// the Transport. The 3-second timeout branch exists
// only so the loop periodically revisits the stop channel even while
// the outbox sits empty; it carries no protocol meaning.
func (e *Election) sendWorker() {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopCh:
			return
		case ts, ok := <-e.outbox:
			if !ok {
				return
			}
			e.deliver(ts)
		case <-time.After(3 * time.Second):
		}
	}
}

func (e *Election) deliver(ts types.ToSend) {
	frame := wire.EncodeToSend(ts)
	if err := e.transport.SendTo(ts.RecipientSid, frame); err != nil {
		e.logger.Warnf("fle: send to %d failed: %v", ts.RecipientSid, err)
		if e.metrics != nil {
			e.metrics.FrameDropped("send_error")
		}
		return
	}
	if e.metrics != nil {
		e.metrics.NotificationSent()
	}
}
