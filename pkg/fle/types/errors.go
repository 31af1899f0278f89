package types

import "errors"

var (
	// ErrMalformedFrame is returned when a received frame is shorter
	// than the minimum 28-byte prefix, has an unsupported length
	// (29-39 or 41-43 bytes), or its declared config trailer length is
	// negative or overruns the frame.
	ErrMalformedFrame = errors.New("fle: malformed notification frame")

	// ErrUnknownSenderState is returned when a frame's senderState
	// field doesn't map to one of LOOKING/FOLLOWING/LEADING/OBSERVING.
	ErrUnknownSenderState = errors.New("fle: unknown sender state")

	// ErrNotAVoter names the case of a sender or a named leader that
	// doesn't hold positive weight in the active QuorumVerifier. The
	// election code discards such ballots without an error, so no
	// function in this module returns it.
	ErrNotAVoter = errors.New("fle: sender is not a valid voter")

	// ErrShutdown is returned by lookForLeader when the Election was
	// asked to stop while still LOOKING.
	ErrShutdown = errors.New("fle: election shut down while looking for leader")

	// ErrReconfigAborted is returned by lookForLeader when the Receive
	// Worker observed a membership change mid-election.
	ErrReconfigAborted = errors.New("fle: election aborted by reconfiguration")
)
