// Package wire implements the election notification frame codec:
// a fixed-prefix, optional-trailer binary layout that must round-trip
// 28-, 40-, and >=44-byte frames produced by peers running older
// protocol versions. The byte offsets are load-bearing wire
// compatibility, so frames are read and written with encoding/binary
// directly instead of a general-purpose serialization library.
package wire

import (
	"encoding/binary"

	"github.com/quorumwatch/fle/pkg/fle/types"
)

const (
	// LegacyFrameSize is the 28-byte frame that predates peerEpoch:
	// senderState(4) + leaderId(8) + zxid(8) + electionEpoch(8).
	// peerEpoch is derived from the high 32 bits of zxid.
	LegacyFrameSize = 28

	// V1FrameSize is the 40-byte encoding: the legacy prefix plus an
	// 8-byte peerEpoch and a 4-byte version slot that decoders treat
	// as absent (msgVersion forced to 0).
	V1FrameSize = 40

	// MinConfigFrameSize is the minimum size of a frame that also
	// carries a msgVersion and configLength prefix.
	MinConfigFrameSize = 44

	// CurrentMsgVersion is stamped on every frame this module encodes
	// with a config trailer.
	CurrentMsgVersion = 2

	// LegacyMsgVersion is the nominal version of the 40-byte encoding.
	LegacyMsgVersion = 1
)

// Decode parses a raw frame into a Notification, per the decode
// contract. It accepts exactly the 28-byte legacy frame, the 40-byte
// legacy encoding, and any frame of >=44 bytes; every other length is
// reported as a malformed frame (short or trailing-underflow), as is
// an out-of-range configLength.
func Decode(frame []byte) (types.Notification, error) {
	if len(frame) < LegacyFrameSize {
		return types.Notification{}, types.ErrMalformedFrame
	}

	senderStateRaw := int32(binary.BigEndian.Uint32(frame[0:4]))
	leaderID := int64(binary.BigEndian.Uint64(frame[4:12]))
	zxid := int64(binary.BigEndian.Uint64(frame[12:20]))
	electionEpoch := int64(binary.BigEndian.Uint64(frame[20:28]))

	n := types.Notification{
		LeaderSid:     types.ServerID(leaderID),
		Zxid:          types.ZXID(zxid),
		ElectionEpoch: electionEpoch,
	}

	switch len(frame) {
	case LegacyFrameSize:
		// 28 bytes: peerEpoch derives from the high 32 bits of zxid,
		// msgVersion is absent, treated as 0.
		n.PeerEpoch = types.ZXID(zxid).PeerEpoch()

	case V1FrameSize:
		// 40 bytes: explicit peerEpoch; msgVersion absent (the
		// trailing 4 bytes are never interpreted).
		n.PeerEpoch = int64(binary.BigEndian.Uint64(frame[28:36]))

	default:
		if len(frame) < MinConfigFrameSize {
			// 29-39, 41-43: not a supported frame length.
			return types.Notification{}, types.ErrMalformedFrame
		}
		n.PeerEpoch = int64(binary.BigEndian.Uint64(frame[28:36]))
		n.MsgVersion = int32(binary.BigEndian.Uint32(frame[36:40]))

		if n.MsgVersion > 1 {
			configLength := int32(binary.BigEndian.Uint32(frame[40:44]))
			if configLength < 0 || int(configLength) > len(frame)-MinConfigFrameSize {
				return types.Notification{}, types.ErrMalformedFrame
			}
			if configLength > 0 {
				n.QuorumConfig = append([]byte(nil), frame[44:44+configLength]...)
			}
		}
	}

	state, ok := types.ParsePeerState(senderStateRaw)
	if !ok {
		return types.Notification{}, types.ErrUnknownSenderState
	}
	n.SenderState = state

	return n, nil
}

// EncodeCurrent encodes n using the current (msgVersion=2) wire
// format, with a length-prefixed config trailer.
func EncodeCurrent(n types.Notification, configBytes []byte) []byte {
	frame := make([]byte, MinConfigFrameSize+len(configBytes))
	binary.BigEndian.PutUint32(frame[0:4], uint32(n.SenderState))
	binary.BigEndian.PutUint64(frame[4:12], uint64(n.LeaderSid))
	binary.BigEndian.PutUint64(frame[12:20], uint64(n.Zxid))
	binary.BigEndian.PutUint64(frame[20:28], uint64(n.ElectionEpoch))
	binary.BigEndian.PutUint64(frame[28:36], uint64(n.PeerEpoch))
	binary.BigEndian.PutUint32(frame[36:40], CurrentMsgVersion)
	binary.BigEndian.PutUint32(frame[40:44], uint32(len(configBytes)))
	copy(frame[44:], configBytes)
	return frame
}

// EncodeLegacy encodes n using the 40-byte legacy format (msgVersion
// implicitly 1, no config trailer), used against peers that predate
// the config trailer and in interop tests.
func EncodeLegacy(n types.Notification) []byte {
	frame := make([]byte, V1FrameSize)
	binary.BigEndian.PutUint32(frame[0:4], uint32(n.SenderState))
	binary.BigEndian.PutUint64(frame[4:12], uint64(n.LeaderSid))
	binary.BigEndian.PutUint64(frame[12:20], uint64(n.Zxid))
	binary.BigEndian.PutUint64(frame[20:28], uint64(n.ElectionEpoch))
	binary.BigEndian.PutUint64(frame[28:36], uint64(n.PeerEpoch))
	return frame
}

// EncodeToSend renders a ToSend as a wire frame, using the current
// encoding whenever it carries config bytes and the legacy encoding
// otherwise.
func EncodeToSend(ts types.ToSend) []byte {
	n := types.Notification{
		LeaderSid:     ts.LeaderSid,
		Zxid:          ts.Zxid,
		ElectionEpoch: ts.ElectionEpoch,
		PeerEpoch:     ts.PeerEpoch,
		SenderState:   ts.SenderState,
	}
	if len(ts.ConfigBytes) == 0 {
		return EncodeLegacy(n)
	}
	return EncodeCurrent(n, ts.ConfigBytes)
}
