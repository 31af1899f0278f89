package test

import (
	"net"
	"testing"
	"time"

	"github.com/quorumwatch/fle/pkg/fle/core"
	"github.com/quorumwatch/fle/pkg/fle/definition"
	"github.com/quorumwatch/fle/pkg/fle/types"
	"github.com/quorumwatch/fle/pkg/fle/wire"
)

// Fails without an advertisable address
func TestTCPTransport_BadAddress(t *testing.T) {
	_, err := core.NewTCPTransport("0.0.0.0:0", nil, 1, nil, 1, 0, definition.NewDefaultLogger())
	if err != core.ErrNotAdvertisableAddress {
		t.Fatalf("err: %v", err)
	}
}

// Test that the advertised address is the current local address
func TestTCPTransport_WithAdvertiseAddress(t *testing.T) {
	addr := &net.TCPAddr{
		IP:   []byte{127, 0, 0, 1},
		Port: 56700,
	}
	trans, err := core.NewTCPTransport("0.0.0.0:0", addr, 1, nil, 1, 0, definition.NewDefaultLogger())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans.Halt()
	if trans.LocalAddress() != "127.0.0.1:56700" {
		t.Fatalf("not advertised: %s", trans.LocalAddress())
	}
}

// A frame sent between two live transports arrives intact, stamped
// with the dialing peer's sid.
func TestTCPTransport_RoundTrip(t *testing.T) {
	logger := definition.NewDefaultLogger()

	recv, err := core.NewTCPTransport("127.0.0.1:0", nil, 2, nil, 1, time.Second, logger)
	if err != nil {
		t.Fatalf("bind receiver: %v", err)
	}
	defer recv.Halt()

	peers := map[types.ServerID]string{2: recv.LocalAddress()}
	send, err := core.NewTCPTransport("127.0.0.1:0", nil, 1, peers, 1, time.Second, logger)
	if err != nil {
		t.Fatalf("bind sender: %v", err)
	}
	defer send.Halt()

	frame := wire.EncodeLegacy(types.Notification{
		LeaderSid:     1,
		Zxid:          42,
		ElectionEpoch: 3,
		PeerEpoch:     1,
		SenderState:   types.StateLooking,
	})
	if err := send.SendTo(2, frame); err != nil {
		t.Fatalf("sendTo: %v", err)
	}

	raw, ok := recv.PollRecv(5 * time.Second)
	if !ok {
		t.Fatal("frame never arrived")
	}
	if raw.Sender != 1 {
		t.Errorf("sender sid %d, expected 1", raw.Sender)
	}
	n, err := wire.Decode(raw.Frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n.LeaderSid != 1 || n.Zxid != 42 || n.ElectionEpoch != 3 {
		t.Errorf("frame mangled in transit: %+v", n)
	}
}
