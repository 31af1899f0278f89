package main

import (
	"bufio"
	"net"
	"time"
)

// tcpOracle implements core.Oracle against a trivial line protocol: a
// fresh connection is opened per query, the remote writes a single
// "0\n" or "1\n" line, and the connection is closed. An unreachable
// arbiter reads as "no grant". Good enough for a harness binary; a
// production Oracle would be a long-lived client of whatever external
// arbiter the deployment trusts.
type tcpOracle struct {
	addr    string
	timeout time.Duration
}

func newTCPOracle(addr string) *tcpOracle {
	return &tcpOracle{addr: addr, timeout: 2 * time.Second}
}

func (o *tcpOracle) Query() bool {
	conn, err := net.DialTimeout("tcp", o.addr, o.timeout)
	if err != nil {
		return false
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(o.timeout))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return false
	}
	return line == "1\n" || line == "1"
}
