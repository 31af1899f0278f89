// Package fle is the public facade over the election machinery in
// pkg/fle/core: it wires a ParentPeer, a Transport, logging, and
// metrics into an Election, and exposes the small surface a caller
// needs to run one or many election rounds.
package fle

import (
	"github.com/quorumwatch/fle/pkg/fle/core"
	"github.com/quorumwatch/fle/pkg/fle/definition"
	"github.com/quorumwatch/fle/pkg/fle/metrics"
	"github.com/quorumwatch/fle/pkg/fle/types"

	"github.com/prometheus/client_golang/prometheus"
)

// Config is the caller-facing tuning surface, re-exported from
// pkg/fle/core so callers never need to import core directly.
type Config = core.Config

// DefaultConfig returns the stock timing defaults.
func DefaultConfig() Config { return core.DefaultConfig() }

// Election wraps the Election Core with sensible zero-value defaults
// (a logrus-backed Logger, an unregistered metrics Collector) so the
// common case needs no extra wiring.
type Election struct {
	core *core.Election
}

// Options configures an Election at construction time. Logger,
// Registerer and Config may all be left zero valued.
type Options struct {
	Logger     types.Logger
	Registerer prometheus.Registerer
	Config     Config
}

// New builds an Election around parent and transport.
func New(parent types.ParentPeer, transport types.Transport, opts Options) *Election {
	logger := opts.Logger
	if logger == nil {
		logger = definition.NewDefaultLogger()
	}
	collector := metrics.NewCollector(opts.Registerer)
	return &Election{core: core.NewElection(parent, transport, logger, collector, opts.Config)}
}

// Start connects the transport and spawns the Send and Receive Workers.
func (e *Election) Start() { e.core.Start() }

// Shutdown stops the workers and tears the transport down.
func (e *Election) Shutdown() { e.core.Shutdown() }

// LookForLeader runs one election round to completion.
func (e *Election) LookForLeader() (types.Vote, error) { return e.core.LookForLeader() }

// GetVote returns the locally proposed vote.
func (e *Election) GetVote() types.Vote { return e.core.GetVote() }

// GetLogicalClock returns the current electionEpoch.
func (e *Election) GetLogicalClock() int64 { return e.core.GetLogicalClock() }
