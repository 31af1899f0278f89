// Command fled is a harness/demo binary that runs one Fast Leader
// Election peer against peers reachable over TCP. It exists to drive
// and observe the election package from outside the test suite, not
// as a production coordination-service launcher.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/quorumwatch/fle/pkg/fle"
	"github.com/quorumwatch/fle/pkg/fle/core"
	"github.com/quorumwatch/fle/pkg/fle/definition"
	"github.com/quorumwatch/fle/pkg/fle/types"
)

var (
	flagID           int64
	flagPeers        []string
	flagWeights      []string
	flagLastZxid     int64
	flagCurrentEpoch int64
	flagLearner      string
	flagMinNotify    time.Duration
	flagMaxNotify    time.Duration
	flagFinalizeWait time.Duration
	flagOracleAddr   string
	flagBindAddr     string
	flagMetricsDump  bool
)

var rootCmd = &cobra.Command{
	Use:   "fled",
	Short: "fled runs a single Fast Leader Election peer",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "join an ensemble and run an election until interrupted",
	RunE:  runElection,
}

func init() {
	runCmd.Flags().Int64Var(&flagID, "id", 0, "this peer's server id")
	runCmd.Flags().StringArrayVar(&flagPeers, "peer", nil, "sid=host:port, repeatable")
	runCmd.Flags().StringArrayVar(&flagWeights, "weight", nil, "sid=int, repeatable (default 1)")
	runCmd.Flags().Int64Var(&flagLastZxid, "last-zxid", 0, "last logged zxid")
	runCmd.Flags().Int64Var(&flagCurrentEpoch, "current-epoch", 0, "current accepted epoch")
	runCmd.Flags().StringVar(&flagLearner, "learner", "participant", "participant|observer")
	runCmd.Flags().DurationVar(&flagMinNotify, "min-notification", 200*time.Millisecond, "floor poll timeout")
	runCmd.Flags().DurationVar(&flagMaxNotify, "max-notification", 60*time.Second, "backoff ceiling")
	runCmd.Flags().DurationVar(&flagFinalizeWait, "finalize-wait", 200*time.Millisecond, "finalization window")
	runCmd.Flags().StringVar(&flagOracleAddr, "oracle-addr", "", "optional, enables OracleMajorityVerifier")
	runCmd.Flags().StringVar(&flagBindAddr, "bind", "", "local TCP bind address (default: this peer's --peer address)")
	runCmd.Flags().BoolVar(&flagMetricsDump, "metrics-dump", false, "dump election metrics to stdout on exit")

	rootCmd.AddCommand(runCmd)
}

func runElection(cmd *cobra.Command, args []string) error {
	logger := definition.NewDefaultLogger()

	cfg, err := buildRunConfig()
	if err != nil {
		return err
	}

	parent := newParentPeerStub(cfg)

	advertise, ok := cfg.peers[parent.self]
	if !ok {
		return fmt.Errorf("--id %d must also appear in --peer", parent.self)
	}
	addr, err := resolveAdvertise(advertise)
	if err != nil {
		return err
	}

	bindAddr := cfg.bindAddr
	if bindAddr == "" {
		bindAddr = advertise
	}
	transport, err := core.NewTCPTransport(bindAddr, addr, parent.self, cfg.peers, 3, 10*time.Second, logger)
	if err != nil {
		return fmt.Errorf("bind transport: %w", err)
	}

	if cfg.oracleAddr != "" {
		base := parent.qv.(*core.DefaultQuorumVerifier)
		parent.qv = core.NewOracleMajorityVerifier(base, newTCPOracle(cfg.oracleAddr))
	}

	registry := prometheus.NewRegistry()
	election := fle.New(parent, transport, fle.Options{
		Logger:     logger,
		Registerer: registry,
		Config: fle.Config{
			MinNotificationInterval: cfg.minNotify,
			MaxNotificationInterval: cfg.maxNotify,
			FinalizeWait:            cfg.finalizeWait,
		},
	})
	election.Start()
	defer election.Shutdown()

	logger.Infof("fle: peer %d starting election", parent.self)
	vote, err := election.LookForLeader()
	if err != nil {
		return fmt.Errorf("election: %w", err)
	}
	parent.setCurrentVote(vote)
	logger.Infof("fle: peer %d settled on %s, state=%s", parent.self, vote, parent.GetPeerState())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	if flagMetricsDump {
		if err := dumpMetrics(registry, os.Stdout); err != nil {
			logger.Warnf("fle: metrics dump failed: %v", err)
		}
	}
	return nil
}

// dumpMetrics renders everything gathered from registry in the
// Prometheus text exposition format.
func dumpMetrics(registry *prometheus.Registry, w *os.File) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// resolveAdvertise parses a "host:port" string into a *net.TCPAddr
// suitable for TCPTransport's advertise parameter.
func resolveAdvertise(hostport string) (*net.TCPAddr, error) {
	addr, err := net.ResolveTCPAddr("tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("resolve advertise address %q: %w", hostport, err)
	}
	return addr, nil
}

func buildRunConfig() (runConfig, error) {
	peers := make(map[types.ServerID]string)
	for _, raw := range flagPeers {
		sid, addr, err := parsePeerFlag(raw)
		if err != nil {
			return runConfig{}, err
		}
		peers[sid] = addr
	}

	weights := make(map[types.ServerID]int64)
	for _, raw := range flagWeights {
		sid, w, err := parseWeightFlag(raw)
		if err != nil {
			return runConfig{}, err
		}
		weights[sid] = w
	}

	learner, err := parseLearnerType(flagLearner)
	if err != nil {
		return runConfig{}, err
	}

	return runConfig{
		id:           flagID,
		peers:        peers,
		weights:      weights,
		lastZxid:     flagLastZxid,
		currentEpoch: flagCurrentEpoch,
		learner:      learner,
		minNotify:    flagMinNotify,
		maxNotify:    flagMaxNotify,
		finalizeWait: flagFinalizeWait,
		oracleAddr:   flagOracleAddr,
		bindAddr:     flagBindAddr,
	}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
