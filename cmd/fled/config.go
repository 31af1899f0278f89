package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quorumwatch/fle/pkg/fle/types"
)

// runConfig holds the flags parsed by the run subcommand.
type runConfig struct {
	id           int64
	peers        map[types.ServerID]string
	weights      map[types.ServerID]int64
	lastZxid     int64
	currentEpoch int64
	learner      types.LearnerType
	minNotify    time.Duration
	maxNotify    time.Duration
	finalizeWait time.Duration
	oracleAddr   string
	bindAddr     string
}

// parsePeerFlag parses one "--peer sid=host:port" occurrence.
func parsePeerFlag(raw string) (types.ServerID, string, error) {
	sid, rest, err := splitKV(raw)
	if err != nil {
		return 0, "", fmt.Errorf("invalid --peer %q: %w", raw, err)
	}
	return sid, rest, nil
}

// parseWeightFlag parses one "--weight sid=int" occurrence.
func parseWeightFlag(raw string) (types.ServerID, int64, error) {
	sid, rest, err := splitKV(raw)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --weight %q: %w", raw, err)
	}
	w, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --weight %q: %w", raw, err)
	}
	return sid, w, nil
}

func splitKV(raw string) (types.ServerID, string, error) {
	parts := strings.SplitN(raw, "=", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("expected sid=value")
	}
	id, err := strconv.ParseUint(parts[0], 10, 63)
	if err != nil {
		return 0, "", fmt.Errorf("invalid sid: %w", err)
	}
	return types.ServerID(id), parts[1], nil
}

func parseLearnerType(s string) (types.LearnerType, error) {
	switch strings.ToLower(s) {
	case "participant", "":
		return types.Participant, nil
	case "observer":
		return types.Observer, nil
	default:
		return 0, fmt.Errorf("unknown learner type %q", s)
	}
}
