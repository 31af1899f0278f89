package fuzzy

import (
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/quorumwatch/fle/test"
)

// An ensemble elects, shuts down, and leaves nothing running behind:
// the Send Worker, Receive Worker, and any transport goroutines must
// all exit once Shutdown returns.
func Test_ElectAndShutdownLeaksNothing(t *testing.T) {
	defer goleak.VerifyNone(t)

	cluster := test.CreateCluster(3, t)
	votes := cluster.Run(15 * time.Second)
	cluster.AgreesOn(3, votes)
	if !test.WaitThisOrTimeout(cluster.Off, 30*time.Second) {
		t.Error("failed shutdown cluster")
		test.PrintStackTrace(t)
	}
}

// Shutdown mid-election: a lone peer can never assemble a quorum, so
// lookForLeader only returns when Shutdown interrupts it. Repeating
// the cycle catches goroutines leaked by any single round.
func Test_ShutdownWhileLookingLeaksNothing(t *testing.T) {
	defer goleak.VerifyNone(t)

	for i := 0; i < 5; i++ {
		cluster := test.CreateCluster(3, t)

		// Start only the first peer: a 1-of-3 minority that stays
		// LOOKING until shut down.
		lone := cluster.Elect[0]
		done := make(chan error, 1)
		lone.Start()
		go func() {
			_, err := lone.LookForLeader()
			done <- err
		}()

		time.Sleep(200 * time.Millisecond)
		if !test.WaitThisOrTimeout(cluster.Off, 30*time.Second) {
			t.Fatal("failed shutdown cluster")
		}
		if err := <-done; err == nil {
			t.Error("interrupted round reported success")
		}
	}
}
