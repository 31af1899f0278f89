package core

import (
	"testing"
	"time"

	"github.com/quorumwatch/fle/pkg/fle/types"
)

func notification(sender types.ServerID) types.Notification {
	return types.Notification{SenderSid: sender, LeaderSid: sender, SenderState: types.StateLooking}
}

func TestQueue_FIFO(t *testing.T) {
	q := newNotificationQueue()
	q.Enqueue(notification(1))
	q.Enqueue(notification(2))
	q.Enqueue(notification(3))

	for _, want := range []types.ServerID{1, 2, 3} {
		n, ok := q.Dequeue(time.Second)
		if !ok || n.SenderSid != want {
			t.Fatalf("dequeued %v (ok=%v), expected sender %d", n.SenderSid, ok, want)
		}
	}
}

func TestQueue_UngetIsNextOut(t *testing.T) {
	q := newNotificationQueue()
	q.Enqueue(notification(1))
	q.Enqueue(notification(2))

	first, _ := q.Dequeue(time.Second)
	q.Unget(first)

	n, ok := q.Dequeue(time.Second)
	if !ok || n.SenderSid != 1 {
		t.Fatalf("unget item not first out: got %d", n.SenderSid)
	}
	n, _ = q.Dequeue(time.Second)
	if n.SenderSid != 2 {
		t.Fatalf("queue order disturbed after unget: got %d", n.SenderSid)
	}
}

func TestQueue_DequeueTimesOut(t *testing.T) {
	q := newNotificationQueue()
	start := time.Now()
	_, ok := q.Dequeue(50 * time.Millisecond)
	if ok {
		t.Fatal("dequeue on empty queue reported an item")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("dequeue returned too early: %s", elapsed)
	}
}

func TestQueue_EnqueueWakesWaiter(t *testing.T) {
	q := newNotificationQueue()
	done := make(chan types.Notification, 1)
	go func() {
		n, ok := q.Dequeue(5 * time.Second)
		if ok {
			done <- n
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Enqueue(notification(7))

	select {
	case n := <-done:
		if n.SenderSid != 7 {
			t.Fatalf("woken with wrong item: %d", n.SenderSid)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never woke")
	}
}

// Kick releases a blocked Dequeue without delivering anything, so the
// caller can re-check its abort flag early.
func TestQueue_KickReleasesWaiter(t *testing.T) {
	q := newNotificationQueue()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(10 * time.Second)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Kick()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("kick delivered an item")
		}
	case <-time.After(time.Second):
		t.Fatal("kick did not release the waiter")
	}
}

func TestQueue_CloseReleasesWaiterAndDropsLateItems(t *testing.T) {
	q := newNotificationQueue()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(10 * time.Second)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("closed queue delivered an item")
		}
	case <-time.After(time.Second):
		t.Fatal("close did not release the waiter")
	}

	q.Enqueue(notification(1))
	if _, ok := q.Dequeue(10 * time.Millisecond); ok {
		t.Fatal("closed queue accepted an enqueue")
	}
}
