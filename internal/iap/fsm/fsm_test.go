package fsm

import "testing"

func TestCanTransition(t *testing.T) {
	if !CanTransition(StatusIdle, StatusRequested) {
		t.Fatal("expected idle -> requested to be allowed")
	}
	if CanTransition(StatusIdle, StatusCompleted) {
		t.Fatal("unexpected transition allowed")
	}
	if !CanTransition(StatusRequested, StatusAwaitingQueue) {
		t.Fatal("expected requested -> awaiting_queue to be allowed")
	}
	if !CanTransition(StatusAwaitingQueue, StatusCanceled) {
		t.Fatal("expected awaiting_queue -> canceled to be allowed")
	}
	if !CanTransition(StatusCanceled, StatusIdle) {
		t.Fatal("expected canceled -> idle to be allowed")
	}
	if CanTransition(StatusCompleted, StatusRequested) {
		t.Fatal("completed must return to idle before a new request")
	}
}

func TestTerminal(t *testing.T) {
	for _, status := range []string{StatusCompleted, StatusRestored, StatusFailed, StatusCanceled} {
		if !Terminal(status) {
			t.Fatalf("expected %s to be terminal", status)
		}
	}
	for _, status := range []string{StatusIdle, StatusRequested, StatusAwaitingQueue} {
		if Terminal(status) {
			t.Fatalf("did not expect %s to be terminal", status)
		}
	}
}
