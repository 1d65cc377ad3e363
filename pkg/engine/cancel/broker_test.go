package cancel

import (
	"context"
	"testing"
	"time"
)

func TestBroker_Trigger_CancelsArmedContext(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	disarm := b.Arm(cancel)
	defer disarm()

	if !b.Armed() {
		t.Fatalf("expected broker to report armed after Arm")
	}

	b.Trigger()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("armed context was not cancelled by Trigger")
	}
}

func TestBroker_Trigger_WithNothingArmedIsANoop(t *testing.T) {
	b := NewBroker()
	b.Trigger() // must not panic
	if b.Armed() {
		t.Fatalf("expected broker to report unarmed with nothing Arm()ed")
	}
}

func TestBroker_Disarm_StopsFutureTriggersFromReachingStaleCancel(t *testing.T) {
	b := NewBroker()

	var firstCancelled bool
	_, cancel1 := context.WithCancel(context.Background())
	disarm1 := b.Arm(func() { firstCancelled = true; cancel1() })
	disarm1()

	if b.Armed() {
		t.Fatalf("expected broker to report unarmed after disarm")
	}

	ctx2, cancel2 := context.WithCancel(context.Background())
	disarm2 := b.Arm(cancel2)
	defer disarm2()

	b.Trigger()

	if firstCancelled {
		t.Fatalf("Trigger invoked the disarmed turn's stale cancel func")
	}
	select {
	case <-ctx2.Done():
	case <-time.After(time.Second):
		t.Fatalf("second armed context was not cancelled by Trigger")
	}
}

func TestBroker_Disarm_IsIdempotent(t *testing.T) {
	b := NewBroker()
	_, cancel := context.WithCancel(context.Background())
	disarm := b.Arm(cancel)

	disarm()
	disarm() // must not panic or double-clear a later Arm

	if b.Armed() {
		t.Fatalf("expected broker to report unarmed after disarm")
	}
}
