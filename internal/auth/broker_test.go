package auth

import (
	"testing"
	"time"
)

func TestBrokerTracksCurrentUser(t *testing.T) {
	broker := NewBroker()

	if _, ok := broker.Current(); ok {
		t.Fatalf("expected no user before sign-in")
	}

	broker.SignIn(User{ID: "u1", Email: "learner@example.com"})
	user, ok := broker.Current()
	if !ok || user.ID != "u1" {
		t.Fatalf("expected signed-in user, got %+v %v", user, ok)
	}

	broker.SignOut()
	if _, ok := broker.Current(); ok {
		t.Fatalf("expected no user after sign-out")
	}
}

func TestBrokerNotifiesSubscribers(t *testing.T) {
	broker := NewBroker()
	events, cancel := broker.Subscribe()
	defer cancel()

	broker.SignIn(User{ID: "u1"})
	broker.SignOut()

	ev := <-events
	if ev.Type != SignedIn || ev.User.ID != "u1" {
		t.Fatalf("expected sign-in event, got %+v", ev)
	}
	ev = <-events
	if ev.Type != SignedOut {
		t.Fatalf("expected sign-out event, got %+v", ev)
	}
}

func TestBrokerCancelUnregisters(t *testing.T) {
	broker := NewBroker()
	events, cancel := broker.Subscribe()

	cancel()
	cancel() // cancel is idempotent

	broker.SignIn(User{ID: "u1"})
	select {
	case _, open := <-events:
		if open {
			t.Fatalf("expected closed channel after cancel")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("expected channel to be closed")
	}
}

func TestBrokerDropsOldestForSlowSubscriber(t *testing.T) {
	broker := NewBroker()
	events, cancel := broker.Subscribe()
	defer cancel()

	// Overfill the buffered channel without draining; publish must not block.
	for i := 0; i < 20; i++ {
		broker.SignIn(User{ID: "u1"})
	}
	// The newest event is still delivered.
	var last Event
	for {
		select {
		case ev := <-events:
			last = ev
			continue
		default:
		}
		break
	}
	if last.Type != SignedIn {
		t.Fatalf("expected buffered sign-in events, got %+v", last)
	}
}
