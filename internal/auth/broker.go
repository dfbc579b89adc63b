package auth

import (
	"sync"
	"time"
)

// User is the authenticated identity attached to a connection.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// EventType distinguishes sign-in from sign-out notifications.
type EventType string

const (
	SignedIn  EventType = "signed_in"
	SignedOut EventType = "signed_out"
)

// Event is a session-changed notification.
type Event struct {
	Type EventType `json:"type"`
	User User      `json:"user"`
	At   time.Time `json:"at"`
}

// Broker is the single owner of auth session state. Instead of a global
// singleton with implicit listeners, consumers subscribe explicitly and get a
// cancel func that deterministically unregisters them.
type Broker struct {
	mu          sync.RWMutex
	current     *User
	subscribers map[chan Event]struct{}
	now         func() time.Time
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[chan Event]struct{}),
		now:         time.Now,
	}
}

// Current returns the signed-in user, if any.
func (b *Broker) Current() (User, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil {
		return User{}, false
	}
	return *b.current, true
}

// SignIn records the user and notifies subscribers.
func (b *Broker) SignIn(user User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = &user
	b.publishLocked(Event{Type: SignedIn, User: user, At: b.now()})
}

// SignOut clears the session and notifies subscribers.
func (b *Broker) SignOut() {
	b.mu.Lock()
	defer b.mu.Unlock()
	var user User
	if b.current != nil {
		user = *b.current
	}
	b.current = nil
	b.publishLocked(Event{Type: SignedOut, User: user, At: b.now()})
}

// Subscribe registers a listener. The caller must invoke the returned cancel
// function on teardown to avoid leaks.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *Broker) publishLocked(event Event) {
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop the oldest event so a slow listener never blocks publish.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}
