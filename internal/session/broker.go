package session

import "sync"

const subscriberBuffer = 8

// Broker fans session snapshots out to subscribers. Slow subscribers miss
// snapshots rather than blocking the publisher.
type Broker struct {
	subs map[string]map[chan *Session]struct{}
	mu   sync.Mutex
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan *Session]struct{})}
}

// Subscribe returns a channel of snapshots for one session and a cancel func
// that must be called to release it. The channel is closed on cancel or when
// the session is discarded.
func (b *Broker) Subscribe(id string) (<-chan *Session, func()) {
	ch := make(chan *Session, subscriberBuffer)

	b.mu.Lock()
	if b.subs[id] == nil {
		b.subs[id] = make(map[chan *Session]struct{})
	}
	b.subs[id][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id][ch]; ok {
				delete(b.subs[id], ch)
				close(ch)
			}
			if len(b.subs[id]) == 0 {
				delete(b.subs, id)
			}
		})
	}
}

// Publish sends a copy of s to every subscriber of s.ID.
func (b *Broker) Publish(s *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[s.ID] {
		select {
		case ch <- s.Clone():
		default:
		}
	}
}

// Close closes every subscription of a session.
func (b *Broker) Close(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[id] {
		close(ch)
	}
	delete(b.subs, id)
}

// Subscribers returns the number of open subscriptions for a session.
func (b *Broker) Subscribers(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[id])
}
