package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Subscription receives events on C until Close is called.
type Subscription struct {
	C <-chan Event

	ch        chan Event
	hub       *Hub
	accountID uuid.UUID // uuid.Nil for a firehose subscription
	once      sync.Once
	lagged    atomic.Bool
}

// Lagged reports whether an event was dropped for this subscriber since
// the last call, and clears the flag.
func (s *Subscription) Lagged() bool {
	return s.lagged.Swap(false)
}

// Close unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub fans events out to per-account and firehose subscribers.
// Each subscriber has a bounded buffer; when it is full the event is
// dropped for that subscriber only.
type Hub struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]map[*Subscription]struct{}
	all      map[*Subscription]struct{}
	buffer   int
	closed   bool

	published atomic.Int64
	dropped   atomic.Int64
}

// NewHub creates a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		accounts: make(map[uuid.UUID]map[*Subscription]struct{}),
		all:      make(map[*Subscription]struct{}),
		buffer:   buffer,
	}
}

// Subscribe returns a subscription scoped to one account.
func (h *Hub) Subscribe(accountID uuid.UUID) *Subscription {
	sub := h.newSubscription(accountID)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	set, ok := h.accounts[accountID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.accounts[accountID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// SubscribeAll returns a subscription that sees every account's events.
func (h *Hub) SubscribeAll() *Subscription {
	sub := h.newSubscription(uuid.Nil)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.all[sub] = struct{}{}
	return sub
}

func (h *Hub) newSubscription(accountID uuid.UUID) *Subscription {
	ch := make(chan Event, h.buffer)
	return &Subscription{C: ch, ch: ch, hub: h, accountID: accountID}
}

// Publish delivers ev to every matching subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	h.published.Add(1)

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for sub := range h.accounts[ev.AccountID] {
		h.offer(sub, ev)
	}
	for sub := range h.all {
		h.offer(sub, ev)
	}
}

func (h *Hub) offer(sub *Subscription, ev Event) {
	select {
	case sub.ch <- ev:
	default:
		h.dropped.Add(1)
		sub.lagged.Store(true)
		log.WithFields(log.Fields{
			"account_id": ev.AccountID,
			"event_id":   ev.ID,
		}).Debug("Subscriber buffer full, event dropped")
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub.accountID == uuid.Nil {
		if _, ok := h.all[sub]; !ok {
			return
		}
		delete(h.all, sub)
	} else {
		set, ok := h.accounts[sub.accountID]
		if !ok {
			return
		}
		if _, ok := set[sub]; !ok {
			return
		}
		delete(set, sub)
		if len(set) == 0 {
			delete(h.accounts, sub.accountID)
		}
	}
	close(sub.ch)
}

// Close closes every subscription. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.accounts {
		for sub := range set {
			close(sub.ch)
		}
	}
	for sub := range h.all {
		close(sub.ch)
	}
	h.accounts = make(map[uuid.UUID]map[*Subscription]struct{})
	h.all = make(map[*Subscription]struct{})
}

// Stats returns how many events were published and dropped.
func (h *Hub) Stats() (published, dropped int64) {
	return h.published.Load(), h.dropped.Load()
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := len(h.all)
	for _, set := range h.accounts {
		n += len(set)
	}
	return n
}
