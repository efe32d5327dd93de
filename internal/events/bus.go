package events

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Kind names a category of change. Events carry no payload; subscribers
// re-read whatever they display.
type Kind string

const (
	ReservationChanged  Kind = "reservation_changed"
	AvailabilityChanged Kind = "availability_changed"
	// Resync asks a subscriber to refresh everything.
	Resync Kind = "resync"
)

type Publisher interface {
	Publish(kinds ...Kind)
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]*subscription
	closed bool
	log    *slog.Logger
}

// subscription coalesces per kind: a kind published while it is still
// waiting to be delivered is merged with the waiting one, so a slow reader
// sees every kind that changed without the publisher ever blocking.
type subscription struct {
	out   chan Kind
	kinds map[Kind]struct{}

	mu      sync.Mutex
	pending []Kind
	wake    chan struct{}
	done    chan struct{}
	stop    sync.Once
}

func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		subs: make(map[uuid.UUID]*subscription),
		log:  log.With(slog.String("component", "events")),
	}
}

// Subscribe registers interest in kinds (all kinds when none are given). The
// returned dispose func removes the subscription and closes the channel; it
// is safe to call more than once.
func (b *Bus) Subscribe(buffer int, kinds ...Kind) (<-chan Kind, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscription{
		out:  make(chan Kind, buffer),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}

	id := uuid.New()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.out)
		return sub.out, func() {}
	}
	b.subs[id] = sub
	b.mu.Unlock()

	go sub.run()

	var once sync.Once
	return sub.out, func() {
		once.Do(func() {
			b.mu.Lock()
			s, ok := b.subs[id]
			delete(b.subs, id)
			b.mu.Unlock()
			if ok {
				s.close()
			}
		})
	}
}

// Publish never blocks. A kind that is already waiting for a subscriber is
// not queued twice.
func (b *Bus) Publish(kinds ...Kind) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, s := range b.subs {
		for _, k := range s.offer(kinds) {
			b.log.Debug("event coalesced", slog.String("subscriber", id.String()), slog.String("kind", string(k)))
		}
	}
}

// offer queues the wanted kinds and returns the ones merged into an already
// waiting event.
func (s *subscription) offer(kinds []Kind) []Kind {
	var merged []Kind
	added := false

	s.mu.Lock()
	for _, k := range kinds {
		if s.kinds != nil {
			if _, ok := s.kinds[k]; !ok {
				continue
			}
		}
		if slices.Contains(s.pending, k) {
			merged = append(merged, k)
			continue
		}
		s.pending = append(s.pending, k)
		added = true
	}
	s.mu.Unlock()

	if added {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
	return merged
}

func (s *subscription) next() (Kind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return "", false
	}
	k := s.pending[0]
	s.pending = s.pending[1:]
	return k, true
}

func (s *subscription) run() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			k, ok := s.next()
			if !ok {
				break
			}
			select {
			case s.out <- k:
			case <-s.done:
				return
			}
		}
	}
}

func (s *subscription) close() {
	s.stop.Do(func() { close(s.done) })
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close releases every subscriber. Later subscriptions get a closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		s.close()
		delete(b.subs, id)
	}
}
