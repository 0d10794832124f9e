package events

const subscriberBuffer = 64

type subscriber struct {
	ch      chan Event
	dropped int
}

// offer never blocks; a slow subscriber loses events.
func (s *subscriber) offer(e Event) {
	select {
	case s.ch <- e:
	default:
		s.dropped++
		eventsDropped.Inc()
	}
}

// Subscribe returns a channel of new events for room and a cancel func that
// detaches it and closes the channel.
func (s *Store) Subscribe(room string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	s.mu.Lock()
	if s.subs[room] == nil {
		s.subs[room] = make(map[*subscriber]struct{})
	}
	s.subs[room][sub] = struct{}{}
	s.mu.Unlock()
	subscribersGauge.Inc()

	cancelled := false
	return sub.ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cancelled {
			return
		}
		cancelled = true
		delete(s.subs[room], sub)
		if len(s.subs[room]) == 0 {
			delete(s.subs, room)
		}
		close(sub.ch)
		subscribersGauge.Dec()
	}
}

// Subscribers counts live subscribers for room.
func (s *Store) Subscribers(room string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[room])
}
