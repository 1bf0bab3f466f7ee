package pubsub

import (
	"context"
	"path"
	"sync"
)

type memorySub struct {
	key     string
	pattern bool
	ch      chan *Event
	done    chan struct{}
	once    sync.Once
}

func (s *memorySub) close() {
	s.once.Do(func() { close(s.done) })
}

// MemoryPubSub is an in-process bus. Patterns use path.Match syntax,
// which treats ':' as an ordinary character.
type MemoryPubSub struct {
	mu   sync.RWMutex
	subs map[*memorySub]struct{}
}

// NewMemoryPubSub creates an empty bus.
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subs: make(map[*memorySub]struct{})}
}

func (m *MemoryPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for sub := range m.subs {
		if !sub.matches(channel) {
			continue
		}
		select {
		case sub.ch <- event:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *memorySub) matches(channel string) bool {
	if !s.pattern {
		return s.key == channel
	}
	ok, err := path.Match(s.key, channel)
	return err == nil && ok
}

func (m *MemoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return m.add(ctx, channel, false), nil
}

func (m *MemoryPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	return m.add(ctx, pattern, true), nil
}

func (m *MemoryPubSub) add(ctx context.Context, key string, pattern bool) <-chan *Event {
	sub := &memorySub{
		key:     key,
		pattern: pattern,
		ch:      make(chan *Event, 256),
		done:    make(chan struct{}),
	}
	out := make(chan *Event, 256)

	m.mu.Lock()
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	go func() {
		defer close(out)
		defer m.remove(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case ev := <-sub.ch:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				case <-sub.done:
					return
				}
			}
		}
	}()
	return out
}

func (m *MemoryPubSub) remove(sub *memorySub) {
	sub.close()
	m.mu.Lock()
	delete(m.subs, sub)
	m.mu.Unlock()
}

func (m *MemoryPubSub) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.RLock()
	var matched []*memorySub
	for sub := range m.subs {
		if sub.key == channel {
			matched = append(matched, sub)
		}
	}
	m.mu.RUnlock()

	for _, sub := range matched {
		sub.close()
	}
	return nil
}

func (m *MemoryPubSub) Close() error {
	m.mu.RLock()
	subs := make([]*memorySub, 0, len(m.subs))
	for sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		sub.close()
	}
	return nil
}
