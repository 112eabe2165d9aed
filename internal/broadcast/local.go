package broadcast

import (
	"context"
	"sync"
)

const localBuffer = 64

// Local fans out inside one process. Slow subscribers miss messages rather
// than stall publishers.
type Local struct {
	mu   sync.RWMutex
	subs map[string]map[*localSub]struct{}
}

func NewLocal() *Local {
	return &Local{subs: make(map[string]map[*localSub]struct{})}
}

func (b *Local) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs[channel] {
		select {
		case s.ch <- payload:
		default:
		}
	}
	return nil
}

func (b *Local) Subscribe(_ context.Context, channel string) (Subscription, error) {
	s := &localSub{parent: b, channel: channel, ch: make(chan []byte, localBuffer)}
	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*localSub]struct{})
	}
	b.subs[channel][s] = struct{}{}
	b.mu.Unlock()
	return s, nil
}

type localSub struct {
	parent  *Local
	channel string
	ch      chan []byte
	once    sync.Once
}

func (s *localSub) C() <-chan []byte { return s.ch }

func (s *localSub) Close() error {
	s.once.Do(func() {
		b := s.parent
		b.mu.Lock()
		delete(b.subs[s.channel], s)
		if len(b.subs[s.channel]) == 0 {
			delete(b.subs, s.channel)
		}
		b.mu.Unlock()
		close(s.ch)
	})
	return nil
}
