// ABOUTME: Live query subscriptions for document stores
// ABOUTME: Re-runs a subscriber's query after writes on its own goroutine
package db

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

type scope struct {
	collection string
	userID     string
}

type subscription struct {
	q       Query
	fn      func([]*Document)
	signal  chan struct{}
	done    chan struct{}
	stopped sync.Once
}

// broker fans write notifications out to subscriptions. Each subscription
// owns a goroutine and a one-slot signal channel, so a burst of writes
// collapses into a single re-query and writers never wait on readers.
type broker struct {
	mu   sync.Mutex
	next int
	subs map[scope]map[int]*subscription
	wg   sync.WaitGroup
}

func newBroker() *broker {
	return &broker{subs: make(map[scope]map[int]*subscription)}
}

func (b *broker) subscribe(q Query, fn func([]*Document), run func(context.Context, Query) ([]*Document, error)) func() {
	key := scope{q.Collection, q.UserID}
	sub := &subscription{
		q:      q,
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	sub.signal <- struct{}{}

	b.mu.Lock()
	id := b.next
	b.next++
	if b.subs[key] == nil {
		b.subs[key] = make(map[int]*subscription)
	}
	b.subs[key][id] = sub
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-sub.done:
				return
			case <-sub.signal:
			}
			docs, err := run(context.Background(), sub.q)
			if err != nil {
				log.Warn("subscription query failed", "collection", key.collection, "err", err)
				continue
			}
			select {
			case <-sub.done:
				return
			default:
			}
			sub.fn(docs)
		}
	}()

	return func() {
		sub.stopped.Do(func() {
			b.mu.Lock()
			delete(b.subs[key], id)
			if len(b.subs[key]) == 0 {
				delete(b.subs, key)
			}
			b.mu.Unlock()
			close(sub.done)
		})
	}
}

func (b *broker) publish(collection, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs[scope{collection, userID}] {
		select {
		case sub.signal <- struct{}{}:
		default:
		}
	}
}

// close stops every subscription and waits for delivery goroutines.
func (b *broker) close() {
	b.mu.Lock()
	var all []*subscription
	for _, m := range b.subs {
		for _, s := range m {
			all = append(all, s)
		}
	}
	b.subs = make(map[scope]map[int]*subscription)
	b.mu.Unlock()

	for _, s := range all {
		s.stopped.Do(func() { close(s.done) })
	}
	b.wg.Wait()
}
