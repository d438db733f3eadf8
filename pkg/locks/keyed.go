// Package locks holds the identifier lock backends used by the identity engine.
package locks

import (
	"context"
	"slices"
	"sync"

	"github.com/Ramsey-B/fern/pkg/identity"
)

var _ identity.Locker = (*Keyed)(nil)

// Keyed is an in-process lock per key. It only serializes requests served by
// this process, which is enough for a single replica or the memory store.
type Keyed struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewKeyed() *Keyed {
	return &Keyed{slots: map[string]*slot{}}
}

// Acquire blocks until every key is held or ctx is done. Keys are taken in
// sorted order.
func (k *Keyed) Acquire(ctx context.Context, keys []string) (identity.ReleaseFunc, error) {
	keys = slices.Compact(slices.Sorted(slices.Values(keys)))

	held := make([]string, 0, len(keys))
	release := func(context.Context) {
		for i := len(held) - 1; i >= 0; i-- {
			k.unlock(held[i])
		}
	}

	for _, key := range keys {
		s := k.ref(key)
		select {
		case s.ch <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			k.unref(key)
			release(ctx)
			return nil, ctx.Err()
		}
	}

	return release, nil
}

// Held reports how many keys currently have a holder or waiter
func (k *Keyed) Held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}

func (k *Keyed) ref(key string) *slot {
	k.mu.Lock()
	defer k.mu.Unlock()

	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	return s
}

func (k *Keyed) unref(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	s := k.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}

func (k *Keyed) unlock(key string) {
	k.mu.Lock()
	s := k.slots[key]
	k.mu.Unlock()

	<-s.ch
	k.unref(key)
}
