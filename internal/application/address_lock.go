package application

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bnema/starknet-wallet-bridge/internal/ports"
)

// AddressLock serializes vault flows per account inside one process.
type AddressLock struct {
	mu    sync.Mutex
	slots map[string]*addressSlot
}

type addressSlot struct {
	sem     chan struct{}
	holders int
}

var _ ports.AddressLocker = (*AddressLock)(nil)

func NewAddressLock() *AddressLock {
	return &AddressLock{slots: map[string]*addressSlot{}}
}

func (l *AddressLock) Lock(ctx context.Context, address string) (func(), error) {
	key := strings.ToLower(address)

	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &addressSlot{sem: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.holders++
	l.mu.Unlock()

	select {
	case slot.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, slot)
		return nil, fmt.Errorf("lock %s: %w", address, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.sem
			l.release(key, slot)
		})
	}, nil
}

func (l *AddressLock) release(key string, slot *addressSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot.holders--
	if slot.holders == 0 {
		delete(l.slots, key)
	}
}
