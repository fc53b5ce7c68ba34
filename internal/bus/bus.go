// Package bus implements the in-process publish/subscribe hub that carries
// domain events between the daemon's services and the theme coordinator.
//
// Delivery is synchronous and in subscription order per event name. There is
// no ordering guarantee across distinct event names, no persistence, and no
// cross-process transport.
package bus

import (
	"log"
	"sync"
)

// Handler receives a published payload.
type Handler func(payload any)

type subscription struct {
	handler Handler
	once    bool
}

// Bus is a named-event dispatcher. The zero value is not usable; use New.
type Bus struct {
	mu   sync.Mutex
	subs map[string][]*subscription
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]*subscription)}
}

// Subscribe registers handler for name and returns a function that removes
// exactly this registration. Calling the returned function more than once is
// harmless.
func (b *Bus) Subscribe(name string, handler Handler) func() {
	return b.add(name, &subscription{handler: handler})
}

// SubscribeOnce registers handler for name; the registration is removed
// before the handler's first invocation.
func (b *Bus) SubscribeOnce(name string, handler Handler) func() {
	return b.add(name, &subscription{handler: handler, once: true})
}

func (b *Bus) add(name string, sub *subscription) func() {
	b.mu.Lock()
	b.subs[name] = append(b.subs[name], sub)
	b.mu.Unlock()

	return func() { b.remove(name, sub) }
}

func (b *Bus) remove(name string, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[name]
	for i, s := range list {
		if s == sub {
			b.subs[name] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers payload to every subscriber of name that was registered
// when Publish was called. Subscribers added during delivery do not receive
// this publish. A panicking subscriber is logged and does not prevent the
// remaining subscribers from running.
func (b *Bus) Publish(name string, payload any) {
	b.mu.Lock()
	list := b.subs[name]
	snapshot := make([]*subscription, len(list))
	copy(snapshot, list)
	b.mu.Unlock()

	for _, sub := range snapshot {
		if sub.once {
			b.remove(name, sub)
		}
		invoke(name, sub.handler, payload)
	}
}

func invoke(name string, handler Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("bus: subscriber for %q panicked: %v", name, r)
		}
	}()
	handler(payload)
}
