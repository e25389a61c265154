package input

import "sync"

// Bus is an in-memory Source. Hosts without a DOM (tests, the terminal page)
// publish synthetic events through it.
type Bus struct {
	mu      sync.Mutex
	nextID  int
	keys    map[KeyType]map[int]KeyHandler
	touches map[TouchType]map[int]TouchHandler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		keys:    make(map[KeyType]map[int]KeyHandler),
		touches: make(map[TouchType]map[int]TouchHandler),
	}
}

// OnKey registers h for key events of typ.
func (b *Bus) OnKey(typ KeyType, h KeyHandler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.keys[typ] == nil {
		b.keys[typ] = make(map[int]KeyHandler)
	}
	b.keys[typ][id] = h

	return SubscriptionFunc(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.keys[typ], id)
	})
}

// OnTouch registers h for touch events of typ.
func (b *Bus) OnTouch(typ TouchType, h TouchHandler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.touches[typ] == nil {
		b.touches[typ] = make(map[int]TouchHandler)
	}
	b.touches[typ][id] = h

	return SubscriptionFunc(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.touches[typ], id)
	})
}

// Key delivers ev to every handler of its type and reports whether any of
// them suppressed the default action.
func (b *Bus) Key(ev KeyEvent) bool {
	b.mu.Lock()
	handlers := make([]KeyHandler, 0, len(b.keys[ev.Type]))
	for _, h := range b.keys[ev.Type] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	prevented := false
	for _, h := range handlers {
		if h(ev) {
			prevented = true
		}
	}
	return prevented
}

// Touch delivers ev to every handler of its type and reports whether any of
// them suppressed the default action.
func (b *Bus) Touch(ev TouchEvent) bool {
	b.mu.Lock()
	handlers := make([]TouchHandler, 0, len(b.touches[ev.Type]))
	for _, h := range b.touches[ev.Type] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	prevented := false
	for _, h := range handlers {
		if h(ev) {
			prevented = true
		}
	}
	return prevented
}

// Listeners returns the number of registered handlers.
func (b *Bus) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, hs := range b.keys {
		n += len(hs)
	}
	for _, hs := range b.touches {
		n += len(hs)
	}
	return n
}
