package keystore

import "sync"

// StatusChangedFunc is invoked after lock() and successful unlock(), always
// outside the store's critical section.
type StatusChangedFunc func(*Store)

type observers struct {
	mu   sync.Mutex
	next int
	subs map[int]StatusChangedFunc
}

func newObservers() *observers {
	return &observers{subs: make(map[int]StatusChangedFunc)}
}

// Register adds a callback and returns a token for Unregister.
func (o *observers) Register(f StatusChangedFunc) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	token := o.next
	o.next++
	o.subs[token] = f
	return token
}

// Unregister removes a previously registered callback.
func (o *observers) Unregister(token int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.subs, token)
}

func (o *observers) notify(s *Store) {
	o.mu.Lock()
	cbs := make([]StatusChangedFunc, 0, len(o.subs))
	for _, f := range o.subs {
		cbs = append(cbs, f)
	}
	o.mu.Unlock()

	for _, f := range cbs {
		f(s)
	}
}
