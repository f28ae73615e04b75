package shared

import "sync"

type observer[T any] struct {
	id int
	fn func(T)
}

// Observers is a registration-ordered list of callbacks. The zero value is ready to use.
//
// Notify copies the list before calling out, so callbacks may subscribe,
// unsubscribe or read the owning store without deadlocking.
type Observers[T any] struct {
	mu   sync.Mutex
	next int
	list []observer[T]
}

// Add registers fn and returns an idempotent function that removes it.
func (o *Observers[T]) Add(fn func(T)) (remove func()) {
	o.mu.Lock()
	o.next++
	id := o.next
	o.list = append(o.list, observer[T]{id: id, fn: fn})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			for i, ob := range o.list {
				if ob.id == id {
					o.list = append(o.list[:i:i], o.list[i+1:]...)
					return
				}
			}
		})
	}
}

// Len returns the number of registered callbacks.
func (o *Observers[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.list)
}

// Notify calls every registered callback with v, in registration order.
func (o *Observers[T]) Notify(v T) {
	o.mu.Lock()
	fns := make([]func(T), len(o.list))
	for i, ob := range o.list {
		fns[i] = ob.fn
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
