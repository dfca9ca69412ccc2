package cache

import "container/list"

// Evictor decides which cached spans are dropped when the cache grows.
type Evictor interface {
	// Policy names the eviction policy for logs and `cache info`.
	Policy() string
	OnAdded(name string, size int64)
	OnTouched(name string)
	OnRemoved(name string)
	// Victims returns the entries to remove before adding incoming bytes
	// to a cache currently holding total bytes.
	Victims(total, incoming int64) []string
	// Fits reports whether an entry of size bytes can be cached at all.
	Fits(size int64) bool
}

// noopEvictor never evicts; the cache grows until the OS clears it.
type noopEvictor struct{}

func (noopEvictor) Policy() string               { return "unbounded" }
func (noopEvictor) OnAdded(string, int64)        {}
func (noopEvictor) OnTouched(string)             {}
func (noopEvictor) OnRemoved(string)             {}
func (noopEvictor) Victims(int64, int64) []string { return nil }
func (noopEvictor) Fits(int64) bool              { return true }

type lruItem struct {
	name string
	size int64
}

// lruEvictor caps the cache at maxBytes, dropping least recently used entries first.
type lruEvictor struct {
	maxBytes int64
	order    *list.List // front = most recently used
	items    map[string]*list.Element
}

func newLRUEvictor(maxBytes int64) *lruEvictor {
	return &lruEvictor{
		maxBytes: maxBytes,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (e *lruEvictor) Policy() string { return "lru" }

func (e *lruEvictor) OnAdded(name string, size int64) {
	if el, ok := e.items[name]; ok {
		el.Value.(*lruItem).size = size
		e.order.MoveToFront(el)
		return
	}
	e.items[name] = e.order.PushFront(&lruItem{name: name, size: size})
}

func (e *lruEvictor) OnTouched(name string) {
	if el, ok := e.items[name]; ok {
		e.order.MoveToFront(el)
	}
}

func (e *lruEvictor) OnRemoved(name string) {
	if el, ok := e.items[name]; ok {
		e.order.Remove(el)
		delete(e.items, name)
	}
}

func (e *lruEvictor) Victims(total, incoming int64) []string {
	var victims []string
	for el := e.order.Back(); el != nil && total+incoming > e.maxBytes; el = el.Prev() {
		item := el.Value.(*lruItem)
		victims = append(victims, item.name)
		total -= item.size
	}
	return victims
}

func (e *lruEvictor) Fits(size int64) bool { return size <= e.maxBytes }
