package enrich

import (
	"sync"

	"mwb/internal"
	"mwb/internal/logging"
)

// Update carries the latest weeks for a window key.
type Update struct {
	Key   string
	Weeks []internal.WeekProgram
}

// Broker fans updates out to subscribers.
type Broker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Update)
	log    *logging.Logger
}

func NewBroker(log *logging.Logger) *Broker {
	if log == nil {
		log = logging.Discard()
	}
	return &Broker{subs: map[int]func(Update){}, log: log}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Broker) Subscribe(fn func(Update)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *Broker) Publish(u Update) {
	b.mu.RLock()
	fns := make([]func(Update), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		b.deliver(fn, u)
	}
}

func (b *Broker) deliver(fn func(Update), u Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("subscriber panicked", "key", u.Key, "panic", r)
		}
	}()
	fn(u)
}
