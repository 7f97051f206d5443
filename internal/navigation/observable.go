package navigation

import (
	"sync"

	"github.com/vidyasagar/opdsnav/internal/feed"
)

const subscriberBuffer = 32

// snapshot is one published view of the worker's state.
type snapshot struct {
	state      State
	entries    []feed.Entry
	groups     []feed.Group
	hasHistory bool
}

// mirror holds the reader-facing copy of the worker's values. It is only
// written from closures run through the engine's dispatch function, and
// every write is a state change that subscribers hear about.
type mirror struct {
	mu     sync.RWMutex
	cur    snapshot
	subs   map[int]chan State
	nextID int
}

func newMirror(initial snapshot) *mirror {
	return &mirror{cur: initial, subs: make(map[int]chan State)}
}

func (m *mirror) set(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cur = s
	for _, ch := range m.subs {
		select {
		case ch <- s.state:
		default:
			// slow subscriber; it still sees the latest value via State()
		}
	}
}

func (m *mirror) get() snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

func (m *mirror) subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan State, subscriberBuffer)
	ch <- m.cur.state
	m.subs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
}

// closeAll ends every subscription.
func (m *mirror) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}
