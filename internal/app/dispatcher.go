package app

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// dispatchMsg carries a closure the navigation engine wants run on the UI
// goroutine.
type dispatchMsg struct {
	fn func()
}

// dispatcher hands engine closures to the bubbletea loop. Exactly one
// next command is outstanding at a time, so closures run in the order
// they were sent.
type dispatcher struct {
	ch   chan func()
	done chan struct{}
	once sync.Once
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		ch:   make(chan func(), 64),
		done: make(chan struct{}),
	}
}

// send queues fn. It returns without queueing once the dispatcher is
// closed.
func (d *dispatcher) send(fn func()) {
	select {
	case d.ch <- fn:
	case <-d.done:
	}
}

// next waits for the following closure.
func (d *dispatcher) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case fn := <-d.ch:
			return dispatchMsg{fn: fn}
		case <-d.done:
			return nil
		}
	}
}

func (d *dispatcher) close() {
	d.once.Do(func() { close(d.done) })
}
