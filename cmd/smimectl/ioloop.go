//go:build linux

package main

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/hexgate/smime-engine/internal/engine"
)

// epollLoop is a minimal host event loop implementing engine.Callbacks
// on top of epoll. It is the CLI's reference host-loop implementation;
// a real host (this package's caller, per the spec's external
// collaborators) is free to supply any loop that satisfies Callbacks.
type epollLoop struct {
	epfd int

	mu       sync.Mutex
	handlers map[int]engine.Handler
	doneCh   chan struct{}
	doneOnce sync.Once
}

func newEpollLoop() (*epollLoop, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	l := &epollLoop{
		epfd:     fd,
		handlers: make(map[int]engine.Handler),
		doneCh:   make(chan struct{}),
	}
	return l, nil
}

// Add implements engine.Callbacks.
func (l *epollLoop) Add(fd int, dir engine.Direction, handler engine.Handler) (engine.Tag, error) {
	var events uint32 = unix.EPOLLIN
	if dir == engine.Outbound {
		// Outbound channels are drained by writing into them; we still
		// want readiness-style scheduling, so poll for writability.
		events = unix.EPOLLOUT
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.handlers[fd] = handler
	l.mu.Unlock()
	return fd, nil
}

// Remove implements engine.Callbacks.
func (l *epollLoop) Remove(tag engine.Tag) error {
	fd, ok := tag.(int)
	if !ok {
		return fmt.Errorf("epollLoop: invalid tag %v", tag)
	}
	l.mu.Lock()
	delete(l.handlers, fd)
	l.mu.Unlock()
	// Best-effort: the engine calls Remove before it closes the fd, and
	// any error from the epoll deregistration is ignored.
	_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	return nil
}

// Event implements engine.Callbacks: EventDone stops the loop for the
// session that fired it; other event kinds are ignored by this minimal
// loop.
func (l *epollLoop) Event(kind engine.EventKind, detail any) {
	if kind == engine.EventDone {
		l.doneOnce.Do(func() { close(l.doneCh) })
	}
}

// Run drives the loop until Done fires or EpollWait fails with an error
// other than EINTR; it is meant to be run in its own goroutine per session.
func (l *epollLoop) Run() {
	events := make([]unix.EpollEvent, 16)
	for {
		select {
		case <-l.doneCh:
			unix.Close(l.epfd)
			return
		default:
		}

		n, err := unix.EpollWait(l.epfd, events, 200)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			l.mu.Lock()
			h := l.handlers[fd]
			l.mu.Unlock()
			if h != nil {
				h()
			}
		}
	}
}

// Done returns the loop's completion signal.
func (l *epollLoop) Done() <-chan struct{} { return l.doneCh }
