package engine

import (
	"os"
	"sync"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

// fakeCallbacks records Add/Remove/Event calls without touching a real
// event loop, letting closeChannel/emitDoneOnce be exercised in isolation.
type fakeCallbacks struct {
	mu        sync.Mutex
	removed   []Tag
	doneCount int
}

func (f *fakeCallbacks) Add(fd int, dir Direction, h Handler) (Tag, error) {
	return fd, nil
}

func (f *fakeCallbacks) Remove(tag Tag) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, tag)
	return nil
}

func (f *fakeCallbacks) Event(kind EventKind, detail any) {
	if kind == EventDone {
		f.mu.Lock()
		f.doneCount++
		f.mu.Unlock()
	}
}

// newTestSessionWithChannels builds a Session whose four channels are
// backed by real pipe fds wrapped in *os.File, exactly like session.go
// wires s.files in New — so closeChannel's s.files[k].Close() path is
// exercised for real rather than against a synthetic fd.
func newTestSessionWithChannels(t *testing.T) (*Session, *fakeCallbacks) {
	t.Helper()
	cbs := &fakeCallbacks{}
	s := &Session{
		cbs:  cbs,
		done: make(chan struct{}),
	}
	for k := Kind(0); int(k) < numKinds; k++ {
		r, w, err := os.Pipe()
		if err != nil {
			t.Fatalf("os.Pipe: %v", err)
		}
		t.Cleanup(func() { w.Close() })
		s.channels[k] = &channelRecord{fd: int(r.Fd()), tag: int(r.Fd())}
		s.files[k] = r
	}
	return s, cbs
}

func TestCloseChannelSingleDoneAfterAllFour(t *testing.T) {
	s, cbs := newTestSessionWithChannels(t)

	for k := Kind(0); int(k) < numKinds-1; k++ {
		s.closeChannel(k)
		select {
		case <-s.done:
			t.Fatalf("DONE fired after closing %v, before all four channels closed", k)
		default:
		}
	}

	s.closeChannel(Message)

	select {
	case <-s.done:
	default:
		t.Fatal("expected DONE to be closed once all four channels closed")
	}

	cbs.mu.Lock()
	defer cbs.mu.Unlock()
	if cbs.doneCount != 1 {
		t.Errorf("doneCount = %d, want 1", cbs.doneCount)
	}
	if len(cbs.removed) != numKinds {
		t.Errorf("removed %d tags, want %d\nchannels: %s", len(cbs.removed), numKinds, spew.Sdump(s.channels))
	}
}

func TestCloseChannelIdempotent(t *testing.T) {
	s, cbs := newTestSessionWithChannels(t)

	for k := Kind(0); int(k) < numKinds; k++ {
		s.closeChannel(k)
	}
	// Closing an already-closed channel must be a no-op: no extra
	// Remove call, no extra DONE, no second Close on a file already nil.
	s.closeChannel(Status)

	cbs.mu.Lock()
	defer cbs.mu.Unlock()
	if cbs.doneCount != 1 {
		t.Errorf("doneCount = %d, want 1 (DONE must fire exactly once)", cbs.doneCount)
	}
	if len(cbs.removed) != numKinds {
		t.Errorf("removed %d tags after idempotent re-close, want %d", len(cbs.removed), numKinds)
	}
}

func TestChannelRecordOpenInvariant(t *testing.T) {
	s, _ := newTestSessionWithChannels(t)

	s.closeChannel(Input)
	ch := s.channels[Input]
	if ch.open() {
		t.Fatal("channel reports open after closeChannel")
	}
	if ch.tag != nil {
		t.Error("tag must be cleared before fd is reset, per the documented invariant")
	}
	if ch.fd != -1 {
		t.Errorf("fd = %d, want -1", ch.fd)
	}
	if s.files[Input] != nil {
		t.Error("s.files[k] must be nil'd alongside the channel record, so the finalizer never re-closes the fd")
	}
}
