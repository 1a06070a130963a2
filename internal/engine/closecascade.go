package engine

// closeChannel is the core's single close primitive: every fd teardown,
// whatever triggers it (operation staging closing an unused channel,
// error handling, or normal drain completion), must funnel through
// here so the close-notify cascade and the single-DONE invariant hold.
//
// Steps, exactly as the cascade requires:
//  1. identify which channel the fd belongs to (caller already knows; we
//     receive the channel's Kind directly),
//  2. if registered, remove the registration,
//  3. set fd = -1, tag = nil,
//  4. if every channel is now -1, fire DONE exactly once.
//
// The fd is closed via the *os.File stashed in s.files[k], not a raw
// syscall.Close on the bare descriptor number: that *os.File has a
// runtime finalizer armed, and closing its fd out from under it would
// leave the finalizer to double-close a descriptor number the process
// may have already reused for something unrelated by the time GC runs.
func (s *Session) closeChannel(k Kind) {
	s.mu.Lock()
	ch := s.channels[k]
	if !ch.open() {
		s.mu.Unlock()
		return
	}
	tag := ch.tag
	f := s.files[k]
	ch.tag = nil
	ch.fd = -1
	s.files[k] = nil
	allClosed := s.allClosedLocked()
	s.mu.Unlock()

	if tag != nil && s.cbs != nil {
		_ = s.cbs.Remove(tag)
	}
	if f != nil {
		_ = f.Close()
	}

	if allClosed {
		s.emitDoneOnce()
	}
}

func (s *Session) allClosedLocked() bool {
	for k := Kind(0); int(k) < numKinds; k++ {
		if s.channels[k].open() {
			return false
		}
	}
	return true
}

// emitDoneOnce delivers EventDone at most once per session, per the
// "DONE emitted at most once, only after all four fds reach -1"
// invariant.
func (s *Session) emitDoneOnce() {
	s.doneOnce.Do(func() {
		if s.cbs != nil {
			s.cbs.Event(EventDone, nil)
		}
		close(s.done)
	})
}
