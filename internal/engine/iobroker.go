package engine

// Tag is the opaque registration handle returned by Callbacks.Add. A nil
// Tag means "not registered".
type Tag any

// EventKind distinguishes host-forwarded events from the single DONE
// event the engine itself emits.
type EventKind int

const (
	// EventDone is emitted by the engine, exactly once per session,
	// strictly after every other S/D upcall, once all four channels
	// have closed.
	EventDone EventKind = iota
	// EventHost marks a detail forwarded verbatim from the host loop;
	// the engine never originates it.
	EventHost
)

// Handler is invoked by the host loop when fd becomes ready.
type Handler func()

// Callbacks is the host's I/O event-loop capability, injected at session
// construction. The engine treats it as a narrow dependency, not a
// global: Add/Remove register and unregister readiness notifications,
// Event delivers the session's upward signals (principally DONE).
type Callbacks interface {
	Add(fd int, dir Direction, handler Handler) (Tag, error)
	Remove(tag Tag) error
	Event(kind EventKind, detail any)
}

// broker wires the session's four channels to the host's Callbacks. The
// close-notify cascade itself is Session.closeChannel in closecascade.go.
type broker struct {
	cbs      Callbacks
	sess     *Session
	doneOnce bool
}

func newBroker(cbs Callbacks, s *Session) *broker {
	return &broker{cbs: cbs, sess: s}
}

// registerAll registers every currently open channel. STATUS is always
// registered inbound (it is read-driven; writes happen synchronously
// out of band via SimpleCommand). Data channels are registered per
// their declared direction; outbound data channels are additionally put
// in non-blocking mode, working around a host-loop limitation noted in
// the wire design.
func (b *broker) registerAll() *Error {
	for k := Kind(0); int(k) < numKinds; k++ {
		ch := b.sess.channels[k]
		if !ch.open() {
			continue
		}
		if ch.dir == Outbound {
			if err := setNonblocking(ch.fd); err != nil {
				return pipeError(err.Error())
			}
		}
		h := b.sess.handlerFor(k)
		tag, err := b.cbs.Add(ch.fd, ch.dir, h)
		if err != nil || tag == nil {
			return newError(GeneralError, 0, "io callback registration failed for "+k.String())
		}
		ch.tag = tag
	}
	return nil
}
