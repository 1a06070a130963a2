//go:build linux

package engine

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hexgate/smime-engine/pkg/smimecmd"
)

// State is one node of the session lifecycle state machine.
type State int

const (
	StateNew State = iota
	StateStaged
	StateRunning
	StateClosing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStaged:
		return "staged"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// SessionID uniquely identifies one session for logging, tracing and
// registry bookkeeping purposes; it carries no wire meaning.
type SessionID string

func newSessionID() SessionID { return SessionID(uuid.New().String()) }

// EnvProbe captures the caller-environment OPTIONs the helper expects at
// session construction: display/tty/locale, all read once up front.
type EnvProbe struct {
	Display     string
	TTYName     string
	TTYType     string
	LCCtype     string
	LCMessages  string
}

// ProbeEnv reads DISPLAY, TERM, the controlling tty of fd 1, and the
// process's preferred LC_CTYPE/LC_MESSAGES. Locale probing is a plain
// environment read here; no process-wide locale mutation is performed,
// avoiding the original implementation's temporary setlocale/restore
// dance (not needed once the read is environment-only).
func ProbeEnv() EnvProbe {
	ttyName := ""
	if f, err := os.Stat("/proc/self/fd/1"); err == nil && f != nil {
		if name, err := os.Readlink("/proc/self/fd/1"); err == nil {
			ttyName = name
		}
	}
	return EnvProbe{
		Display:    os.Getenv("DISPLAY"),
		TTYName:    ttyName,
		TTYType:    os.Getenv("TERM"),
		LCCtype:    firstNonEmpty(os.Getenv("LC_CTYPE"), os.Getenv("LANG")),
		LCMessages: firstNonEmpty(os.Getenv("LC_MESSAGES"), os.Getenv("LANG")),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Session is a per-operation helper connection: it owns the helper
// process handle, the four channel records, the staged command, the
// status/colon handler slots, and the host's I/O-callback vtable.
//
// Canonical usage:
//
//	s, err := engine.New(cfg)
//	s.Decrypt(ciphertext, engine.EncNone, plaintext) // stage
//	err = s.Start(cbs)                 // register + dispatch
//	<-s.Done()
type Session struct {
	ID  SessionID
	log *zap.Logger

	helperPath string
	env        []string

	pipes *spawnedPipes
	files [numKinds]*os.File // caller-side *os.File per channel, nil if unused

	channels [numKinds]*channelRecord
	codec    *lineCodec
	colon    *colonAccumulator
	trace    *traceBuffer

	statusHandler StatusHandler
	colonHandler  ColonHandler

	command    string
	lastStatus string
	startedAt  time.Time
	metrics    *Metrics

	mu       sync.Mutex
	state    State
	cbs      Callbacks
	firstErr *Error

	doneOnce sync.Once
	done     chan struct{}

	// optionOverride lets tests drive Option/submitRecipients without a
	// real codec backed by a spawned helper. Nil in production use.
	optionOverride func(line string) *Error
}

// Config bundles the inputs needed to construct a Session.
type Config struct {
	HelperPath string
	Env        []string // full environment passed to the helper process
	Logger     *zap.Logger
	StatusFn   StatusHandler
	ColonFn    ColonHandler
	Trace      *traceBuffer // optional per-session protocol trace sink
	Metrics    *Metrics     // optional; nil disables metrics for this session
}

// New spawns the helper, sends the session-level OPTIONs derived from
// the caller's environment, and installs the close-notify cascade on
// all four caller-side fds. The returned Session is in StateNew.
func New(cfg Config) (*Session, *Error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	sp, err := spawnHelper(cfg.HelperPath, cfg.Env)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:            newSessionID(),
		log:           log,
		helperPath:    cfg.HelperPath,
		env:           cfg.Env,
		pipes:         sp,
		statusHandler: cfg.StatusFn,
		colonHandler:  cfg.ColonFn,
		trace:         cfg.Trace,
		metrics:       cfg.Metrics,
		startedAt:     time.Now(),
		state:         StateNew,
		done:          make(chan struct{}),
	}

	for k := Kind(0); int(k) < numKinds; k++ {
		s.channels[k] = newChannelRecord(dirForKind(k))
	}
	s.channels[Status].fd = int(sp.statusR.Fd())
	s.files[Status] = sp.statusR
	s.channels[Input].fd = int(sp.inputW.Fd())
	s.files[Input] = sp.inputW
	s.channels[Output].fd = int(sp.outputR.Fd())
	s.files[Output] = sp.outputR
	s.channels[Message].fd = int(sp.messageW.Fd())
	s.files[Message] = sp.messageW

	s.codec = newLineCodec(statusReadWriter{r: sp.statusR, w: sp.statusW})
	s.colon = newColonAccumulator(func(rec []byte) int {
		if s.colonHandler != nil {
			return s.colonHandler(rec)
		}
		return 0
	})

	if err := s.sendEnvOptions(ProbeEnv()); err != nil {
		s.teardown()
		return nil, err
	}

	log.Info("session created", zap.String("session_id", string(s.ID)))
	return s, nil
}

func dirForKind(k Kind) Direction {
	switch k {
	case Output, Status:
		return Inbound
	default:
		return Outbound
	}
}

// statusReadWriter adapts the two halves of the control pipe into the
// io.ReadWriter the line codec expects.
type statusReadWriter struct {
	r io.Reader
	w io.Writer
}

func (s statusReadWriter) Read(p []byte) (int, error)  { return s.r.Read(p) }
func (s statusReadWriter) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *Session) sendEnvOptions(e EnvProbe) *Error {
	opts := []struct {
		key, val string
	}{
		{"display", e.Display},
		{"ttyname", e.TTYName},
		{"ttytype", e.TTYType},
		{"lc-ctype", e.LCCtype},
		{"lc-messages", e.LCMessages},
	}
	for _, o := range opts {
		if o.val == "" {
			continue
		}
		if err := s.codec.SimpleCommand(smimecmd.Option(o.key, o.val)); err != nil {
			return err
		}
	}
	return nil
}

// Option sends a synchronous OPTION command, used by the operation
// façade for per-operation options (include-certs, list-mode, ...).
func (s *Session) Option(line string) *Error {
	if s.optionOverride != nil {
		return s.optionOverride(line)
	}
	return s.codec.SimpleCommand(line)
}

// setCommand stages the primary command line; valid only in StateNew,
// transitions to StateStaged.
func (s *Session) setCommand(cmd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.command = cmd
	s.state = StateStaged
}

// closeUnused closes every data channel the staged operation did not
// bind, so DONE can eventually fire even for operations that use fewer
// than three data channels.
func (s *Session) closeUnused(used ...Kind) {
	keep := map[Kind]bool{Status: true}
	for _, k := range used {
		keep[k] = true
	}
	for k := Kind(0); int(k) < numKinds; k++ {
		if !keep[k] {
			s.closeChannel(k)
		}
	}
}

// bind attaches a producer (Outbound) or consumer (Inbound) to channel k.
func (s *Session) bind(k Kind, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[k].data = data
}

// Start registers all open channels with the host's Callbacks and
// writes the staged command line, per §4.6. Valid only in StateStaged.
func (s *Session) Start(cbs Callbacks) *Error {
	s.mu.Lock()
	if s.state != StateStaged {
		s.mu.Unlock()
		return newError(GeneralError, 0, "Start called outside StateStaged")
	}
	s.cbs = cbs
	cmd := s.command
	s.mu.Unlock()

	b := newBroker(cbs, s)
	if err := b.registerAll(); err != nil {
		s.teardown()
		return err
	}

	if err := s.codec.WriteLine(cmd); err != nil {
		s.teardown()
		return pipeError(err.Error())
	}
	if s.trace != nil {
		s.trace.Append("> " + cmd)
	}

	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()
	return nil
}

// Done returns a channel closed exactly once, after EventDone fires.
func (s *Session) Done() <-chan struct{} { return s.done }

// handlerFor returns the readiness handler the broker registers for
// channel k.
func (s *Session) handlerFor(k Kind) Handler {
	switch k {
	case Status:
		return s.handleStatusReady
	case Output:
		return s.handleInboundDataReady(k)
	default:
		return s.handleOutboundDataReady(k)
	}
}

// handleStatusReady reads lines from the control channel, blocking between
// them, and dispatches OK/ERR/S/D per §4.2 until a terminal OK or ERR line
// or a read error ends the control channel.
func (s *Session) handleStatusReady() {
	for {
		line, err := s.codec.ReadLine()
		if err != nil {
			s.finishControl(mapOrPipeErr(err))
			return
		}
		if s.trace != nil {
			s.trace.Append("< " + line)
		}
		cl := classifyLine(line)
		switch cl.kind {
		case lineComment, lineEmpty:
			continue

		case lineOK:
			s.finishControl(nil)
			return

		case lineErr:
			e := mapWireError(cl.errCode)
			if e == nil {
				e = newError(GeneralError, cl.errCode, "")
			}
			s.stashError(e)
			s.finishControl(e)
			return

		case lineStatus:
			code, known := lookupStatus(cl.name)
			if !known {
				s.log.Warn("unrecognised status name", zap.String("name", cl.name))
				continue
			}
			s.mu.Lock()
			s.lastStatus = cl.name
			s.mu.Unlock()
			if s.statusHandler != nil {
				s.statusHandler(code, cl.name, cl.rest)
			}

		case lineData:
			if len(cl.payload) == 0 {
				continue
			}
			if err := s.colon.Feed(cl.payload); err != nil {
				s.stashError(err)
			}
			if err := s.colon.EndOfLine(); err != nil {
				s.stashError(err)
			}
		}
	}
}

func mapOrPipeErr(err error) *Error {
	if err == io.EOF {
		return nil
	}
	return pipeError(err.Error())
}

// finishControl runs the terminal sequence for the control channel: emit
// the synthetic EOF status, write a best-effort BYE, discard any
// buffered partial colon record, and close the control fd — which
// triggers the close cascade.
func (s *Session) finishControl(cause *Error) {
	if cause != nil {
		s.stashError(cause)
	}
	if s.statusHandler != nil {
		s.statusHandler(StatusEOF, "EOF", "")
	}
	_ = s.codec.WriteLine("BYE")
	s.colon.Discard()
	s.closeChannel(Status)
}

func (s *Session) stashError(e *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firstErr == nil {
		s.firstErr = e
	}
}

// Err returns the first asynchronous error observed by the control
// reader, or nil if none.
func (s *Session) Err() *Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

// Command returns the primary command line staged for this session
// ("" before setCommand runs), for diagnostics/metrics labeling.
func (s *Session) Command() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.command
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pid returns the helper process's PID, or 0 if unavailable.
func (s *Session) Pid() int {
	if s.pipes == nil || s.pipes.cmd == nil || s.pipes.cmd.Process == nil {
		return 0
	}
	return s.pipes.cmd.Process.Pid
}

// LastStatus returns the most recent status name observed on the
// control channel ("" if none yet), for the registry's session
// snapshot.
func (s *Session) LastStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStatus
}

// StartedAt returns when the session was constructed.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// handleOutboundDataReady drains one chunk from the bound producer into
// fd k; EOF from the producer closes the channel.
func (s *Session) handleOutboundDataReady(k Kind) Handler {
	return func() {
		s.mu.Lock()
		data := s.channels[k].data
		f := s.files[k]
		s.mu.Unlock()
		if data == nil || f == nil {
			return
		}
		r, ok := data.(io.Reader)
		if !ok {
			return
		}
		buf := make([]byte, 32*1024)
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				s.closeChannel(k)
				return
			}
		}
		if err != nil {
			s.closeChannel(k)
		}
	}
}

// handleInboundDataReady reads one chunk from fd k into the bound
// consumer; EOF from the fd closes the channel.
func (s *Session) handleInboundDataReady(k Kind) Handler {
	return func() {
		s.mu.Lock()
		data := s.channels[k].data
		f := s.files[k]
		s.mu.Unlock()
		if data == nil || f == nil {
			return
		}
		w, ok := data.(io.Writer)
		if !ok {
			return
		}
		buf := make([]byte, 32*1024)
		n, err := f.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				s.closeChannel(k)
				return
			}
		}
		if err != nil {
			s.closeChannel(k)
		}
	}
}

// teardown closes every still-open channel, driving the cascade to
// completion even when construction or staging failed midway.
func (s *Session) teardown() {
	s.mu.Lock()
	s.state = StateClosing
	s.mu.Unlock()
	for k := Kind(0); int(k) < numKinds; k++ {
		s.closeChannel(k)
	}
}

// describeChannels formats each channel's fd for diagnostics; it is not
// part of the wire protocol.
func (s *Session) describeChannels() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	for k := Kind(0); int(k) < numKinds; k++ {
		fmt.Fprintf(&b, "%s=%d ", Kind(k), s.channels[k].fd)
	}
	return b.String()
}
