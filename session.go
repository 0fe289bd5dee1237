package go5250

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fieldexit/go5250/internal/dispatch"
	"github.com/fieldexit/go5250/internal/keyboard"
	"github.com/fieldexit/go5250/internal/protocol"
	"github.com/fieldexit/go5250/internal/screen"
	"github.com/fieldexit/go5250/internal/telnet"
	"github.com/fieldexit/go5250/internal/transport"
	"github.com/fieldexit/go5250/internal/typeahead"
)

// Negotiated reports what the session handshake agreed on.
type Negotiated = telnet.Negotiated

// Session is one live terminal connection: a negotiated telnet
// session, the screen it paints, and the receive loop that keeps
// them current. Create one with Connect. All methods are safe for
// concurrent use.
type Session struct {
	cfg Config
	log *slog.Logger

	conn *telnet.Conn
	neg  Negotiated

	// mu guards the display state. The receive loop is the only
	// writer; accessors take read locks. Every mutation a record
	// makes is published in the same critical section as its unlock,
	// so a caller observing Unlocked sees that record's screen.
	mu   sync.RWMutex
	buf  *screen.Buffer
	oia  *screen.OIA
	disp *dispatch.Dispatcher
	err  error

	keys    *typeahead.Queue
	keyWake chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// Connect dials the host, runs telnet negotiation and starts the
// receive loop. The context bounds dialing and negotiation only; the
// session outlives it. On negotiation failure the connection is
// closed and a diagnostic emitted.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	log := cfg.Logger.With("component", "session", "host", cfg.Host)

	mode, err := transport.ParseMode(cfg.TLSMode)
	if err != nil {
		return nil, err
	}
	cdc, err := cfg.Codecs.Lookup(cfg.Codepage)
	if err != nil {
		return nil, err
	}

	nc, err := transport.Dial(ctx, transport.Options{
		Host:               cfg.Host,
		Port:               cfg.Port,
		Mode:               mode,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Proxy:              cfg.Proxy,
		Timeout:            cfg.ConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCommunication, err)
	}

	conn := telnet.NewConn(nc, telnet.Config{
		TerminalType: cfg.TerminalType,
		DeviceName:   cfg.DeviceName,
		User:         cfg.User,
		Password:     cfg.Password,
		Enhanced:     cfg.Enhanced,
		Logger:       cfg.Logger,
	})
	deadline := time.Now().Add(cfg.ConnectTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	neg, err := conn.Negotiate(deadline)
	if err != nil {
		conn.Close()
		if cfg.Diagnostics != nil {
			cfg.Diagnostics(Diagnostic{
				Time:   time.Now(),
				Kind:   KindNegotiationFailed,
				Detail: err.Error(),
			})
		}
		return nil, err
	}

	buf := screen.NewBuffer(neg.Rows, neg.Cols)
	oia := screen.NewOIA()
	s := &Session{
		cfg:     cfg,
		log:     log,
		conn:    conn,
		neg:     neg,
		buf:     buf,
		oia:     oia,
		keys:    typeahead.New(cfg.TypeAhead),
		keyWake: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.disp = dispatch.New(dispatch.Config{
		Screen:      buf,
		OIA:         oia,
		Codec:       cdc,
		Strict:      cfg.Strict,
		Logger:      cfg.Logger,
		Diagnostics: cfg.Diagnostics,
	})

	records := make(chan recordEvent)
	go s.readRecords(records)
	go s.run(records)

	log.Info("session established",
		"terminal", neg.TerminalType,
		"device", neg.DeviceName,
		"rows", neg.Rows, "cols", neg.Cols)
	return s, nil
}

// --- Goroutines ---

// recordEvent carries one inbound record or the read error that ended
// the stream.
type recordEvent struct {
	raw []byte
	err error
}

// readRecords pumps inbound records to the session loop until a read
// fails or the session closes.
func (s *Session) readRecords(ch chan<- recordEvent) {
	for {
		raw, err := s.conn.ReadRecord()
		select {
		case ch <- recordEvent{raw: raw, err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// run is the session event loop and the sole writer of screen, OIA
// and dispatcher state. Keystrokes apply here, between records, never
// while one is being dispatched.
func (s *Session) run(records <-chan recordEvent) {
	for {
		select {
		case ev := <-records:
			if ev.err != nil {
				s.log.Warn("receive loop stopped", "err", ev.err)
				s.fail(ev.err)
				return
			}
			if err := s.handleRecord(ev.raw); err != nil {
				s.log.Warn("receive loop stopped", "err", err)
				s.fail(err)
				return
			}
			if err := s.drainKeys(); err != nil {
				s.log.Warn("receive loop stopped", "err", err)
				s.fail(err)
				return
			}
		case <-s.keyWake:
			if err := s.drainKeys(); err != nil {
				s.log.Warn("receive loop stopped", "err", err)
				s.fail(err)
				return
			}
		case <-s.done:
			return
		}
	}
}

// --- Event handlers ---

// handleRecord parses and dispatches one inbound record and transmits
// whatever replies it demands. Malformed records are dropped with a
// diagnostic; only transport errors come back.
func (s *Session) handleRecord(raw []byte) error {
	s.trace("recv", raw)
	rec, err := protocol.ParseRecord(raw)
	if err != nil {
		s.log.Warn("record dropped", "err", err)
		if s.cfg.Diagnostics != nil {
			s.mu.RLock()
			d := Diagnostic{
				Time:   time.Now(),
				Kind:   KindMalformedOrder,
				OIA:    s.oia.State(),
				Screen: s.buf.Snapshot(),
				Detail: err.Error(),
			}
			s.mu.RUnlock()
			s.cfg.Diagnostics(d)
		}
		return nil
	}

	s.mu.Lock()
	res, derr := s.disp.Dispatch(rec)
	s.mu.Unlock()
	if derr != nil {
		s.log.Warn("record rejected", "opcode", rec.Opcode.String(), "err", derr)
	}
	if res == nil {
		return nil
	}
	if res.ReadPending {
		s.log.Debug("read invited", "opcode", rec.Opcode.String())
	}
	for _, rep := range res.Replies {
		if err := s.send(rep.Opcode, rep.Data); err != nil {
			return err
		}
	}
	return nil
}

// send frames and transmits one record to the host.
func (s *Session) send(op protocol.Opcode, payload []byte) error {
	out, err := protocol.BuildRecord(0, op, payload)
	if err != nil {
		return err
	}
	s.trace("send", out)
	return s.conn.WriteRecord(out)
}

// lockExempt reports the keys that act even while input is inhibited:
// reset clears an operator error, and the system-request and attention
// keys exist to reach the host past a lock.
func lockExempt(m keyboard.Mnemonic) bool {
	return m == keyboard.Reset || m == keyboard.SysReq || m == keyboard.Attn
}

// drainKeys applies queued keystrokes in order, stopping at the first
// one the keyboard state cannot accept. An AID key locks the keyboard
// for the host's reply, so anything typed behind it waits for the next
// restore; a typing error holds everything until reset.
func (s *Session) drainKeys() error {
	for {
		k, ok := s.keys.Peek()
		if !ok {
			return nil
		}

		s.mu.Lock()
		if s.oia.State().Locked() && !lockExempt(k.Mnemonic) {
			s.mu.Unlock()
			return nil
		}
		s.keys.Pop()

		var response []byte
		var signal func() error
		switch k.Mnemonic {
		case keyboard.Reset:
			if s.oia.State() == screen.LockedKeyboardError {
				s.buf.ClearError()
				s.oia.Unlock()
			}
		case keyboard.SysReq:
			signal = s.conn.SendSysReq
		case keyboard.Attn:
			signal = s.conn.SendAttn
		case keyboard.Tab:
			s.buf.Tab()
		case keyboard.Backtab:
			s.buf.Backtab()
		case keyboard.Home:
			s.buf.Home()
		case keyboard.FieldExit:
			if err := s.buf.FieldExit(); err != nil {
				s.oia.Lock(screen.LockedKeyboardError, err.Error())
			}
		case keyboard.Char:
			if err := s.buf.TypeRune(k.Ch); err != nil {
				s.oia.Lock(screen.LockedKeyboardError, err.Error())
			}
		default:
			if aid, ok := k.AID(); ok {
				response = s.disp.TakeAIDResponse(aid)
				s.oia.Lock(screen.LockedSystemWait, screen.StatusSystemWait)
			}
		}
		s.mu.Unlock()

		if signal != nil {
			if err := signal(); err != nil {
				return err
			}
		}
		if response != nil {
			s.log.Debug("aid sent", "key", k.String())
			if err := s.send(protocol.OpNoOp, response); err != nil {
				return err
			}
		}
	}
}

// fail records a session-fatal error, locks the keyboard in the
// communications-error state and tears the connection down.
func (s *Session) fail(cause error) {
	if !errors.Is(cause, ErrCommunication) {
		cause = fmt.Errorf("%w: %w", ErrCommunication, cause)
	}
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = cause
		s.oia.Lock(screen.LockedCommunicationsError, screen.StatusCommCheck)
		s.mu.Unlock()
		close(s.done)
		s.conn.Close()
	})
}

// --- Automation API ---

// Disconnect closes the session and unblocks every waiter with
// ErrSessionClosed. It is idempotent and does not disturb the cause
// recorded by an earlier failure.
func (s *Session) Disconnect() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = ErrSessionClosed
		s.mu.Unlock()
		close(s.done)
		s.conn.Close()
		s.log.Info("session disconnected")
	})
}

// Err returns why the session stopped: nil while it is live,
// ErrSessionClosed after Disconnect, an error matching
// ErrCommunication after a transport failure.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Complete reports whether the session is negotiated and still
// running. Pools use it as the health check before reuse.
func (s *Session) Complete() bool {
	select {
	case <-s.done:
		return false
	default:
	}
	return s.conn.Phase() == telnet.PhaseComplete
}

// Negotiated reports what the handshake agreed on.
func (s *Session) Negotiated() Negotiated { return s.neg }

// SendKeys parses a key script, literal text mixed with bracketed
// mnemonics such as "QUSER[tab]PASS[enter]", and queues its
// keystrokes for the session loop to apply in order. Keys sent while
// the keyboard is locked wait in the type-ahead queue. The script
// queues whole or not at all: a parse error or ErrTypeAheadFull
// leaves the session unchanged.
func (s *Session) SendKeys(script string) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	keys, err := keyboard.Parse(script)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.keys.Push(keys...); err != nil {
		return err
	}
	s.wake()
	return nil
}

// wake nudges the session loop; one pending wake is enough.
func (s *Session) wake() {
	select {
	case s.keyWake <- struct{}{}:
	default:
	}
}

// AwaitUnlock blocks until the keyboard is unlocked and every queued
// keystroke has been applied, polling at the configured interval. On
// timeout it returns an *UnlockTimeoutError carrying the final OIA
// state and a screen snapshot, and emits a diagnostic. Disconnect
// unblocks it with ErrSessionClosed.
func (s *Session) AwaitUnlock(timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(s.cfg.UnlockPoll)
	defer tick.Stop()

	for {
		select {
		case <-s.done:
			return ErrSessionClosed
		default:
		}
		if s.ready() {
			return nil
		}
		select {
		case <-tick.C:
		case <-deadline.C:
			s.mu.RLock()
			e := &UnlockTimeoutError{
				Timeout:  timeout,
				State:    s.oia.State(),
				Status:   s.oia.Status(),
				Snapshot: s.buf.Snapshot(),
			}
			s.mu.RUnlock()
			s.log.Warn("unlock timeout", "state", e.State.String(), "status", e.Status)
			if s.cfg.Diagnostics != nil {
				s.cfg.Diagnostics(Diagnostic{
					Time:   time.Now(),
					Kind:   KindUnlockTimeout,
					OIA:    e.State,
					Screen: e.Snapshot,
					Detail: e.Error(),
				})
			}
			return e
		case <-s.done:
			return ErrSessionClosed
		}
	}
}

// ready reports an unlocked keyboard with no keystrokes left to
// apply.
func (s *Session) ready() bool {
	s.mu.RLock()
	unlocked := s.oia.State() == screen.Unlocked
	s.mu.RUnlock()
	return unlocked && s.keys.Len() == 0
}

// ScreenText renders a screen region as visible text, rows joined by
// newlines. The zero Region renders the whole screen. Non-display
// field content renders blank.
func (s *Session) ScreenText(reg Region) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.TextRegion(reg.internal())
}

// Snapshot renders the whole screen; it never fails.
func (s *Session) Snapshot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.Snapshot()
}

// FieldAt returns the field containing the 1-based position, if any.
func (s *Session) FieldAt(row, col int) (Field, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := s.buf.FieldAt(row-1, col-1)
	if f == nil {
		return Field{}, false
	}
	return s.fieldView(f), true
}

// Fields returns the format table in screen order.
func (s *Session) Fields() []Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields := s.buf.Fields()
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = s.fieldView(f)
	}
	return out
}

// fieldView snapshots one field. Caller holds at least a read lock.
func (s *Session) fieldView(f *screen.Field) Field {
	return Field{
		Row:        f.Row + 1,
		Col:        f.Col + 1,
		Length:     f.Length,
		Protected:  f.Attr.Protected(),
		Numeric:    f.Attr.Numeric(),
		Intense:    f.Attr.Intense(),
		NonDisplay: f.Attr.NonDisplay(),
		Modified:   f.Modified(),
		text:       s.buf.FieldText(f),
	}
}

// Cursor returns the 1-based cursor position.
func (s *Session) Cursor() (row, col int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, c := s.buf.Cursor()
	return r + 1, c + 1
}

// Size returns the current screen geometry, which a clear-unit
// command may have switched away from the negotiated one.
func (s *Session) Size() (rows, cols int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.Rows(), s.buf.Cols()
}

// State returns the keyboard-inhibit state.
func (s *Session) State() OIAState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.oia.State()
}

// Status returns the operator status line explaining the inhibit
// state, empty when unlocked.
func (s *Session) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.oia.Status()
}

// MessageLight reports the message-waiting indicator.
func (s *Session) MessageLight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.oia.MessageLight()
}
