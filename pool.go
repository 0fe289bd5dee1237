package go5250

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned by Get after Close.
var ErrPoolClosed = errors.New("session pool closed")

// Pool is a bounded set of connected sessions for batch automation.
// Get never hands out a session that is not Complete: an idle session
// that died is torn down and a fresh connection dialed in its place.
// Sessions are never reset and reused across logical connections;
// replacement is always a full reconnect.
type Pool struct {
	cfg Config

	// slots holds one token per live session, bounding checked-out
	// plus idle sessions together.
	slots chan struct{}
	idle  chan *Session

	done chan struct{}
	once sync.Once
}

// NewPool creates a pool of at most size sessions using cfg for every
// connection. Sessions are dialed on demand, not up front.
func NewPool(cfg Config, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		cfg:   cfg,
		slots: make(chan struct{}, size),
		idle:  make(chan *Session, size),
		done:  make(chan struct{}),
	}
}

// Get returns a connected session, preferring an idle one that is
// still healthy over dialing fresh. When every slot is checked out it
// blocks until a session comes back or ctx ends.
func (p *Pool) Get(ctx context.Context) (*Session, error) {
	for {
		select {
		case <-p.done:
			return nil, ErrPoolClosed
		default:
		}

		// An idle session beats a fresh dial.
		select {
		case s := <-p.idle:
			if s.Complete() {
				return s, nil
			}
			p.retire(s)
			continue
		default:
		}

		select {
		case <-p.done:
			return nil, ErrPoolClosed
		case s := <-p.idle:
			if s.Complete() {
				return s, nil
			}
			p.retire(s)
		case p.slots <- struct{}{}:
			s, err := Connect(ctx, p.cfg)
			if err != nil {
				<-p.slots
				return nil, err
			}
			return s, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Put returns a session to the pool. Unhealthy sessions are torn
// down; their slot frees up for a fresh dial on the next Get. A
// session must be returned (or discarded) at most once.
func (p *Pool) Put(s *Session) {
	if s == nil {
		return
	}
	select {
	case <-p.done:
		p.retire(s)
		return
	default:
	}
	if !s.Complete() {
		p.retire(s)
		return
	}
	select {
	case p.idle <- s:
	default:
		p.retire(s)
	}
}

// Discard tears a session down without returning it. The next Get
// dials a replacement.
func (p *Pool) Discard(s *Session) {
	if s != nil {
		p.retire(s)
	}
}

// Close tears down the idle sessions and fails further Gets. Sessions
// currently checked out stay usable; return them through Put or
// Discard as usual.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.done)
		for {
			select {
			case s := <-p.idle:
				p.retire(s)
			default:
				return
			}
		}
	})
}

func (p *Pool) retire(s *Session) {
	s.Disconnect()
	<-p.slots
}
