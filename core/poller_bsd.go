//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package core

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// wakeIdent is the reserved kqueue identity for the EVFILT_USER wakeup
// event. Registered fds are always >= 0, so 0 on EVFILT_USER cannot collide.
const wakeIdent = 0

// kqueuePoller multiplexes readiness through kqueue. Tokens cannot ride in
// udata portably across the BSDs, so the poller keeps its own fd-to-token
// map; kevent results carry the fd in Ident.
type kqueuePoller struct {
	kq     int
	closed atomic.Bool

	mu     sync.Mutex
	tokens map[int]uint64
}

func newPoller(uint64) (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	p := &kqueuePoller{kq: kq, tokens: make(map[int]uint64)}

	var wake unix.Kevent_t
	unix.SetKevent(&wake, wakeIdent, unix.EVFILT_USER, unix.EV_ADD|unix.EV_CLEAR)
	if _, err := unix.Kevent(kq, []unix.Kevent_t{wake}, nil, nil); err != nil {
		unix.Close(kq)
		return nil, err
	}
	return p, nil
}

// arm sets both filters for fd to match the requested interest set. EV_ADD
// on an existing filter is an update; EV_DELETE on a missing one returns
// ENOENT, which is not a failure here.
func (p *kqueuePoller) arm(fd int, interest Interest) error {
	var read, write unix.Kevent_t
	readFlags := unix.EV_DELETE
	if interest.Has(InterestRead) {
		readFlags = unix.EV_ADD | unix.EV_CLEAR
	}
	unix.SetKevent(&read, fd, unix.EVFILT_READ, readFlags)
	writeFlags := unix.EV_DELETE
	if interest.Has(InterestWrite) {
		writeFlags = unix.EV_ADD | unix.EV_CLEAR
	}
	unix.SetKevent(&write, fd, unix.EVFILT_WRITE, writeFlags)
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{read, write}, nil, nil); err != nil && err != unix.ENOENT {
		return err
	}
	return nil
}

func (p *kqueuePoller) register(fd int, token uint64, interest Interest) error {
	if err := p.arm(fd, interest); err != nil {
		return err
	}
	p.mu.Lock()
	p.tokens[fd] = token
	p.mu.Unlock()
	return nil
}

func (p *kqueuePoller) reregister(fd int, token uint64, interest Interest) error {
	p.mu.Lock()
	p.tokens[fd] = token
	p.mu.Unlock()
	return p.arm(fd, interest)
}

func (p *kqueuePoller) deregister(fd int, _ uint64) error {
	p.mu.Lock()
	delete(p.tokens, fd)
	p.mu.Unlock()

	var read, write unix.Kevent_t
	unix.SetKevent(&read, fd, unix.EVFILT_READ, unix.EV_DELETE)
	unix.SetKevent(&write, fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{read, write}, nil, nil); err != nil && err != unix.ENOENT {
		return err
	}
	return nil
}

func (p *kqueuePoller) wait(events []pollEvent, timeout time.Duration) (int, error) {
	if p.closed.Load() {
		return 0, errPollerClosed
	}

	var ts *unix.Timespec
	if timeout >= 0 {
		spec := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &spec
	}

	kevents := make([]unix.Kevent_t, len(events))
	var n int
	var err error
	for {
		n, err = unix.Kevent(p.kq, nil, kevents, ts)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		return 0, err
	}

	out := 0
	for i := 0; i < n; i++ {
		kev := &kevents[i]
		if kev.Filter == unix.EVFILT_USER {
			continue
		}
		fd := int(kev.Ident)
		p.mu.Lock()
		token, known := p.tokens[fd]
		p.mu.Unlock()
		if !known {
			continue
		}
		eof := kev.Flags&unix.EV_EOF != 0
		events[out] = pollEvent{
			token:       token,
			readable:    kev.Filter == unix.EVFILT_READ,
			writable:    kev.Filter == unix.EVFILT_WRITE,
			errored:     kev.Flags&unix.EV_ERROR != 0,
			readClosed:  kev.Filter == unix.EVFILT_READ && eof,
			writeClosed: kev.Filter == unix.EVFILT_WRITE && eof,
		}
		out++
	}
	return out, nil
}

func (p *kqueuePoller) wake() error {
	if p.closed.Load() {
		return errPollerClosed
	}
	var kev unix.Kevent_t
	unix.SetKevent(&kev, wakeIdent, unix.EVFILT_USER, 0)
	kev.Fflags = unix.NOTE_TRIGGER
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil)
	return err
}

func (p *kqueuePoller) close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return unix.Close(p.kq)
}
