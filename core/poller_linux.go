//go:build linux

package core

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller multiplexes readiness through epoll. Cross-thread wakeup goes
// through an eventfd registered under a reserved token so a blocked
// EpollWait can be interrupted without polling.
type epollPoller struct {
	epfd      int
	wakeFd    int
	wakeToken uint64
	closed    atomic.Bool
}

func newPoller(wakeToken uint64) (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	p := &epollPoller{epfd: epfd, wakeFd: wakeFd, wakeToken: wakeToken}
	event := &unix.EpollEvent{Events: unix.EPOLLIN}
	putToken(event, wakeToken)
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, event); err != nil {
		unix.Close(wakeFd)
		unix.Close(epfd)
		return nil, err
	}
	return p, nil
}

// putToken stores a 64-bit token in the epoll user-data union (Fd+Pad).
func putToken(event *unix.EpollEvent, token uint64) {
	event.Fd = int32(uint32(token))
	event.Pad = int32(uint32(token >> 32))
}

func getToken(event *unix.EpollEvent) uint64 {
	return uint64(uint32(event.Fd)) | uint64(uint32(event.Pad))<<32
}

// interestEvents maps an Interest set to epoll event bits. EPOLLET keeps
// kernel notifications edge-triggered; the reactor latches readiness into
// entry flags, so level-triggered re-reports would only spin the loop.
func interestEvents(interest Interest) uint32 {
	events := uint32(unix.EPOLLET)
	if interest.Has(InterestRead) {
		events |= unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLPRI
	}
	if interest.Has(InterestWrite) {
		events |= unix.EPOLLOUT
	}
	return events
}

func (p *epollPoller) register(fd int, token uint64, interest Interest) error {
	event := &unix.EpollEvent{Events: interestEvents(interest)}
	putToken(event, token)
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, event)
}

func (p *epollPoller) reregister(fd int, token uint64, interest Interest) error {
	event := &unix.EpollEvent{Events: interestEvents(interest)}
	putToken(event, token)
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, event)
}

func (p *epollPoller) deregister(fd int, _ uint64) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) wait(events []pollEvent, timeout time.Duration) (int, error) {
	if p.closed.Load() {
		return 0, errPollerClosed
	}

	msec := -1
	if timeout >= 0 {
		msec = int(timeout.Milliseconds())
		if msec == 0 && timeout > 0 {
			msec = 1
		}
	}

	epEvents := make([]unix.EpollEvent, len(events))
	var n int
	var err error
	for {
		n, err = unix.EpollWait(p.epfd, epEvents, msec)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		return 0, err
	}

	out := 0
	for i := 0; i < n; i++ {
		ev := &epEvents[i]
		token := getToken(ev)
		if token == p.wakeToken {
			p.drainWake()
			continue
		}
		events[out] = pollEvent{
			token:       token,
			readable:    ev.Events&unix.EPOLLIN != 0,
			writable:    ev.Events&unix.EPOLLOUT != 0,
			errored:     ev.Events&unix.EPOLLERR != 0,
			readClosed:  ev.Events&(unix.EPOLLRDHUP|unix.EPOLLHUP) != 0,
			writeClosed: ev.Events&unix.EPOLLHUP != 0,
			priority:    ev.Events&unix.EPOLLPRI != 0,
		}
		out++
	}
	return out, nil
}

func (p *epollPoller) wake() error {
	if p.closed.Load() {
		return errPollerClosed
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(p.wakeFd, buf[:])
	if err == unix.EAGAIN {
		// Counter saturated; the pending wakeup already interrupts the wait.
		return nil
	}
	return err
}

func (p *epollPoller) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakeFd, buf[:]); err != nil {
			return
		}
	}
}

func (p *epollPoller) close() error {
	if p.closed.Swap(true) {
		return nil
	}
	unix.Close(p.wakeFd)
	return unix.Close(p.epfd)
}
