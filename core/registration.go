package core

// IoRegistration ties a file descriptor to the reactor. Futures built on it
// poll latched readiness and park their waker with the reactor when the
// source is not ready.
//
// Readiness is consumed on observation: a ready poll clears the latch, and
// the caller is expected to drive the fd until the OS reports would-block
// before polling again. The registered fd should be in non-blocking mode.
type IoRegistration struct {
	reactor *Reactor
	token   uint64
	fd      int
}

// Register adds fd to the reactor with the given interest set and returns
// the registration handle.
func (r *Reactor) Register(fd int, interest Interest) (*IoRegistration, error) {
	token, err := r.registerIO(fd, interest)
	if err != nil {
		return nil, err
	}
	return &IoRegistration{reactor: r, token: token, fd: fd}, nil
}

// Token returns the reactor token for this registration.
func (reg *IoRegistration) Token() uint64 { return reg.token }

// Fd returns the registered file descriptor.
func (reg *IoRegistration) Fd() int { return reg.fd }

// PollReadReady reports whether the source has latched read readiness,
// consuming it. When not ready, the context's waker is parked for the next
// READABLE, error, or priority event.
func (reg *IoRegistration) PollReadReady(cx *Context) (error, bool) {
	return reg.reactor.pollIOReady(reg.token, ioRead, cx)
}

// PollWriteReady is the WRITABLE counterpart of PollReadReady.
func (reg *IoRegistration) PollWriteReady(cx *Context) (error, bool) {
	return reg.reactor.pollIOReady(reg.token, ioWrite, cx)
}

// ReadReady returns a future that resolves once the source reports read
// readiness.
func (reg *IoRegistration) ReadReady() Future[struct{}] {
	return FutureFunc[struct{}](func(cx *Context) (struct{}, error, bool) {
		err, ready := reg.PollReadReady(cx)
		return struct{}{}, err, ready
	})
}

// WriteReady returns a future that resolves once the source reports write
// readiness. Callers typically pair it with EnableWriteInterest.
func (reg *IoRegistration) WriteReady() Future[struct{}] {
	return FutureFunc[struct{}](func(cx *Context) (struct{}, error, bool) {
		err, ready := reg.PollWriteReady(cx)
		return struct{}{}, err, ready
	})
}

// EnableWriteInterest registers one write waiter. WRITABLE events are
// delivered while at least one waiter is enabled; concurrent writers share a
// single poller registration.
func (reg *IoRegistration) EnableWriteInterest() error {
	return reg.reactor.enableWriteInterest(reg.token)
}

// DisableWriteInterest drops one write waiter, removing WRITABLE interest
// from the poller when the last waiter leaves.
func (reg *IoRegistration) DisableWriteInterest() error {
	return reg.reactor.disableWriteInterest(reg.token)
}

// Deregister removes the source from the reactor. Futures polled after
// deregistration resolve with ErrRegistrationMissing.
func (reg *IoRegistration) Deregister() error {
	return reg.reactor.deregisterIO(reg.fd, reg.token)
}
