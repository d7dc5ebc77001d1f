/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package healthcheck

import (
	"sync"

	"golang.org/x/sys/unix"
)

// fdState mirrors the external fd table contract of spec.md §6:
// per-fd state in {CONNECTING, READY, ERROR}.
type fdState uint8

const (
	fdConnecting fdState = iota
	fdReady
	fdError
)

// pollEntry is one fd's membership record in the poller - the concrete
// stand-in for the out-of-scope "fd table" collaborator.
type pollEntry struct {
	fd    int
	srv   *Server
	state fdState
	armed uint32 // currently armed EPOLL* bits
}

// poller is a minimal epoll-backed fd event layer fulfilling the §6
// contract (fd_insert/fd_delete, EV_FD_SET/CLR, per-direction callbacks).
// It owns exactly the fds registered through register(); a Server never
// touches the epoll fd directly.
type poller struct {
	epfd int

	mu      sync.Mutex
	entries map[int]*pollEntry
}

func newPoller() (*poller, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &poller{epfd: fd, entries: make(map[int]*pollEntry)}, nil
}

// register inserts fd into the table (fd_insert), owned by s, armed for
// writability - the initial interest after connect() is issued (spec.md
// §4.B.6).
func (p *poller) register(fd int, s *Server) {
	ent := &pollEntry{fd: fd, srv: s, state: fdConnecting, armed: unix.EPOLLOUT}
	p.mu.Lock()
	p.entries[fd] = ent
	p.mu.Unlock()

	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: ent.armed,
		Fd:     int32(fd),
	})
}

// remove deletes fd from the table (fd_delete). Safe to call more than
// once; the second call is a no-op.
func (p *poller) remove(fd int) {
	p.mu.Lock()
	_, ok := p.entries[fd]
	delete(p.entries, fd)
	p.mu.Unlock()

	if ok {
		_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}
}

// setInterest arms/disarms read and write interest for fd (EV_FD_SET/CLR).
func (p *poller) setInterest(fd int, wantRead, wantWrite bool) {
	p.mu.Lock()
	ent, ok := p.entries[fd]
	if !ok {
		p.mu.Unlock()
		return
	}

	var bits uint32
	if wantRead {
		bits |= unix.EPOLLIN
	}
	if wantWrite {
		bits |= unix.EPOLLOUT
	}
	ent.armed = bits
	p.mu.Unlock()

	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: bits,
		Fd:     int32(fd),
	})
}

func (p *poller) lookup(fd int) (*pollEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ent, ok := p.entries[fd]
	return ent, ok
}

// run drains ready events once and dispatches them to the write/read
// handlers (components C/D), returning the number of fds processed. It is
// meant to be called in a tight loop by the engine's event-loop goroutine;
// timeoutMs follows epoll_wait semantics (-1 blocks indefinitely).
func (p *poller) run(timeoutMs int) int {
	events := make([]unix.EpollEvent, 64)
	n, err := unix.EpollWait(p.epfd, events, timeoutMs)
	if err != nil || n <= 0 {
		return 0
	}

	for i := 0; i < n; i++ {
		ev := events[i]
		fd := int(ev.Fd)

		ent, ok := p.lookup(fd)
		if !ok {
			continue
		}

		errored := ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0
		if errored {
			ent.state = fdError
		}

		if errored || ev.Events&unix.EPOLLOUT != 0 {
			dispatchWrite(p, ent, errored)
		}
		// A FAIL from the write side can close/remove the fd; re-check
		// membership before dispatching the read side for the same event.
		if _, stillThere := p.lookup(fd); stillThere && (errored || ev.Events&unix.EPOLLIN != 0) {
			dispatchRead(p, ent, errored)
		}
	}

	return n
}

func (p *poller) close() {
	_ = unix.Close(p.epfd)
}
