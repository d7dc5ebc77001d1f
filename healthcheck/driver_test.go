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
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"golang.org/x/sys/unix"
)

var _ = Describe("advanceExpire", func() {
	It("advances by whole multiples of interval until strictly after now", func() {
		now := time.Unix(1000, 0)
		expire := time.Unix(940, 0)
		next := advanceExpire(expire, 10*time.Second, now)
		Expect(next.After(now)).To(BeTrue())
		Expect(next.Unix()).To(Equal(int64(1010)))
	})

	It("leaves a future expire untouched", func() {
		now := time.Unix(1000, 0)
		expire := time.Unix(1005, 0)
		Expect(advanceExpire(expire, 10*time.Second, now)).To(Equal(expire))
	})
})

var _ = Describe("Engine.step", func() {
	var ep *poller

	BeforeEach(func() {
		var err error
		ep, err = newPoller()
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		ep.close()
	})

	It("advances past the deadline when the proxy is stopped, without dialing", func() {
		px := NewProxy("px", 0)
		px.Stopped = true
		s := newTestServer(px, 2, 3)

		e := &Engine{poller: ep, backend: DefaultBackend{}, log: newLogSink(nil), metrics: noopMetrics{}}
		now := time.Now()
		next := e.step(s, now, now.Add(-time.Second))

		Expect(next.After(now)).To(BeTrue())
		Expect(s.CurFD()).To(Equal(-1))
	})

	It("releases the fd and advances on a successful busy-branch probe", func() {
		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		Expect(err).ToNot(HaveOccurred())
		defer unix.Close(fds[1])

		px := NewProxy("px", 0)
		s := newTestServer(px, 2, 3)
		s.setHealthRaw(0)
		s.setState(func(st *State) { st.Clear(StateRunning) })
		s.setCurFD(fds[0])
		s.setResult(ResultOK)
		ep.register(fds[0], s)

		e := &Engine{poller: ep, backend: DefaultBackend{}, log: newLogSink(nil), metrics: noopMetrics{}}
		now := time.Now()
		next := e.step(s, now, now.Add(time.Second))

		Expect(s.CurFD()).To(Equal(-1))
		Expect(s.State().Has(StateRunning)).To(BeFalse()) // single OK with rise=2 is not enough to cross
		Expect(next.After(now)).To(BeTrue())

		_, stillThere := ep.lookup(fds[0])
		Expect(stillThere).To(BeFalse())
	})

	It("transitions a running server down on a busy-branch failure and releases the fd", func() {
		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		Expect(err).ToNot(HaveOccurred())
		defer unix.Close(fds[1])

		px := NewProxy("px", 0)
		s := newTestServer(px, 2, 3)
		s.setHealthRaw(2)
		s.setState(func(st *State) { st.Set(StateRunning) })
		s.setCurFD(fds[0])
		s.setResult(ResultFail)
		ep.register(fds[0], s)

		e := &Engine{poller: ep, backend: DefaultBackend{}, log: newLogSink(nil), metrics: noopMetrics{}}
		now := time.Now()
		e.step(s, now, now.Add(time.Second))

		Expect(s.State().Has(StateRunning)).To(BeFalse())
		Expect(s.DownTrans).To(Equal(int64(1)))
		Expect(s.CurFD()).To(Equal(-1))
	})

	It("dials a real loopback listener and suspends awaiting writability", func() {
		ln, err := net.Listen("tcp4", "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
		defer ln.Close()

		px := NewProxy("px", 0)
		s := newTestServer(px, 2, 3)
		s.Addr = ln.Addr().(*net.TCPAddr)
		s.Interval = 50 * time.Millisecond

		e := &Engine{poller: ep, backend: DefaultBackend{}, log: newLogSink(nil), metrics: noopMetrics{}}
		now := time.Now()
		next := e.step(s, now, now)

		Expect(s.CurFD()).To(BeNumerically(">=", 0))
		Expect(next.After(now)).To(BeTrue())

		fd := s.CurFD()
		ep.remove(fd)
		releaseFD(fd)
	})
})
