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
	"time"

	"golang.org/x/sys/unix"
)

// dispatchWrite is the thin adapter design notes §9 asks for: it calls the
// pure handler, then performs the one place where interest is armed/
// cleared and the task is woken, instead of the original's
// goto out_wakeup/out_poll/out_error labels.
func dispatchWrite(p *poller, ent *pollEntry, errored bool) {
	s := ent.srv
	wake, needWrite, needRead := handleWrite(s, ent.fd, errored || socketErrored(ent.fd))

	p.setInterest(ent.fd, needRead, needWrite)
	if wake {
		wakeServer(s)
	}
}

// handleWrite implements spec.md §4.C. errored reports the precondition
// "fd reports error state" (EPOLLERR/EPOLLHUP or a non-zero SO_ERROR).
func handleWrite(s *Server, fd int, errored bool) (wake, needWrite, needRead bool) {
	if errored {
		s.setResult(ResultFail)
		return true, false, false
	}

	if s.Probe != ProbeTCP {
		if s.Result() != ResultPending {
			// A prior failure already owns this probe's verdict.
			return true, false, false
		}

		payload := buildPayload(s.Probe, checkReqFor(s.Proxy), time.Now().Unix())
		n, err := unix.Write(fd, payload)

		switch {
		case err == nil && n == len(payload):
			return false, false, true
		case (err == nil && n == 0) || err == unix.EAGAIN:
			return false, true, false
		default:
			s.setResult(ResultFail)
			return true, false, false
		}
	}

	// Plain TCP: no payload to send, re-probe the connect() state itself.
	err := unix.Connect(fd, checkDestination(s))
	switch err {
	case unix.EALREADY, unix.EINPROGRESS:
		return false, true, false
	case nil, unix.EISCONN:
		s.setResult(ResultOK)
		return true, false, false
	default:
		s.setResult(ResultFail)
		return true, false, false
	}
}

func checkReqFor(px *Proxy) []byte {
	if px == nil {
		return nil
	}
	return px.CheckReq
}

// socketErrored consults SO_ERROR directly, covering the case where the
// poller's EPOLLERR/EPOLLHUP bits were not set but the connection still
// failed (spec.md §4.C/§4.D precondition).
func socketErrored(fd int) bool {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	return err != nil || v != 0
}
