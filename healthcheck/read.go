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

import "golang.org/x/sys/unix"

// replyBufSize is the size in bytes of the scratch buffer a probe reply is
// read into (256, above the 64-byte minimum of spec.md §4.D).
const replyBufSize = 256

// dispatchRead is the read-side counterpart of dispatchWrite: the single
// place interest is cleared and the task is woken.
func dispatchRead(p *poller, ent *pollEntry, errored bool) {
	s := ent.srv
	wake, needRead := handleRead(s, ent.fd, errored || socketErrored(ent.fd))

	p.setInterest(ent.fd, needRead, false)
	if wake {
		wakeServer(s)
	}
}

// handleRead implements spec.md §4.D. A FAIL classification never
// downgrades a prior WriteError's ResultFail (invariant §5: "the read side
// will not downgrade a prior -1 to +1" is symmetric - neither may a FAIL
// found here clobber an already-recorded fail, it is simply redundant).
func handleRead(s *Server, fd int, errored bool) (wake, needRead bool) {
	if errored {
		if s.Result() != ResultFail {
			s.setResult(ResultFail)
		}
		return true, false
	}

	buf := make([]byte, replyBufSize)
	n, err := unix.Read(fd, buf)

	if err == unix.EAGAIN {
		// Deviation from a literal reading of spec.md §4.D (see
		// DESIGN.md): read interest is kept armed, not cleared, so a
		// reply that arrives later still wakes the driver instead of
		// stalling until the check interval times out.
		return false, true
	}

	ok := err == nil && classifyReply(s.Probe, buf, n)

	if s.Result() != ResultFail {
		if ok {
			s.setResult(ResultOK)
		} else {
			s.setResult(ResultFail)
		}
	}

	return true, false
}
