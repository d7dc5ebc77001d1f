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

// Backend fulfills the load-balancing-map collaborator contract of spec.md
// §6: recomputation of the active/backup server counts and the dispatch
// map, and the session-queue primitives a state transition needs to hand
// work to a newly-UP server. A load balancer embedding this package
// supplies its own implementation; DefaultBackend is the in-memory
// reference used when none is wired in (and by the test suite).
type Backend interface {
	// RecountServers refreshes px.SrvAct/px.SrvBck after a server's RUNNING
	// bit changed.
	RecountServers(px *Proxy)
	// RecalcServerMap rebuilds whatever weighted-dispatch structure the
	// embedder uses to pick a server for new sessions. DefaultBackend has no
	// map of its own, so this is a no-op.
	RecalcServerMap(px *Proxy)
	// PendconnFromPx pops the next session queued on the proxy (as opposed
	// to a specific server's queue), or nil.
	PendconnFromPx(px *Proxy) *PendConn
	// SrvDynamicMaxconn bounds how many pending sessions a single UP
	// transition may drain in one pass.
	SrvDynamicMaxconn(s *Server) int
}

// DefaultBackend recounts servers directly from the Proxy's server list and
// serves the proxy-level pending queue in FIFO order. It has no concept of
// a weighted dispatch map, matching a load balancer that has not wired one
// in yet.
type DefaultBackend struct{}

func (DefaultBackend) RecountServers(px *Proxy) {
	if px == nil {
		return
	}
	px.mu.Lock()
	defer px.mu.Unlock()

	act, bck := 0, 0
	for _, s := range px.servers {
		if !s.State().Has(StateRunning) {
			continue
		}
		if s.State().Has(StateBackup) {
			bck++
		} else {
			act++
		}
	}
	px.SrvAct, px.SrvBck = act, bck
}

func (DefaultBackend) RecalcServerMap(px *Proxy) {}

func (DefaultBackend) PendconnFromPx(px *Proxy) *PendConn {
	if px == nil || px.pending == nil {
		return nil
	}
	px.mu.Lock()
	defer px.mu.Unlock()

	e := px.pending.Front()
	if e == nil {
		return nil
	}
	px.pending.Remove(e)
	p := e.Value.(*PendConn)
	p.elem = nil
	p.onList = nil
	return p
}

// SrvDynamicMaxconn returns the server's configured MaxConn, or one more than
// the number of sessions already waiting on it when unbounded, so an unbounded server
// still drains its own queue in one pass without looping on an ever-shrinking
// condition forever.
func (DefaultBackend) SrvDynamicMaxconn(s *Server) int {
	if s.MaxConn > 0 {
		return s.MaxConn
	}
	return s.pendingLen() + 1
}
