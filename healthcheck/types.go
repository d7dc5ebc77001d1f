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
	"container/list"
	"net"
	"sync"
	"time"

	libatm "github.com/nabbar/golib/atomic"
)

// ProbeKind selects the application-level exchange performed on top of the
// TCP connect, if any.
type ProbeKind uint8

const (
	ProbeTCP ProbeKind = iota
	ProbeHTTP
	ProbeSSL3
	ProbeSMTP
)

func (p ProbeKind) String() string {
	switch p {
	case ProbeHTTP:
		return "http"
	case ProbeSSL3:
		return "ssl3"
	case ProbeSMTP:
		return "smtp"
	default:
		return "tcp"
	}
}

// Result is the verdict written by the write/read handlers and consumed by
// the check driver. It is written at most once per probe (invariant §3.3).
type Result int8

const (
	ResultFail    Result = -1
	ResultPending Result = 0
	ResultOK      Result = 1
)

// State is a bitset of runtime flags carried by a Server, mirroring the
// option-bitset idiom used throughout this repository's enum-like types
// (cf. httpcli.Network, cluster's node option flags).
type State uint8

const (
	StateChecked State = 1 << iota
	StateRunning
	StateBackup
	StateBindSrc
)

func (s State) Has(flag State) bool { return s&flag != 0 }
func (s *State) Set(flag State)     { *s |= flag }
func (s *State) Clear(flag State)   { *s &^= flag }

// TproxyMode selects whether a transparent-proxy source binding is applied.
type TproxyMode uint8

const (
	TproxyNone TproxyMode = iota
	TproxyAddr
)

// ProxyOption is a bitset of per-proxy configuration flags (spec.md §3,
// Proxy.options).
type ProxyOption uint16

const (
	OptHTTPChk ProxyOption = 1 << iota
	OptSSL3Chk
	OptSMTPChk
	OptRedispatch
	OptBindSrc
	OptTproxy
)

func (o ProxyOption) Has(flag ProxyOption) bool { return o&flag != 0 }

// SourcePolicy describes an optional source-address binding and an
// optional transparent-proxy override layered on top of it (spec.md §3).
type SourcePolicy struct {
	BindSource bool
	SourceAddr *net.TCPAddr
	Tproxy     TproxyMode
	TproxyAddr *net.TCPAddr
}

// PendConn ties a queued session to the server or proxy queue it is
// waiting on, removable in O(1) from whichever list holds it (spec.md §3).
// SessCallback is invoked once, under the Backend's care, when the pending
// connection is handed a server or redispatched.
type PendConn struct {
	elem   *list.Element
	onList *list.List

	Server *Server
	Proxy  *Proxy

	// AssignServer runs when a UP transition hands this session a server.
	AssignServer func(s *Server)
	// Redispatch runs when a DOWN transition evicts this session so it can
	// be reselected by the dispatcher (only ever called when Proxy has
	// OptRedispatch).
	Redispatch func()
	// Wake resumes the session's own task; always called exactly once,
	// after AssignServer/Redispatch has run.
	Wake func()
}

// Proxy is the collaborator back-reference for a Server: shared probe
// payloads, option bitset, and the two-tier (active/backup) server counts
// recount_servers/recalc_server_map maintain.
type Proxy struct {
	mu sync.Mutex

	ID      string
	Options ProxyOption
	Stopped bool
	Verbose bool

	SrvAct int
	SrvBck int

	CheckReq []byte
	Source   SourcePolicy

	pending *list.List
	servers []*Server
}

func NewProxy(id string, opt ProxyOption) *Proxy {
	return &Proxy{
		ID:      id,
		Options: opt,
		pending: list.New(),
	}
}

// Server is the probed entity. Hot runtime fields (Result, CurFD, Health)
// are kept in lock-free atomic.Value cells so metrics/introspection code
// can read them without contending with the per-server driver goroutine.
type Server struct {
	ID    string
	Proxy *Proxy

	Addr      *net.TCPAddr
	CheckAddr *net.TCPAddr // optional override of Addr's IP
	CheckPort int          // 0 means "use Addr's port"
	Interval  time.Duration

	Source SourcePolicy

	Rise   int
	Fall   int
	Probe  ProbeKind

	result libatm.Value[int]
	curfd  libatm.Value[int]
	health libatm.Value[int]
	state  State
	stMu   sync.Mutex

	FailedChecks int64
	DownTrans    int64
	CurSess      int64

	pending *list.List
	pendMu  sync.Mutex

	MaxConn int // 0 == unbounded, see srv_dynamic_maxconn contract

	// wake is the task_wakeup(t) contract of spec.md §6, collapsed onto a
	// single-slot channel: the fd-event handlers (write.go/read.go) send
	// on it once a probe's result has been written, and the per-server
	// driver goroutine (driver.go) selects on it alongside its deadline
	// timer.
	wake chan struct{}
}

// NewServer builds a Server with curfd idle (-1), health seeded to Rise and
// StateRunning set, per the spec.md §9 open-question decision: a fresh
// server starts UP.
func NewServer(id string, px *Proxy, addr *net.TCPAddr, rise, fall int) *Server {
	s := &Server{
		ID:      id,
		Proxy:   px,
		Addr:    addr,
		Rise:    rise,
		Fall:    fall,
		state:   StateChecked | StateRunning,
		pending: list.New(),
		wake:    make(chan struct{}, 1),
	}
	s.result = libatm.NewValue[int]()
	s.curfd = libatm.NewValue[int]()
	s.health = libatm.NewValue[int]()
	s.curfd.Store(-1)
	s.setHealthRaw(rise)
	if px != nil {
		px.mu.Lock()
		px.servers = append(px.servers, s)
		px.mu.Unlock()
	}
	return s
}

func (s *Server) Result() Result     { return Result(s.result.Load()) }
func (s *Server) setResult(r Result) { s.result.Store(int(r)) }

func (s *Server) CurFD() int { return s.curfd.Load() }

// setCurFD stores the active probe fd, or -1 when idle. Storing the zero
// value falls back to atomic.Value's configured default-store value, which
// for a bare NewValue[int]() is also 0, so fd 0 still round trips correctly.
func (s *Server) setCurFD(fd int) { s.curfd.Store(fd) }

func (s *Server) Health() int          { return s.health.Load() }
func (s *Server) setHealthRaw(h int)   { s.health.Store(h) }

func (s *Server) maxHealth() int { return s.Rise + s.Fall - 1 }

func (s *Server) State() State {
	s.stMu.Lock()
	defer s.stMu.Unlock()
	return s.state
}

func (s *Server) setState(f func(*State)) {
	s.stMu.Lock()
	f(&s.state)
	s.stMu.Unlock()
}

// enqueue appends a pending connection to this server's queue.
func (s *Server) enqueue(p *PendConn) {
	s.pendMu.Lock()
	p.elem = s.pending.PushBack(p)
	p.onList = s.pending
	s.pendMu.Unlock()
}

// dequeue pops the oldest pending connection, or nil if none.
func (s *Server) dequeue() *PendConn {
	s.pendMu.Lock()
	defer s.pendMu.Unlock()
	e := s.pending.Front()
	if e == nil {
		return nil
	}
	s.pending.Remove(e)
	p := e.Value.(*PendConn)
	p.elem = nil
	p.onList = nil
	return p
}

func (s *Server) pendingLen() int {
	s.pendMu.Lock()
	defer s.pendMu.Unlock()
	return s.pending.Len()
}

// PendconnFree removes p from whichever list currently holds it, matching
// the out-of-scope pendconn_free(p) contract (spec.md §6): O(1), safe to
// call even if p was already removed.
func PendconnFree(p *PendConn) {
	if p == nil || p.onList == nil || p.elem == nil {
		return
	}
	p.onList.Remove(p.elem)
	p.elem = nil
	p.onList = nil
}
