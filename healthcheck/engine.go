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
	"context"
	"sync"

	libctx "github.com/nabbar/golib/context"
	"github.com/nabbar/golib/logger"
)

// Engine is the composition root: it owns the poller, the per-server driver
// goroutines, and the collaborators (Backend, Clock, metrics, logger) those
// goroutines call into. Engine itself never blocks: Start launches a
// goroutine per registered Server and returns immediately.
type Engine struct {
	poller *poller
	tproxy tproxyBinder
	clock  Clock

	backend Backend
	log     *logSink
	metrics metricsSink

	// registry indexes every added Server by ID so embedders can look one
	// up (e.g. from an admin endpoint) without walking the slice below.
	registry libctx.Config[string]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	servers []*Server
	started bool
}

// Option configures an Engine at construction time.
type Option func(*Engine)

func WithBackend(b Backend) Option {
	return func(e *Engine) { e.backend = b }
}

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = newLogSink(l) }
}

func WithMetrics(m metricsSink) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine builds an Engine with a real epoll poller and the Linux tproxy
// binder when available. It does not start any driver goroutines; call
// AddServer then Start.
func NewEngine(opt ...Option) (*Engine, error) {
	ep, err := newPoller()
	if err != nil {
		return nil, ErrorSocketSetup.Error(err)
	}

	e := &Engine{
		poller:   ep,
		tproxy:   NewTproxyBinder(),
		clock:    realClock{},
		backend:  DefaultBackend{},
		log:      newLogSink(nil),
		metrics:  noopMetrics{},
		registry: libctx.New[string](nil),
	}

	for _, o := range opt {
		o(e)
	}

	return e, nil
}

// AddServer registers s to be probed once Start runs. Calling it after
// Start has no effect on servers already running; it is meant for
// construction-time wiring.
func (e *Engine) AddServer(s *Server) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.servers = append(e.servers, s)
	e.registry.Store(s.ID, s)
}

// Lookup returns the registered Server with the given ID, or false if no
// such server was ever added.
func (e *Engine) Lookup(id string) (*Server, bool) {
	v, ok := e.registry.Load(id)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Server)
	return s, ok
}

// Start launches the epoll reactor and one driver goroutine per registered
// server, then returns. Stop (or cancelling ctx) shuts everything down.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	servers := append([]*Server(nil), e.servers...)
	e.mu.Unlock()

	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go e.runPoller()

	for _, s := range servers {
		e.wg.Add(1)
		go e.runServer(e.ctx, s)
	}
}

// Stop cancels every driver goroutine and the poller loop, then waits for
// them to exit and releases the epoll fd.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.poller.close()
}

// runPoller drives the epoll_wait loop until ctx is cancelled. It is the
// single goroutine that ever calls poller.run, so dispatchWrite/dispatchRead
// never race with setInterest calls made from elsewhere.
func (e *Engine) runPoller() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		default:
		}
		e.poller.run(100)
	}
}
