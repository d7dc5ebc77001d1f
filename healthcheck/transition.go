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

// applyOk folds one successful probe into the hysteresis counter (spec.md
// §4.E/§4.F). Health only clamps to maxHealth once the server is RUNNING;
// while still climbing toward Rise it is left bounded by Rise itself.
func (e *Engine) applyOk(s *Server) {
	h := s.Health() + 1

	if h >= s.Rise {
		s.setState(func(st *State) { st.Set(StateRunning) })
		if h == s.Rise {
			e.transitionUp(s)
		}
		h = s.maxHealth()
	}

	s.setHealthRaw(h)
	e.metrics.observeResult(s, true)
	e.logProbeOutcome(s, true)
}

// applyFailure folds one failed probe into the hysteresis counter. Above
// Rise it is plain decay; at or below Rise the server is already down or is
// crossing into DOWN, so transitionDown runs (and is itself a no-op past
// the initial crossing, see its doc comment).
func (e *Engine) applyFailure(s *Server) {
	if s.Health() > s.Rise {
		s.setHealthRaw(s.Health() - 1)
		s.FailedChecks++
	} else {
		e.transitionDown(s)
	}
	e.metrics.observeResult(s, false)
	e.logProbeOutcome(s, false)
}

// logProbeOutcome emits a per-probe trace line when the server's proxy has
// Verbose set. At normal check intervals this fires on every single attempt,
// so it stays off unless explicitly requested.
func (e *Engine) logProbeOutcome(s *Server, ok bool) {
	if s.Proxy == nil || !s.Proxy.Verbose {
		return
	}
	e.log.debugf("server %s probe result: ok=%t health=%d", s.ID, ok, s.Health())
}

// transitionDown implements spec.md §4.F. StateRunning is cleared and health
// reset to 0 on every call, but the heavy side effects - server-map
// recomputation, pending-session redispatch, and alerting - only fire on the
// exact crossing (health == Rise when this was called), matching the
// original's "the down-transition function runs unconditionally but most of
// its body is gated on the crossing" behavior rather than re-running on
// every subsequent failure of an already-down server.
func (e *Engine) transitionDown(s *Server) {
	crossing := s.Health() == s.Rise

	s.setState(func(st *State) { st.Clear(StateRunning) })
	s.setHealthRaw(0)

	if !crossing {
		return
	}

	s.DownTrans++
	e.metrics.observeTransition(s, false)

	px := s.Proxy
	if px == nil {
		e.log.warnData(map[string]interface{}{
			"server":  s.ID,
			"curSess": s.CurSess,
			"pending": s.pendingLen(),
		}, "server %s is DOWN", s.ID)
		return
	}

	e.backend.RecountServers(px)
	e.backend.RecalcServerMap(px)

	migrated := 0
	if px.Options.Has(OptRedispatch) {
		for {
			p := s.dequeue()
			if p == nil {
				break
			}
			if p.Redispatch != nil {
				p.Redispatch()
			}
			if p.Wake != nil {
				p.Wake()
			}
			migrated++
		}
	}

	px.mu.Lock()
	srvAct, srvBck := px.SrvAct, px.SrvBck
	px.mu.Unlock()

	e.log.warnData(map[string]interface{}{
		"server":   s.ID,
		"srvAct":   srvAct,
		"srvBck":   srvBck,
		"curSess":  s.CurSess,
		"migrated": migrated,
		"pending":  s.pendingLen(),
	}, "server %s is DOWN", s.ID)

	if srvAct == 0 && srvBck == 0 {
		e.log.emerg("proxy %s has no server available", px.ID)
	}
}

// transitionUp implements the UP-crossing half of spec.md §4.E's busy
// branch: the server map is recomputed and sessions queued on the proxy are
// handed to the newly-UP server up to its dynamic maxconn, exactly once per
// crossing (applyOk only calls this when health == Rise).
func (e *Engine) transitionUp(s *Server) {
	px := s.Proxy
	if px == nil {
		e.log.notice("server %s is UP", s.ID)
		e.metrics.observeTransition(s, true)
		return
	}

	e.backend.RecountServers(px)
	e.backend.RecalcServerMap(px)

	limit := e.backend.SrvDynamicMaxconn(s)
	for xferred := 0; s.MaxConn == 0 || xferred < limit; xferred++ {
		p := e.backend.PendconnFromPx(px)
		if p == nil {
			break
		}
		if p.AssignServer != nil {
			p.AssignServer(s)
		}
		PendconnFree(p)
		if p.Wake != nil {
			p.Wake()
		}
	}

	e.log.notice("server %s is UP", s.ID)
	e.metrics.observeTransition(s, true)
}
