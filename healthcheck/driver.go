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
	"time"
)

// runServer is the per-server check task: it owns s's deadline and wakes
// whenever s.wake fires (task_wakeup) or the deadline elapses (task_queue
// expiry), then runs step(). It exits when ctx is cancelled, mirroring
// "proxy stop quiesces checks between probes" (spec.md §5) at the engine
// shutdown boundary.
func (e *Engine) runServer(ctx context.Context, s *Server) {
	defer e.wg.Done()

	now := e.clock.Now()
	expire := now.Add(s.Interval)
	timer := time.NewTimer(timeUntil(expire, now))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}

		now = e.clock.Now()
		expire = e.step(s, now, expire)

		drainTimer(timer)
		timer.Reset(timeUntil(expire, e.clock.Now()))
	}
}

// step implements spec.md §4.E's process_chk: the idle branch (no probe in
// flight) and the busy branch (a probe's fd is live), reimplemented as a
// bounded loop in place of the original's "goto new_chk" (design notes §9).
// It returns the next deadline to wait for.
func (e *Engine) step(s *Server, now, expire time.Time) time.Time {
	for {
		if s.CurFD() < 0 {
			if now.Before(expire) {
				return expire
			}

			if !s.State().Has(StateChecked) || (s.Proxy != nil && s.Proxy.Stopped) {
				return advanceExpire(expire, s.Interval, now)
			}

			s.setResult(ResultPending)
			outcome := setupCheck(s, e.poller, e.tproxy)
			e.metrics.observeAttempt(s)

			if outcome == connectSuspend {
				return now.Add(s.Interval)
			}

			// Socket setup failed synchronously (result already -1).
			e.applyFailure(s)
			expire = advanceExpire(expire, s.Interval, now)
			continue
		}

		switch {
		case s.Result() == ResultOK:
			e.applyOk(s)
			e.releaseServer(s)
			expire = advanceExpire(expire, s.Interval, now)
			continue

		case s.Result() == ResultFail || !now.Before(expire):
			e.applyFailure(s)
			e.releaseServer(s)
			expire = advanceExpire(expire, s.Interval, now)
			continue

		default:
			// result == 0, deadline not reached: still waiting.
			return expire
		}
	}
}

// advanceExpire advances expire by whole multiples of interval until it is
// strictly in the future - spec.md §4.E's "scheduling skew policy": probes
// are rate-limited but never compensated for after a long stall.
func advanceExpire(expire time.Time, interval time.Duration, now time.Time) time.Time {
	for !expire.After(now) {
		expire = expire.Add(interval)
	}
	return expire
}

// releaseServer hands the probe fd back to the poller and marks the server
// idle again (curfd = -1), matching invariant §3.1.
func (e *Engine) releaseServer(s *Server) {
	fd := s.CurFD()
	s.setCurFD(-1)
	if fd >= 0 {
		e.poller.remove(fd)
		releaseFD(fd)
	}
}

func timeUntil(expire, now time.Time) time.Duration {
	if d := expire.Sub(now); d > 0 {
		return d
	}
	return 0
}

func drainTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
