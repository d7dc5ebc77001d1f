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

// Package healthcheck implements the server health-check subsystem of a
// layer-4/7 load balancer: non-blocking TCP probes with optional
// application-level exchanges (HTTP, SSLv3 CLIENT_HELLO, SMTP greeting),
// rise/fall hysteresis, and, on state transitions, pending-session
// redispatch and load-balancing map recomputation.
//
// The subsystem is event-driven and single-goroutine-per-server: each
// Server owns exactly one in-flight probe at a time, driven by a small
// state machine split across dial.go (socket setup), write.go/read.go
// (fd-readiness handlers) and driver.go (the periodic check task). State
// transitions are handled in transition.go and always go through the
// Backend collaborator (backend.go) before any pending connection is
// touched.
//
// Collaborators that a real load balancer already owns (the cooperative
// scheduler, the fd/event table, the session queue) are modeled here as
// small interfaces (Scheduler, poller, Backend) with a default runnable
// implementation, so the package is self-contained and testable without
// pulling in a full proxy core.
package healthcheck
