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
	"fmt"

	liberr "github.com/nabbar/golib/errors"
)

// Error codes for the health-check probe state machine (spec.md §7).
// These are never bubbled above the check task - they exist to label
// `result` transitions consistently for logging and metrics.
const (
	ErrorSocketSetup  liberr.CodeError = iota + liberr.MinPkgHealthCheck // socket/nonblock/nodelay/maxsock/bind failure
	ErrorConnect                                                         // synchronous, non-retryable connect() errno
	ErrorWrite                                                           // short write or unexpected send() errno
	ErrorRead                                                            // fd error, bad SO_ERROR, or reply content mismatch
	ErrorTimeout                                                         // deadline reached with result still pending
	ErrorParamInvalid                                                    // invalid server/proxy configuration
)

func init() {
	if liberr.ExistInMapMessage(ErrorSocketSetup) {
		panic(fmt.Errorf("error code collision with package golib/healthcheck"))
	}
	liberr.RegisterIdFctMessage(ErrorSocketSetup, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorSocketSetup:
		return "could not create or configure the probe socket"
	case ErrorConnect:
		return "connect() failed with a non-retryable error"
	case ErrorWrite:
		return "probe payload could not be written in full"
	case ErrorRead:
		return "probe reply was absent, malformed, or rejected"
	case ErrorTimeout:
		return "probe did not complete before the check interval elapsed"
	case ErrorParamInvalid:
		return "invalid health-check configuration parameter"
	}

	return liberr.NullMessage
}
