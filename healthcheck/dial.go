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
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// MaxSock bounds the number of simultaneously open probe fds, mirroring
// global.maxsock in spec.md §4.B.1. Zero means unbounded.
var MaxSock int

// openProbeFDs counts fds currently owned by in-flight probes, across all
// server driver goroutines; checked against MaxSock in setupCheck and
// decremented by releaseFD once a probe completes (driver.go).
var openProbeFDs atomic.Int64

func releaseFD(fd int) {
	_ = unix.Close(fd)
	openProbeFDs.Add(-1)
}

// connectOutcome is the verdict of the non-blocking socket setup step.
type connectOutcome uint8

const (
	connectSuspend connectOutcome = iota // fd registered, waiting on writability
	connectFailed                        // result set to ResultFail, fd closed
)

// setupCheck implements spec.md §4.B: allocate a non-blocking TCP socket,
// apply optional source/tproxy binding, and initiate connect(). On success
// the fd is registered with ep (ownership transfers there); on any failure
// path the fd is closed before returning, per the open-question decision
// in DESIGN.md (never close on the success path).
func setupCheck(s *Server, ep *poller, tb tproxyBinder) connectOutcome {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		s.setResult(ResultFail)
		return connectFailed
	}

	if int64(MaxSock) > 0 && openProbeFDs.Load() >= int64(MaxSock) {
		_ = unix.Close(fd)
		s.setResult(ResultFail)
		return connectFailed
	}

	if err = unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		s.setResult(ResultFail)
		return connectFailed
	}
	if err = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		_ = unix.Close(fd)
		s.setResult(ResultFail)
		return connectFailed
	}

	dst := checkDestination(s)

	if s.Source.BindSource {
		if err = bindSource(fd, s.Source, tb); err != nil {
			_ = unix.Close(fd)
			s.setResult(ResultFail)
			return connectFailed
		}
	} else if s.Proxy != nil && s.Proxy.Source.BindSource {
		if err = bindSource(fd, s.Proxy.Source, tb); err != nil {
			_ = unix.Close(fd)
			s.setResult(ResultFail)
			return connectFailed
		}
	}

	err = unix.Connect(fd, dst)
	if !connectInProgress(err) {
		_ = unix.Close(fd)
		s.setResult(ResultFail)
		return connectFailed
	}

	openProbeFDs.Add(1)
	s.setCurFD(fd)
	ep.register(fd, s)
	return connectSuspend
}

// connectInProgress reports whether err from connect() is one of the codes
// that means "in progress or already established" (spec.md §4.B.5).
func connectInProgress(err error) bool {
	if err == nil {
		return true
	}
	switch err {
	case unix.EINPROGRESS, unix.EALREADY, unix.EISCONN, unix.EAGAIN:
		return true
	default:
		return false
	}
}

// checkDestination computes sa = check_addr or addr, with the port
// overridden to check_port when set (spec.md §4.B.2).
func checkDestination(s *Server) unix.Sockaddr {
	addr := s.Addr
	if s.CheckAddr != nil {
		addr = s.CheckAddr
	}

	port := addr.Port
	if s.CheckPort != 0 {
		port = s.CheckPort
	}

	var ip [4]byte
	if ip4 := addr.IP.To4(); ip4 != nil {
		copy(ip[:], ip4)
	}

	return &unix.SockaddrInet4{Port: port, Addr: ip}
}

// bindSource applies SO_REUSEADDR + bind() to pol.SourceAddr, and, for
// TproxyAddr mode, the transparent-proxy source via tb (spec.md §4.B.3-4).
func bindSource(fd int, pol SourcePolicy, tb tproxyBinder) error {
	if pol.SourceAddr == nil {
		return nil
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}

	var ip [4]byte
	if ip4 := pol.SourceAddr.IP.To4(); ip4 != nil {
		copy(ip[:], ip4)
	}
	sa := &unix.SockaddrInet4{Port: pol.SourceAddr.Port, Addr: ip}
	if err := unix.Bind(fd, sa); err != nil {
		return err
	}

	if pol.Tproxy == TproxyAddr {
		target := pol.TproxyAddr
		if target == nil {
			target = pol.SourceAddr
		}
		if tb == nil {
			return errUnsupportedTproxy
		}
		return tb.Bind(fd, target)
	}

	return nil
}

// errUnsupportedTproxy is returned when TproxyAddr is requested but no
// tproxyBinder capability was injected (design notes §9).
var errUnsupportedTproxy = &net.OpError{Op: "tproxy", Err: unix.EOPNOTSUPP}
