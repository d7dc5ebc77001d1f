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

//go:build linux

package healthcheck

import (
	"net"

	"golang.org/x/sys/unix"
)

// tproxyBinder applies a transparent-proxy source so the kernel will source
// packets from an address the process does not own (spec.md glossary:
// Tproxy). Modeled as an injected capability per design notes §9 - the
// original CONFIG_HAP_CTTPROXY compile-time option becomes an interface
// that a platform either implements or omits.
type tproxyBinder interface {
	// Bind applies the transparent-proxy source addr to fd. The two
	// legacy setsockopt calls (ASSIGN then FLAGS=CONNECT|ONCE) described
	// in spec.md §4.B.3 map to IP_TRANSPARENT on modern Linux: one
	// setsockopt enabling transparent mode, a second (implicit in the
	// kernel) taking effect on the subsequent connect().
	Bind(fd int, addr *net.TCPAddr) error
}

type linuxTproxy struct{}

// NewTproxyBinder returns the Linux IP_TRANSPARENT implementation of the
// tproxy capability.
func NewTproxyBinder() tproxyBinder { return linuxTproxy{} }

func (linuxTproxy) Bind(fd int, addr *net.TCPAddr) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_IP, unix.IP_TRANSPARENT, 1); err != nil {
		return err
	}

	var ip [4]byte
	if ip4 := addr.IP.To4(); ip4 != nil {
		copy(ip[:], ip4)
	}
	sa := &unix.SockaddrInet4{Port: addr.Port, Addr: ip}
	return unix.Bind(fd, sa)
}
