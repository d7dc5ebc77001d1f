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

import "encoding/binary"

// DefaultHTTPCheckRequest is the stock HTTP probe request line (spec.md §4.A).
const DefaultHTTPCheckRequest = "OPTIONS / HTTP/1.0\r\n\r\n"

// DefaultSMTPCheckRequest is the stock SMTP probe (spec.md §4.A).
const DefaultSMTPCheckRequest = "QUIT\r\n"

// sslv3ClientHelloTemplate is a minimal SSLv3 CLIENT_HELLO record. Bytes
// [11:15] hold the 4-byte gmt_unix_time field that gets overwritten with
// the current epoch seconds (network byte order) immediately before each
// send, so replays always look fresh (spec.md §4.A/§6).
var sslv3ClientHelloTemplate = []byte{
	0x16, 0x03, 0x00, 0x00, 0x4d, 0x01, 0x00, 0x00,
	0x49, 0x03, 0x00, // [9]='major', [10]='minor' of client_version; byte 11 begins gmt_unix_time
	0x00, 0x00, 0x00, 0x00, // gmt_unix_time, mutated per send
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
}

// buildPayload returns the bytes to send for the given probe kind, or nil
// for ProbeTCP (connectivity alone is the probe). The proxy's CheckReq
// bytes are used verbatim for HTTP/SMTP; the SSLv3 template is copied and
// stamped fresh on every call.
func buildPayload(kind ProbeKind, checkReq []byte, now int64) []byte {
	switch kind {
	case ProbeHTTP, ProbeSMTP:
		if len(checkReq) > 0 {
			return checkReq
		}
		if kind == ProbeHTTP {
			return []byte(DefaultHTTPCheckRequest)
		}
		return []byte(DefaultSMTPCheckRequest)
	case ProbeSSL3:
		return stampSSL3(now)
	default:
		return nil
	}
}

// stampSSL3 copies the CLIENT_HELLO template and overwrites bytes 11..14
// with now (Unix seconds) in network byte order.
func stampSSL3(now int64) []byte {
	buf := make([]byte, len(sslv3ClientHelloTemplate))
	copy(buf, sslv3ClientHelloTemplate)
	binary.BigEndian.PutUint32(buf[11:15], uint32(now))
	return buf
}

// classifyReply applies the wire-level classifier for the given probe kind
// to a reply buffer of length n (spec.md §4.D/§6).
func classifyReply(kind ProbeKind, buf []byte, n int) bool {
	switch kind {
	case ProbeHTTP:
		return n >= 12 &&
			string(buf[:7]) == "HTTP/1." &&
			(buf[9] == '2' || buf[9] == '3')
	case ProbeSSL3:
		return n >= 5 && (buf[0] == 0x15 || buf[0] == 0x16)
	case ProbeSMTP:
		return n >= 3 && buf[0] == '2'
	default:
		return true
	}
}
