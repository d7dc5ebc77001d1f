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

package healthcheck_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/nabbar/golib/healthcheck"
)

var _ = Describe("Engine", func() {
	It("builds with default collaborators when no options are given", func() {
		e, err := NewEngine()
		Expect(err).ToNot(HaveOccurred())
		Expect(e).ToNot(BeNil())
	})

	It("accepts a custom backend through a functional option", func() {
		e, err := NewEngine(WithBackend(DefaultBackend{}))
		Expect(err).ToNot(HaveOccurred())
		Expect(e).ToNot(BeNil())
	})

	It("makes an added server findable by ID through Lookup", func() {
		e, err := NewEngine()
		Expect(err).ToNot(HaveOccurred())

		s := NewServer("s1", nil, nil, 2, 3)
		e.AddServer(s)

		found, ok := e.Lookup("s1")
		Expect(ok).To(BeTrue())
		Expect(found).To(BeIdenticalTo(s))

		_, ok = e.Lookup("missing")
		Expect(ok).To(BeFalse())
	})

	It("starts and stops a server's probe loop without hanging or panicking", func() {
		px, srvs, err := ProxyConfig{
			ID:      "px",
			Servers: []ServerConfig{validServerConfig()},
		}.Build()
		Expect(err).ToNot(HaveOccurred())
		_ = px

		for _, s := range srvs {
			s.Interval = 20 * time.Millisecond
		}

		e, err := NewEngine()
		Expect(err).ToNot(HaveOccurred())
		for _, s := range srvs {
			e.AddServer(s)
		}

		ctx, cancel := context.WithCancel(context.Background())
		e.Start(ctx)
		time.Sleep(50 * time.Millisecond)

		done := make(chan struct{})
		go func() {
			e.Stop()
			close(done)
		}()

		cancel()
		Eventually(done, time.Second).Should(BeClosed())
	})

	It("is idempotent: a second Start is a no-op and Stop still returns", func() {
		e, err := NewEngine()
		Expect(err).ToNot(HaveOccurred())

		ctx := context.Background()
		e.Start(ctx)
		Expect(func() { e.Start(ctx) }).ToNot(Panic())

		done := make(chan struct{})
		go func() {
			e.Stop()
			close(done)
		}()
		Eventually(done, time.Second).Should(BeClosed())
	})
})
