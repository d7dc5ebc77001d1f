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

	"github.com/nabbar/golib/logger"
)

// logSink adapts the transition code's three severities onto
// logger.Logger's level vocabulary: a DOWN transition logs at WarnLevel, an
// UP transition at InfoLevel, and the "no server left" alert at ErrorLevel -
// this package has no cooperating syslog facility to address LOG_ALERT /
// LOG_EMERG directly, those remain a concern of whatever hook the embedder
// attaches to the Logger (hooksyslog, hookfile, ...). A nil logSink or a nil
// underlying Logger silently drops entries rather than panicking, so a
// caller that never wires one in still gets a working Engine.
type logSink struct {
	log logger.Logger
}

func newLogSink(l logger.Logger) *logSink {
	return &logSink{log: l}
}

func (s *logSink) warnf(format string, args ...interface{}) {
	if s == nil || s.log == nil {
		return
	}
	s.log.Warning(fmt.Sprintf(format, args...), nil)
}

// warnData is warnf plus a structured payload, for transitions that need to
// carry counters (active/backup servers, sessions migrated, queue depth)
// alongside the human-readable message.
func (s *logSink) warnData(data interface{}, format string, args ...interface{}) {
	if s == nil || s.log == nil {
		return
	}
	s.log.Warning(fmt.Sprintf(format, args...), data)
}

func (s *logSink) notice(format string, args ...interface{}) {
	if s == nil || s.log == nil {
		return
	}
	s.log.Info(fmt.Sprintf(format, args...), nil)
}

func (s *logSink) emerg(format string, args ...interface{}) {
	if s == nil || s.log == nil {
		return
	}
	s.log.Error(fmt.Sprintf(format, args...), nil)
}

// debugf emits a per-probe trace line; callers gate this on ProxyConfig.Verbose
// since at normal volume it fires on every single health check attempt.
func (s *logSink) debugf(format string, args ...interface{}) {
	if s == nil || s.log == nil {
		return
	}
	s.log.Debug(fmt.Sprintf(format, args...), nil)
}
