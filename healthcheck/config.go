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
	"net"

	libval "github.com/go-playground/validator/v10"
	liberr "github.com/nabbar/golib/errors"
	spfvpr "github.com/spf13/viper"

	libdur "github.com/nabbar/golib/duration"
)

// LoadProxyConfig reads a ProxyConfig out of v at key (a Viper dot-path,
// e.g. "loadbalancer.proxies.0"), in the UnmarshalKey idiom this
// repository's own viper wrapper exercises, and validates the result
// before handing it back.
func LoadProxyConfig(v *spfvpr.Viper, key string) (ProxyConfig, error) {
	var cfg ProxyConfig

	if err := v.UnmarshalKey(key, &cfg, spfvpr.DecodeHook(libdur.ViperDecoderHook())); err != nil {
		return ProxyConfig{}, ErrorParamInvalid.Error(err)
	}
	if err := cfg.Validate(); err != nil {
		return ProxyConfig{}, err
	}

	return cfg, nil
}

// ServerConfig is the declarative, loadable counterpart of Server: a load
// balancer's config file describes servers this way, and NewServerFromConfig
// turns one into a live Server wired to a Proxy.
type ServerConfig struct {
	ID   string `json:"id" yaml:"id" toml:"id" mapstructure:"id" validate:"required"`
	Addr string `json:"addr" yaml:"addr" toml:"addr" mapstructure:"addr" validate:"required,hostname_port"`

	CheckAddr string `json:"check-addr,omitempty" yaml:"check-addr,omitempty" toml:"check-addr,omitempty" mapstructure:"check-addr,omitempty"`
	CheckPort int     `json:"check-port,omitempty" yaml:"check-port,omitempty" toml:"check-port,omitempty" mapstructure:"check-port,omitempty" validate:"gte=0,lte=65535"`

	Interval libdur.Duration `json:"interval" yaml:"interval" toml:"interval" mapstructure:"interval" validate:"required"`

	Rise int `json:"rise" yaml:"rise" toml:"rise" mapstructure:"rise" validate:"required,gte=1"`
	Fall int `json:"fall" yaml:"fall" toml:"fall" mapstructure:"fall" validate:"required,gte=1"`

	Probe string `json:"probe" yaml:"probe" toml:"probe" mapstructure:"probe" validate:"omitempty,oneof=tcp http ssl3 smtp"`

	MaxConn int `json:"max-conn,omitempty" yaml:"max-conn,omitempty" toml:"max-conn,omitempty" mapstructure:"max-conn,omitempty" validate:"gte=0"`

	BindSource bool   `json:"bind-source,omitempty" yaml:"bind-source,omitempty" toml:"bind-source,omitempty" mapstructure:"bind-source,omitempty"`
	SourceAddr string `json:"source-addr,omitempty" yaml:"source-addr,omitempty" toml:"source-addr,omitempty" mapstructure:"source-addr,omitempty"`
	Tproxy     bool   `json:"tproxy,omitempty" yaml:"tproxy,omitempty" toml:"tproxy,omitempty" mapstructure:"tproxy,omitempty"`
	TproxyAddr string `json:"tproxy-addr,omitempty" yaml:"tproxy-addr,omitempty" toml:"tproxy-addr,omitempty" mapstructure:"tproxy-addr,omitempty"`
}

// ProxyConfig groups a proxy's check request templates, options, and the
// servers behind it, matching the JSON/YAML/TOML-via-Viper convention used
// throughout this repository's config.* packages.
type ProxyConfig struct {
	ID      string         `json:"id" yaml:"id" toml:"id" mapstructure:"id" validate:"required"`
	Servers []ServerConfig `json:"servers" yaml:"servers" toml:"servers" mapstructure:"servers" validate:"required,min=1,dive"`

	HTTPChk    bool `json:"http-check,omitempty" yaml:"http-check,omitempty" toml:"http-check,omitempty" mapstructure:"http-check,omitempty"`
	SSL3Chk    bool `json:"ssl3-check,omitempty" yaml:"ssl3-check,omitempty" toml:"ssl3-check,omitempty" mapstructure:"ssl3-check,omitempty"`
	SMTPChk    bool `json:"smtp-check,omitempty" yaml:"smtp-check,omitempty" toml:"smtp-check,omitempty" mapstructure:"smtp-check,omitempty"`
	Redispatch bool `json:"redispatch,omitempty" yaml:"redispatch,omitempty" toml:"redispatch,omitempty" mapstructure:"redispatch,omitempty"`

	CheckRequest string `json:"check-request,omitempty" yaml:"check-request,omitempty" toml:"check-request,omitempty" mapstructure:"check-request,omitempty"`

	// Verbose enables one debug log line per probe result (ok flag and
	// health) beyond the UP/DOWN transition log lines that always fire.
	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty" toml:"verbose,omitempty" mapstructure:"verbose,omitempty"`
}

// Validate runs struct-tag validation over the whole proxy configuration,
// in the same validator.New().Struct(o) idiom this repository's other
// config.go files use, collecting every violation into one liberr.Error.
func (o ProxyConfig) Validate() liberr.Error {
	e := ErrorParamInvalid.Error(nil)

	if err := libval.New().Struct(o); err != nil {
		if er, ok := err.(*libval.InvalidValidationError); ok {
			e.Add(er)
		} else if errs, ok := err.(libval.ValidationErrors); ok {
			for _, er := range errs {
				//nolint #goerr113
				e.Add(fmt.Errorf("config field '%s' is not validated by constraint '%s'", er.Namespace(), er.ActualTag()))
			}
		} else {
			e.Add(err)
		}
	}

	if !e.HasParent() {
		return nil
	}
	return e
}

// Build turns a validated ProxyConfig into a live Proxy with its Servers
// attached, ready to be handed to Engine.AddServer.
func (o ProxyConfig) Build() (*Proxy, []*Server, error) {
	if err := o.Validate(); err != nil {
		return nil, nil, err
	}

	opt := ProxyOption(0)
	if o.HTTPChk {
		opt |= OptHTTPChk
	}
	if o.SSL3Chk {
		opt |= OptSSL3Chk
	}
	if o.SMTPChk {
		opt |= OptSMTPChk
	}
	if o.Redispatch {
		opt |= OptRedispatch
	}

	px := NewProxy(o.ID, opt)
	px.Verbose = o.Verbose
	px.CheckReq = []byte(o.CheckRequest)
	if len(px.CheckReq) == 0 {
		px.CheckReq = defaultCheckRequest(o)
	}

	srvs := make([]*Server, 0, len(o.Servers))
	for _, sc := range o.Servers {
		s, err := sc.build(px)
		if err != nil {
			return nil, nil, err
		}
		srvs = append(srvs, s)
	}

	return px, srvs, nil
}

func defaultCheckRequest(o ProxyConfig) []byte {
	switch {
	case o.HTTPChk:
		return []byte(DefaultHTTPCheckRequest)
	case o.SMTPChk:
		return []byte(DefaultSMTPCheckRequest)
	default:
		return nil
	}
}

func (sc ServerConfig) build(px *Proxy) (*Server, error) {
	addr, err := net.ResolveTCPAddr("tcp", sc.Addr)
	if err != nil {
		return nil, ErrorParamInvalid.Error(err)
	}

	s := NewServer(sc.ID, px, addr, sc.Rise, sc.Fall)
	s.Interval = sc.Interval.Time()
	s.CheckPort = sc.CheckPort
	s.MaxConn = sc.MaxConn
	s.Probe = parseProbeKind(sc.Probe, px)

	if sc.CheckAddr != "" {
		ip := net.ParseIP(sc.CheckAddr)
		if ip == nil {
			return nil, ErrorParamInvalid.Error(fmt.Errorf("invalid check-addr %q for server %q", sc.CheckAddr, sc.ID))
		}
		s.CheckAddr = &net.TCPAddr{IP: ip}
	}

	s.Source.BindSource = sc.BindSource
	if sc.SourceAddr != "" {
		a, err := net.ResolveTCPAddr("tcp", sc.SourceAddr)
		if err != nil {
			return nil, ErrorParamInvalid.Error(err)
		}
		s.Source.SourceAddr = a
	}

	if sc.Tproxy {
		s.Source.Tproxy = TproxyAddr
		if sc.TproxyAddr != "" {
			a, err := net.ResolveTCPAddr("tcp", sc.TproxyAddr)
			if err != nil {
				return nil, ErrorParamInvalid.Error(err)
			}
			s.Source.TproxyAddr = a
		}
	}

	return s, nil
}

func parseProbeKind(s string, px *Proxy) ProbeKind {
	switch s {
	case "http":
		return ProbeHTTP
	case "ssl3":
		return ProbeSSL3
	case "smtp":
		return ProbeSMTP
	case "tcp", "":
		switch {
		case px != nil && px.Options.Has(OptHTTPChk):
			return ProbeHTTP
		case px != nil && px.Options.Has(OptSSL3Chk):
			return ProbeSSL3
		case px != nil && px.Options.Has(OptSMTPChk):
			return ProbeSMTP
		default:
			return ProbeTCP
		}
	default:
		return ProbeTCP
	}
}
