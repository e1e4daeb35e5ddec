// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
)

const (
	// DefaultTimeout for requests and container queries.
	DefaultTimeout = 10 * time.Second

	// DefaultQueueSize is the capacity of a Gateway's inbound queue.
	DefaultQueueSize = 128

	// DefaultReconnectTime between two connection attempts.
	DefaultReconnectTime = 5 * time.Second

	// DefaultTCPPort of a fjåge master container's TCP interface.
	DefaultTCPPort = 1100

	// DefaultWSPath of a fjåge master container's WebSocket interface.
	DefaultWSPath = "/ws/"
)

// Transport schemes of a Gateway's URL.
const (
	SchemeTCP = "tcp"
	SchemeWS  = "ws"
	SchemeWSS = "wss"
)

// Options of a Gateway and its Connector.
type Options struct {
	// Hostname of the master container.
	Hostname string
	// Port of the master container.
	Port int
	// Pathname of the WebSocket endpoint; unused for TCP.
	Pathname string
	// Scheme selects the transport, SchemeTCP, SchemeWS or SchemeWSS.
	Scheme string

	// Timeout is the default for requests and container queries.
	Timeout time.Duration
	// KeepAlive reconnects a broken connection.
	KeepAlive bool
	// ReconnectTime between two connection attempts.
	ReconnectTime time.Duration
	// QueueSize is the capacity of the inbound queue; the oldest message is
	// dropped when exceeded.
	QueueSize int
	// ReturnNullOnFailedResponse makes failed queries and parameter requests
	// return nil values instead of errors.
	ReturnNullOnFailedResponse bool
	// CancelPendingOnDisconnect resolves all pending receives with nil and
	// flushes the inbound queue when the connection breaks.
	CancelPendingOnDisconnect bool
}

// DefaultOptions for a TCP connection to a local master container.
func DefaultOptions() Options {
	return Options{
		Hostname:                   "localhost",
		Port:                       DefaultTCPPort,
		Pathname:                   DefaultWSPath,
		Scheme:                     SchemeTCP,
		Timeout:                    DefaultTimeout,
		KeepAlive:                  true,
		ReconnectTime:              DefaultReconnectTime,
		QueueSize:                  DefaultQueueSize,
		ReturnNullOnFailedResponse: true,
	}
}

// Validate checks the Options and reports all problems at once.
func (opts Options) Validate() (err error) {
	if opts.Hostname == "" {
		err = multierror.Append(err, fmt.Errorf("hostname is empty"))
	}
	if opts.Port <= 0 || opts.Port > 65535 {
		err = multierror.Append(err, fmt.Errorf("port %d is out of range", opts.Port))
	}
	switch opts.Scheme {
	case SchemeTCP, SchemeWS, SchemeWSS:
	default:
		err = multierror.Append(err, fmt.Errorf("unknown scheme %q", opts.Scheme))
	}
	if opts.QueueSize <= 0 {
		err = multierror.Append(err, fmt.Errorf("queue size %d is not positive", opts.QueueSize))
	}
	if opts.KeepAlive && opts.ReconnectTime <= 0 {
		err = multierror.Append(err, fmt.Errorf("reconnect time %v is not positive", opts.ReconnectTime))
	}
	return
}

// URL identifies the master container, e.g., "tcp://localhost:1100" or
// "ws://localhost:8080/ws/".
func (opts Options) URL() string {
	host := net.JoinHostPort(opts.Hostname, strconv.Itoa(opts.Port))
	if opts.Scheme == SchemeTCP {
		return SchemeTCP + "://" + host
	}

	path := opts.Pathname
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return opts.Scheme + "://" + host + path
}

// OptionsFromURL creates DefaultOptions pointing to a URL like
// "tcp://host:port" or "ws://host:port/path". A plain "host" or "host:port" is
// taken as a TCP address.
func OptionsFromURL(raw string) (opts Options, err error) {
	opts = DefaultOptions()

	if !strings.Contains(raw, "://") {
		raw = SchemeTCP + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return
	}

	opts.Scheme = u.Scheme
	opts.Hostname = u.Hostname()

	switch port := u.Port(); {
	case port != "":
		if opts.Port, err = strconv.Atoi(port); err != nil {
			return
		}
	case u.Scheme == SchemeWS:
		opts.Port = 80
	case u.Scheme == SchemeWSS:
		opts.Port = 443
	}

	if u.Path != "" {
		opts.Pathname = u.Path
	}

	err = opts.Validate()
	return
}

// GatewayConf is the TOML representation of Options. Durations are written as
// strings, e.g., "5s".
type GatewayConf struct {
	URL                        string
	Hostname                   string
	Port                       int
	Pathname                   string
	Scheme                     string
	Timeout                    string
	KeepAlive                  *bool  `toml:"keep-alive"`
	ReconnectTime              string `toml:"reconnect-time"`
	QueueSize                  int    `toml:"queue-size"`
	ReturnNullOnFailedResponse *bool  `toml:"return-null-on-failed-response"`
	CancelPendingOnDisconnect  bool   `toml:"cancel-pending-on-disconnect"`
}

// Options derived from DefaultOptions, overwritten by all fields set in this
// GatewayConf.
func (conf GatewayConf) Options() (opts Options, err error) {
	opts = DefaultOptions()
	if conf.URL != "" {
		if opts, err = OptionsFromURL(conf.URL); err != nil {
			return
		}
	}

	if conf.Hostname != "" {
		opts.Hostname = conf.Hostname
	}
	if conf.Port != 0 {
		opts.Port = conf.Port
	}
	if conf.Pathname != "" {
		opts.Pathname = conf.Pathname
	}
	if conf.Scheme != "" {
		opts.Scheme = conf.Scheme
	}
	if conf.QueueSize != 0 {
		opts.QueueSize = conf.QueueSize
	}
	if conf.KeepAlive != nil {
		opts.KeepAlive = *conf.KeepAlive
	}
	if conf.ReturnNullOnFailedResponse != nil {
		opts.ReturnNullOnFailedResponse = *conf.ReturnNullOnFailedResponse
	}
	opts.CancelPendingOnDisconnect = conf.CancelPendingOnDisconnect

	if conf.Timeout != "" {
		if opts.Timeout, err = time.ParseDuration(conf.Timeout); err != nil {
			return
		}
	}
	if conf.ReconnectTime != "" {
		if opts.ReconnectTime, err = time.ParseDuration(conf.ReconnectTime); err != nil {
			return
		}
	}

	err = opts.Validate()
	return
}

// LoadOptions reads Options from the [gateway] block of a TOML file.
func LoadOptions(filename string) (opts Options, err error) {
	var conf struct {
		Gateway GatewayConf
	}
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}
	return conf.Gateway.Options()
}
