// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Connector is a line-based connection to a master container.
type Connector interface {
	// Write a line, without its trailing newline. While the connection is being
	// established, the line is deferred until it is open. The return value
	// reports if the line was written or deferred.
	Write(s string) bool

	// SetReadCallback to be called for each non-empty inbound line.
	SetReadCallback(cb func(line string))

	// AddConnectionListener to be informed about the connection's state
	// changes. A listener added to an open connection is informed right away.
	// The returned function removes the listener again.
	AddConnectionListener(l func(connected bool)) (remove func())

	// URL of the master container.
	URL() string

	// Close the connection after a polite shutdown message. A closed Connector
	// never reconnects.
	Close() error
}

// NewConnector for the Options' Scheme.
func NewConnector(opts Options) (Connector, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	switch opts.Scheme {
	case SchemeTCP:
		return NewTCPConnector(opts), nil
	case SchemeWS, SchemeWSS:
		return NewWSConnector(opts), nil
	default:
		return nil, fmt.Errorf("unsupported scheme %q", opts.Scheme)
	}
}

// lineConn is an established transport, exchanging lines without their newline.
type lineConn interface {
	WriteLine(s string) error
	ReadLine() (string, error)
	Close() error
}

// dialFunc establishes a lineConn.
type dialFunc func(ctx context.Context) (lineConn, error)

type connState int

const (
	// stateConnecting while a dial is in progress; writes are deferred.
	stateConnecting connState = iota
	// stateOpen while connected.
	stateOpen
	// stateWaiting after a connection loss until the next dial; writes are
	// rejected.
	stateWaiting
	// stateClosed for good.
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateOpen:
		return "open"
	case stateWaiting:
		return "waiting"
	default:
		return "closed"
	}
}

// streamConnector implements the Connector's state machine on top of a
// dialFunc. Both the TCP and the WebSocket Connector are streamConnectors.
type streamConnector struct {
	url           string
	dial          dialFunc
	keepAlive     bool
	reconnectTime time.Duration

	mutex        sync.Mutex
	state        connState
	conn         lineConn
	deferred     []string
	readCb       func(string)
	listeners    []connListener
	nextListener uint64
	// reported is true after "disconnected" was reported for the current
	// failure episode.
	reported bool
	timer    *time.Timer
}

type connListener struct {
	id uint64
	fn func(bool)
}

// newStreamConnector starts dialing in the background.
func newStreamConnector(url string, dial dialFunc, opts Options) *streamConnector {
	sc := &streamConnector{
		url:           url,
		dial:          dial,
		keepAlive:     opts.KeepAlive,
		reconnectTime: opts.ReconnectTime,

		state: stateConnecting,
	}
	if sc.reconnectTime <= 0 {
		sc.reconnectTime = DefaultReconnectTime
	}

	go sc.connect(true)

	return sc
}

func (sc *streamConnector) logger() *log.Entry {
	return log.WithField("connector", sc.url)
}

// connect dials once and handles its outcome.
func (sc *streamConnector) connect(first bool) {
	conn, err := sc.dial(context.Background())

	sc.mutex.Lock()

	if sc.state == stateClosed {
		sc.mutex.Unlock()
		if err == nil {
			_ = conn.WriteLine(shutdownFrame)
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		sc.logger().WithError(err).Debug("Dialing failed")

		if first || !sc.keepAlive {
			sc.state = stateClosed
			sc.deferred = nil
		} else {
			sc.scheduleReconnect()
		}
		listeners := sc.downListeners()
		sc.mutex.Unlock()

		notify(sc, listeners, false)
		return
	}

	sc.state = stateOpen
	sc.conn = conn
	sc.reported = false

	for _, line := range sc.deferred {
		if wErr := conn.WriteLine(line); wErr != nil {
			sc.logger().WithError(wErr).Warn("Writing deferred line failed")
			break
		}
	}
	sc.deferred = nil
	listeners := append([]connListener(nil), sc.listeners...)
	sc.mutex.Unlock()

	sc.logger().Info("Connection established")

	// Inbound lines are read while the listeners run, but a failure is only
	// reported after they were told about the connection.
	notified := make(chan struct{})
	go sc.readLoop(conn, notified)

	notify(sc, listeners, true)
	close(notified)
}

// scheduleReconnect must be called while holding the mutex.
func (sc *streamConnector) scheduleReconnect() {
	sc.state = stateWaiting
	sc.deferred = nil
	sc.timer = time.AfterFunc(sc.reconnectTime, func() {
		sc.mutex.Lock()
		if sc.state != stateWaiting {
			sc.mutex.Unlock()
			return
		}
		sc.state = stateConnecting
		sc.deferred = nil
		sc.mutex.Unlock()

		sc.connect(false)
	})
}

// downListeners returns the listeners to be informed about a lost connection,
// which happens only once per failure episode. It must be called while holding
// the mutex.
func (sc *streamConnector) downListeners() []connListener {
	if sc.reported {
		return nil
	}
	sc.reported = true
	return append([]connListener(nil), sc.listeners...)
}

func (sc *streamConnector) readLoop(conn lineConn, notified <-chan struct{}) {
	for {
		line, err := conn.ReadLine()
		if err != nil {
			<-notified
			sc.onFailure(conn, err)
			return
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		sc.mutex.Lock()
		cb := sc.readCb
		sc.mutex.Unlock()

		if cb != nil {
			cb(line)
		}
	}
}

// onFailure handles a broken connection, reported by its reader.
func (sc *streamConnector) onFailure(conn lineConn, err error) {
	sc.mutex.Lock()
	if sc.conn != conn || sc.state != stateOpen {
		sc.mutex.Unlock()
		return
	}

	sc.logger().WithError(err).Info("Connection lost")

	_ = conn.Close()
	sc.conn = nil

	if sc.keepAlive {
		sc.scheduleReconnect()
	} else {
		sc.state = stateClosed
		sc.deferred = nil
	}
	listeners := sc.downListeners()
	sc.mutex.Unlock()

	notify(sc, listeners, false)
}

// notify a snapshot of listeners, taken while holding the mutex. It must be
// called without holding it.
func notify(sc *streamConnector, listeners []connListener, connected bool) {
	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					sc.logger().WithField("panic", r).Warn("Connection listener panicked")
				}
			}()
			l.fn(connected)
		}()
	}
}

func (sc *streamConnector) Write(s string) bool {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	switch sc.state {
	case stateConnecting:
		sc.deferred = append(sc.deferred, s)
		return true

	case stateOpen:
		if err := sc.conn.WriteLine(s); err != nil {
			sc.logger().WithError(err).Debug("Writing failed")
			return false
		}
		return true

	default:
		return false
	}
}

func (sc *streamConnector) SetReadCallback(cb func(line string)) {
	sc.mutex.Lock()
	sc.readCb = cb
	sc.mutex.Unlock()
}

func (sc *streamConnector) AddConnectionListener(l func(connected bool)) (remove func()) {
	sc.mutex.Lock()
	id := sc.nextListener
	sc.nextListener++
	cl := connListener{id: id, fn: l}
	sc.listeners = append(sc.listeners, cl)
	open := sc.state == stateOpen
	sc.mutex.Unlock()

	// A listener added to an open connection missed its "connected" event.
	if open {
		notify(sc, []connListener{cl}, true)
	}

	return func() {
		sc.mutex.Lock()
		defer sc.mutex.Unlock()

		for i, cl := range sc.listeners {
			if cl.id == id {
				sc.listeners = append(sc.listeners[:i], sc.listeners[i+1:]...)
				return
			}
		}
	}
}

func (sc *streamConnector) URL() string {
	return sc.url
}

func (sc *streamConnector) Close() (err error) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.state == stateClosed {
		return nil
	}

	// An in-flight dial sends the shutdown frame itself, see connect.
	if sc.state == stateOpen {
		_ = sc.conn.WriteLine(shutdownFrame)
		err = sc.conn.Close()
		sc.conn = nil
	}

	if sc.timer != nil {
		sc.timer.Stop()
	}

	sc.state = stateClosed
	sc.deferred = nil
	sc.readCb = nil
	sc.listeners = nil

	sc.logger().Debug("Connector closed")
	return
}

func (sc *streamConnector) String() string {
	return sc.url
}
