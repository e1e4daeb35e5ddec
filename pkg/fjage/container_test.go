// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"bufio"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func randomPort(t *testing.T) (port int) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = l.Close() }()

	return l.Addr().(*net.TCPAddr).Port
}

// fakeContainer is a minimal master container, speaking the line protocol over
// TCP. Each inbound line is published to lines and passed to the optional
// handle function.
type fakeContainer struct {
	t        *testing.T
	listener net.Listener
	handle   func(fc *fakeContainer, env *Envelope)

	mutex sync.Mutex
	conns []net.Conn

	accepted atomic.Int32
	lines    chan string
}

func newFakeContainer(t *testing.T, handle func(fc *fakeContainer, env *Envelope)) *fakeContainer {
	return newFakeContainerAt(t, "127.0.0.1:0", handle)
}

func newFakeContainerAt(t *testing.T, address string, handle func(fc *fakeContainer, env *Envelope)) *fakeContainer {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		t.Fatal(err)
	}

	fc := &fakeContainer{
		t:        t,
		listener: listener,
		handle:   handle,
		lines:    make(chan string, 1024),
	}
	go fc.accept()

	t.Cleanup(fc.close)
	return fc
}

func (fc *fakeContainer) accept() {
	for {
		conn, err := fc.listener.Accept()
		if err != nil {
			return
		}

		fc.accepted.Add(1)
		fc.mutex.Lock()
		fc.conns = append(fc.conns, conn)
		fc.mutex.Unlock()

		go fc.read(conn)
	}
}

func (fc *fakeContainer) read(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		fc.lines <- line

		if fc.handle == nil {
			continue
		}
		if env, err := DecodeEnvelope(line); err == nil {
			fc.handle(fc, env)
		}
	}
}

func (fc *fakeContainer) port() int {
	return fc.listener.Addr().(*net.TCPAddr).Port
}

func (fc *fakeContainer) opts() Options {
	opts := DefaultOptions()
	opts.Hostname = "127.0.0.1"
	opts.Port = fc.port()
	opts.Timeout = time.Second
	opts.ReconnectTime = 100 * time.Millisecond
	return opts
}

// gateway creates a Gateway connected to this container and waits for its
// handshake.
func (fc *fakeContainer) gateway(opts Options) *Gateway {
	g, err := NewGateway(opts)
	if err != nil {
		fc.t.Fatal(err)
	}
	fc.t.Cleanup(func() { _ = g.Close() })

	fc.expect(func(env *Envelope) bool { return env.Action == ActionWantsMessagesFor }, 2*time.Second)
	return g
}

// writeLine to all connected clients.
func (fc *fakeContainer) writeLine(line string) {
	fc.writeRaw(line + "\n")
}

// writeRaw data to all connected clients.
func (fc *fakeContainer) writeRaw(data string) {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()

	for _, conn := range fc.conns {
		_, _ = conn.Write([]byte(data))
	}
}

func (fc *fakeContainer) send(env *Envelope) {
	line, err := env.Encode()
	if err != nil {
		fc.t.Error(err)
		return
	}
	fc.writeLine(line)
}

// deliver a message to the clients.
func (fc *fakeContainer) deliver(msg *Message) {
	fc.send(&Envelope{Action: ActionSend, Message: msg, Relay: boolPtr(false)})
}

// reply to a request.
func (fc *fakeContainer) reply(req, rsp *Message) {
	rsp.InReplyTo = req.MsgID
	rsp.Sender = req.Recipient
	rsp.Recipient = req.Sender
	fc.deliver(rsp)
}

// expect waits for an inbound envelope matching pred, skipping others.
func (fc *fakeContainer) expect(pred func(env *Envelope) bool, timeout time.Duration) *Envelope {
	fc.t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case line := <-fc.lines:
			env, err := DecodeEnvelope(line)
			if err != nil {
				continue
			}
			if pred(env) {
				return env
			}

		case <-deadline:
			fc.t.Fatal("Expected envelope did not arrive")
			return nil
		}
	}
}

// dropConns closes all client connections, keeping the listener open.
func (fc *fakeContainer) dropConns() {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()

	for _, conn := range fc.conns {
		_ = conn.Close()
	}
	fc.conns = nil
}

func (fc *fakeContainer) close() {
	_ = fc.listener.Close()
	fc.dropConns()
}

// paramAgent answers ParameterReqs like a fjåge agent with the given
// parameters.
type paramAgent struct {
	name string

	mutex    sync.Mutex
	params   map[string]any
	requests atomic.Int32
}

func newParamAgent(name string) *paramAgent {
	return &paramAgent{
		name: name,
		params: map[string]any{
			"org.arl.fjage.shell.ShellParam.name":    name,
			"org.arl.fjage.shell.ShellParam.version": "1.0",
			"org.arl.unet.phy.PhysicalParam.MTU":     int64(32),
			"org.arl.unet.phy.PhysicalParam.power":   int64(-10),
		},
	}
}

func (pa *paramAgent) lookup(param string) (string, bool) {
	for fq := range pa.params {
		if bareName(fq) == bareName(param) {
			return fq, true
		}
	}
	return "", false
}

func (pa *paramAgent) handle(fc *fakeContainer, env *Envelope) {
	if env.Action != ActionSend || env.Message == nil {
		return
	}
	req := env.Message
	if req.Recipient.Name() != pa.name || req.Class.Name != ParameterReq.Name {
		return
	}
	pa.requests.Add(1)

	pa.mutex.Lock()
	defer pa.mutex.Unlock()

	type entry struct {
		param string
		value any
		set   bool
	}
	var entries []entry
	if p, ok := req.String(paramParam); ok {
		entries = append(entries, entry{p, req.Get(paramValue), req.Has(paramValue)})
	}
	if requests, ok := req.Get(paramRequests).([]any); ok {
		for _, r := range requests {
			m := r.(map[string]any)
			_, set := m[paramValue]
			entries = append(entries, entry{m[paramParam].(string), m[paramValue], set})
		}
	}

	var names []string
	if len(entries) == 0 {
		for fq := range pa.params {
			names = append(names, fq)
		}
		sort.Strings(names)
	} else {
		for _, e := range entries {
			fq, ok := pa.lookup(e.param)
			if !ok {
				continue
			}
			if e.set {
				pa.params[fq] = e.value
			}
			names = append(names, fq)
		}
	}

	if len(names) == 0 {
		fc.reply(req, &Message{Class: BaseMessage, MsgID: newID(), Perf: Refuse})
		return
	}

	rsp := ParameterRsp.New(map[string]any{
		paramParam: names[0],
		paramValue: pa.params[names[0]],
		paramIndex: int64(-1),
	})
	rsp.Perf = Inform
	if len(names) > 1 {
		values := make(map[string]any)
		for _, fq := range names[1:] {
			values[fq] = pa.params[fq]
		}
		rsp.Set(paramValues, values)
	}
	fc.reply(req, rsp)
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition was not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
