// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// ErrClosed is returned for operations on a closed Gateway.
var ErrClosed = errors.New("gateway is closed")

// Gateway connects to a master container and acts as a lightweight agent within
// it.
//
// All mutable state, the pending requests, the subscriptions and the inbound
// queue, is owned by a single handler goroutine. Other goroutines submit
// closures to it, which are executed in order.
type Gateway struct {
	opts     Options
	conn     Connector
	aid      AgentID
	registry *Registry
	log      *log.Entry

	connEvents  *Events[bool]
	msgEvents   *Events[*Message]
	traceEvents *Events[TraceEvent]

	connected      atomic.Bool
	removeListener func()

	tasks     chan func()
	closeSyn  chan struct{}
	closeAck  chan struct{}
	closeOnce sync.Once

	// The following fields must only be accessed from the handler goroutine.
	pendingActions  map[string]*pendingAction
	pendingReceives []*pendingReceive
	subscriptions   map[string]AgentID
	queue           []*Message
}

// pendingAction awaits the answer of a container query with the same envelope
// id.
type pendingAction struct {
	result chan *Envelope
	timer  *time.Timer
}

// pendingReceive awaits the first dispatched message matching its filter.
type pendingReceive struct {
	filter Filter
	result chan *Message
	timer  *time.Timer
}

// NewGateway creates a Gateway for the given Options. The connection is
// established in the background; messages sent meanwhile are deferred until it
// is open.
func NewGateway(opts Options) (*Gateway, error) {
	conn, err := NewConnector(opts)
	if err != nil {
		return nil, err
	}
	return NewGatewayFor(conn, opts), nil
}

// NewGatewayFor creates a Gateway on top of an existing Connector. Only the
// non-transport fields of the Options are used.
func NewGatewayFor(conn Connector, opts Options) *Gateway {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	g := &Gateway{
		opts: opts,
		conn: conn,
		log:  log.WithField("gateway", conn.URL()),

		connEvents:  newEvents[bool]("connection"),
		msgEvents:   newEvents[*Message]("message"),
		traceEvents: newEvents[TraceEvent]("trace"),

		tasks:    make(chan func()),
		closeSyn: make(chan struct{}),
		closeAck: make(chan struct{}),

		pendingActions: make(map[string]*pendingAction),
		subscriptions:  make(map[string]AgentID),
	}
	g.aid = AgentID{name: newGatewayName(), owner: g}

	go g.handler()

	conn.SetReadCallback(g.onLine)
	g.removeListener = conn.AddConnectionListener(g.onConnection)

	g.log.WithField("agent", g.aid.Name()).Debug("Created Gateway")
	return g
}

func (g *Gateway) handler() {
	defer close(g.closeAck)

	for {
		select {
		case <-g.closeSyn:
			g.shutdown()
			return

		case task := <-g.tasks:
			task()
		}
	}
}

// do submits a task to the handler goroutine without waiting for its execution.
// It returns false if the Gateway is closed. It must not be called from the
// handler itself.
func (g *Gateway) do(task func()) bool {
	select {
	case g.tasks <- task:
		return true
	case <-g.closeSyn:
		return false
	}
}

// call submits a task and waits until it was executed.
func (g *Gateway) call(task func()) bool {
	done := make(chan struct{})
	if !g.do(func() { task(); close(done) }) {
		return false
	}

	select {
	case <-done:
		return true
	case <-g.closeAck:
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

// shutdown resolves everything pending, executed by the handler when closing.
func (g *Gateway) shutdown() {
	for id, pa := range g.pendingActions {
		if pa.timer != nil {
			pa.timer.Stop()
		}
		pa.result <- nil
		delete(g.pendingActions, id)
	}

	g.cancelReceives()
	g.queue = nil
}

// cancelReceives resolves all pending receives with nil.
func (g *Gateway) cancelReceives() {
	for _, pr := range append([]*pendingReceive(nil), g.pendingReceives...) {
		g.resolveReceive(pr, nil)
	}
}

// URL of the master container, which also identifies this Gateway.
func (g *Gateway) URL() string {
	return g.conn.URL()
}

func (g *Gateway) String() string {
	return g.URL()
}

// AgentID of this Gateway's own agent.
func (g *Gateway) AgentID() AgentID {
	return g.aid
}

// Connected reports if the connection to the master container is currently
// open.
func (g *Gateway) Connected() bool {
	return g.connected.Load()
}

// ConnectionEvents are published for each change of the connection's state.
func (g *Gateway) ConnectionEvents() *Events[bool] {
	return g.connEvents
}

// Messages are published for each inbound message addressed to this Gateway or
// one of its subscribed topics. Publishing does not consume the message; it is
// still offered to pending receives or queued.
func (g *Gateway) Messages() *Events[*Message] {
	return g.msgEvents
}

// Trace events describe all wire traffic.
func (g *Gateway) Trace() *Events[TraceEvent] {
	return g.traceEvents
}

// Agent returns an AgentID for the named agent.
func (g *Gateway) Agent(name string) AgentID {
	return AgentID{name: name, owner: g}
}

// Topic returns an AgentID for the named topic.
func (g *Gateway) Topic(name string) AgentID {
	return AgentID{name: name, topic: true, owner: g}
}

// AgentTopic returns the notification topic of an agent, named "agent__ntf" or
// "agent__sub__ntf" for a sub-topic. A topic is returned as it is.
func (g *Gateway) AgentTopic(aid AgentID, sub ...string) AgentID {
	if aid.IsTopic() {
		return aid.WithOwner(g)
	}

	name := aid.Name()
	if len(sub) > 0 && sub[0] != "" {
		name += "__" + strings.Join(sub, "__")
	}
	return g.Topic(name + "__ntf")
}

// Subscribe to all messages sent to a topic. An agent's AgentID is replaced by
// its notification topic.
func (g *Gateway) Subscribe(topic AgentID) bool {
	topic = g.AgentTopic(topic)
	return g.call(func() {
		g.subscriptions[topic.Key()] = topic
		g.announce()
	})
}

// Unsubscribe from a topic. An agent's AgentID is replaced by its notification
// topic.
func (g *Gateway) Unsubscribe(topic AgentID) {
	topic = g.AgentTopic(topic)
	g.call(func() {
		delete(g.subscriptions, topic.Key())
		g.announce()
	})
}

// announce the watch list, this Gateway's own agent followed by all subscribed
// topics. It must be called from the handler.
func (g *Gateway) announce() {
	topics := make([]string, 0, len(g.subscriptions))
	for key := range g.subscriptions {
		topics = append(topics, key)
	}
	sort.Strings(topics)

	g.writeEnvelope(&Envelope{
		Action:   ActionWantsMessagesFor,
		AgentIDs: append([]string{g.aid.Key()}, topics...),
	})
}

// subscribed reports if a recipient addresses this Gateway. It must be called
// from the handler.
func (g *Gateway) subscribed(recipient AgentID) bool {
	if recipient.Equal(g.aid) {
		return true
	}
	_, ok := g.subscriptions[recipient.Key()]
	return ok
}

// Send a message to its recipient. The return value reports if the Connector
// accepted the message, not its delivery.
func (g *Gateway) Send(msg *Message) bool {
	msg.Sender = g.aid

	g.traceEvents.publish(TraceEvent{Kind: TraceTxMessage, Message: msg})
	return g.writeEnvelope(&Envelope{
		Action:  ActionSend,
		Relay:   boolPtr(true),
		Message: msg,
	})
}

// Request sends a message and waits for its response, i.e., the first message
// whose InReplyTo is the request's MsgID. It returns nil if no response arrived
// within the timeout, see Receive.
func (g *Gateway) Request(
	ctx context.Context, msg *Message, timeout time.Duration,
) *Message {
	if !g.Send(msg) {
		g.log.WithField("message", msg.MsgID).Debug("Request was not accepted by the Connector")
		return nil
	}
	return g.Receive(ctx, msg, timeout)
}

// Receive the first inbound message matching a Filter.
//
// A matching message from the inbound queue is returned directly. Otherwise, a
// zero timeout returns nil immediately, a positive timeout waits at most this
// long and a negative one until a match arrives. The wait also ends with nil
// when ctx is done or the Gateway is closed.
func (g *Gateway) Receive(
	ctx context.Context, filter Filter, timeout time.Duration,
) *Message {
	result := make(chan *Message, 1)
	var pr *pendingReceive

	if !g.call(func() {
		if msg := g.takeQueued(filter); msg != nil {
			result <- msg
			return
		}
		if timeout == 0 {
			result <- nil
			return
		}

		pr = &pendingReceive{filter: filter, result: result}
		g.pendingReceives = append(g.pendingReceives, pr)
		if timeout > 0 {
			pr.timer = time.AfterFunc(timeout, func() {
				g.do(func() { g.resolveReceive(pr, nil) })
			})
		}
	}) {
		return nil
	}

	select {
	case msg := <-result:
		return msg

	case <-ctx.Done():
		g.call(func() { g.resolveReceive(pr, nil) })
		return <-result

	case <-g.closeAck:
		select {
		case msg := <-result:
			return msg
		default:
			return nil
		}
	}
}

// resolveReceive deregisters a pending receive and hands it its result. It must
// be called from the handler. Already resolved receives are ignored.
func (g *Gateway) resolveReceive(pr *pendingReceive, msg *Message) bool {
	for i, cur := range g.pendingReceives {
		if cur != pr {
			continue
		}

		g.pendingReceives = append(g.pendingReceives[:i:i], g.pendingReceives[i+1:]...)
		if pr.timer != nil {
			pr.timer.Stop()
		}
		pr.result <- msg
		return true
	}
	return false
}

// takeQueued removes and returns the oldest queued message matching filter. It
// must be called from the handler.
func (g *Gateway) takeQueued(filter Filter) *Message {
	for i, msg := range g.queue {
		if matchMessage(filter, msg) {
			g.queue = append(g.queue[:i:i], g.queue[i+1:]...)
			return msg
		}
	}
	return nil
}

// enqueue a message, dropping the oldest one if the queue is full. It must be
// called from the handler.
func (g *Gateway) enqueue(msg *Message) {
	if len(g.queue) >= g.opts.QueueSize {
		g.log.WithField("message", g.queue[0].MsgID).Debug("Inbound queue is full, dropping oldest message")
		g.queue = g.queue[1:]
	}
	g.queue = append(g.queue, msg)
}

// Flush drops all queued inbound messages.
func (g *Gateway) Flush() {
	g.call(func() { g.queue = nil })
}

// queued returns a copy of the inbound queue.
func (g *Gateway) queued() (msgs []*Message) {
	g.call(func() { msgs = append(msgs, g.queue...) })
	return
}

// writeEnvelope encodes and writes an Envelope to the Connector.
func (g *Gateway) writeEnvelope(env *Envelope) bool {
	line, err := env.Encode()
	if err != nil {
		g.log.WithError(err).Warn("Failed to encode envelope")
		return false
	}
	return g.writeLine(line)
}

func (g *Gateway) writeLine(line string) bool {
	g.log.WithField("line", line).Trace("tx")
	g.traceEvents.publish(TraceEvent{Kind: TraceTx, Raw: line})
	return g.conn.Write(line)
}

// onConnection is the Connector's connection listener.
func (g *Gateway) onConnection(connected bool) {
	g.connected.Store(connected)

	if connected {
		g.call(func() {
			g.queue = nil
			g.writeLine(aliveFrame)
			g.announce()
		})
		g.log.Info("Connected to master container")
	} else {
		if g.opts.CancelPendingOnDisconnect {
			g.call(func() {
				g.cancelReceives()
				g.queue = nil
			})
		}
		g.log.Info("Disconnected from master container")
	}

	g.connEvents.publish(connected)
}

// Close this Gateway and its Connector. Pending calls are resolved with nil. A
// Gateway cannot be reopened.
func (g *Gateway) Close() (err error) {
	g.closeOnce.Do(func() {
		close(g.closeSyn)
		<-g.closeAck

		if g.removeListener != nil {
			g.removeListener()
		}
		g.conn.SetReadCallback(nil)
		if connErr := g.conn.Close(); connErr != nil {
			err = multierror.Append(err, connErr)
		}
		g.connected.Store(false)

		if g.registry != nil {
			g.registry.remove(g)
		}

		g.connEvents.clear()
		g.msgEvents.clear()
		g.traceEvents.clear()

		g.log.Info("Closed Gateway")
	})
	return
}

// closed reports if Close was called.
func (g *Gateway) closed() bool {
	select {
	case <-g.closeSyn:
		return true
	default:
		return false
	}
}
