// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var testNtf = DefineClass("org.arl.fjage.test.TestNtf", nil, "seq")

func ntfTo(recipient AgentID, seq int) *Message {
	msg := testNtf.New(map[string]any{"seq": seq})
	msg.Recipient = recipient
	msg.Sender = NewAgentID("remote", false)
	return msg
}

func TestGatewayHandshake(t *testing.T) {
	fc := newFakeContainer(t, nil)

	g, err := NewGateway(fc.opts())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = g.Close() }()

	var alive bool
	select {
	case line := <-fc.lines:
		alive = strings.Contains(line, `"alive":true`)
	case <-time.After(2 * time.Second):
	}
	if !alive {
		t.Fatal("Gateway did not announce itself as alive")
	}

	env := fc.expect(func(env *Envelope) bool { return env.Action == ActionWantsMessagesFor }, 2*time.Second)
	if len(env.AgentIDs) != 1 || env.AgentIDs[0] != g.AgentID().Key() {
		t.Fatalf("Unexpected watch list %v", env.AgentIDs)
	}

	if !g.Connected() {
		t.Fatal("Gateway is not connected")
	}
	if !strings.HasPrefix(g.AgentID().Name(), "gateway-") {
		t.Fatalf("Unexpected own name %s", g.AgentID().Name())
	}
	if g.URL() != fc.opts().URL() {
		t.Fatalf("URL %s differs from %s", g.URL(), fc.opts().URL())
	}
}

func TestGatewayQueueEviction(t *testing.T) {
	fc := newFakeContainer(t, nil)

	opts := fc.opts()
	opts.QueueSize = 3
	g := fc.gateway(opts)

	for i := 0; i < 4; i++ {
		fc.deliver(ntfTo(g.AgentID(), i))
	}

	waitFor(t, 2*time.Second, func() bool {
		q := g.queued()
		if len(q) != 3 {
			return false
		}
		seq, _ := q[2].Int("seq")
		return seq == 3
	})

	for i, msg := range g.queued() {
		if seq, _ := msg.Int("seq"); seq != int64(i+1) {
			t.Fatalf("Queue position %d holds seq %d", i, seq)
		}
	}
}

func TestGatewayReceiveQueued(t *testing.T) {
	fc := newFakeContainer(t, nil)
	g := fc.gateway(fc.opts())

	other := DefineClass("org.arl.fjage.test.OtherNtf", nil)

	fc.deliver(ntfTo(g.AgentID(), 0))
	msg := other.New(nil)
	msg.Recipient = g.AgentID()
	fc.deliver(msg)
	fc.deliver(ntfTo(g.AgentID(), 2))

	waitFor(t, 2*time.Second, func() bool { return len(g.queued()) == 3 })

	start := time.Now()
	if rx := g.Receive(context.Background(), other, 0); rx == nil || rx.MsgID != msg.MsgID {
		t.Fatalf("Received %v instead of %s", rx, msg.MsgID)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("Receiving a queued message blocked")
	}

	q := g.queued()
	if len(q) != 2 {
		t.Fatalf("Queue holds %d messages", len(q))
	}
	for i, want := range []int64{0, 2} {
		if seq, _ := q[i].Int("seq"); seq != want {
			t.Fatalf("Queue position %d holds seq %d, not %d", i, seq, want)
		}
	}

	if rx := g.Receive(context.Background(), other, 0); rx != nil {
		t.Fatalf("Received unexpected %v", rx)
	}
}

func TestGatewayReceiveFilters(t *testing.T) {
	fc := newFakeContainer(t, nil)
	g := fc.gateway(fc.opts())

	req := NewMessage()
	rsp := ntfTo(g.AgentID(), 1)
	rsp.InReplyTo = req.MsgID
	fc.deliver(rsp)

	waitFor(t, 2*time.Second, func() bool { return len(g.queued()) == 1 })

	tests := []struct {
		name   string
		filter Filter
		match  bool
	}{
		{"id", req.MsgID, true},
		{"other id", "nope", false},
		{"request", req, true},
		{"class", testNtf, true},
		{"parent class", BaseMessage, false},
		{"instance of parent", InstanceOf(BaseMessage), true},
		{"predicate", func(m *Message) bool { return m.Has("seq") }, true},
		{"panicking predicate", func(m *Message) bool { panic("oops") }, false},
		{"nil", nil, true},
		{"unsupported", 42, false},
	}

	msgs := g.queued()
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if match := matchMessage(test.filter, msgs[0]); match != test.match {
				t.Fatalf("Filter matched %t, expected %t", match, test.match)
			}
		})
	}

	if rx := g.Receive(context.Background(), req, 0); rx == nil {
		t.Fatal("Response was not received")
	}
}

func TestGatewayRequestTimeout(t *testing.T) {
	fc := newFakeContainer(t, nil)
	g := fc.gateway(fc.opts())

	for _, timeout := range []time.Duration{0, 50 * time.Millisecond, 250 * time.Millisecond} {
		req := NewMessage()
		req.Perf = Request

		start := time.Now()
		rx, err := g.Agent("silent").Request(context.Background(), req, timeout)
		elapsed := time.Since(start)

		if err != nil {
			t.Fatal(err)
		}
		if rx != nil {
			t.Fatalf("Unexpected response %v", rx)
		}
		if elapsed < timeout || elapsed > timeout+300*time.Millisecond {
			t.Fatalf("Request with timeout %v took %v", timeout, elapsed)
		}
	}
}

func TestGatewayRequestResponse(t *testing.T) {
	fc := newFakeContainer(t, func(fc *fakeContainer, env *Envelope) {
		if env.Action == ActionSend && env.Message != nil && env.Message.Recipient.Name() == "echo" {
			fc.reply(env.Message, NewReply(env.Message, Agree))
		}
	})
	g := fc.gateway(fc.opts())

	req := NewMessage()
	req.Perf = Request
	rsp, err := g.Agent("echo").Request(context.Background(), req, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if rsp == nil || rsp.Perf != Agree || rsp.InReplyTo != req.MsgID {
		t.Fatalf("Unexpected response %v", rsp)
	}
	if !rsp.Sender.Equal(g.Agent("echo")) || rsp.Sender.Owner() != g {
		t.Fatalf("Response's sender %v is not bound to the Gateway", rsp.Sender)
	}
}

func TestGatewayReceiveContext(t *testing.T) {
	fc := newFakeContainer(t, nil)
	g := fc.gateway(fc.opts())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	if rx := g.Receive(ctx, nil, -1); rx != nil {
		t.Fatalf("Unexpected message %v", rx)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond || elapsed > time.Second {
		t.Fatalf("Receive returned after %v", elapsed)
	}
}

func TestGatewayReceivePending(t *testing.T) {
	fc := newFakeContainer(t, nil)
	g := fc.gateway(fc.opts())

	var published atomic.Int32
	g.Messages().Subscribe(func(*Message) { published.Add(1) })

	done := make(chan *Message)
	go func() { done <- g.Receive(context.Background(), testNtf, -1) }()

	// The pending receive must be registered before the message arrives.
	time.Sleep(100 * time.Millisecond)
	fc.deliver(ntfTo(g.AgentID(), 7))

	select {
	case rx := <-done:
		if seq, _ := rx.Int("seq"); seq != 7 {
			t.Fatalf("Received seq %d", seq)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pending receive was not resolved")
	}

	waitFor(t, time.Second, func() bool { return published.Load() >= 1 })
	if n := published.Load(); n != 1 {
		t.Fatalf("Message was published %d times", n)
	}
	if q := g.queued(); len(q) != 0 {
		t.Fatalf("Consumed message was queued: %v", q)
	}
}

func TestGatewaySubscribe(t *testing.T) {
	fc := newFakeContainer(t, nil)
	g := fc.gateway(fc.opts())

	topic := g.Topic("news")
	if !g.Subscribe(topic) {
		t.Fatal("Subscribing failed")
	}
	env := fc.expect(func(env *Envelope) bool { return env.Action == ActionWantsMessagesFor }, time.Second)
	if len(env.AgentIDs) != 2 || env.AgentIDs[1] != "#news" {
		t.Fatalf("Unexpected watch list %v", env.AgentIDs)
	}

	fc.deliver(ntfTo(topic, 1))
	if rx := g.Receive(context.Background(), testNtf, time.Second); rx == nil {
		t.Fatal("Message to subscribed topic was not received")
	}

	g.Unsubscribe(topic)
	env = fc.expect(func(env *Envelope) bool { return env.Action == ActionWantsMessagesFor }, time.Second)
	if len(env.AgentIDs) != 1 {
		t.Fatalf("Unexpected watch list %v", env.AgentIDs)
	}

	fc.deliver(ntfTo(topic, 2))
	if rx := g.Receive(context.Background(), testNtf, 200*time.Millisecond); rx != nil {
		t.Fatalf("Message to unsubscribed topic was received: %v", rx)
	}
}

func TestGatewayAgentTopic(t *testing.T) {
	g := NewGatewayFor(newStubConnector(), DefaultOptions())
	defer func() { _ = g.Close() }()

	tests := []struct {
		aid  AgentID
		sub  []string
		want string
	}{
		{g.Agent("phy"), nil, "#phy__ntf"},
		{g.Agent("phy"), []string{"rx"}, "#phy__rx__ntf"},
		{g.Topic("news"), []string{"ignored"}, "#news"},
	}

	for _, test := range tests {
		if got := g.AgentTopic(test.aid, test.sub...); got.Key() != test.want || got.Owner() != g {
			t.Fatalf("AgentTopic(%v, %v) = %v, expected %s", test.aid, test.sub, got, test.want)
		}
	}
}

func TestGatewayAnswersQueries(t *testing.T) {
	fc := newFakeContainer(t, nil)
	g := fc.gateway(fc.opts())

	fc.send(&Envelope{ID: "q1", Action: ActionAgents})
	env := fc.expect(func(env *Envelope) bool { return env.ID == "q1" }, time.Second)
	if env.InResponseTo != ActionAgents || len(env.AgentIDs) != 1 || env.AgentIDs[0] != g.AgentID().Key() {
		t.Fatalf("Unexpected agents answer %+v", env)
	}

	aid := g.AgentID()
	fc.send(&Envelope{ID: "q2", Action: ActionContainsAgent, AgentID: &aid})
	env = fc.expect(func(env *Envelope) bool { return env.ID == "q2" }, time.Second)
	if env.Answer == nil || !*env.Answer {
		t.Fatalf("Unexpected containsAgent answer %+v", env)
	}

	fc.send(&Envelope{ID: "q3", Action: ActionAgentForService, Service: "org.arl.unet.Services.PHYSICAL"})
	env = fc.expect(func(env *Envelope) bool { return env.ID == "q3" }, time.Second)
	if env.InResponseTo != ActionAgentForService || env.AgentID == nil || !env.AgentID.IsZero() {
		t.Fatalf("Unexpected agentForService answer %+v", env)
	}
}

func TestGatewayAnswerAgentForServiceWire(t *testing.T) {
	fc := newFakeContainer(t, nil)
	fc.gateway(fc.opts())

	fc.send(&Envelope{ID: "q4", Action: ActionAgentForService, Service: "org.arl.unet.Services.MAC"})

	deadline := time.After(time.Second)
	for {
		select {
		case line := <-fc.lines:
			if strings.Contains(line, `"q4"`) {
				if !strings.Contains(line, `"agentID":""`) {
					t.Fatalf("Answer lacks an empty agentID: %s", line)
				}
				return
			}
		case <-deadline:
			t.Fatal("agentForService was not answered")
		}
	}
}

func TestGatewayContainerQueries(t *testing.T) {
	fc := newFakeContainer(t, func(fc *fakeContainer, env *Envelope) {
		rsp := &Envelope{ID: env.ID, InResponseTo: env.Action}
		switch env.Action {
		case ActionAgents:
			rsp.AgentIDs = []string{"phy", "mac"}
		case ActionContainsAgent:
			rsp.Answer = boolPtr(env.AgentID.Name() == "phy")
		case ActionAgentForService:
			phy := NewAgentID("phy", false)
			rsp.AgentID = &phy
		case ActionAgentsForService:
			rsp.AgentIDs = []string{"phy"}
		case ActionServices:
			rsp.Services = []string{"org.arl.unet.Services.PHYSICAL"}
		default:
			return
		}
		fc.send(rsp)
	})
	g := fc.gateway(fc.opts())
	ctx := context.Background()

	if agents, err := g.Agents(ctx); err != nil || len(agents) != 2 || agents[1].Name() != "mac" {
		t.Fatalf("Agents: %v, %v", agents, err)
	}
	if ok, err := g.ContainsAgent(ctx, g.Agent("phy")); err != nil || !ok {
		t.Fatalf("ContainsAgent: %t, %v", ok, err)
	}
	if ok, err := g.ContainsAgent(ctx, g.Agent("nope")); err != nil || ok {
		t.Fatalf("ContainsAgent: %t, %v", ok, err)
	}
	if aid, err := g.AgentForService(ctx, "org.arl.unet.Services.PHYSICAL"); err != nil || aid.Name() != "phy" || aid.Owner() != g {
		t.Fatalf("AgentForService: %v, %v", aid, err)
	}
	if aids, err := g.AgentsForService(ctx, "org.arl.unet.Services.PHYSICAL"); err != nil || len(aids) != 1 {
		t.Fatalf("AgentsForService: %v, %v", aids, err)
	}
	if services, err := g.Services(ctx); err != nil || len(services) != 1 {
		t.Fatalf("Services: %v, %v", services, err)
	}
}

func TestGatewayQueryFailure(t *testing.T) {
	fc := newFakeContainer(t, nil)

	opts := fc.opts()
	opts.Timeout = 100 * time.Millisecond
	g := fc.gateway(opts)

	if aid, err := g.AgentForService(context.Background(), "nope"); err != nil || !aid.IsZero() {
		t.Fatalf("AgentForService: %v, %v", aid, err)
	}

	g.opts.ReturnNullOnFailedResponse = false
	if _, err := g.AgentForService(context.Background(), "nope"); err == nil {
		t.Fatal("Unanswered query did not fail")
	}

	_ = g.Close()
	if _, err := g.Services(context.Background()); err != ErrClosed {
		t.Fatalf("Query on closed Gateway returned %v", err)
	}
}

func TestGatewayCancelPendingOnDisconnect(t *testing.T) {
	fc := newFakeContainer(t, nil)

	opts := fc.opts()
	opts.CancelPendingOnDisconnect = true
	g := fc.gateway(opts)

	conn, cancel := g.ConnectionEvents().Chan(4)
	defer cancel()

	done := make(chan *Message)
	go func() { done <- g.Receive(context.Background(), nil, -1) }()
	time.Sleep(100 * time.Millisecond)

	fc.dropConns()

	select {
	case rx := <-done:
		if rx != nil {
			t.Fatalf("Pending receive resolved with %v", rx)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pending receive was not cancelled")
	}

	select {
	case state := <-conn:
		if state {
			t.Fatal("Expected a disconnect event")
		}
	case <-time.After(time.Second):
		t.Fatal("No disconnect event")
	}

	// The Gateway reconnects and announces itself again.
	fc.expect(func(env *Envelope) bool { return env.Action == ActionWantsMessagesFor }, 2*time.Second)
	waitFor(t, time.Second, g.Connected)
}

func TestGatewayClose(t *testing.T) {
	fc := newFakeContainer(t, nil)
	g := fc.gateway(fc.opts())

	done := make(chan *Message)
	go func() { done <- g.Receive(context.Background(), nil, -1) }()
	time.Sleep(50 * time.Millisecond)

	if err := g.Close(); err != nil {
		t.Fatal(err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Second Close errored: %v", err)
	}

	select {
	case rx := <-done:
		if rx != nil {
			t.Fatalf("Pending receive resolved with %v", rx)
		}
	case <-time.After(time.Second):
		t.Fatal("Pending receive was not resolved on Close")
	}

	var shutdown bool
	deadline := time.After(time.Second)
	for !shutdown {
		select {
		case line := <-fc.lines:
			shutdown = strings.Contains(line, `"alive":false`)
		case <-deadline:
			t.Fatal("No shutdown frame")
		}
	}

	if g.Send(NewMessage()) {
		t.Fatal("Closed Gateway accepted a message")
	}
	if g.Connected() {
		t.Fatal("Closed Gateway is connected")
	}
}

func TestGatewayTrace(t *testing.T) {
	fc := newFakeContainer(t, nil)
	g := fc.gateway(fc.opts())

	trace, cancel := g.Trace().Chan(64)
	defer cancel()

	msg := NewMessage()
	msg.Recipient = g.Agent("phy")
	if !g.Send(msg) {
		t.Fatal("Send was not accepted")
	}

	kinds := map[TraceKind]bool{}
	for len(kinds) < 2 {
		select {
		case ev := <-trace:
			kinds[ev.Kind] = true
		case <-time.After(time.Second):
			t.Fatalf("Missing trace events, got %v", kinds)
		}
	}
	if !kinds[TraceTxMessage] || !kinds[TraceTx] {
		t.Fatalf("Unexpected trace events %v", kinds)
	}

	env := fc.expect(func(env *Envelope) bool { return env.Action == ActionSend }, time.Second)
	if env.Relay == nil || !*env.Relay || env.Message.Sender.Key() != g.AgentID().Key() {
		t.Fatalf("Unexpected send envelope %+v", env)
	}
}

func TestGatewayRequestFromMessageSubscriber(t *testing.T) {
	fc := newFakeContainer(t, func(fc *fakeContainer, env *Envelope) {
		if env.Action == ActionSend && env.Message.Recipient.Name() == "echo" {
			rsp := NewMessage()
			rsp.Perf = Agree
			fc.reply(env.Message, rsp)
		}
	})
	g := fc.gateway(fc.opts())

	replies := make(chan *Message, 1)
	cancel := g.Messages().Subscribe(func(msg *Message) {
		if msg.Class != testNtf {
			return
		}
		rsp, _ := g.Agent("echo").Request(context.Background(), NewMessage(), time.Second)
		replies <- rsp
	})
	defer cancel()

	fc.deliver(ntfTo(g.AgentID(), 1))

	select {
	case rsp := <-replies:
		if rsp == nil || rsp.Perf != Agree {
			t.Fatalf("Request within a subscriber returned %v", rsp)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Subscriber did not finish its Request")
	}
}

func TestGatewayQueryFromConnectionSubscriber(t *testing.T) {
	fc := newFakeContainer(t, func(fc *fakeContainer, env *Envelope) {
		if env.Action == ActionServices {
			fc.send(&Envelope{
				ID:           env.ID,
				InResponseTo: env.Action,
				Services:     []string{"org.arl.unet.Services.PHYSICAL"},
			})
		}
	})
	g := fc.gateway(fc.opts())

	type result struct {
		services []string
		err      error
	}
	results := make(chan result, 1)
	cancel := g.ConnectionEvents().Subscribe(func(connected bool) {
		if !connected {
			return
		}
		services, err := g.Services(context.Background())
		select {
		case results <- result{services, err}:
		default:
		}
	})
	defer cancel()

	fc.dropConns()

	select {
	case r := <-results:
		if r.err != nil || len(r.services) != 1 {
			t.Fatalf("Services within a subscriber returned %v, %v", r.services, r.err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Subscriber did not finish its query")
	}
}

func TestGatewayTraceSubscriberCallsBack(t *testing.T) {
	fc := newFakeContainer(t, nil)
	g := fc.gateway(fc.opts())

	var once sync.Once
	flushed := make(chan struct{})
	cancel := g.Trace().Subscribe(func(ev TraceEvent) {
		if ev.Kind != TraceTx {
			return
		}
		once.Do(func() {
			g.Flush()
			close(flushed)
		})
	})
	defer cancel()

	// Subscribing announces the topic from the Gateway's handler.
	g.Subscribe(g.Topic("news"))

	select {
	case <-flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("Trace subscriber is stuck calling the Gateway")
	}
}
