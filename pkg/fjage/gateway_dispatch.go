// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	log "github.com/sirupsen/logrus"
)

// onLine is the Connector's read callback, dispatching each inbound line.
func (g *Gateway) onLine(line string) {
	g.log.WithField("line", line).Trace("rx")
	g.traceEvents.publish(TraceEvent{Kind: TraceRx, Raw: line})

	env, err := DecodeEnvelope(line)
	if err != nil {
		g.log.WithError(err).WithField("line", line).Debug("Dropping malformed line")
		return
	}
	g.traceEvents.publish(TraceEvent{Kind: TraceRxParsed, Envelope: env})

	if env.ID != "" && g.resolveAction(env) {
		return
	}

	switch env.Action {
	case ActionSend:
		g.onMessage(env.Message)

	case ActionAgents, ActionContainsAgent, ActionServices, ActionAgentForService, ActionAgentsForService:
		g.answer(env)

	default:
		if env.Action != "" {
			g.log.WithField("action", env.Action).Debug("Dropping envelope with an unsupported action")
		}
	}
}

// resolveAction hands an answer to its pending container query, if there is
// one.
func (g *Gateway) resolveAction(env *Envelope) (resolved bool) {
	g.call(func() {
		pa, ok := g.pendingActions[env.ID]
		if !ok {
			return
		}

		delete(g.pendingActions, env.ID)
		if pa.timer != nil {
			pa.timer.Stop()
		}
		pa.result <- env
		resolved = true
	})
	return
}

// onMessage delivers an inbound message addressed to this Gateway or one of its
// subscribed topics. It is published to the Messages subscribers and offered to
// the pending receives in their registration order. If no receive consumes the
// message, it is queued.
func (g *Gateway) onMessage(msg *Message) {
	if msg == nil {
		return
	}

	msg.Sender = msg.Sender.WithOwner(g)
	msg.Recipient = msg.Recipient.WithOwner(g)
	g.traceEvents.publish(TraceEvent{Kind: TraceRxMessage, Message: msg})

	var accepted bool
	g.call(func() { accepted = g.subscribed(msg.Recipient) })
	if !accepted {
		g.log.WithFields(log.Fields{
			"message":   msg.MsgID,
			"recipient": msg.Recipient.Key(),
		}).Trace("Ignoring message for another recipient")
		return
	}

	g.msgEvents.publish(msg)

	g.do(func() {
		for _, pr := range append([]*pendingReceive(nil), g.pendingReceives...) {
			if matchMessage(pr.filter, msg) && g.resolveReceive(pr, msg) {
				return
			}
		}
		g.enqueue(msg)
	})
}

// answer the standard queries every container member must answer. A Gateway
// represents a single agent without any services.
func (g *Gateway) answer(req *Envelope) {
	rsp := &Envelope{
		ID:           req.ID,
		InResponseTo: req.Action,
	}

	switch req.Action {
	case ActionAgents:
		rsp.AgentIDs = []string{g.aid.Key()}

	case ActionContainsAgent:
		rsp.Answer = boolPtr(req.AgentID != nil && req.AgentID.Equal(g.aid))

	case ActionServices:
		rsp.Services = []string{}

	case ActionAgentForService:
		// No agent, answered by an empty AgentID.
		rsp.AgentID = &AgentID{}

	case ActionAgentsForService:
		rsp.AgentIDs = []string{}
	}

	if !g.writeEnvelope(rsp) {
		g.log.WithField("action", req.Action).Debug("Failed to answer query")
	}
}
