// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoResponse is returned if a container query was not answered in time.
var ErrNoResponse = errors.New("no response from master container")

// transact sends a container query and waits for its answer, identified by a
// fresh envelope id. It returns nil if the query could not be written, the
// timeout expired, ctx is done, or the Gateway closed.
func (g *Gateway) transact(
	ctx context.Context, req *Envelope, timeout time.Duration,
) *Envelope {
	req.ID = newID()
	result := make(chan *Envelope, 1)

	if !g.call(func() {
		pa := &pendingAction{result: result}
		g.pendingActions[req.ID] = pa

		if timeout >= 0 {
			pa.timer = time.AfterFunc(timeout, func() {
				g.do(func() { g.expireAction(req.ID) })
			})
		}

		if !g.writeEnvelope(req) {
			g.log.WithField("action", req.Action).Debug("Query was not accepted by the Connector")
			g.expireAction(req.ID)
		}
	}) {
		return nil
	}

	select {
	case env := <-result:
		return env

	case <-ctx.Done():
		g.call(func() { g.expireAction(req.ID) })
		return <-result

	case <-g.closeAck:
		select {
		case env := <-result:
			return env
		default:
			return nil
		}
	}
}

// expireAction resolves a pending action with nil. It must be called from the
// handler.
func (g *Gateway) expireAction(id string) {
	pa, ok := g.pendingActions[id]
	if !ok {
		return
	}

	delete(g.pendingActions, id)
	if pa.timer != nil {
		pa.timer.Stop()
	}
	pa.result <- nil
}

// query performs a container query with the default timeout.
func (g *Gateway) query(ctx context.Context, req *Envelope) (*Envelope, error) {
	if g.closed() {
		return nil, ErrClosed
	}
	return g.transact(ctx, req, g.opts.Timeout), nil
}

// failed creates the result of an unanswered query, either nil or an error.
func (g *Gateway) failed(action Action) error {
	if g.opts.ReturnNullOnFailedResponse {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNoResponse, action)
}

// Agents lists all agents of the master container.
func (g *Gateway) Agents(ctx context.Context) ([]AgentID, error) {
	rsp, err := g.query(ctx, &Envelope{Action: ActionAgents})
	if err != nil {
		return nil, err
	}
	if rsp == nil || rsp.AgentIDs == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoResponse, ActionAgents)
	}
	return rsp.agentIDs(g), nil
}

// ContainsAgent checks if an agent exists in the master container.
func (g *Gateway) ContainsAgent(ctx context.Context, aid AgentID) (bool, error) {
	aid = aid.WithOwner(nil)
	rsp, err := g.query(ctx, &Envelope{Action: ActionContainsAgent, AgentID: &aid})
	if err != nil {
		return false, err
	}
	if rsp == nil {
		return false, g.failed(ActionContainsAgent)
	}
	return rsp.Answer != nil && *rsp.Answer, nil
}

// AgentForService finds an agent providing a service. A zero AgentID is
// returned if there is none.
func (g *Gateway) AgentForService(ctx context.Context, service string) (AgentID, error) {
	rsp, err := g.query(ctx, &Envelope{Action: ActionAgentForService, Service: service})
	if err != nil {
		return AgentID{}, err
	}
	if rsp == nil {
		return AgentID{}, g.failed(ActionAgentForService)
	}
	if rsp.AgentID == nil || rsp.AgentID.IsZero() {
		return AgentID{}, nil
	}
	return rsp.AgentID.WithOwner(g), nil
}

// AgentsForService finds all agents providing a service.
func (g *Gateway) AgentsForService(
	ctx context.Context, service string,
) ([]AgentID, error) {
	rsp, err := g.query(ctx, &Envelope{Action: ActionAgentsForService, Service: service})
	if err != nil {
		return nil, err
	}
	if rsp == nil {
		return nil, g.failed(ActionAgentsForService)
	}
	return rsp.agentIDs(g), nil
}

// Services lists all services provided within the master container.
func (g *Gateway) Services(ctx context.Context) ([]string, error) {
	rsp, err := g.query(ctx, &Envelope{Action: ActionServices})
	if err != nil {
		return nil, err
	}
	if rsp == nil {
		return nil, g.failed(ActionServices)
	}
	return append([]string{}, rsp.Services...), nil
}

// CachingAgent returns a CachingAgentID for the named agent.
func (g *Gateway) CachingAgent(name string, greedy bool) *CachingAgentID {
	return NewCachingAgentID(g.Agent(name), greedy)
}

// CachingTopic returns a CachingAgentID for the named topic.
func (g *Gateway) CachingTopic(name string, greedy bool) *CachingAgentID {
	return NewCachingAgentID(g.Topic(name), greedy)
}
