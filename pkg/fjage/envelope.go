// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action of an Envelope.
type Action string

const (
	ActionAgents           Action = "agents"
	ActionContainsAgent    Action = "containsAgent"
	ActionAgentForService  Action = "agentForService"
	ActionAgentsForService Action = "agentsForService"
	ActionServices         Action = "services"
	ActionSend             Action = "send"
	ActionWantsMessagesFor Action = "wantsMessagesFor"
)

// Shutdown and liveness frames, sent outside of any Envelope.
const (
	aliveFrame    = `{"alive":true}`
	shutdownFrame = `{"alive":false}`
)

// Envelope is a single line of the wire protocol. Requests expecting an answer
// carry an ID, which the answer repeats together with InResponseTo set to the
// request's Action.
type Envelope struct {
	ID           string   `json:"id,omitempty"`
	Action       Action   `json:"action,omitempty"`
	InResponseTo Action   `json:"inResponseTo,omitempty"`
	AgentID      *AgentID `json:"agentID,omitempty"`
	AgentIDs     []string `json:"agentIDs,omitempty"`
	AgentTypes   []string `json:"agentTypes,omitempty"`
	Service      string   `json:"service,omitempty"`
	Services     []string `json:"services,omitempty"`
	Answer       *bool    `json:"answer,omitempty"`
	Message      *Message `json:"message,omitempty"`
	Relay        *bool    `json:"relay,omitempty"`
	Creds        string   `json:"creds,omitempty"`
	Auth         string   `json:"auth,omitempty"`
	Name         string   `json:"name,omitempty"`
}

// Encode the Envelope into one line of JSON, without the trailing newline.
func (env *Envelope) Encode() (string, error) {
	if env.ID == "" && env.Action == "" {
		return "", fmt.Errorf("envelope has neither an id nor an action")
	}

	b, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeEnvelope parses one line of JSON. Unknown fields are ignored.
func DecodeEnvelope(line string) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// agentIDs parses AgentIDs, bound to owner.
func (env *Envelope) agentIDs(owner *Gateway) []AgentID {
	aids := make([]AgentID, 0, len(env.AgentIDs))
	for _, s := range env.AgentIDs {
		aids = append(aids, ParseAgentID(s, owner))
	}
	return aids
}

func boolPtr(b bool) *bool {
	return &b
}
