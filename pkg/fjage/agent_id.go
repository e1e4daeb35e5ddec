// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnowned is returned for operations on an AgentID which is not bound to a
// Gateway.
var ErrUnowned = errors.New("unowned AgentID cannot send messages")

// topicSigil prefixes the canonical form of a topic.
const topicSigil = "#"

// AgentID addresses an agent or a topic of the remote container. It might be
// bound to the Gateway it was obtained from, which is then used for Send,
// Request and the parameter access.
//
// Two AgentIDs are equal iff their canonical strings are equal; use Key for map
// keys.
type AgentID struct {
	name  string
	topic bool
	owner *Gateway
}

// NewAgentID creates an unowned AgentID.
func NewAgentID(name string, topic bool) AgentID {
	return AgentID{name: name, topic: topic}
}

// ParseAgentID inflates an AgentID from its canonical form, "#name" for topics
// or "name" for agents.
func ParseAgentID(s string, owner *Gateway) AgentID {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, topicSigil) {
		return AgentID{name: s[len(topicSigil):], topic: true, owner: owner}
	}
	return AgentID{name: s, owner: owner}
}

// Name of the agent or topic.
func (aid AgentID) Name() string {
	return aid.name
}

// IsTopic is true if this AgentID represents a topic.
func (aid AgentID) IsTopic() bool {
	return aid.topic
}

// IsZero is true for the AgentID's zero value, i.e., no address at all.
func (aid AgentID) IsZero() bool {
	return aid.name == "" && !aid.topic
}

// Owner returns the Gateway this AgentID is bound to, or nil.
func (aid AgentID) Owner() *Gateway {
	return aid.owner
}

// WithOwner returns a copy of this AgentID bound to the given Gateway.
func (aid AgentID) WithOwner(owner *Gateway) AgentID {
	aid.owner = owner
	return aid
}

// Key is the canonical wire form: the name, prefixed by a "#" for topics.
func (aid AgentID) Key() string {
	if aid.topic {
		return topicSigil + aid.name
	}
	return aid.name
}

// Equal compares two AgentIDs by their canonical form.
func (aid AgentID) Equal(other AgentID) bool {
	return aid.Key() == other.Key()
}

func (aid AgentID) String() string {
	if aid.owner != nil {
		return fmt.Sprintf("%s on %s", aid.Key(), aid.owner.URL())
	}
	return aid.Key()
}

// MarshalJSON writes the canonical form as a JSON string.
func (aid AgentID) MarshalJSON() ([]byte, error) {
	return json.Marshal(aid.Key())
}

// UnmarshalJSON reads an AgentID from a JSON string. The owner is left unset.
func (aid *AgentID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*aid = ParseAgentID(s, nil)
	return nil
}

// Send a message to the agent or topic represented by this AgentID. The return
// value reports if the Gateway's Connector accepted the message, not its
// delivery.
func (aid AgentID) Send(msg *Message) (bool, error) {
	if aid.owner == nil {
		return false, ErrUnowned
	}
	msg.Recipient = aid
	return aid.owner.Send(msg), nil
}

// Request sends a message to this AgentID and waits for its response. A nil
// Message without an error indicates that no response arrived within the
// timeout. A negative timeout waits until ctx is done.
func (aid AgentID) Request(
	ctx context.Context, msg *Message, timeout time.Duration,
) (*Message, error) {
	if aid.owner == nil {
		return nil, ErrUnowned
	}
	msg.Recipient = aid
	return aid.owner.Request(ctx, msg, timeout), nil
}

// timeout is the owner's default request timeout.
func (aid AgentID) timeout() time.Duration {
	if aid.owner == nil {
		return DefaultTimeout
	}
	return aid.owner.opts.Timeout
}
