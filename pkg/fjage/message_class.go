// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"strings"
	"sync"
)

// MessageClass is the type of a Message, identified by its fully-qualified wire
// tag. Classes form a hierarchy through their Parent; a class' field set is
// composed from its own Fields and those of all its ancestors.
type MessageClass struct {
	// Name is the fully-qualified wire tag, e.g.
	// "org.arl.fjage.param.ParameterReq".
	Name string

	// Parent is the class this one refines, nil only for the base class.
	Parent *MessageClass

	// Fields are the payload field names this class adds to its Parent's.
	Fields []string
}

// BaseMessage is the root class of every message.
var BaseMessage = &MessageClass{Name: "org.arl.fjage.Message"}

var (
	// ParameterReq requests one or more parameters of an agent to be read or
	// written.
	ParameterReq = DefineClass("org.arl.fjage.param.ParameterReq", nil,
		"param", "value", "requests", "index")

	// ParameterRsp answers a ParameterReq.
	ParameterRsp = DefineClass("org.arl.fjage.param.ParameterRsp", nil,
		"param", "value", "values", "readonly", "index")
)

// classRegistry maps wire tags to their MessageClass.
type classRegistry struct {
	sync.RWMutex
	classes map[string]*MessageClass
}

var registry = &classRegistry{
	classes: map[string]*MessageClass{BaseMessage.Name: BaseMessage},
}

// DefineClass registers a new MessageClass for the fully-qualified name. If
// parent is nil, the class derives from BaseMessage. Defining an already known
// name returns the existing class.
func DefineClass(name string, parent *MessageClass, fields ...string) *MessageClass {
	if parent == nil {
		parent = BaseMessage
	}

	registry.Lock()
	defer registry.Unlock()

	if c, ok := registry.classes[name]; ok {
		return c
	}

	c := &MessageClass{Name: name, Parent: parent, Fields: fields}
	registry.classes[name] = c
	return c
}

// ClassFor returns the registered MessageClass of a wire tag. Unknown tags
// result in an unregistered class deriving from BaseMessage.
func ClassFor(name string) *MessageClass {
	registry.RLock()
	c, ok := registry.classes[name]
	registry.RUnlock()

	if ok {
		return c
	}
	return &MessageClass{Name: name, Parent: BaseMessage}
}

// ShortName is the unqualified class name, e.g. "ParameterReq".
func (c *MessageClass) ShortName() string {
	if i := strings.LastIndex(c.Name, "."); i >= 0 {
		return c.Name[i+1:]
	}
	return c.Name
}

// IsA reports if this class is other or derives from it.
func (c *MessageClass) IsA(other *MessageClass) bool {
	if other == nil {
		return false
	}
	for cur := c; cur != nil; cur = cur.Parent {
		if cur.Name == other.Name {
			return true
		}
	}
	return false
}

// AllFields lists the composed field set, ancestors' fields first.
func (c *MessageClass) AllFields() []string {
	if c.Parent == nil {
		return append([]string(nil), c.Fields...)
	}
	return append(c.Parent.AllFields(), c.Fields...)
}

// HasField reports if name is part of the composed field set.
func (c *MessageClass) HasField(name string) bool {
	for cur := c; cur != nil; cur = cur.Parent {
		for _, f := range cur.Fields {
			if f == name {
				return true
			}
		}
	}
	return false
}

// defaultPerformative of new messages; requests by naming convention end with
// "Req".
func (c *MessageClass) defaultPerformative() Performative {
	if strings.HasSuffix(c.Name, "Req") {
		return Request
	}
	return Inform
}

// New creates a Message of this class, initialized with the given payload
// fields.
func (c *MessageClass) New(fields map[string]any) *Message {
	msg := &Message{
		Class:  c,
		MsgID:  newID(),
		Perf:   c.defaultPerformative(),
		Fields: make(map[string]any, len(fields)),
	}
	for k, v := range fields {
		msg.Fields[k] = v
	}
	return msg
}

func (c *MessageClass) String() string {
	return c.Name
}
