// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Header fields of a Message's wire form, next to the payload fields.
const (
	fieldMsgID     = "msgID"
	fieldPerf      = "perf"
	fieldSender    = "sender"
	fieldRecipient = "recipient"
	fieldInReplyTo = "inReplyTo"
	fieldSentAt    = "sentAt"
)

// Message is exchanged between agents. Its Class names the payload's type; the
// payload itself is kept in Fields. Messages are identified by their MsgID, a
// response refers to its request by InReplyTo.
type Message struct {
	Class     *MessageClass
	MsgID     string
	Perf      Performative
	Sender    AgentID
	Recipient AgentID
	InReplyTo string
	SentAt    int64

	Fields map[string]any
}

// NewMessage creates an empty Message of the base class.
func NewMessage() *Message {
	return BaseMessage.New(nil)
}

// NewReply creates an empty base class Message answering to. It is addressed to
// the sender of to.
func NewReply(to *Message, perf Performative) *Message {
	return BaseMessage.Reply(to, perf)
}

// Reply creates a Message of this class answering to, addressed to the sender
// of to.
func (c *MessageClass) Reply(to *Message, perf Performative) *Message {
	msg := c.New(nil)
	msg.Perf = perf
	if to != nil {
		msg.Recipient = to.Sender
		msg.InReplyTo = to.MsgID
	}
	return msg
}

// GetMsgID allows a Message to be used as a Receive filter for its response.
func (msg *Message) GetMsgID() string {
	return msg.MsgID
}

// Get a payload field, nil if it does not exist.
func (msg *Message) Get(name string) any {
	if msg.Fields == nil {
		return nil
	}
	return msg.Fields[name]
}

// Set a payload field and return the Message for chaining.
func (msg *Message) Set(name string, value any) *Message {
	if msg.Fields == nil {
		msg.Fields = make(map[string]any)
	}
	msg.Fields[name] = value
	return msg
}

// Has checks if a non-nil payload field exists.
func (msg *Message) Has(name string) bool {
	return msg.Get(name) != nil
}

// Int reads an integral payload field.
func (msg *Message) Int(name string) (int64, bool) {
	return toInt(msg.Get(name))
}

// Float reads a numeric payload field.
func (msg *Message) Float(name string) (float64, bool) {
	return toFloat(msg.Get(name))
}

// String reads a string payload field.
func (msg *Message) String(name string) (string, bool) {
	s, ok := msg.Get(name).(string)
	return s, ok
}

// Bool reads a boolean payload field.
func (msg *Message) Bool(name string) (bool, bool) {
	b, ok := msg.Get(name).(bool)
	return b, ok
}

// Bytes reads a byte array payload field. Next to a packed byte array, a plain
// JSON array of numbers in the range of a byte is accepted.
func (msg *Message) Bytes(name string) ([]byte, bool) {
	switch v := msg.Get(name).(type) {
	case []byte:
		return v, true

	case []any:
		buf := make([]byte, len(v))
		for i, e := range v {
			n, ok := toInt(e)
			if !ok || n < math.MinInt8 || n > math.MaxUint8 {
				return nil, false
			}
			buf[i] = byte(n)
		}
		return buf, true

	case []int16, []int32, []int64:
		var buf []byte
		for _, n := range anySlice(v) {
			i, _ := toInt(n)
			if i < math.MinInt8 || i > math.MaxUint8 {
				return nil, false
			}
			buf = append(buf, byte(i))
		}
		return buf, true

	default:
		return nil, false
	}
}

// Summary is a short human readable description, e.g. "REQUEST: ParameterReq".
func (msg *Message) Summary() string {
	if msg.Class == nil || msg.Class.Name == BaseMessage.Name {
		return msg.Perf.String()
	}
	return fmt.Sprintf("%v: %s", msg.Perf, msg.Class.ShortName())
}

// MarshalJSON creates the wire form {"clazz": ..., "data": {...}}. Numeric Go
// slices within the payload are packed as base64 typed arrays.
func (msg *Message) MarshalJSON() ([]byte, error) {
	data := make(map[string]any, len(msg.Fields)+6)
	for k, v := range msg.Fields {
		data[k] = packValue(v)
	}

	data[fieldMsgID] = msg.MsgID
	if msg.Perf != "" {
		data[fieldPerf] = msg.Perf
	}
	if !msg.Sender.IsZero() {
		data[fieldSender] = msg.Sender
	}
	if !msg.Recipient.IsZero() {
		data[fieldRecipient] = msg.Recipient
	}
	if msg.InReplyTo != "" {
		data[fieldInReplyTo] = msg.InReplyTo
	}
	if msg.SentAt != 0 {
		data[fieldSentAt] = msg.SentAt
	}

	class := BaseMessage
	if msg.Class != nil {
		class = msg.Class
	}

	return json.Marshal(struct {
		Clazz string         `json:"clazz"`
		Data  map[string]any `json:"data"`
	}{class.Name, data})
}

// UnmarshalJSON reads the wire form. The class is looked up by ClassFor; typed
// arrays are unpacked.
func (msg *Message) UnmarshalJSON(b []byte) error {
	var wire struct {
		Clazz string          `json:"clazz"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	if wire.Clazz == "" || len(wire.Data) == 0 {
		return fmt.Errorf("message misses clazz or data: %s", b)
	}

	dec := json.NewDecoder(bytes.NewReader(wire.Data))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return fmt.Errorf("message data: %w", err)
	}

	*msg = Message{Class: ClassFor(wire.Clazz), Fields: make(map[string]any, len(data))}

	for k, v := range data {
		switch k {
		case fieldMsgID:
			msg.MsgID, _ = v.(string)
		case fieldPerf:
			if s, ok := v.(string); ok {
				msg.Perf = Performative(s)
			}
		case fieldSender:
			if s, ok := v.(string); ok {
				msg.Sender = ParseAgentID(s, nil)
			}
		case fieldRecipient:
			if s, ok := v.(string); ok {
				msg.Recipient = ParseAgentID(s, nil)
			}
		case fieldInReplyTo:
			msg.InReplyTo, _ = v.(string)
		case fieldSentAt:
			msg.SentAt, _ = toInt(unpackValue(v))
		default:
			if v != nil {
				msg.Fields[k] = unpackValue(v)
			}
		}
	}
	return nil
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		return toInt(float64(n))
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		i, ok := toInt(v)
		return float64(i), ok
	}
}

func anySlice(v any) (out []any) {
	switch arr := v.(type) {
	case []int16:
		for _, e := range arr {
			out = append(out, e)
		}
	case []int32:
		for _, e := range arr {
			out = append(out, e)
		}
	case []int64:
		for _, e := range arr {
			out = append(out, e)
		}
	}
	return
}
