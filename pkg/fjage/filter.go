// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	log "github.com/sirupsen/logrus"
)

// Filter selects messages for Receive. Supported are, in this order of
// precedence:
//
//   - a string, matching a message whose InReplyTo equals it,
//   - a value with a GetMsgID() string method, e.g., a *Message, matching its responses,
//   - a *MessageClass, matching messages of exactly this class,
//   - a func(*Message) bool predicate,
//   - the result of InstanceOf, matching a class and all its descendants,
//   - nil, matching every message.
type Filter any

// msgIDer is implemented by requests, e.g., *Message.
type msgIDer interface {
	GetMsgID() string
}

// instanceOf is a Filter matching a class and its descendants.
type instanceOf struct {
	class *MessageClass
}

// InstanceOf creates a Filter for messages of class or one of its descendants.
func InstanceOf(class *MessageClass) Filter {
	return instanceOf{class: class}
}

// matchMessage checks msg against a Filter. Unsupported filter types match
// nothing.
func matchMessage(filter Filter, msg *Message) bool {
	if msg == nil {
		return false
	}

	switch f := filter.(type) {
	case nil:
		return true

	case string:
		return msg.InReplyTo == f

	case msgIDer:
		return msg.InReplyTo == f.GetMsgID()

	case *MessageClass:
		return msg.Class != nil && f != nil && msg.Class.Name == f.Name

	case func(*Message) bool:
		return matchPredicate(f, msg)

	case instanceOf:
		return msg.Class != nil && msg.Class.IsA(f.class)

	default:
		log.WithField("filter", filter).Debug("Unsupported filter type")
		return false
	}
}

// matchPredicate calls a predicate, treating a panic as no match.
func matchPredicate(pred func(*Message) bool, msg *Message) (match bool) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"message": msg.MsgID,
				"panic":   r,
			}).Warn("Receive filter panicked")
			match = false
		}
	}()

	return pred(msg)
}
